package regionserver

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jrife/regionhost/cell"
	"github.com/jrife/regionhost/connection"
	"github.com/jrife/regionhost/coprocessor"
	"github.com/jrife/regionhost/metrics"
	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/shared"
	"go.uber.org/zap"
)

var _ coprocessor.Environment = (*environment)(nil)

type environmentKey struct {
	region string
	class  string
}

type environment struct {
	host         *Host
	region       region.Region
	info         region.RegionInfo
	spec         coprocessor.Spec
	instance     coprocessor.Coprocessor
	loadSequence int64
	sharedData   *shared.Data
	registry     *metrics.Registry
	logger       *zap.Logger
	retired      int32
	// started is closed once Start has returned.
	// startErr is only valid after that.
	started  chan struct{}
	startErr error
}

func (env *environment) key() environmentKey {
	return environmentKey{region: env.info.EncodedName(), class: env.spec.Class}
}

func (env *environment) retire() bool {
	return atomic.CompareAndSwapInt32(&env.retired, 0, 1)
}

func (env *environment) checkActive() error {
	if !env.Active() {
		return fmt.Errorf("%s on %s: %w", env.spec.Class, env.info.Name(), coprocessor.ErrRetired)
	}

	return nil
}

func (env *environment) Class() string {
	return env.spec.Class
}

func (env *environment) Priority() int {
	return env.spec.Priority
}

func (env *environment) LoadSequence() int64 {
	return env.loadSequence
}

func (env *environment) Config() map[string]string {
	return env.spec.WithDefaults().Config
}

func (env *environment) Instance() coprocessor.Coprocessor {
	return env.instance
}

func (env *environment) RegionInfo() region.RegionInfo {
	return env.info
}

func (env *environment) ServerName() region.ServerName {
	return env.host.server
}

func (env *environment) CellBuilder() *cell.Builder {
	return cell.NewBuilder()
}

func (env *environment) Active() bool {
	return atomic.LoadInt32(&env.retired) == 0
}

func (env *environment) Region() (region.Region, error) {
	if err := env.checkActive(); err != nil {
		return nil, err
	}

	return env.region, nil
}

func (env *environment) OnlineRegions() (region.OnlineRegions, error) {
	if err := env.checkActive(); err != nil {
		return nil, err
	}

	return env.host.online, nil
}

func (env *environment) SharedData() (*shared.Data, error) {
	if err := env.checkActive(); err != nil {
		return nil, err
	}

	return env.sharedData, nil
}

func (env *environment) Connection() (connection.Connection, error) {
	if err := env.checkActive(); err != nil {
		return nil, err
	}

	return environmentConnection{Connection: env.host.broker.HostConnection(), env: env}, nil
}

func (env *environment) CreateConnection(ctx context.Context, config connection.Config) (connection.Connection, error) {
	if err := env.checkActive(); err != nil {
		return nil, err
	}

	if config.Logger == nil {
		config.Logger = env.logger
	}

	return env.host.broker.CreateConnection(ctx, config)
}

func (env *environment) MetricRegistryForRegionServer() (*metrics.Registry, error) {
	if err := env.checkActive(); err != nil {
		return nil, err
	}

	return env.registry, nil
}

// environmentConnection is the host connection as seen
// through one environment. It refuses new calls once the
// environment is retired. Calls already in flight complete.
type environmentConnection struct {
	connection.Connection
	env *environment
}

func (conn environmentConnection) Exec(ctx context.Context, table string, row []byte, service string, method string, payload []byte) ([]byte, error) {
	if err := conn.env.checkActive(); err != nil {
		return nil, err
	}

	return conn.Connection.Exec(ctx, table, row, service, method, payload)
}

func (conn environmentConnection) ExecRegion(ctx context.Context, encodedName string, service string, method string, payload []byte) ([]byte, error) {
	if err := conn.env.checkActive(); err != nil {
		return nil, err
	}

	return conn.Connection.ExecRegion(ctx, encodedName, service, method, payload)
}

func (conn environmentConnection) ExecServer(ctx context.Context, server region.ServerName, service string, method string, payload []byte) ([]byte, error) {
	if err := conn.env.checkActive(); err != nil {
		return nil, err
	}

	return conn.Connection.ExecServer(ctx, server, service, method, payload)
}
