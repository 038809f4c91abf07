package regionserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jrife/regionhost/connection"
	"github.com/jrife/regionhost/coprocessor"
	"github.com/jrife/regionhost/metrics"
	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/shared"
	"github.com/jrife/regionhost/utils/log"
	"go.uber.org/zap"
)

// SpecSource lists the coprocessors attached to a table
type SpecSource interface {
	Specs(ctx context.Context, table string) ([]coprocessor.Spec, error)
}

// HostConfig contains configuration for a Host
type HostConfig struct {
	// Server is the name of this server. Required.
	Server region.ServerName
	// Loader creates coprocessors. Defaults to
	// coprocessor.DefaultLoader().
	Loader *coprocessor.Loader
	// Metrics holds the per-class metric registries.
	// Defaults to a new hub.
	Metrics *metrics.Hub
	// Shared holds the per-class shared data. Defaults
	// to a new registry.
	Shared *shared.Registry
	// Connection configures the host connection
	Connection connection.Config
	// Specs is consulted by OpenRegion. If nil OpenRegion
	// attaches no coprocessors.
	Specs SpecSource
	// Logger defaults to zap.L()
	Logger *zap.Logger
}

// Host owns the coprocessor environments of a region server
type Host struct {
	server       region.ServerName
	loader       *coprocessor.Loader
	metrics      *metrics.Hub
	shared       *shared.Registry
	specs        SpecSource
	logger       *zap.Logger
	broker       *connection.Broker
	online       *onlineRegionsIndex
	loadSequence int64
	mu           sync.Mutex
	closed       bool
	environments map[environmentKey]*environment
	opened       map[string]region.RegionInfo
}

// NewHost creates a Host
func NewHost(config HostConfig) (*Host, error) {
	if config.Server.IsZero() {
		return nil, errors.New("a server name is required")
	}

	host := &Host{
		server:       config.Server,
		loader:       config.Loader,
		metrics:      config.Metrics,
		shared:       config.Shared,
		specs:        config.Specs,
		logger:       config.Logger,
		online:       newOnlineRegionsIndex(),
		environments: map[environmentKey]*environment{},
		opened:       map[string]region.RegionInfo{},
	}

	if host.logger == nil {
		host.logger = zap.L()
	}

	host.logger = host.logger.With(zap.String("server", host.server.String()))

	if host.loader == nil {
		host.loader = coprocessor.DefaultLoader()
	}

	if host.metrics == nil {
		host.metrics = metrics.NewHub(metrics.HubConfig{Logger: host.logger})
	}

	if host.shared == nil {
		host.shared = shared.NewRegistry()
	}

	broker, err := connection.NewBroker(connection.BrokerConfig{
		Server: host.server,
		Online: host.online,
		Local:  host,
		Host:   config.Connection,
		Logger: host.logger,
	})

	if err != nil {
		return nil, fmt.Errorf("could not create connection broker: %w", err)
	}

	host.broker = broker

	host.online.OnAdd(func(r region.Region) {
		host.logger.Info("region online", zap.String("region", r.Info().Name()))
	})

	host.online.OnDelete(func(r region.Region) {
		host.logger.Info("region offline", zap.String("region", r.Info().Name()))
	})

	return host, nil
}

// ServerName returns the name of this server
func (host *Host) ServerName() region.ServerName {
	return host.server
}

// Metrics returns the hub holding every class's metric registry
func (host *Host) Metrics() *metrics.Hub {
	return host.metrics
}

// Activate attaches the coprocessor described by spec to r and
// returns its environment. It fails with ErrAlreadyActive if r
// already has an environment for the class, and with
// ErrUnknownCoprocessor if the class is not registered. It fails
// with ErrRegionConflict if a different region is online under
// r's encoded name. If the coprocessor's Start fails the
// activation is rolled back.
func (host *Host) Activate(ctx context.Context, r region.Region, spec coprocessor.Spec) (coprocessor.Environment, error) {
	if r == nil || r.Info().IsZero() {
		return nil, errors.New("a region is required")
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coprocessor spec: %w", err)
	}

	spec = spec.WithDefaults()
	info := r.Info()
	logger := host.logger.With(zap.String("region", info.Name()), zap.String("coprocessor", spec.Class))
	logger.Debug("start Activate()")

	env := &environment{
		host:    host,
		region:  region.ReadOnly(r),
		info:    info,
		spec:    spec,
		logger:  logger,
		started: make(chan struct{}),
	}

	// The factory runs without the host lock so it may call back
	// into the host
	instance, err := host.loader.Load(spec)

	if err != nil {
		return nil, err
	}

	env.instance = instance

	if err := host.register(env, r); err != nil {
		return nil, err
	}

	env.startErr = host.start(ctx, env)
	close(env.started)

	if env.startErr != nil {
		logger.Warn("coprocessor failed to start", zap.Error(env.startErr))

		// A concurrent Deactivate may have removed the
		// environment already
		if host.remove(env) {
			env.retire()
		}

		return nil, fmt.Errorf("could not start %s on %s: %w", spec.Class, info.Name(), env.startErr)
	}

	logger.Info("coprocessor activated", zap.Int64("load_sequence", env.loadSequence))

	return env, nil
}

// register adds env to the host and takes a reference to its
// region. Nothing changes if it fails.
func (host *Host) register(env *environment, r region.Region) error {
	host.mu.Lock()
	defer host.mu.Unlock()

	if host.closed {
		return ErrClosed
	}

	if _, ok := host.environments[env.key()]; ok {
		return fmt.Errorf("%s on %s: %w", env.spec.Class, env.info.Name(), ErrAlreadyActive)
	}

	if err := host.online.acquire(r); err != nil {
		return err
	}

	env.loadSequence = atomic.AddInt64(&host.loadSequence, 1)
	env.sharedData = host.shared.For(env.spec.Class)
	env.registry = host.metrics.RegistryFor(env.spec.Class)
	host.environments[env.key()] = env

	return nil
}

func (host *Host) start(ctx context.Context, env *environment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coprocessor panicked: %v", r)
		}
	}()

	return env.instance.Start(ctx, env)
}

// remove removes env from the host and releases its region. It
// returns false if env was not (or no longer) registered.
func (host *Host) remove(env *environment) bool {
	host.mu.Lock()
	defer host.mu.Unlock()

	if current, ok := host.environments[env.key()]; !ok || current != env {
		return false
	}

	delete(host.environments, env.key())
	host.online.release(env.info)

	return true
}

// Deactivate retires the environment of the class on the region
// and stops its coprocessor. It is a no-op if there is no such
// environment. The class's shared data and metrics survive.
func (host *Host) Deactivate(ctx context.Context, info region.RegionInfo, class string) {
	host.mu.Lock()
	env, ok := host.environments[environmentKey{region: info.EncodedName(), class: class}]
	host.mu.Unlock()

	if !ok {
		return
	}

	host.deactivate(ctx, env)
}

func (host *Host) deactivate(ctx context.Context, env *environment) {
	if !host.remove(env) {
		return
	}

	env.retire()

	// Stop must not overlap Start
	<-env.started

	if env.startErr != nil {
		return
	}

	if err := host.stop(ctx, env); err != nil {
		env.logger.Warn("coprocessor failed to stop", zap.Error(err))
	}

	env.logger.Info("coprocessor deactivated")
}

func (host *Host) stop(ctx context.Context, env *environment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coprocessor panicked: %v", r)
		}
	}()

	return env.instance.Stop(ctx, env)
}

// OnlineRegions returns the regions online on this server. The
// result reflects a recent state; regions opening or closing
// concurrently may or may not be included.
func (host *Host) OnlineRegions() []region.RegionInfo {
	regions := host.online.OnlineRegions()
	infos := make([]region.RegionInfo, 0, len(regions))

	for _, r := range regions {
		infos = append(infos, r.Info())
	}

	return infos
}

// OnlineRegionsView returns a read-only view of the regions
// online on this server
func (host *Host) OnlineRegionsView() region.OnlineRegions {
	return host.online
}

// Environment returns the environment of the class on the region
func (host *Host) Environment(info region.RegionInfo, class string) (coprocessor.Environment, bool) {
	host.mu.Lock()
	defer host.mu.Unlock()

	env, ok := host.environments[environmentKey{region: info.EncodedName(), class: class}]

	if !ok {
		return nil, false
	}

	return env, true
}

// Environments returns the environments of the region ordered
// by priority then load sequence
func (host *Host) Environments(info region.RegionInfo) []coprocessor.Environment {
	envs := host.environmentsOf(info.EncodedName())
	result := make([]coprocessor.Environment, 0, len(envs))

	for _, env := range envs {
		result = append(result, env)
	}

	return result
}

func (host *Host) environmentsOf(encodedName string) []*environment {
	host.mu.Lock()
	envs := []*environment{}

	for key, env := range host.environments {
		if key.region == encodedName {
			envs = append(envs, env)
		}
	}

	host.mu.Unlock()

	sort.Slice(envs, func(i, j int) bool {
		if envs[i].spec.Priority != envs[j].spec.Priority {
			return envs[i].spec.Priority < envs[j].spec.Priority
		}

		return envs[i].loadSequence < envs[j].loadSequence
	})

	return envs
}

// OpenRegion brings r online and activates every coprocessor
// attached to its table in priority order. If any activation
// fails the region is closed again and the error returned.
func (host *Host) OpenRegion(ctx context.Context, r region.Region) error {
	if r == nil || r.Info().IsZero() {
		return errors.New("a region is required")
	}

	info := r.Info()
	ctx = log.WithFields(ctx, zap.String("region", info.Name()))
	logger := log.WithContext(ctx, host.logger)

	var specs []coprocessor.Spec

	if host.specs != nil {
		var err error
		specs, err = host.specs.Specs(ctx, info.Table())

		if err != nil {
			return fmt.Errorf("could not list coprocessors of table %s: %w", info.Table(), err)
		}
	}

	if err := host.markOpen(r); err != nil {
		return err
	}

	for i := range specs {
		specs[i] = specs[i].WithDefaults()
	}

	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].Priority < specs[j].Priority
	})

	for _, spec := range specs {
		if _, err := host.Activate(ctx, r, spec); err != nil {
			logger.Error("could not open region", zap.Error(err))
			host.CloseRegion(ctx, info)

			return err
		}
	}

	logger.Info("region opened", zap.Int("coprocessors", len(specs)))

	return nil
}

// markOpen records r as open and takes the region's own reference
// in the online index
func (host *Host) markOpen(r region.Region) error {
	info := r.Info()

	host.mu.Lock()
	defer host.mu.Unlock()

	if host.closed {
		return ErrClosed
	}

	if _, ok := host.opened[info.EncodedName()]; ok {
		return fmt.Errorf("region %s is already open", info.Name())
	}

	if err := host.online.acquire(r); err != nil {
		return err
	}

	host.opened[info.EncodedName()] = info

	return nil
}

// CloseRegion deactivates every coprocessor of the region in
// reverse priority order and takes the region offline
func (host *Host) CloseRegion(ctx context.Context, info region.RegionInfo) {
	envs := host.environmentsOf(info.EncodedName())

	for i := len(envs) - 1; i >= 0; i-- {
		host.deactivate(ctx, envs[i])
	}

	host.mu.Lock()

	if _, ok := host.opened[info.EncodedName()]; ok {
		delete(host.opened, info.EncodedName())
		host.online.release(info)
	}

	host.mu.Unlock()

	host.logger.Debug("region closed", zap.String("region", info.Name()))
}

// SplitRegion closes parent and opens its daughters. Daughters
// must belong to the parent's table and lie within its key range.
// If a daughter fails to open the daughters opened so far are
// closed again.
func (host *Host) SplitRegion(ctx context.Context, parent region.RegionInfo, daughters ...region.Region) error {
	if len(daughters) == 0 {
		return errors.New("at least one daughter is required")
	}

	parentRange := parent.KeyRange()

	for _, daughter := range daughters {
		info := daughter.Info()

		if info.Table() != parent.Table() {
			return fmt.Errorf("daughter %s does not belong to table %s", info.Name(), parent.Table())
		}

		if !parentRange.Contains(info.StartKey()) || !withinEnd(parentRange, info.KeyRange()) {
			return fmt.Errorf("daughter %s is outside of parent %s", info.Name(), parent.Name())
		}
	}

	host.CloseRegion(ctx, parent)

	for i, daughter := range daughters {
		if err := host.OpenRegion(ctx, daughter); err != nil {
			for _, opened := range daughters[:i] {
				host.CloseRegion(ctx, opened.Info())
			}

			return fmt.Errorf("could not open daughter %s: %w", daughter.Info().Name(), err)
		}
	}

	return nil
}

// withinEnd returns true if child does not extend past
// the end of parent
func withinEnd(parent, child region.KeyRange) bool {
	if len(parent.End) == 0 {
		return true
	}

	return len(child.End) != 0 && bytes.Compare(child.End, parent.End) <= 0
}

// Close retires every environment and closes the connection
// broker. The host cannot be used afterwards.
func (host *Host) Close(ctx context.Context) error {
	host.mu.Lock()

	if host.closed {
		host.mu.Unlock()

		return nil
	}

	host.closed = true
	regions := map[string]region.RegionInfo{}

	for _, env := range host.environments {
		regions[env.info.EncodedName()] = env.info
	}

	for encodedName, info := range host.opened {
		regions[encodedName] = info
	}

	host.mu.Unlock()

	for _, info := range regions {
		host.CloseRegion(ctx, info)
	}

	host.logger.Info("host closed")

	return host.broker.Close()
}
