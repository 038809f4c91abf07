package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/transport"
	"github.com/jrife/regionhost/utils/ids"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Connection sends coprocessor calls to the cluster. It is
// safe for concurrent use. Calls are never retried.
type Connection interface {
	// ID uniquely identifies this connection within the process
	ID() string
	// Exec calls a method of a coprocessor service on the region
	// of table that contains row
	Exec(ctx context.Context, table string, row []byte, service string, method string, payload []byte) ([]byte, error)
	// ExecRegion calls a method of a coprocessor service on the
	// region with this encoded name
	ExecRegion(ctx context.Context, encodedName string, service string, method string, payload []byte) ([]byte, error)
	// ExecServer calls a method of a server-level service
	ExecServer(ctx context.Context, server region.ServerName, service string, method string, payload []byte) ([]byte, error)
	// Close releases the connection's resources. Calls made
	// after Close return ErrClosed.
	Close() error
	// Closed returns true once Close has been called
	Closed() bool
}

// MaxShortCircuitDepth is the number of short-circuited calls
// that may be nested within one another on this server
const MaxShortCircuitDepth = 16

type depthKey struct{}

func shortCircuitDepth(ctx context.Context) int {
	depth, _ := ctx.Value(depthKey{}).(int)

	return depth
}

// Config contains configuration for a connection
type Config struct {
	// Locator resolves the location of regions that
	// are not online on this server. Required.
	Locator Locator
	// Dialer creates stubs for remote servers. If nil
	// stubs are created with transport.Dial using
	// DialOptions.
	Dialer transport.Dialer
	// DialOptions are passed to transport.Dial when
	// Dialer is nil
	DialOptions []grpc.DialOption
	// Logger defaults to zap.L()
	Logger *zap.Logger
}

func (config Config) validate() error {
	if config.Locator == nil {
		return errors.New("a locator is required")
	}

	return nil
}

// local describes how to reach this server without
// going through the network
type local struct {
	server  region.ServerName
	online  region.OnlineRegions
	handler transport.Handler
}

func (l *local) region(encodedName string) bool {
	if l == nil || l.online == nil {
		return false
	}

	_, ok := l.online.OnlineRegion(encodedName)

	return ok
}

func (l *local) regionForRow(table string, row []byte) (region.RegionInfo, bool) {
	if l == nil || l.online == nil {
		return region.RegionInfo{}, false
	}

	for _, r := range l.online.OnlineRegionsForTable(table) {
		if info := r.Info(); info.ContainsRow(row) {
			return info, true
		}
	}

	return region.RegionInfo{}, false
}

func (l *local) isServer(server region.ServerName) bool {
	return l != nil && !l.server.IsZero() && l.server == server
}

var _ Connection = (*connection)(nil)

type connection struct {
	id      string
	locator Locator
	dialer  transport.Dialer
	local   *local
	cache   *locationCache
	logger  *zap.Logger
	onClose func(*connection)
	closed  int32
	mu      sync.Mutex
	stubs   map[string]transport.Stub
}

func newConnection(config Config, local *local) (*connection, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	conn := &connection{
		id:      ids.MustUUID(),
		locator: config.Locator,
		dialer:  config.Dialer,
		local:   local,
		cache:   newLocationCache(),
		logger:  config.Logger,
		stubs:   map[string]transport.Stub{},
	}

	if conn.dialer == nil {
		conn.dialer = transport.GRPCDialer(config.DialOptions...)
	}

	if conn.logger == nil {
		conn.logger = zap.L()
	}

	conn.logger = conn.logger.With(zap.String("connection", conn.id))

	return conn, nil
}

// ID implements Connection.ID
func (conn *connection) ID() string {
	return conn.id
}

// Exec implements Connection.Exec
func (conn *connection) Exec(ctx context.Context, table string, row []byte, service string, method string, payload []byte) ([]byte, error) {
	if conn.Closed() {
		return nil, ErrClosed
	}

	call := transport.Call{ID: ids.CallID(), Service: service, Method: method, Payload: payload}

	if info, ok := conn.local.regionForRow(table, row); ok {
		call.Region = info.EncodedName()

		return conn.execLocal(ctx, call)
	}

	location, ok := conn.cache.locate(table, row)

	if !ok {
		var err error
		location, err = conn.locator.Locate(ctx, table, row)

		if err != nil {
			return nil, err
		}

		conn.cache.put(location)
	}

	call.Region = location.Region.EncodedName()

	return conn.execRegionAt(ctx, location, call)
}

// ExecRegion implements Connection.ExecRegion
func (conn *connection) ExecRegion(ctx context.Context, encodedName string, service string, method string, payload []byte) ([]byte, error) {
	if conn.Closed() {
		return nil, ErrClosed
	}

	call := transport.Call{ID: ids.CallID(), Region: encodedName, Service: service, Method: method, Payload: payload}

	if conn.local.region(encodedName) {
		return conn.execLocal(ctx, call)
	}

	location, ok := conn.cache.locateRegion(encodedName)

	if !ok {
		var err error
		location, err = conn.locator.LocateRegion(ctx, encodedName)

		if err != nil {
			return nil, err
		}

		conn.cache.put(location)
	}

	return conn.execRegionAt(ctx, location, call)
}

// ExecServer implements Connection.ExecServer
func (conn *connection) ExecServer(ctx context.Context, server region.ServerName, service string, method string, payload []byte) ([]byte, error) {
	if conn.Closed() {
		return nil, ErrClosed
	}

	call := transport.Call{ID: ids.CallID(), Service: service, Method: method, Payload: payload}

	if conn.local.isServer(server) {
		return conn.execLocal(ctx, call)
	}

	return conn.execRemote(ctx, server, call)
}

func (conn *connection) execRegionAt(ctx context.Context, location Location, call transport.Call) ([]byte, error) {
	// The locator may know this server as the region's home before
	// the region is online here. Sending the call locally lets the
	// local handler answer authoritatively.
	if conn.local.isServer(location.Server) {
		return conn.execLocal(ctx, call)
	}

	response, err := conn.execRemote(ctx, location.Server, call)

	if errors.Is(err, transport.ErrRegionNotOnline) {
		conn.logger.Debug("invalidating cached location", zap.String("region", location.Region.Name()), zap.String("server", location.Server.String()))
		conn.cache.invalidate(location.Region.EncodedName())
	}

	return response, err
}

func (conn *connection) execLocal(ctx context.Context, call transport.Call) ([]byte, error) {
	depth := shortCircuitDepth(ctx) + 1

	if depth > MaxShortCircuitDepth {
		return nil, fmt.Errorf("%s.%s on region %q: %w", call.Service, call.Method, call.Region, ErrRecursion)
	}

	ctx = context.WithValue(ctx, depthKey{}, depth)
	conn.logger.Debug("short-circuit", zap.String("call", call.ID), zap.String("region", call.Region), zap.String("service", call.Service), zap.String("method", call.Method))

	response, err := conn.local.handler.ServeCall(ctx, call)

	if err != nil {
		return nil, err
	}

	return response.Payload, nil
}

func (conn *connection) execRemote(ctx context.Context, server region.ServerName, call transport.Call) ([]byte, error) {
	stub, err := conn.stub(ctx, server)

	if err != nil {
		return nil, err
	}

	conn.logger.Debug("remote call", zap.String("call", call.ID), zap.String("server", server.String()), zap.String("service", call.Service), zap.String("method", call.Method))

	response, err := stub.Exec(ctx, call)

	if err != nil {
		return nil, err
	}

	return response.Payload, nil
}

func (conn *connection) stub(ctx context.Context, server region.ServerName) (transport.Stub, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.Closed() {
		return nil, ErrClosed
	}

	address := server.Address()

	if stub, ok := conn.stubs[address]; ok {
		return stub, nil
	}

	stub, err := conn.dialer(ctx, address)

	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", server, err)
	}

	conn.stubs[address] = stub

	return stub, nil
}

// Close implements Connection.Close. Remote calls still
// in flight fail once their stub is closed.
func (conn *connection) Close() error {
	if !atomic.CompareAndSwapInt32(&conn.closed, 0, 1) {
		return nil
	}

	conn.mu.Lock()
	stubs := conn.stubs
	conn.stubs = map[string]transport.Stub{}
	conn.mu.Unlock()

	var firstErr error

	for address, stub := range stubs {
		if err := stub.Close(); err != nil {
			conn.logger.Warn("could not close stub", zap.String("address", address), zap.Error(err))

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if conn.onClose != nil {
		conn.onClose(conn)
	}

	conn.logger.Debug("closed")

	return firstErr
}

// Closed implements Connection.Closed
func (conn *connection) Closed() bool {
	return atomic.LoadInt32(&conn.closed) == 1
}
