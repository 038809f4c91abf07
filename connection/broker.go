package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/transport"
	"go.uber.org/zap"
)

// BrokerConfig contains configuration for a Broker
type BrokerConfig struct {
	// Server is the name of this server. Server calls
	// addressed to it are short-circuited.
	Server region.ServerName
	// Online is the view of regions online on this server.
	// Calls to these regions are short-circuited.
	Online region.OnlineRegions
	// Local serves short-circuited calls in-process
	Local transport.Handler
	// Host configures the host connection
	Host Config
	// Logger defaults to zap.L()
	Logger *zap.Logger
}

// Broker hands out connections to coprocessors
type Broker struct {
	local       *local
	host        *connection
	logger      *zap.Logger
	mu          sync.Mutex
	closed      bool
	connections map[string]*connection
}

// NewBroker creates a Broker and its host connection
func NewBroker(config BrokerConfig) (*Broker, error) {
	if config.Local == nil {
		return nil, errors.New("a local handler is required")
	}

	broker := &Broker{
		local: &local{
			server:  config.Server,
			online:  config.Online,
			handler: config.Local,
		},
		logger:      config.Logger,
		connections: map[string]*connection{},
	}

	if broker.logger == nil {
		broker.logger = zap.L()
	}

	if config.Host.Logger == nil {
		config.Host.Logger = broker.logger
	}

	host, err := newConnection(config.Host, broker.local)

	if err != nil {
		return nil, fmt.Errorf("could not create host connection: %w", err)
	}

	broker.host = host

	return broker, nil
}

// HostConnection returns the host connection. It is shared by
// every caller and lives as long as the broker. Closing it
// returns ErrHostOwned and has no effect.
func (broker *Broker) HostConnection() Connection {
	return hostConnection{broker.host}
}

// CreateConnection creates a new connection that shares nothing
// with the host connection or with other created connections.
// The caller must close it. Connections still open when the
// broker is closed are closed by the broker.
func (broker *Broker) CreateConnection(ctx context.Context, config Config) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionCreation, err)
	}

	if config.Logger == nil {
		config.Logger = broker.logger
	}

	conn, err := newConnection(config, broker.local)

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionCreation, err)
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return nil, fmt.Errorf("%w: %s", ErrConnectionCreation, ErrClosed)
	}

	conn.onClose = broker.forget
	broker.connections[conn.ID()] = conn

	broker.logger.Debug("created connection", zap.String("connection", conn.ID()))

	return conn, nil
}

func (broker *Broker) forget(conn *connection) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	delete(broker.connections, conn.ID())
}

// Close closes the host connection and any created
// connection that was not closed by its owner
func (broker *Broker) Close() error {
	broker.mu.Lock()

	if broker.closed {
		broker.mu.Unlock()

		return nil
	}

	broker.closed = true
	leaked := make([]*connection, 0, len(broker.connections))

	for _, conn := range broker.connections {
		leaked = append(leaked, conn)
	}

	broker.mu.Unlock()

	for _, conn := range leaked {
		broker.logger.Warn("closing connection that was never closed by its owner", zap.String("connection", conn.ID()))

		if err := conn.Close(); err != nil {
			broker.logger.Warn("could not close connection", zap.String("connection", conn.ID()), zap.Error(err))
		}
	}

	return broker.host.Close()
}

// hostConnection is the view of the host connection
// handed out to coprocessors
type hostConnection struct {
	*connection
}

// Close implements Connection.Close
func (conn hostConnection) Close() error {
	return ErrHostOwned
}
