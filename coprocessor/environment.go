package coprocessor

import (
	"context"

	"github.com/jrife/regionhost/cell"
	"github.com/jrife/regionhost/connection"
	"github.com/jrife/regionhost/metrics"
	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/shared"
)

// Environment binds one coprocessor instance to one region.
// There is exactly one environment per region and class at
// any time. Implementations are safe for concurrent use.
type Environment interface {
	// Class returns the coprocessor class
	Class() string
	// Priority returns the priority the coprocessor was loaded with
	Priority() int
	// LoadSequence returns a process-wide sequence number
	// assigned when the environment was activated
	LoadSequence() int64
	// Config returns a copy of the coprocessor's configuration
	Config() map[string]string
	// Instance returns the coprocessor bound to this environment
	Instance() Coprocessor
	// RegionInfo returns the descriptor of the region this
	// environment is bound to
	RegionInfo() region.RegionInfo
	// ServerName returns the name of the hosting server
	ServerName() region.ServerName
	// CellBuilder returns a new cell builder. Builders are
	// not safe for concurrent use, so each call returns a
	// fresh one.
	CellBuilder() *cell.Builder
	// Active returns false once the environment is retired
	Active() bool

	// Region returns a read-only view of the region
	Region() (region.Region, error)
	// OnlineRegions returns a read-only view of the regions
	// online on the hosting server
	OnlineRegions() (region.OnlineRegions, error)
	// SharedData returns the data shared by every
	// instance of this coprocessor class on the server
	SharedData() (*shared.Data, error)
	// Connection returns the host connection. It must
	// not be closed.
	Connection() (connection.Connection, error)
	// CreateConnection creates a new connection. The caller
	// owns it and must close it.
	CreateConnection(ctx context.Context, config connection.Config) (connection.Connection, error)
	// MetricRegistryForRegionServer returns the metric
	// registry shared by every instance of this coprocessor
	// class on the server
	MetricRegistryForRegionServer() (*metrics.Registry, error)
}
