package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrife/regionhost/connection"
	"github.com/jrife/regionhost/coprocessor"
	"github.com/jrife/regionhost/region"
	"gopkg.in/yaml.v3"
)

// Config is the region server's configuration file
type Config struct {
	// Server is this server's name as host,port,startcode.
	// If the start code is zero the process start time is used.
	Server string `yaml:"server"`
	// Listen is the address the coprocessor service listens on.
	// Defaults to the port of Server on all interfaces.
	Listen string `yaml:"listen"`
	// MetricsListen is the address /metrics is served on.
	// Metrics are not served if it is empty.
	MetricsListen string `yaml:"metrics_listen"`
	// Catalog is the path of the coprocessor catalog
	Catalog string `yaml:"catalog"`
	// LogLevel is one of debug, info, warn or error
	LogLevel string `yaml:"log_level"`
	// Attach lists coprocessors to attach to tables in the
	// catalog at startup
	Attach []TableConfig `yaml:"attach"`
	// Regions lists the regions of the cluster. Regions
	// assigned to this server are opened at startup. The
	// rest are used to locate remote regions.
	Regions []RegionConfig `yaml:"regions"`
}

// TableConfig attaches coprocessors to a table
type TableConfig struct {
	Table        string             `yaml:"table"`
	Coprocessors []coprocessor.Spec `yaml:"coprocessors"`
}

// RegionConfig describes a region and where it is hosted
type RegionConfig struct {
	Table  string `yaml:"table"`
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	ID     int64  `yaml:"id"`
	Server string `yaml:"server"`
}

func loadConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)

	if err != nil {
		return config, fmt.Errorf("could not read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("could not parse config: %w", err)
	}

	if config.Catalog == "" {
		return config, fmt.Errorf("catalog is required")
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	return config, nil
}

func (config Config) serverName() (region.ServerName, error) {
	serverName, err := region.ParseServerName(config.Server)

	if err != nil {
		return region.ServerName{}, fmt.Errorf("invalid server name: %w", err)
	}

	if serverName.StartCode == 0 {
		serverName.StartCode = time.Now().UnixMilli()
	}

	return serverName, nil
}

func (config Config) listenAddress(serverName region.ServerName) string {
	if config.Listen != "" {
		return config.Listen
	}

	return fmt.Sprintf(":%d", serverName.Port)
}

// regions splits the configured regions into the ones
// hosted here and the locations of all of them
func (config Config) regions(self region.ServerName) ([]region.RegionInfo, []connection.Location, error) {
	local := []region.RegionInfo{}
	locations := []connection.Location{}

	for _, r := range config.Regions {
		var start, end []byte

		if r.Start != "" {
			start = []byte(r.Start)
		}

		if r.End != "" {
			end = []byte(r.End)
		}

		info := region.NewRegionInfo(r.Table, start, end, r.ID)
		server, err := region.ParseServerName(r.Server)

		if err != nil {
			return nil, nil, fmt.Errorf("region %s: %w", info.Name(), err)
		}

		// Start codes of peers are not known in advance
		if server.Host == self.Host && server.Port == self.Port {
			server = self
			local = append(local, info)
		}

		locations = append(locations, connection.Location{Region: info, Server: server})
	}

	return local, locations, nil
}
