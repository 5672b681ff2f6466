// Package config defines the application configuration, loadable from a
// YAML file or flags via viper.
package config

import (
	"pcapscope/internal/anomaly"
	"pcapscope/internal/filter"
	"pcapscope/internal/logger"
)

// Config is the full application configuration.
type Config struct {
	Filter   FilterConfig   `mapstructure:"filter"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Logging  LogConfig      `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Serve    ServeConfig    `mapstructure:"serve"`
}

// FilterConfig mirrors the display-filter criteria.
type FilterConfig struct {
	Protocol string `mapstructure:"protocol"`
	SrcAddr  string `mapstructure:"src"`
	DstAddr  string `mapstructure:"dst"`
	SrcPort  int    `mapstructure:"src_port"`
	DstPort  int    `mapstructure:"dst_port"`
	Port     int    `mapstructure:"port"`
}

// AnalysisConfig bounds the engine's work.
type AnalysisConfig struct {
	MaxPackets     int  `mapstructure:"max_packets"`
	IncludePackets bool `mapstructure:"include_packets"`
}

// AnomalyConfig exposes the detector thresholds.
type AnomalyConfig struct {
	PortScanThreshold      int   `mapstructure:"port_scan_threshold"`
	DNSFloodThreshold      int   `mapstructure:"dns_flood_threshold"`
	HTTPCleartextThreshold int   `mapstructure:"http_cleartext_threshold"`
	SuspiciousPorts        []int `mapstructure:"suspicious_ports"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// OutputConfig selects the report destination and format.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ServeConfig configures serve mode.
type ServeConfig struct {
	Listen      string `mapstructure:"listen"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// Default returns the stock configuration.
func Default() *Config {
	ad := anomaly.DefaultConfig()
	ports := make([]int, len(ad.SuspiciousPorts))
	for i, p := range ad.SuspiciousPorts {
		ports[i] = int(p)
	}
	return &Config{
		Anomaly: AnomalyConfig{
			PortScanThreshold:      ad.PortScanThreshold,
			DNSFloodThreshold:      ad.DNSFloodThreshold,
			HTTPCleartextThreshold: ad.HTTPCleartextThreshold,
			SuspiciousPorts:        ports,
		},
		Logging: LogConfig{
			Level:     "warn",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		Output: OutputConfig{
			Format: "terminal",
		},
		Serve: ServeConfig{
			Listen:      ":8080",
			MaxUploadMB: 100,
		},
	}
}

// DisplayFilter builds the engine filter from the config.
func (c *Config) DisplayFilter() *filter.DisplayFilter {
	return &filter.DisplayFilter{
		Protocol: c.Filter.Protocol,
		SrcAddr:  c.Filter.SrcAddr,
		DstAddr:  c.Filter.DstAddr,
		SrcPort:  c.Filter.SrcPort,
		DstPort:  c.Filter.DstPort,
		Port:     c.Filter.Port,
	}
}

// AnomalyDetector builds the detector config from the config.
func (c *Config) AnomalyDetector() anomaly.Config {
	ports := make([]uint16, 0, len(c.Anomaly.SuspiciousPorts))
	for _, p := range c.Anomaly.SuspiciousPorts {
		if p > 0 && p <= 0xFFFF {
			ports = append(ports, uint16(p))
		}
	}
	return anomaly.Config{
		PortScanThreshold:      c.Anomaly.PortScanThreshold,
		DNSFloodThreshold:      c.Anomaly.DNSFloodThreshold,
		HTTPCleartextThreshold: c.Anomaly.HTTPCleartextThreshold,
		SuspiciousPorts:        ports,
	}
}

// LoggerConfig builds the logger config from the config.
func (c *Config) LoggerConfig(toStderr bool) logger.Config {
	return logger.Config{
		Level:     c.Logging.Level,
		File:      c.Logging.File,
		MaxSizeMB: c.Logging.MaxSizeMB,
		MaxFiles:  c.Logging.MaxFiles,
		ToStderr:  toStderr,
	}
}
