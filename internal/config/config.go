package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/results"
)

// Source types.
const (
	SourceWebcam = "webcam"
	SourceDir    = "dir"
)

// Snapshot sinks.
const (
	SinkNone  = "none"
	SinkFile  = "file"
	SinkAzure = "azure"
)

// Config represents the complete configuration for barscan.
// It includes settings for all commands (scan, image, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose"   yaml:"verbose"   json:"verbose"`

	Reader   ReaderConfig   `mapstructure:"reader"   yaml:"reader"   json:"reader"`
	Scan     ScanConfig     `mapstructure:"scan"     yaml:"scan"     json:"scan"`
	Source   SourceConfig   `mapstructure:"source"   yaml:"source"   json:"source"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot" json:"snapshot"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"   json:"server"`
	Output   OutputConfig   `mapstructure:"output"   yaml:"output"   json:"output"`
}

// ReaderConfig holds the decoding engine options.
type ReaderConfig struct {
	// Formats lists symbologies to look for; empty means all.
	Formats      []string `mapstructure:"formats"       yaml:"formats"       json:"formats"`
	TryHarder    bool     `mapstructure:"try_harder"    yaml:"try_harder"    json:"try_harder"`
	TryRotate    bool     `mapstructure:"try_rotate"    yaml:"try_rotate"    json:"try_rotate"`
	TryInvert    bool     `mapstructure:"try_invert"    yaml:"try_invert"    json:"try_invert"`
	TryDownscale bool     `mapstructure:"try_downscale" yaml:"try_downscale" json:"try_downscale"`
}

// ScanConfig holds the initial session state and stage tuning.
type ScanConfig struct {
	Crop           bool `mapstructure:"crop"             yaml:"crop"             json:"crop"`
	Paused         bool `mapstructure:"paused"           yaml:"paused"           json:"paused"`
	Torch          bool `mapstructure:"torch"            yaml:"torch"            json:"torch"`
	ResultBuffer   int  `mapstructure:"result_buffer"    yaml:"result_buffer"    json:"result_buffer"`
	SaveTimeoutSec int  `mapstructure:"save_timeout_sec" yaml:"save_timeout_sec" json:"save_timeout_sec"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"        json:"type"`
	Device     string `mapstructure:"device"      yaml:"device"      json:"device"`
	Width      int    `mapstructure:"width"       yaml:"width"       json:"width"`
	Height     int    `mapstructure:"height"      yaml:"height"      json:"height"`
	Dir        string `mapstructure:"dir"         yaml:"dir"         json:"dir"`
	Loop       bool   `mapstructure:"loop"        yaml:"loop"        json:"loop"`
	IntervalMS int    `mapstructure:"interval_ms" yaml:"interval_ms" json:"interval_ms"`
}

// SnapshotConfig controls frame dumps.
type SnapshotConfig struct {
	Sink  string      `mapstructure:"sink"  yaml:"sink"  json:"sink"`
	Dir   string      `mapstructure:"dir"   yaml:"dir"   json:"dir"`
	Bell  bool        `mapstructure:"bell"  yaml:"bell"  json:"bell"`
	Azure AzureConfig `mapstructure:"azure" yaml:"azure" json:"azure"`
}

// AzureConfig holds blob storage credentials for the azure sink.
type AzureConfig struct {
	ConnectionString string `mapstructure:"connection_string" yaml:"connection_string" json:"-"`
	AccountName      string `mapstructure:"account_name"      yaml:"account_name"      json:"account_name"`
	AccountKey       string `mapstructure:"account_key"       yaml:"account_key"       json:"-"`
	Container        string `mapstructure:"container"         yaml:"container"         json:"container"`
	Prefix           string `mapstructure:"prefix"            yaml:"prefix"            json:"prefix"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host"             yaml:"host"             json:"host"`
	Port            int    `mapstructure:"port"             yaml:"port"             json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin"      yaml:"cors_origin"      json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb"    yaml:"max_upload_mb"    json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	LiveSource      bool   `mapstructure:"live_source"      yaml:"live_source"      json:"live_source"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format"      yaml:"format"      json:"format"`
	File       string `mapstructure:"file"        yaml:"file"        json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Reader:   ReaderConfig{Formats: []string{}},
		Scan: ScanConfig{
			Crop:           true,
			ResultBuffer:   64,
			SaveTimeoutSec: 30,
		},
		Source: SourceConfig{
			Type:       SourceWebcam,
			Device:     "/dev/video0",
			Width:      1280,
			Height:     720,
			IntervalMS: 0,
		},
		Snapshot: SnapshotConfig{
			Sink: SinkFile,
			Dir:  "snapshots",
			Bell: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
		Output: OutputConfig{
			Format: results.FormatText,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !results.ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml, csv)", c.Output.Format)
	}

	if _, err := c.ToReaderOptions(); err != nil {
		return err
	}

	validSources := []string{SourceWebcam, SourceDir}
	if !contains(validSources, c.Source.Type) {
		return fmt.Errorf("invalid source type: %s (must be one of: %s)", c.Source.Type, strings.Join(validSources, ", "))
	}
	if c.Source.Type == SourceWebcam && (c.Source.Width <= 0 || c.Source.Height <= 0) {
		return fmt.Errorf("invalid webcam size: %dx%d (must be positive)", c.Source.Width, c.Source.Height)
	}
	if c.Source.IntervalMS < 0 {
		return fmt.Errorf("invalid source interval: %d (must not be negative)", c.Source.IntervalMS)
	}

	if err := c.Snapshot.validate(); err != nil {
		return err
	}

	if c.Scan.ResultBuffer <= 0 {
		return fmt.Errorf("invalid result buffer: %d (must be positive)", c.Scan.ResultBuffer)
	}
	if c.Scan.SaveTimeoutSec <= 0 {
		return fmt.Errorf("invalid save timeout: %d (must be positive)", c.Scan.SaveTimeoutSec)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

func (s SnapshotConfig) validate() error {
	switch s.Sink {
	case SinkNone:
	case SinkFile:
		if s.Dir == "" {
			return fmt.Errorf("snapshot.dir is required for the %s sink", SinkFile)
		}
	case SinkAzure:
		if s.Azure.Container == "" {
			return fmt.Errorf("snapshot.azure.container is required for the %s sink", SinkAzure)
		}
		if s.Azure.ConnectionString == "" && (s.Azure.AccountName == "" || s.Azure.AccountKey == "") {
			return fmt.Errorf("snapshot.azure needs connection_string or account_name and account_key")
		}
	default:
		return fmt.Errorf("invalid snapshot sink: %s (must be one of: none, file, azure)", s.Sink)
	}
	return nil
}

// ToReaderOptions converts the reader section into an engine options snapshot.
func (c *Config) ToReaderOptions() (barcode.Options, error) {
	formats, err := barcode.ParseFormats(c.Reader.Formats)
	if err != nil {
		return barcode.Options{}, fmt.Errorf("invalid reader.formats: %w", err)
	}
	return barcode.Options{
		Formats:      formats,
		TryHarder:    c.Reader.TryHarder,
		TryRotate:    c.Reader.TryRotate,
		TryInvert:    c.Reader.TryInvert,
		TryDownscale: c.Reader.TryDownscale,
	}, nil
}

// SourceInterval returns the minimum spacing between directory frames.
func (c *Config) SourceInterval() time.Duration {
	return time.Duration(c.Source.IntervalMS) * time.Millisecond
}

// SaveTimeout returns the per-dump timeout.
func (c *Config) SaveTimeout() time.Duration {
	return time.Duration(c.Scan.SaveTimeoutSec) * time.Second
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
