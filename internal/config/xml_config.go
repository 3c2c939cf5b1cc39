// Package config provides XML-based configuration management for air-gapped
// kiosk deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"LineKiosk"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Telemetry ingest and normalization configuration
	Telemetry TelemetryConfig `xml:"Telemetry"`

	// Layout coordination configuration
	Layout LayoutConfig `xml:"Layout"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// TelemetryConfig contains telemetry transport and staleness settings
type TelemetryConfig struct {
	SourceURL               string `xml:"SourceURL"` // upstream feed; empty means push-only ingest
	ReconnectDelaySeconds   int    `xml:"ReconnectDelaySeconds"`
	WatchdogTimeoutSeconds  int    `xml:"WatchdogTimeoutSeconds"`
	WatchdogIntervalSeconds int    `xml:"WatchdogIntervalSeconds"`
	TrendDepth              int    `xml:"TrendDepth"`
	ErrorClearSeconds       int    `xml:"ErrorClearSeconds"`
	MappingPresetsFile      string `xml:"MappingPresetsFile"`
}

// LayoutConfig contains layout document and lock broker settings
type LayoutConfig struct {
	DocumentFile     string `xml:"DocumentFile"`
	SaveRequiresLock bool   `xml:"SaveRequiresLock"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory  string `xml:"DataDirectory"`
	MediaDirectory string `xml:"MediaDirectory"`
	MaxUploadSize  string `xml:"MaxUploadSize"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	EnableRequestLogging    bool `xml:"EnableRequestLogging"`
	EnableMetrics           bool `xml:"EnableMetrics"`
	WebSocketMaxMessageSize int  `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Telemetry: TelemetryConfig{
			SourceURL:               "",
			ReconnectDelaySeconds:   5,
			WatchdogTimeoutSeconds:  10,
			WatchdogIntervalSeconds: 1,
			TrendDepth:              20,
			ErrorClearSeconds:       10,
			MappingPresetsFile:      "./data/mappings.yaml",
		},
		Layout: LayoutConfig{
			DocumentFile:     "./data/layout.json",
			SaveRequiresLock: true,
		},
		Storage: StorageConfig{
			DataDirectory:  "./data",
			MediaDirectory: "./data/media",
			MaxUploadSize:  "64M",
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging:    true,
			EnableMetrics:           true,
			WebSocketMaxMessageSize: 1024,
		},
	}
}

// LoadConfig loads configuration from an XML file, creating it with defaults
// if it does not exist.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if writeErr := SaveConfig(path, cfg); writeErr != nil {
				fmt.Printf("[Config] Warning: could not write default config: %v\n", writeErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := xml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Environment override for the data directory (container deployments)
	if dir := os.Getenv("LINEKIOSK_DATA_DIR"); dir != "" {
		cfg.Storage.DataDirectory = dir
		cfg.Storage.MediaDirectory = filepath.Join(dir, "media")
		cfg.Layout.DocumentFile = filepath.Join(dir, "layout.json")
		cfg.Telemetry.MappingPresetsFile = filepath.Join(dir, "mappings.yaml")
	}

	return cfg, nil
}

// SaveConfig writes the configuration as indented XML.
func SaveConfig(path string, cfg *AppConfig) error {
	data, err := xml.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, append([]byte(xml.Header), data...), 0644)
}

// EnsureDirectories creates all configured data directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.MediaDirectory,
		filepath.Dir(c.Layout.DocumentFile),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetServerAddr returns the host:port address to listen on.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
