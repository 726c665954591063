// Package config provides XML-based configuration for the moodboard server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"MoodBoard"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Tagging    TaggingConfig    `xml:"Tagging"`
	Processing ProcessingConfig `xml:"Processing"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
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

// StorageConfig contains file and database locations
type StorageConfig struct {
	DataDirectory  string `xml:"DataDirectory"`
	MediaDirectory string `xml:"MediaDirectory"`
	DatabaseFile   string `xml:"DatabaseFile"`
	MaxUploadSize  string `xml:"MaxUploadSize"`
}

// TaggingConfig contains the AI tagging endpoint settings
type TaggingConfig struct {
	Enabled           bool   `xml:"Enabled"`
	Endpoint          string `xml:"Endpoint"`
	Model             string `xml:"Model"`
	APIKey            string `xml:"APIKey"`
	VocabularyFile    string `xml:"VocabularyFile"`
	TimeoutSeconds    int    `xml:"TimeoutSeconds"`
	RequestsPerMinute int    `xml:"RequestsPerMinute"`
	BreakerFailures   uint32 `xml:"BreakerFailures"`
	BreakerOpenSecs   int    `xml:"BreakerOpenSeconds"`
}

// ProcessingConfig contains background job and session settings
type ProcessingConfig struct {
	SessionTimeoutMinutes  int  `xml:"SessionTimeoutMinutes"`
	JobRetentionMinutes    int  `xml:"JobRetentionMinutes"`
	CleanupIntervalMinutes int  `xml:"CleanupIntervalMinutes"`
	PaletteSize            int  `xml:"PaletteSize"`
	EnableCompression      bool `xml:"EnableCompression"`
	CompressionLevel       int  `xml:"CompressionLevel"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	LogFormat               string `xml:"LogFormat"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	DuckDBThreads           int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit       string `xml:"DuckDBMemoryLimit"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
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
		Storage: StorageConfig{
			DataDirectory:  "./data",
			MediaDirectory: "./data/media",
			DatabaseFile:   "./data/moodboard.duckdb",
			MaxUploadSize:  "50M",
		},
		Tagging: TaggingConfig{
			Enabled:           false,
			Endpoint:          "http://localhost:11434/v1/chat/completions",
			Model:             "llava",
			TimeoutSeconds:    60,
			RequestsPerMinute: 20,
			BreakerFailures:   5,
			BreakerOpenSecs:   30,
		},
		Processing: ProcessingConfig{
			SessionTimeoutMinutes:  30,
			JobRetentionMinutes:    60,
			CleanupIntervalMinutes: 5,
			PaletteSize:            5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			LogFormat:               "json",
			EnableRequestLogging:    true,
			DuckDBThreads:           2,
			DuckDBMemoryLimit:       "512MB",
			WebSocketMaxMessageSize: 65536,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- MoodBoard Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.MediaDirectory = filepath.Join(dataDir, "media")
		c.Storage.DatabaseFile = filepath.Join(dataDir, "moodboard.duckdb")
	}

	// Setting a key implies tagging is wanted
	if key := os.Getenv("TAGGING_API_KEY"); key != "" {
		c.Tagging.APIKey = key
		c.Tagging.Enabled = true
	}

	if endpoint := os.Getenv("TAGGING_ENDPOINT"); endpoint != "" {
		c.Tagging.Endpoint = endpoint
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.MediaDirectory,
		&c.Storage.DatabaseFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	if v := c.Tagging.VocabularyFile; v != "" && !filepath.IsAbs(v) {
		c.Tagging.VocabularyFile = filepath.Join(configDir, v)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxUploadBytes returns Storage.MaxUploadSize in bytes, 50 MiB if unparsable.
func (c *AppConfig) MaxUploadBytes() int64 {
	n, err := ParseSize(c.Storage.MaxUploadSize)
	if err != nil || n <= 0 {
		return 50 << 20
	}
	return n
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.MediaDirectory,
		filepath.Dir(c.Storage.DatabaseFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ParseSize parses sizes like "512", "64K", "50M", "2G" or "1GB" into bytes.
// Units are binary multiples.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	s = strings.TrimSuffix(s, "B")

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %d", n)
	}
	return n * mult, nil
}
