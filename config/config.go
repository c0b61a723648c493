package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultDevicePath is the file the store is saved to
	DefaultDevicePath = "ss"

	// DefaultReadSize of 0 reads the whole device file. The legacy format was
	// read as a single 1000 byte block.
	DefaultReadSize = 0

	// LegacyReadSize is the fixed block size older saves were read with
	LegacyReadSize = 1000

	DefaultRootName       = "home"
	DefaultWelcomeContent = "welcome to use ORANGE KING's file system!"

	DefaultAutoLoad = true

	DefaultFsName = "treefs"
	DefaultName   = "treefs"

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// Environment keys read from .env override files
const (
	EnvLogLvl         = "TREEFS_LOG_LEVEL"
	EnvDevicePath     = "TREEFS_DEVICE"
	EnvReadSize       = "TREEFS_READ_SIZE"
	EnvRootName       = "TREEFS_ROOT_NAME"
	EnvWelcomeContent = "TREEFS_WELCOME"
	EnvAutoLoad       = "TREEFS_AUTOLOAD"
	EnvFsName         = "TREEFS_FSNAME"
	EnvName           = "TREEFS_NAME"
)

// Config contains runtime configuration values for the store and its
// front-ends.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel // Log level (Default Info)
	DevicePath     string        // Path of the save file (Default "ss")
	ReadSize       int           // Bytes read on load; 0 reads the whole file (Default 0)
	RootName       string        // Name of the root node (Default "home")
	WelcomeContent string        // Content of the root node
	AutoLoad       bool          // Load the device on start-up if it exists (Default true)

	// NOTE: Only used when mounted over FUSE

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl         *string  `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	DevicePath     *string  `yaml:"device,omitempty" json:"device,omitempty"`
	ReadSize       *int     `yaml:"read_size,omitempty" json:"read_size,omitempty"`
	RootName       *string  `yaml:"root_name,omitempty" json:"root_name,omitempty"`
	WelcomeContent *string  `yaml:"welcome,omitempty" json:"welcome,omitempty"`
	AutoLoad       *bool    `yaml:"autoload,omitempty" json:"autoload,omitempty"`
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		DevicePath:     DefaultDevicePath,
		ReadSize:       DefaultReadSize,
		RootName:       DefaultRootName,
		WelcomeContent: DefaultWelcomeContent,
		AutoLoad:       DefaultAutoLoad,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
	}
}

// NewConfig returns the defaults with override applied; override may be nil
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// An unknown log level name leaves LogLvl unchanged.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		if lvl, err := util.ParseLevel(*override.LogLvl); err == nil {
			c.LogLvl = lvl
		}
	}
	if override.DevicePath != nil {
		c.DevicePath = *override.DevicePath
	}
	if override.ReadSize != nil {
		c.ReadSize = *override.ReadSize
	}
	if override.RootName != nil {
		c.RootName = *override.RootName
	}
	if override.WelcomeContent != nil {
		c.WelcomeContent = *override.WelcomeContent
	}
	if override.AutoLoad != nil {
		c.AutoLoad = *override.AutoLoad
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// Validate checks the values that end up inside the store
func (c *Config) Validate() error {
	if c.RootName == "" || len(c.RootName) > treefs.MaxNameLen {
		return fmt.Errorf("root name %q: %w", c.RootName, treefs.ErrInvalidName)
	}
	if len(c.WelcomeContent) > treefs.MaxContent {
		return fmt.Errorf("welcome content longer than %d bytes", treefs.MaxContent)
	}
	if c.ReadSize < 0 {
		return fmt.Errorf("read size must not be negative: %d", c.ReadSize)
	}
	if c.DevicePath == "" {
		return fmt.Errorf("device path must be set")
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports YAML (.yaml, .yml), JSON (.json) and dotenv (.env) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".env" || filepath.Base(path) == ".env" {
		env, err := godotenv.Read(path)
		if err != nil {
			return nil, err
		}
		return overrideFromEnv(env)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// overrideFromEnv maps TREEFS_* keys onto a ConfigOverride
func overrideFromEnv(env map[string]string) (*ConfigOverride, error) {
	var override ConfigOverride
	str := func(key string) *string {
		if v, ok := env[key]; ok {
			return util.Pointer(v)
		}
		return nil
	}
	override.LogLvl = str(EnvLogLvl)
	override.DevicePath = str(EnvDevicePath)
	override.RootName = str(EnvRootName)
	override.WelcomeContent = str(EnvWelcomeContent)
	override.FsName = str(EnvFsName)
	override.Name = str(EnvName)

	if v, ok := env[EnvReadSize]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvReadSize, err)
		}
		override.ReadSize = &n
	}
	if v, ok := env[EnvAutoLoad]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvAutoLoad, err)
		}
		override.AutoLoad = &b
	}
	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
