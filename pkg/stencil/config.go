package stencil

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// UnresolvedPolicy controls how a token that cannot be resolved is rendered
type UnresolvedPolicy string

const (
	// UnresolvedBlank renders unresolved tokens as an empty string
	UnresolvedBlank UnresolvedPolicy = "blank"
	// UnresolvedLiteral leaves the original ${...} text in place
	UnresolvedLiteral UnresolvedPolicy = "literal"
)

// EMUPerPixel converts pixels at 96 DPI to English Metric Units
const EMUPerPixel = 9525

// Config contains all configuration options for the Stencil engine
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string
	// UnresolvedPolicy decides how unresolved references render
	UnresolvedPolicy UnresolvedPolicy
	// Locale is the BCP-47 tag used by :format suffixes
	Locale string
	// FunctionNamespace is the reserved prefix for function calls (ns.Image(...))
	FunctionNamespace string
	// ProgramCacheSize is the maximum number of compiled expressions to keep. 0 disables caching.
	ProgramCacheSize int
	// ProgramCacheTTL is the time-to-live for compiled expressions. 0 means no expiration.
	ProgramCacheTTL time.Duration
	// DefaultImageWidth is the picture width in EMU used when a placeholder has no geometry
	DefaultImageWidth int64
	// DefaultImageHeight is the picture height in EMU used when a placeholder has no geometry
	DefaultImageHeight int64
	// PreserveAspectRatio is the default for ns.Image when the argument is omitted
	PreserveAspectRatio bool
	// ImageBaseDir resolves relative image paths
	ImageBaseDir string
	// MaxIndex bounds index arithmetic used when paginating collections
	MaxIndex int
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:            "info",
		UnresolvedPolicy:    UnresolvedBlank,
		Locale:              "en-US",
		FunctionNamespace:   "ns",
		ProgramCacheSize:    256,
		ProgramCacheTTL:     0,
		DefaultImageWidth:   1905000, // 200px
		DefaultImageHeight:  1905000,
		PreserveAspectRatio: true,
		ImageBaseDir:        "",
		MaxIndex:            10000,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("STENCIL_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv("STENCIL_UNRESOLVED_POLICY"); val != "" {
		config.UnresolvedPolicy = UnresolvedPolicy(strings.ToLower(val))
	}

	if val := os.Getenv("STENCIL_LOCALE"); val != "" {
		config.Locale = val
	}

	if val := os.Getenv("STENCIL_FUNCTION_NAMESPACE"); val != "" {
		config.FunctionNamespace = val
	}

	if val := os.Getenv("STENCIL_PROGRAM_CACHE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.ProgramCacheSize = size
		}
	}

	if val := os.Getenv("STENCIL_PROGRAM_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.ProgramCacheTTL = duration
		}
	}

	if val := os.Getenv("STENCIL_IMAGE_BASE_DIR"); val != "" {
		config.ImageBaseDir = val
	}

	if val := os.Getenv("STENCIL_PRESERVE_ASPECT_RATIO"); val != "" {
		config.PreserveAspectRatio = parseBool(val)
	}

	if val := os.Getenv("STENCIL_MAX_INDEX"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.MaxIndex = n
		}
	}

	return config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	switch c.UnresolvedPolicy {
	case UnresolvedBlank, UnresolvedLiteral:
	default:
		return errors.New("invalid unresolved policy: " + string(c.UnresolvedPolicy))
	}

	if _, err := language.Parse(c.Locale); err != nil {
		return errors.New("invalid locale: " + c.Locale)
	}

	if c.FunctionNamespace == "" || !isIdentifier(c.FunctionNamespace) {
		return errors.New("invalid function namespace: " + c.FunctionNamespace)
	}

	if c.ProgramCacheSize < 0 {
		return errors.New("program cache size cannot be negative")
	}

	if c.ProgramCacheTTL < 0 {
		return errors.New("program cache TTL cannot be negative")
	}

	if c.DefaultImageWidth <= 0 || c.DefaultImageHeight <= 0 {
		return errors.New("default image size must be positive")
	}

	if c.MaxIndex <= 0 {
		return errors.New("max index must be positive")
	}

	return nil
}

// GetGlobalConfig returns a copy of the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// outside the lock: the logger reads the config back
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
