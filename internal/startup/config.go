package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// ConfigFileEnv names the environment variable holding the config file path
// when none is passed explicitly.
const ConfigFileEnv = "CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	ListenAddr      string `toml:"listen_addr"`
	WorkDir         string `toml:"work_dir"`
	FFmpegPath      string `toml:"ffmpeg_path"`
	Language        string `toml:"language"`
	DefaultMode     string `toml:"default_mode"`
	EngineWarmup    bool   `toml:"engine_warmup"`
	MetricsEnabled  bool   `toml:"metrics_enabled"`
	MaxUploadMB     int64  `toml:"max_upload_mb"`
	LogLevel        string `toml:"log_level"`
	LogHealthChecks bool   `toml:"log_health_checks"`

	// Resolved during LoadConfig
	Mode       mediatypes.Mode `toml:"-"`
	ConfigFile string          `toml:"-"`
}

// DefaultConfig returns the built-in configuration. The bridge listens on
// loopback only.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8080",
		WorkDir:        filepath.Join(os.TempDir(), "media-converter"),
		FFmpegPath:     "ffmpeg",
		Language:       "ko",
		DefaultMode:    string(mediatypes.ModeImage),
		EngineWarmup:   true,
		MetricsEnabled: true,
		MaxUploadMB:    512,
	}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Validate checks the configuration and resolves derived fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr must not be empty")
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		return errors.New("work_dir must not be empty")
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		return errors.New("ffmpeg_path must not be empty")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}

	mode, err := mediatypes.ParseMode(c.DefaultMode)
	if err != nil {
		return fmt.Errorf("default_mode: %w", err)
	}
	c.Mode = mode

	c.Language = normalizeLanguage(c.Language)

	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("unknown log_level %q", c.LogLevel)
		}
	}
	return nil
}

// LoadConfig builds the configuration from defaults, the optional TOML file
// at path (or $CONFIG_FILE), and environment overrides, then validates it.
// A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if cfg.LogLevel != "" {
		if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
			logging.SetLevel(level)
		}
	}

	if cfg.ConfigFile != "" {
		logging.Info("  Config file:         %s", cfg.ConfigFile)
	} else {
		logging.Info("  Config file:         (none)")
	}
	logging.Info("  LISTEN_ADDR:         %s", cfg.ListenAddr)
	logging.Info("  WORK_DIR:            %s", cfg.WorkDir)
	logging.Info("  FFMPEG_PATH:         %s", cfg.FFmpegPath)
	logging.Info("  LANGUAGE:            %s", cfg.Language)
	logging.Info("  DEFAULT_MODE:        %s", cfg.Mode)
	logging.Info("  ENGINE_WARMUP:       %v", cfg.EngineWarmup)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  MAX_UPLOAD_MB:       %d (%s)", cfg.MaxUploadMB, humanize.IBytes(uint64(cfg.MaxUploadBytes())))
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	section("DIRECTORY SETUP")

	cfg.WorkDir, err = filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory path: %w", err)
	}
	logging.Info("  Work directory (absolute): %s", cfg.WorkDir)

	if err := ensureDirectory(cfg.WorkDir, "work"); err != nil {
		return nil, fmt.Errorf("work directory error: %w", err)
	}

	logging.Debug("  Testing work directory write access...")
	if err := testWriteAccess(cfg.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory is not writable (required for video conversion): %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	return cfg, nil
}

// ReadConfig performs the layered load and validation without the startup
// logs or directory setup of LoadConfig.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logging.Warn("  Config file %s not found, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.ConfigFile = path
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.WorkDir = getEnv("WORK_DIR", cfg.WorkDir)
	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.Language = getEnv("LANGUAGE", cfg.Language)
	cfg.DefaultMode = getEnv("DEFAULT_MODE", cfg.DefaultMode)
	cfg.EngineWarmup = getEnvBool("ENGINE_WARMUP", cfg.EngineWarmup)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", cfg.LogHealthChecks)
}

// normalizeLanguage accepts BCP 47 tags as well as POSIX locale forms such
// as "en_US.UTF-8" or "ko:en". Unparseable values fall back to Korean.
func normalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ":."); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" {
		return "ko"
	}
	tag, err := language.Parse(s)
	if err != nil {
		logging.Warn("Unrecognized language %q, using ko", s)
		return "ko"
	}
	return tag.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
