// Package conf loads worker settings from config.yaml, .env and the environment.
package conf

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

// Settings is the complete worker configuration.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Database      DatabaseSettings      `yaml:"database" mapstructure:"database"`
	Queue         QueueSettings         `yaml:"queue" mapstructure:"queue"`
	Worker        WorkerSettings        `yaml:"worker" mapstructure:"worker"`
	LLM           LLMSettings           `yaml:"llm" mapstructure:"llm"`
	Transcription TranscriptionSettings `yaml:"transcription" mapstructure:"transcription"`
	Speaker       SpeakerSettings       `yaml:"speaker" mapstructure:"speaker"`
	Audio         AudioSettings         `yaml:"audio" mapstructure:"audio"`
	Pool          PoolSettings          `yaml:"pool" mapstructure:"pool"`
	MQTT          MQTTSettings          `yaml:"mqtt" mapstructure:"mqtt"`
	Metrics       MetricsSettings       `yaml:"metrics" mapstructure:"metrics"`
	Telemetry     TelemetrySettings     `yaml:"telemetry" mapstructure:"telemetry"`
	Logging       logger.LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseSettings configures the relational store
type DatabaseSettings struct {
	Driver         string        `yaml:"driver" mapstructure:"driver"`                   // postgres, mysql or sqlite
	DSN            string        `yaml:"dsn" mapstructure:"dsn"`                         // postgres/mysql connection string
	Path           string        `yaml:"path" mapstructure:"path"`                       // sqlite file
	MinConns       int           `yaml:"min_conns" mapstructure:"min_conns"`             // idle connections kept open
	MaxConns       int           `yaml:"max_conns" mapstructure:"max_conns"`             // hard pool cap
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"` // per statement or transaction
	SlowThreshold  time.Duration `yaml:"slow_threshold" mapstructure:"slow_threshold"`
	AutoMigrate    bool          `yaml:"auto_migrate" mapstructure:"auto_migrate"`
	RetryAttempts  int           `yaml:"retry_attempts" mapstructure:"retry_attempts"` // transient failures
}

// QueueSettings configures the Redis push job source
type QueueSettings struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	WaitKey      string        `yaml:"wait_key" mapstructure:"wait_key"`
	JobKeyPrefix string        `yaml:"job_key_prefix" mapstructure:"job_key_prefix"`
	BlockTimeout time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
}

// Addr returns host:port for the Redis client.
func (q QueueSettings) Addr() string {
	return net.JoinHostPort(q.Host, strconv.Itoa(q.Port))
}

// WorkerSettings configures the loop and maintenance
type WorkerSettings struct {
	ScanInterval    time.Duration `yaml:"scan_interval" mapstructure:"scan_interval"`
	ScanLimit       int           `yaml:"scan_limit" mapstructure:"scan_limit"`
	CleanupSchedule string        `yaml:"cleanup_schedule" mapstructure:"cleanup_schedule"` // cron spec, empty disables
	UnclaimedTTL    time.Duration `yaml:"unclaimed_ttl" mapstructure:"unclaimed_ttl"`
	PathRewriteFrom string        `yaml:"path_rewrite_from" mapstructure:"path_rewrite_from"`
	PathRewriteTo   string        `yaml:"path_rewrite_to" mapstructure:"path_rewrite_to"`
}

// LLMSettings selects and configures the extraction model provider
type LLMSettings struct {
	Provider    string          `yaml:"provider" mapstructure:"provider"` // auto, anthropic, claude, google, gemini, openai
	Anthropic   ProviderAccount `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini      ProviderAccount `yaml:"gemini" mapstructure:"gemini"`
	OpenAI      ProviderAccount `yaml:"openai" mapstructure:"openai"`
	Timeout     time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int             `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32         `yaml:"temperature" mapstructure:"temperature"`
}

// ProviderAccount holds credentials and model for one provider
type ProviderAccount struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TranscriptionSettings configures the speech-to-text collaborator
type TranscriptionSettings struct {
	Backend  string        `yaml:"backend" mapstructure:"backend"` // openai or http
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SpeakerSettings configures voice verification
type SpeakerSettings struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	EmbeddingEndpoint string        `yaml:"embedding_endpoint" mapstructure:"embedding_endpoint"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SampleRate        int           `yaml:"sample_rate" mapstructure:"sample_rate"`
	ProfileCacheTTL   time.Duration `yaml:"profile_cache_ttl" mapstructure:"profile_cache_ttl"` // 0 disables
}

// AudioSettings locates the tools that decode uploads go-audio cannot
// read (MP3, M4A). An empty path disables that tool; WAV still works.
type AudioSettings struct {
	FfmpegPath    string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FfprobePath   string        `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	DecodeTimeout time.Duration `yaml:"decode_timeout" mapstructure:"decode_timeout"`
}

// PoolSettings bounds external collaborator calls
type PoolSettings struct {
	Size        int           `yaml:"size" mapstructure:"size"`
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// MQTTSettings configures job status events
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	QoS      byte   `yaml:"qos" mapstructure:"qos"`
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// TelemetrySettings configures error reporting
type TelemetrySettings struct {
	SentryDSN   string `yaml:"sentry_dsn" mapstructure:"sentry_dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// FlagBinding maps a command line flag onto a configuration key. A flag the
// user set takes precedence over environment and file values.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads .env, config.yaml and environment variables into Settings.
// configFile may be empty, in which case the default search paths are used
// and a missing file is not an error.
func Load(configFile string, bindings ...FlagBinding) (*Settings, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v, err := initViper(configFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}
	for _, b := range bindings {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("error binding flag %s: %w", b.Flag.Name, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// loadDotEnv loads .env from the working directory without overriding
// variables already present in the environment.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.New(err).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("file", ".env").
		Build()
}

// initViper creates a viper instance with defaults, env bindings and the config file.
func initViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	for _, path := range defaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}

	return v, nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "morse"))
	}
	return append(paths, "/etc/morse")
}
