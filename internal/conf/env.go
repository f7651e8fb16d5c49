package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVars   []string           // Environment variable names, first set wins
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings. The unprefixed
// names are the ones the upload API and compose files already export.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", []string{"MORSE_DEBUG"}, validateEnvBool},

		{"database.driver", []string{"MORSE_DATABASE_DRIVER"}, validateEnvDriver},
		{"database.dsn", []string{"MORSE_DATABASE_DSN", "DATABASE_URL"}, nil},
		{"database.path", []string{"MORSE_DATABASE_PATH"}, nil},
		{"database.min_conns", []string{"MORSE_DATABASE_MIN_CONNS"}, validateEnvPositiveInt},
		{"database.max_conns", []string{"MORSE_DATABASE_MAX_CONNS"}, validateEnvPositiveInt},
		{"database.command_timeout", []string{"MORSE_DATABASE_COMMAND_TIMEOUT"}, validateEnvDuration},
		{"database.auto_migrate", []string{"MORSE_DATABASE_AUTO_MIGRATE"}, validateEnvBool},

		{"queue.enabled", []string{"MORSE_QUEUE_ENABLED"}, validateEnvBool},
		{"queue.host", []string{"MORSE_QUEUE_HOST", "REDIS_HOST"}, nil},
		{"queue.port", []string{"MORSE_QUEUE_PORT", "REDIS_PORT"}, validateEnvPort},
		{"queue.password", []string{"MORSE_QUEUE_PASSWORD", "REDIS_PASSWORD"}, nil},

		{"worker.scan_interval", []string{"MORSE_WORKER_SCAN_INTERVAL"}, validateEnvDuration},
		{"worker.cleanup_schedule", []string{"MORSE_WORKER_CLEANUP_SCHEDULE"}, nil},
		{"worker.path_rewrite_from", []string{"MORSE_WORKER_PATH_REWRITE_FROM"}, nil},
		{"worker.path_rewrite_to", []string{"MORSE_WORKER_PATH_REWRITE_TO"}, nil},

		{"llm.provider", []string{"MORSE_LLM_PROVIDER", "LLM_PROVIDER"}, validateEnvProvider},
		{"llm.anthropic.api_key", []string{"MORSE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}, nil},
		{"llm.gemini.api_key", []string{"MORSE_GOOGLE_API_KEY", "GOOGLE_API_KEY"}, nil},
		{"llm.openai.api_key", []string{"MORSE_OPENAI_API_KEY", "OPENAI_API_KEY"}, nil},
		{"llm.openai.base_url", []string{"MORSE_OPENAI_BASE_URL", "OPENAI_BASE_URL"}, validateEnvURL},

		{"transcription.backend", []string{"MORSE_TRANSCRIPTION_BACKEND"}, nil},
		{"transcription.endpoint", []string{"MORSE_TRANSCRIPTION_ENDPOINT"}, validateEnvURL},
		{"transcription.api_key", []string{"MORSE_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY"}, nil},
		{"transcription.model", []string{"MORSE_TRANSCRIPTION_MODEL", "WHISPER_MODEL"}, nil},

		{"speaker.enabled", []string{"MORSE_SPEAKER_ENABLED"}, validateEnvBool},
		{"speaker.embedding_endpoint", []string{"MORSE_SPEAKER_EMBEDDING_ENDPOINT"}, validateEnvURL},

		{"audio.ffmpeg_path", []string{"MORSE_FFMPEG_PATH", "FFMPEG_PATH"}, nil},
		{"audio.ffprobe_path", []string{"MORSE_FFPROBE_PATH", "FFPROBE_PATH"}, nil},

		{"mqtt.enabled", []string{"MORSE_MQTT_ENABLED"}, validateEnvBool},
		{"mqtt.broker", []string{"MORSE_MQTT_BROKER"}, nil},
		{"mqtt.username", []string{"MORSE_MQTT_USERNAME"}, nil},
		{"mqtt.password", []string{"MORSE_MQTT_PASSWORD"}, nil},

		{"metrics.enabled", []string{"MORSE_METRICS_ENABLED"}, validateEnvBool},
		{"metrics.listen", []string{"MORSE_METRICS_LISTEN"}, nil},

		{"telemetry.sentry_dsn", []string{"MORSE_SENTRY_DSN", "SENTRY_DSN"}, nil},

		{"logging.default_level", []string{"MORSE_LOG_LEVEL"}, validateEnvLogLevel},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			envValue := os.Getenv(name)
			if envValue == "" {
				continue
			}
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", name, envValue, err))
			}
			break
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func validateEnvDriver(value string) error {
	if !isKnownDriver(strings.ToLower(value)) {
		return fmt.Errorf("driver must be postgres, mysql or sqlite")
	}
	return nil
}

func validateEnvProvider(value string) error {
	if !isKnownProvider(strings.ToLower(value)) {
		return fmt.Errorf("provider must be one of auto, anthropic, claude, google, gemini, openai")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log level must be trace, debug, info, warn or error")
	}
}
