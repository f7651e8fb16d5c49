package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/morse-fitness/morse-worker/internal/logger"
)

// Pool bounds enforced by ValidateSettings.
const (
	MinPoolConns = 2
	MaxPoolConns = 10
)

// setDefaultConfig sets default values for every configuration key
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "postgresql://localhost:5432/morse_db")
	v.SetDefault("database.path", "data/morse.db")
	v.SetDefault("database.min_conns", MinPoolConns)
	v.SetDefault("database.max_conns", MaxPoolConns)
	v.SetDefault("database.command_timeout", 30*time.Second)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.retry_attempts", 3)

	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 0)
	v.SetDefault("queue.wait_key", "bull:audio transcription:wait")
	v.SetDefault("queue.job_key_prefix", "bull:audio transcription:")
	v.SetDefault("queue.block_timeout", 5*time.Second)

	v.SetDefault("worker.scan_interval", 30*time.Second)
	v.SetDefault("worker.scan_limit", 50)
	v.SetDefault("worker.cleanup_schedule", "@daily")
	v.SetDefault("worker.unclaimed_ttl", 30*24*time.Hour)
	v.SetDefault("worker.path_rewrite_from", "/services/api/uploads/")
	v.SetDefault("worker.path_rewrite_to", "/app/uploads/")

	v.SetDefault("llm.provider", "auto")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash")
	v.SetDefault("llm.gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.temperature", 0.1)

	v.SetDefault("transcription.backend", "openai")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.timeout", 5*time.Minute)

	v.SetDefault("speaker.enabled", true)
	v.SetDefault("speaker.embedding_endpoint", "http://localhost:8001/embed")
	v.SetDefault("speaker.timeout", 60*time.Second)
	v.SetDefault("speaker.sample_rate", 16000)
	v.SetDefault("speaker.profile_cache_ttl", time.Minute)

	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.ffprobe_path", "ffprobe")
	v.SetDefault("audio.decode_timeout", 2*time.Minute)

	v.SetDefault("pool.size", 4)
	v.SetDefault("pool.call_timeout", 5*time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "morse-worker")
	v.SetDefault("mqtt.topic", "morse/worker")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("telemetry.sentry_dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
