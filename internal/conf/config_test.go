package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "debug: false\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", s.Database.Driver)
	assert.Equal(t, 2, s.Database.MinConns)
	assert.Equal(t, 10, s.Database.MaxConns)
	assert.Equal(t, 30*time.Second, s.Database.CommandTimeout)
	assert.Equal(t, "bull:audio transcription:wait", s.Queue.WaitKey)
	assert.Equal(t, 5*time.Second, s.Queue.BlockTimeout)
	assert.Equal(t, 30*time.Second, s.Worker.ScanInterval)
	assert.Equal(t, 50, s.Worker.ScanLimit)
	assert.Equal(t, "auto", s.LLM.Provider)
	assert.Equal(t, 16000, s.Speaker.SampleRate)
	assert.Equal(t, "ffmpeg", s.Audio.FfmpegPath)
	assert.Equal(t, 2*time.Minute, s.Audio.DecodeTimeout)
	assert.Equal(t, "localhost:6379", s.Queue.Addr())
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: SQLite
  path: /tmp/morse.db
  max_conns: 4
llm:
  provider: Gemini
  timeout: 45s
logging:
  module_levels:
    datastore: trace
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", s.Database.Driver)
	assert.Equal(t, 4, s.Database.MaxConns)
	assert.Equal(t, "gemini", s.LLM.Provider)
	assert.Equal(t, 45*time.Second, s.LLM.Timeout)
	assert.Equal(t, "trace", s.Logging.ModuleLevels["datastore"])
}

func TestLoadFlagBindings(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/morse.db
worker:
  scan_limit: 10
  scan_interval: 1m
`)

	flags := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	flags.Int("scan-limit", 0, "")
	flags.Duration("scan-interval", 0, "")
	require.NoError(t, flags.Parse([]string{"--scan-limit=5"}))

	s, err := Load(path,
		FlagBinding{Key: "worker.scan_limit", Flag: flags.Lookup("scan-limit")},
		FlagBinding{Key: "worker.scan_interval", Flag: flags.Lookup("scan-interval")},
		FlagBinding{Key: "worker.unused"})
	require.NoError(t, err)

	assert.Equal(t, 5, s.Worker.ScanLimit)
	assert.Equal(t, time.Minute, s.Worker.ScanInterval, "unset flags keep file values")
}

// Not parallel: t.Setenv.
func TestLegacyEnvironmentNames(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://worker:pw@db:5432/morse_db")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	s, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgresql://worker:pw@db:5432/morse_db", s.Database.DSN)
	assert.Equal(t, "redis:6380", s.Queue.Addr())
	assert.Equal(t, "claude", s.LLM.Provider)
	assert.Equal(t, "anthropic-key", s.LLM.Anthropic.APIKey)
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("MORSE_QUEUE_HOST", "queue.internal")
	t.Setenv("REDIS_HOST", "redis")

	s, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "queue.internal", s.Queue.Host)
}

func TestInvalidEnvironmentValue(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-port")

	_, err := Load(writeConfig(t, "{}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_PORT")
}

func TestValidateSettingsAggregates(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Database.MinConns = 1
	s.Database.MaxConns = 12
	s.LLM.Provider = "mistral"
	s.Worker.CleanupSchedule = "every tuesday"

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
	assert.Contains(t, ve.Errors[0], "min_conns")
}

func TestValidateSettingsConditionalSections(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Queue.Enabled = false
	s.Queue.Host = ""
	s.MQTT.Enabled = false
	s.Speaker.Enabled = false
	s.Speaker.EmbeddingEndpoint = ""
	require.NoError(t, ValidateSettings(s))

	s.Transcription.Backend = "http"
	s.Transcription.Endpoint = ""
	require.Error(t, ValidateSettings(s))
}

func TestYAMLRedactsSecrets(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.LLM.Gemini.APIKey = "AIza-secret"
	s.Database.DSN = "postgresql://worker:pw@db/morse"

	out, err := s.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "AIza-secret")
	assert.NotContains(t, string(out), "worker:pw")

	var round map[string]any
	require.NoError(t, yaml.Unmarshal(out, &round))
	assert.Contains(t, round, "database")
	assert.Equal(t, "AIza-secret", s.LLM.Gemini.APIKey, "original is untouched")
}

func validSettings() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Driver: "postgres", DSN: "postgresql://localhost/morse_db",
			MinConns: 2, MaxConns: 10, CommandTimeout: 30 * time.Second, RetryAttempts: 3,
		},
		Queue: QueueSettings{
			Enabled: true, Host: "localhost", Port: 6379,
			WaitKey: "w", JobKeyPrefix: "j:", BlockTimeout: 5 * time.Second,
		},
		Worker: WorkerSettings{
			ScanInterval: 30 * time.Second, ScanLimit: 50,
			CleanupSchedule: "@daily", UnclaimedTTL: 720 * time.Hour,
		},
		LLM:           LLMSettings{Provider: "auto", Timeout: time.Minute, MaxTokens: 2000},
		Transcription: TranscriptionSettings{Backend: "openai", Timeout: time.Minute},
		Speaker: SpeakerSettings{
			Enabled: true, EmbeddingEndpoint: "http://embed:8001/embed",
			SampleRate: 16000, Timeout: time.Minute,
		},
		Audio: AudioSettings{FfmpegPath: "ffmpeg", FfprobePath: "ffprobe", DecodeTimeout: time.Minute},
		Pool:  PoolSettings{Size: 2, CallTimeout: time.Minute},
	}
}
