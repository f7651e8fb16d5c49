package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Provider and driver
// names are lower-cased in place.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateDatabaseSettings(&s.Database) },
		func(s *Settings) error { return validateQueueSettings(&s.Queue) },
		func(s *Settings) error { return validateWorkerSettings(&s.Worker) },
		func(s *Settings) error { return validateLLMSettings(&s.LLM) },
		func(s *Settings) error { return validateTranscriptionSettings(&s.Transcription) },
		func(s *Settings) error { return validateSpeakerSettings(&s.Speaker) },
		func(s *Settings) error { return validateAudioSettings(&s.Audio) },
		func(s *Settings) error { return validatePoolSettings(&s.Pool) },
		func(s *Settings) error { return validateMQTTSettings(&s.MQTT) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func isKnownDriver(driver string) bool {
	switch driver {
	case "postgres", "mysql", "sqlite":
		return true
	}
	return false
}

func isKnownProvider(provider string) bool {
	switch provider {
	case "auto", "anthropic", "claude", "google", "gemini", "openai":
		return true
	}
	return false
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	var errs []string

	settings.Driver = strings.ToLower(settings.Driver)
	if !isKnownDriver(settings.Driver) {
		errs = append(errs, fmt.Sprintf("unknown driver %q", settings.Driver))
	}

	switch settings.Driver {
	case "sqlite":
		if settings.Path == "" {
			errs = append(errs, "path is required for sqlite")
		}
	case "postgres", "mysql":
		if settings.DSN == "" {
			errs = append(errs, "dsn is required for "+settings.Driver)
		}
	}

	if settings.MinConns < MinPoolConns || settings.MaxConns > MaxPoolConns || settings.MinConns > settings.MaxConns {
		errs = append(errs, fmt.Sprintf("pool must satisfy %d <= min_conns (%d) <= max_conns (%d) <= %d",
			MinPoolConns, settings.MinConns, settings.MaxConns, MaxPoolConns))
	}

	if settings.CommandTimeout <= 0 {
		errs = append(errs, "command_timeout must be positive")
	}

	if settings.RetryAttempts < 1 {
		errs = append(errs, "retry_attempts must be at least 1")
	}

	return sectionError("database", errs)
}

func validateQueueSettings(settings *QueueSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string
	if settings.Host == "" {
		errs = append(errs, "host is required when the queue is enabled")
	}
	if settings.Port < 1 || settings.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", settings.Port))
	}
	if settings.WaitKey == "" || settings.JobKeyPrefix == "" {
		errs = append(errs, "wait_key and job_key_prefix are required")
	}
	if settings.BlockTimeout <= 0 {
		errs = append(errs, "block_timeout must be positive")
	}

	return sectionError("queue", errs)
}

func validateWorkerSettings(settings *WorkerSettings) error {
	var errs []string

	if settings.ScanInterval <= 0 {
		errs = append(errs, "scan_interval must be positive")
	}
	if settings.ScanLimit <= 0 {
		errs = append(errs, "scan_limit must be positive")
	}
	if settings.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(settings.CleanupSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid cleanup_schedule %q: %v", settings.CleanupSchedule, err))
		}
	}
	if settings.UnclaimedTTL <= 0 {
		errs = append(errs, "unclaimed_ttl must be positive")
	}

	return sectionError("worker", errs)
}

func validateLLMSettings(settings *LLMSettings) error {
	var errs []string

	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	if !isKnownProvider(settings.Provider) {
		errs = append(errs, fmt.Sprintf("unknown provider %q", settings.Provider))
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if settings.MaxTokens <= 0 {
		errs = append(errs, "max_tokens must be positive")
	}
	if settings.OpenAI.BaseURL != "" {
		if _, err := url.ParseRequestURI(settings.OpenAI.BaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid openai base_url: %v", err))
		}
	}

	return sectionError("llm", errs)
}

func validateTranscriptionSettings(settings *TranscriptionSettings) error {
	var errs []string

	settings.Backend = strings.ToLower(settings.Backend)
	switch settings.Backend {
	case "openai":
	case "http":
		if settings.Endpoint == "" {
			errs = append(errs, "endpoint is required for the http backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown backend %q", settings.Backend))
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return sectionError("transcription", errs)
}

func validateSpeakerSettings(settings *SpeakerSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string
	if settings.EmbeddingEndpoint == "" {
		errs = append(errs, "embedding_endpoint is required when speaker verification is enabled")
	}
	if settings.SampleRate <= 0 {
		errs = append(errs, "sample_rate must be positive")
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if settings.ProfileCacheTTL < 0 {
		errs = append(errs, "profile_cache_ttl cannot be negative")
	}

	return sectionError("speaker", errs)
}

func validateAudioSettings(settings *AudioSettings) error {
	var errs []string
	if settings.DecodeTimeout <= 0 {
		errs = append(errs, "decode_timeout must be positive")
	}
	return sectionError("audio", errs)
}

func validatePoolSettings(settings *PoolSettings) error {
	var errs []string
	if settings.Size <= 0 {
		errs = append(errs, "size must be positive")
	}
	if settings.CallTimeout <= 0 {
		errs = append(errs, "call_timeout must be positive")
	}
	return sectionError("pool", errs)
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string
	if settings.Broker == "" {
		errs = append(errs, "broker is required when mqtt is enabled")
	}
	if settings.Topic == "" {
		errs = append(errs, "topic is required when mqtt is enabled")
	}
	if settings.QoS > 2 {
		errs = append(errs, fmt.Sprintf("qos must be 0, 1 or 2, got %d", settings.QoS))
	}
	return sectionError("mqtt", errs)
}

func sectionError(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings: %s", section, strings.Join(errs, "; "))
}
