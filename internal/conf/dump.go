package conf

import (
	"gopkg.in/yaml.v3"
)

const maskedSecret = "********"

// Redacted returns a copy of s with credentials masked, for printing.
func (s *Settings) Redacted() *Settings {
	c := *s
	mask := func(v *string) {
		if *v != "" {
			*v = maskedSecret
		}
	}
	mask(&c.Database.DSN)
	mask(&c.Queue.Password)
	mask(&c.LLM.Anthropic.APIKey)
	mask(&c.LLM.Gemini.APIKey)
	mask(&c.LLM.OpenAI.APIKey)
	mask(&c.Transcription.APIKey)
	mask(&c.MQTT.Password)
	mask(&c.Telemetry.SentryDSN)
	return &c
}

// YAML renders the redacted settings.
func (s *Settings) YAML() ([]byte, error) {
	return yaml.Marshal(s.Redacted())
}
