package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime settings for the interview coaching service and
// the realtime interview client.
type Config struct {
	// Server.
	BindAddr         string        `envconfig:"APP_BIND_ADDR" default:":8080"`
	ShutdownTimeout  time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"15s"`
	MetricsNamespace string        `envconfig:"APP_METRICS_NAMESPACE" default:"starprep"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty        bool          `envconfig:"LOG_PRETTY" default:"false"`

	// Upstream realtime/LLM provider. The durable API key lives only here,
	// on the server side; clients receive short-lived session credentials.
	OpenAIAPIKey       string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL      string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	RealtimeModel      string `envconfig:"REALTIME_MODEL" default:"gpt-4o-realtime-preview"`
	RealtimeVoice      string `envconfig:"REALTIME_VOICE" default:"ash"`
	TranscriptionModel string `envconfig:"TRANSCRIPTION_MODEL" default:"gpt-4o-transcribe"`
	ScoringModel       string `envconfig:"SCORING_MODEL" default:"gpt-4o"`
	CoachModel         string `envconfig:"COACH_MODEL" default:"gpt-4o-mini"`

	// Realtime session tuning.
	ChannelOpenTimeout  time.Duration `envconfig:"REALTIME_CHANNEL_OPEN_TIMEOUT" default:"15s"`
	ConfigureAckTimeout time.Duration `envconfig:"REALTIME_CONFIGURE_ACK_TIMEOUT" default:"1s"`
	VADThreshold        float64       `envconfig:"REALTIME_VAD_THRESHOLD" default:"0.5"`
	VADSilenceMs        int           `envconfig:"REALTIME_VAD_SILENCE_MS" default:"500"`

	// Client side: where the interview CLI finds its backend.
	BackendURL string `envconfig:"BACKEND_URL" default:"http://localhost:8080"`

	// Audio capture/playback (interview CLI).
	FFmpegPath    string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFplayPath    string `envconfig:"FFPLAY_PATH" default:"ffplay"`
	CaptureFormat string `envconfig:"CAPTURE_FORMAT" default:""`
	CaptureDevice string `envconfig:"CAPTURE_DEVICE" default:"default"`

	// Persistence. Empty DATABASE_URL selects the in-memory stores.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// Optional handoff event publishing. Empty broker list disables Kafka.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC_TRANSCRIPTS" default:"interview.transcripts"`
}

// Load reads configuration from a .env file (if present) and the
// environment, then validates it.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.OpenAIBaseURL) == "" {
		return fmt.Errorf("OPENAI_BASE_URL must not be empty")
	}
	if c.ChannelOpenTimeout <= 0 {
		return fmt.Errorf("REALTIME_CHANNEL_OPEN_TIMEOUT must be positive")
	}
	if c.ConfigureAckTimeout <= 0 {
		return fmt.Errorf("REALTIME_CONFIGURE_ACK_TIMEOUT must be positive")
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("REALTIME_VAD_THRESHOLD must be within [0,1]")
	}
	if c.VADSilenceMs <= 0 {
		return fmt.Errorf("REALTIME_VAD_SILENCE_MS must be positive")
	}
	return nil
}

// KafkaEnabled reports whether a non-empty broker list was configured.
// envconfig turns the empty default into a single empty element, so the
// presence of the slice alone is not enough.
func (c Config) KafkaEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}
