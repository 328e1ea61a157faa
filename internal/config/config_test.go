package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.RealtimeModel != "gpt-4o-realtime-preview" {
		t.Fatalf("RealtimeModel = %q, want default", cfg.RealtimeModel)
	}
	if cfg.ChannelOpenTimeout != 15*time.Second {
		t.Fatalf("ChannelOpenTimeout = %v, want 15s", cfg.ChannelOpenTimeout)
	}
	if cfg.VADThreshold != 0.5 {
		t.Fatalf("VADThreshold = %v, want 0.5", cfg.VADThreshold)
	}
	if cfg.KafkaEnabled() {
		t.Fatalf("KafkaEnabled() = true, want false with empty broker list")
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("REALTIME_CHANNEL_OPEN_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "localhost:9092,localhost:9093")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.ChannelOpenTimeout != 5*time.Second {
		t.Fatalf("ChannelOpenTimeout = %v, want 5s", cfg.ChannelOpenTimeout)
	}
	if !cfg.KafkaEnabled() {
		t.Fatalf("KafkaEnabled() = false, want true")
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("KafkaBrokers = %v, want two brokers", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsBadVADThreshold(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("REALTIME_VAD_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want validation failure")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"LOG_LEVEL",
		"LOG_PRETTY",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"REALTIME_MODEL",
		"REALTIME_VOICE",
		"TRANSCRIPTION_MODEL",
		"SCORING_MODEL",
		"COACH_MODEL",
		"REALTIME_CHANNEL_OPEN_TIMEOUT",
		"REALTIME_CONFIGURE_ACK_TIMEOUT",
		"REALTIME_VAD_THRESHOLD",
		"REALTIME_VAD_SILENCE_MS",
		"BACKEND_URL",
		"FFMPEG_PATH",
		"FFPLAY_PATH",
		"CAPTURE_FORMAT",
		"CAPTURE_DEVICE",
		"DATABASE_URL",
		"KAFKA_BROKERS",
		"KAFKA_TOPIC_TRANSCRIPTS",
	}
	for _, k := range keys {
		// envconfig applies defaults only for unset variables, so clearing
		// with Setenv(k, "") is not equivalent to unsetting.
		if prev, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, prev) })
			os.Unsetenv(k)
		}
	}
}
