package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Notifier announces finished transcripts on Kafka so downstream scoring
// consumers can react without polling the store. When no brokers are
// configured it degrades to log-only mode.
type Notifier struct {
	writer  *kafka.Writer
	log     zerolog.Logger
	enabled bool
}

type NotifierConfig struct {
	Brokers []string
	Topic   string
}

func NewNotifier(cfg NotifierConfig, log zerolog.Logger) *Notifier {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		log.Info().Msg("kafka disabled, handoff notifications are log-only")
		return &Notifier{log: log}
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka handoff notifier initialized")
	return &Notifier{writer: writer, log: log, enabled: true}
}

func (n *Notifier) Notify(ctx context.Context, sessionID string, rec Record) error {
	if !n.enabled {
		n.log.Debug().Str("session_id", sessionID).Str("topic", rec.Topic).
			Int("entries", len(rec.Transcript)).Msg("handoff recorded")
		return nil
	}

	payload, err := json.Marshal(struct {
		SessionID string `json:"session_id"`
		Record
	}{SessionID: sessionID, Record: rec})
	if err != nil {
		return fmt.Errorf("marshal handoff event: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish handoff event: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	if n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
