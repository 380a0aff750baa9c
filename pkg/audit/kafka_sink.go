/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/config"
	"github.com/toftewellness/wellness-api/pkg/metrics"
)

const (
	kafkaSinkName     = "kafka"
	kafkaBatchTimeout = 500 * time.Millisecond
	kafkaWriteTimeout = 10 * time.Second
	headerEventType   = "event-type"
	headerSeverity    = "severity"
	headerOccurredAt  = "occurred-at"
	headerClientIP    = "client-ip"
	headerActor       = "actor"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink streams audit events to a Kafka topic. Messages are keyed by the
// client identity so every event for one client lands on the same partition
// in order.
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger

	mu     sync.Mutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
}

// NewKafkaSink builds a sink from the audit.kafka config section.
func NewKafkaSink(cfg config.Kafka, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	transport := &kafka.Transport{}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.SASLMechanism != "" {
		mechanism, err := buildSASLMechanism(cfg.SASLMechanism, cfg.Username, cfg.Password)
		if err != nil {
			return nil, err
		}
		transport.SASL = mechanism
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: kafkaBatchTimeout,
		WriteTimeout: kafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}

	logger.Info("Kafka audit sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("tls", cfg.TLS),
		zap.String("sasl", cfg.SASLMechanism))

	return newKafkaSinkWithWriter(writer, logger), nil
}

func newKafkaSinkWithWriter(w messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: w, logger: logger.Named("kafka-audit")}
}

// Write publishes one event.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		metrics.AuditSinkErrors.WithLabelValues(kafkaSinkName, "closed").Inc()
		return errors.New("kafka sink is closed")
	}

	start := time.Now()
	defer func() {
		metrics.AuditSinkLatency.WithLabelValues(kafkaSinkName).Observe(time.Since(start).Seconds())
	}()

	msg, err := eventMessage(event)
	if err != nil {
		metrics.AuditSinkErrors.WithLabelValues(kafkaSinkName, "serialization").Inc()
		s.failed.Add(1)
		return err
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		class := classifyKafkaError(err)
		metrics.AuditSinkErrors.WithLabelValues(kafkaSinkName, class).Inc()
		s.failed.Add(1)

		fields := []zap.Field{
			zap.Error(err),
			zap.String("error_type", class),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		}
		if class == "network" || class == "timeout" {
			s.logger.Warn("Kafka unavailable, audit event dropped", fields...)
		} else {
			s.logger.Error("Failed to publish audit event", fields...)
		}
		return fmt.Errorf("publishing audit event (%s): %w", class, err)
	}

	s.written.Add(1)
	return nil
}

// eventMessage encodes event as a Kafka message keyed by client identity,
// falling back to the event ID for events without one.
func eventMessage(event *Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding audit event: %w", err)
	}

	key := event.Actor.SourceIP
	if key == "" {
		key = event.ID
	}

	headers := []kafka.Header{
		{Key: headerEventType, Value: []byte(event.Type)},
		{Key: headerSeverity, Value: []byte(event.Severity)},
		{Key: headerOccurredAt, Value: []byte(event.Timestamp.UTC().Format(time.RFC3339))},
	}
	if event.Actor.SourceIP != "" {
		headers = append(headers, kafka.Header{Key: headerClientIP, Value: []byte(event.Actor.SourceIP)})
	}
	if event.Actor.User != "" {
		headers = append(headers, kafka.Header{Key: headerActor, Value: []byte(event.Actor.User)})
	}

	return kafka.Message{Key: []byte(key), Value: value, Headers: headers}, nil
}

// Close flushes and closes the writer. Further writes fail.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("Closing Kafka audit sink",
		zap.Int64("written", s.written.Load()),
		zap.Int64("failed", s.failed.Load()))

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}

func (s *KafkaSink) Name() string { return kafkaSinkName }

// Stats returns the number of events published and failed so far.
func (s *KafkaSink) Stats() (written, failed int64) {
	return s.written.Load(), s.failed.Load()
}

// classifyKafkaError buckets a publish error into a metrics label.
func classifyKafkaError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	msg := err.Error()
	for _, c := range []struct {
		class  string
		needle []string
	}{
		{"auth", []string{"SASL", "authentication"}},
		{"timeout", []string{"timeout", "timed out"}},
		{"network", []string{"connection refused", "no such host"}},
		{"tls", []string{"TLS", "certificate"}},
		{"topic", []string{"topic"}},
	} {
		for _, n := range c.needle {
			if strings.Contains(msg, n) {
				return c.class
			}
		}
	}
	return "other"
}

func buildSASLMechanism(mechanism, username, password string) (sasl.Mechanism, error) {
	switch strings.ToUpper(mechanism) {
	case "PLAIN":
		return plain.Mechanism{Username: username, Password: password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, username, password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, username, password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", mechanism)
	}
}
