package eventbus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaEventBusConfig holds configuration for the Kafka event bus.
type KafkaEventBusConfig struct {
	GroupID       string
	TopicPrefix   string
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCAFile     string
	TLSCertFile   string
	TLSKeyFile    string
	TLSSkipVerify bool
}

// DefaultKafkaEventBusConfig returns default configuration for KafkaEventBus.
func DefaultKafkaEventBusConfig() *KafkaEventBusConfig {
	return &KafkaEventBusConfig{
		GroupID:     "ledger",
		TopicPrefix: defaultTopicPrefix,
	}
}

// KafkaEventBus publishes each event type to its own topic. Handlers get a
// reader per event type in the configured consumer group.
type KafkaEventBus struct {
	brokers []string
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	config  *KafkaEventBusConfig
	logger  *slog.Logger

	handlersMtx sync.RWMutex
	handlers    map[eventbus.EventType][]eventbus.HandlerFunc

	readersMtx sync.Mutex
	readers    map[eventbus.EventType]*kafka.Reader

	topicsMtx sync.Mutex
	topics    map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithKafka creates a new Kafka-backed event bus.
// brokers: Comma-separated brokers list (e.g. "localhost:9092,localhost:9093").
func NewWithKafka(brokers string, logger *slog.Logger, config *KafkaEventBusConfig) (*KafkaEventBus, error) {
	parsed := parseBrokers(brokers)
	if len(parsed) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	if config == nil {
		config = DefaultKafkaEventBusConfig()
	}
	if config.GroupID == "" {
		config.GroupID = "ledger"
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer, transport, err := newKafkaDialer(config)
	if err != nil {
		return nil, err
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(parsed...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	if transport != nil {
		writer.Transport = transport
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &KafkaEventBus{
		brokers:  parsed,
		writer:   writer,
		dialer:   dialer,
		config:   config,
		logger:   logger.With("bus", "kafka"),
		handlers: make(map[eventbus.EventType][]eventbus.HandlerFunc),
		readers:  make(map[eventbus.EventType]*kafka.Reader),
		topics:   make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := b.ping(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	b.logger.Info("Kafka event bus initialized",
		"brokers", parsed,
		"group_id", config.GroupID,
		"tls_enabled", dialer.TLS != nil,
		"sasl_enabled", dialer.SASLMechanism != nil,
	)
	return b, nil
}

// Emit writes the event to its topic, keyed by the sending card so that
// events of one card stay ordered.
func (b *KafkaEventBus) Emit(ctx context.Context, e eventbus.Event) error {
	raw, err := encode(e)
	if err != nil {
		return fmt.Errorf("kafka event bus: %w", err)
	}
	topic := topicNameFor(b.config.TopicPrefix, e.Type)
	if err := b.ensureTopic(ctx, topic); err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(fmt.Sprintf("card-%d", e.FromCardID)),
		Value: raw,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

// Register registers an event handler for a specific event type.
func (b *KafkaEventBus) Register(t eventbus.EventType, handler eventbus.HandlerFunc) {
	b.handlersMtx.Lock()
	b.handlers[t] = append(b.handlers[t], handler)
	b.handlersMtx.Unlock()

	b.ensureConsumer(t)
}

// Close stops the readers and flushes the writer.
func (b *KafkaEventBus) Close() error {
	b.cancel()

	b.readersMtx.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.readersMtx.Unlock()

	b.wg.Wait()
	return b.writer.Close()
}

func (b *KafkaEventBus) ping(ctx context.Context) error {
	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka event bus: connection failed: %w", err)
	}
	_ = conn.Close()
	return nil
}

func (b *KafkaEventBus) ensureConsumer(t eventbus.EventType) {
	b.readersMtx.Lock()
	defer b.readersMtx.Unlock()
	if _, ok := b.readers[t]; ok {
		return
	}

	topic := topicNameFor(b.config.TopicPrefix, t)
	if err := b.ensureTopic(b.ctx, topic); err != nil {
		b.logger.Error("Failed to ensure topic", "error", err, "topic", topic)
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      b.dialer,
	})
	b.readers[t] = reader

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(b.ctx, t, reader)
	}()
}

func (b *KafkaEventBus) consumeLoop(ctx context.Context, t eventbus.EventType, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			b.logger.Error("Kafka consume error", "error", err, "event_type", t)
			sleep(ctx, 500*time.Millisecond)
			continue
		}

		if err := b.processMessage(ctx, t, msg); err != nil {
			// Leave the offset uncommitted so the message is redelivered.
			b.logger.Error("Kafka message processing failed", "error", err,
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			b.logger.Error("Kafka commit error", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// processMessage returns an error only when the message could not be parked
// in the DLQ either.
func (b *KafkaEventBus) processMessage(ctx context.Context, t eventbus.EventType, msg kafka.Message) error {
	e, err := decode(msg.Value)
	if err != nil {
		b.logger.Error("Failed to decode event", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}
	if e.Type != t {
		b.logger.Warn("Envelope type mismatch for topic", "expected", t, "actual", e.Type, "topic", msg.Topic)
	}

	b.handlersMtx.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[e.Type]...)
	b.handlersMtx.RUnlock()

	if runHandlers(ctx, b.logger, e, handlers) {
		return nil
	}
	return b.publishToDLQ(ctx, e.Type, msg.Value)
}

func (b *KafkaEventBus) publishToDLQ(ctx context.Context, t eventbus.EventType, raw []byte) error {
	topic := dlqTopicNameFor(b.config.TopicPrefix, t)
	if err := b.ensureTopic(ctx, topic); err != nil {
		return err
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(t.String()),
		Value: raw,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("kafka event bus: dlq publish failed: %w", err)
	}
	b.logger.Warn("Message sent to DLQ", "event_type", t, "dlq_topic", topic)
	return nil
}

func (b *KafkaEventBus) ensureTopic(ctx context.Context, topic string) error {
	b.topicsMtx.Lock()
	_, exists := b.topics[topic]
	b.topicsMtx.Unlock()
	if exists {
		return nil
	}

	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka event bus: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka event bus: create topic failed: %w", err)
	}

	b.topicsMtx.Lock()
	b.topics[topic] = struct{}{}
	b.topicsMtx.Unlock()
	return nil
}

func newKafkaDialer(config *KafkaEventBusConfig) (*kafka.Dialer, *kafka.Transport, error) {
	tlsConfig, err := buildKafkaTLSConfig(config)
	if err != nil {
		return nil, nil, err
	}
	mechanism, err := buildKafkaSASLMechanism(config)
	if err != nil {
		return nil, nil, err
	}

	dialer := &kafka.Dialer{
		Timeout:       5 * time.Second,
		DualStack:     true,
		TLS:           tlsConfig,
		SASLMechanism: mechanism,
	}
	if tlsConfig == nil && mechanism == nil {
		return dialer, nil, nil
	}
	return dialer, &kafka.Transport{TLS: tlsConfig, SASL: mechanism}, nil
}

func buildKafkaTLSConfig(config *KafkaEventBusConfig) (*tls.Config, error) {
	if !config.TLSEnabled {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: config.TLSSkipVerify, //nolint:gosec
	}

	if caFile := strings.TrimSpace(config.TLSCAFile); caFile != "" {
		caBytes, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("kafka event bus: read tls ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("kafka event bus: invalid tls ca file")
		}
		tlsConfig.RootCAs = pool
	}

	certFile := strings.TrimSpace(config.TLSCertFile)
	keyFile := strings.TrimSpace(config.TLSKeyFile)
	if certFile != "" || keyFile != "" {
		if certFile == "" || keyFile == "" {
			return nil, fmt.Errorf("kafka event bus: tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("kafka event bus: load tls key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func buildKafkaSASLMechanism(config *KafkaEventBusConfig) (sasl.Mechanism, error) {
	username := strings.TrimSpace(config.SASLUsername)
	password := strings.TrimSpace(config.SASLPassword)
	if username == "" && password == "" {
		return nil, nil
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("kafka event bus: sasl username and password are required")
	}
	return plain.Mechanism{Username: username, Password: password}, nil
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
