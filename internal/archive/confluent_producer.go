package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	flushTimeout       = 5 * time.Second
	topicCreateTimeout = 10 * time.Second

	headerMessageID = "message_id"
	headerAuthorID  = "author_id"
)

// ConfluentProducer archives messages to a Kafka topic. The room is the
// record key, so one room's messages land on one partition in order.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	reports  chan struct{}
}

func NewConfluentProducer(cfg config.KafkaConfig) (*ConfluentProducer, error) {
	l := log.L()
	if err := createTopic(cfg); err != nil {
		l.Warn().Err(err).Str("topic", cfg.Topic).Msg("could not create archive topic")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         "chat-archive",
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    cfg.Topic,
		reports:  make(chan struct{}),
	}
	go cp.watchDeliveries()

	l.Info().Str("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("archive producer ready")
	return cp, nil
}

// createTopic is a no-op when the topic already exists.
func createTopic(cfg config.KafkaConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cfg.Brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), topicCreateTimeout)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return err
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("topic %s: %v", r.Topic, r.Error)
		}
	}
	return nil
}

func (cp *ConfluentProducer) watchDeliveries() {
	defer close(cp.reports)
	l := log.L()
	for e := range cp.producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok || m.TopicPartition.Error == nil {
			continue
		}
		l.Warn().Err(m.TopicPartition.Error).
			Str(log.FieldRoomID, string(m.Key)).
			Msg("archive delivery failed")
	}
}

// Archive enqueues msg and returns without waiting for the broker.
func (cp *ConfluentProducer) Archive(_ context.Context, msg domain.ChatMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	record := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &cp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(msg.Room),
		Value:          value,
		Timestamp:      msg.SentAt,
		Headers: []kafka.Header{
			{Key: headerMessageID, Value: []byte(msg.ID)},
			{Key: headerAuthorID, Value: []byte(msg.Author.ID)},
		},
	}
	if err := cp.producer.Produce(record, nil); err != nil {
		return fmt.Errorf("failed to produce message %s: %w", msg.ID, err)
	}
	return nil
}

// Close flushes pending records and waits for the delivery watcher.
func (cp *ConfluentProducer) Close() error {
	if left := cp.producer.Flush(int(flushTimeout.Milliseconds())); left > 0 {
		l := log.L()
		l.Warn().Int("unflushed", left).Msg("archive producer closed with pending records")
	}
	cp.producer.Close()
	<-cp.reports
	return nil
}
