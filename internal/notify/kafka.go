package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the Kafka topic carrying folder membership events.
const DefaultTopic = "folder.membership"

// KafkaNotifier publishes membership events to Kafka, keyed by folder id so
// all events for one folder land on one partition in order.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaNotifier creates a notifier writing to the given brokers/topic.
func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &KafkaNotifier{writer: writer, logger: logger}
}

// PublishMembershipEvent publishes one membership event.
func (n *KafkaNotifier) PublishMembershipEvent(ctx context.Context, event *MembershipEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal membership event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.FolderID),
		Value: value,
		Time:  event.Timestamp,
	}

	if err := n.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish membership event: %w", err)
	}

	n.logger.Debug("published membership event",
		"event_type", event.EventType,
		"folder_id", event.FolderID,
		"contributor_id", event.ContributorID,
	)
	return nil
}

// Close closes the underlying Kafka writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
