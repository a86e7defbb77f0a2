package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tradepilot/pkg/flow"
)

const (
	EventNotification = "pipeline.notification"
	EventRunCompleted = "pipeline.run_completed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RunEvent is published after a run has been recorded.
type RunEvent struct {
	PipelineID string            `json:"pipeline_id"`
	OwnerID    uint              `json:"owner_id"`
	Entry      flow.HistoryEntry `json:"entry"`
}

// KafkaPublisher publishes notifications and run events keyed by pipeline id,
// so all messages of one pipeline land on the same partition.
type KafkaPublisher struct {
	writer       messageWriter
	topicByEvent map[string]string
}

func NewKafkaPublisher(brokers []string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topicByEvent: topicByEvent,
	}, nil
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, payload any, partitionKey string) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	topic := eventType
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		topic = mapped
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
}

func (p *KafkaPublisher) Notify(ctx context.Context, msg Message) error {
	return p.publish(ctx, EventNotification, msg, msg.PipelineID)
}

func (p *KafkaPublisher) PublishRun(ctx context.Context, event RunEvent) error {
	return p.publish(ctx, EventRunCompleted, event, event.PipelineID)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
