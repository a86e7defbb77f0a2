package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Message is a notification raised by a pipeline action.
type Message struct {
	PipelineID string    `json:"pipeline_id"`
	ActionID   string    `json:"action_id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Level      string    `json:"level"`
	SentAt     time.Time `json:"sent_at"`
}

type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("pipeline_id", msg.PipelineID),
		zap.String("action_id", msg.ActionID),
		zap.String("level", msg.Level),
		zap.String("title", msg.Title),
		zap.String("text", msg.Text),
	)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
