package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"example.com/sia/internal/logger"
)

// Reader exposes the minimal kafka.Reader interface needed by the Processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded progress events.
type Handler interface {
	Handle(context.Context, Event) error
}

// HandlerFunc adapts a func to Handler.
type HandlerFunc func(context.Context, Event) error

func (f HandlerFunc) Handle(ctx context.Context, evt Event) error { return f(ctx, evt) }

// NewReader builds a consumer-group reader for the progress topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

// Processor pulls progress events from Kafka and dispatches them to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	log     *logger.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{reader: reader, handler: handler, log: log}
}

// Run processes messages until ctx is cancelled. Malformed messages are committed so they
// cannot block the partition; handler failures are left uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.log.Warn("fetch progress event failed", "error", err)
			continue
		}

		evt, err := Decode(msg)
		if err != nil {
			p.log.Warn("dropping malformed progress event", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			if err := p.reader.CommitMessages(ctx, msg); err != nil {
				p.log.Warn("commit after decode failure failed", "error", err)
			}
			continue
		}

		if err := p.handler.Handle(ctx, evt); err != nil {
			p.log.Warn("progress event handler failed", "event_type", evt.EventType(), "activity_id", evt.AggregateID(), "error", err)
			continue
		}
		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.log.Warn("commit progress event failed", "error", err)
		}
	}
}

// Decode turns a kafka message written by KafkaPublisher back into its event.
func Decode(msg kafka.Message) (Event, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return nil, errors.New("missing event_type header")
	}

	var evt Event
	switch eventType {
	case TypeActivityStarted:
		var e ActivityStarted
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		evt = e
	case TypeAnswerSubmitted:
		var e AnswerSubmitted
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		evt = e
	case TypeActivityCompleted:
		var e ActivityCompleted
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		evt = e
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if evt.AggregateID() == "" {
		return nil, fmt.Errorf("decode %s: missing activity_id", eventType)
	}
	return evt, nil
}

func headerValue(msg kafka.Message, key string) (string, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value), true
		}
	}
	return "", false
}

// LogHandler logs every event it receives.
func LogHandler(log *logger.Logger) Handler {
	return HandlerFunc(func(_ context.Context, evt Event) error {
		log.Info("progress event", "event_type", evt.EventType(), "activity_id", evt.AggregateID())
		return nil
	})
}
