package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	messages    []kafka.Message
	commitCalls int
	committed   []kafka.Message
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error { return nil }

func mustMessage(t *testing.T, evt Event) kafka.Message {
	t.Helper()
	msg, err := Message(evt)
	require.NoError(t, err)
	return msg
}

func TestProcessorDispatchesAndCommits(t *testing.T) {
	next := "item-2"
	reader := &stubReader{messages: []kafka.Message{
		mustMessage(t, ActivityStarted{ActivityID: "a1", FirstItemID: "item-1"}),
		mustMessage(t, AnswerSubmitted{ActivityID: "a1", ItemID: "item-1", SuccessVerdict: true, NextItemID: &next}),
	}}
	var got []Event
	handler := HandlerFunc(func(_ context.Context, evt Event) error {
		got = append(got, evt)
		return nil
	})

	err := NewProcessor(reader, handler, nil).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, got, 2)
	require.Equal(t, ActivityStarted{ActivityID: "a1", FirstItemID: "item-1", OccurredAt: time.Time{}}, got[0])
	answered, ok := got[1].(AnswerSubmitted)
	require.True(t, ok)
	require.Equal(t, "item-2", *answered.NextItemID)
	require.Equal(t, 2, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		{Value: []byte(`{}`)},
		{Value: []byte(`not json`), Headers: []kafka.Header{{Key: "event_type", Value: []byte(TypeActivityCompleted)}}},
	}}
	calls := 0
	handler := HandlerFunc(func(context.Context, Event) error {
		calls++
		return nil
	})

	require.ErrorIs(t, NewProcessor(reader, handler, nil).Run(context.Background()), context.Canceled)
	require.Zero(t, calls)
	require.Equal(t, 2, reader.commitCalls)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{mustMessage(t, ActivityCompleted{ActivityID: "a1"})}}
	handler := HandlerFunc(func(context.Context, Event) error { return errors.New("downstream unavailable") })

	require.ErrorIs(t, NewProcessor(reader, handler, nil).Run(context.Background()), context.Canceled)
	require.Zero(t, reader.commitCalls)
}

func TestDecodeRejectsUnknownTypes(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte(`{"activity_id":"a1"}`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("activity.deleted")}}})
	require.ErrorContains(t, err, "unknown event type")

	_, err = Decode(kafka.Message{Value: []byte(`{}`), Headers: []kafka.Header{{Key: "event_type", Value: []byte(TypeActivityStarted)}}})
	require.ErrorContains(t, err, "missing activity_id")
}
