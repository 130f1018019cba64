//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafkaPublisherDeliversEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.Run(ctx, "confluentinc/confluent-local:7.5.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	topic := "activity_progress"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))

	pub := NewKafkaPublisher(brokers, topic)
	defer pub.Close()

	started := ActivityStarted{ActivityID: "act-int", UserID: "user", FirstItemID: "item-1", OccurredAt: time.Now().UTC()}
	require.NoError(t, pub.Publish(ctx, started))
	require.NoError(t, pub.Publish(ctx, ActivityCompleted{ActivityID: "act-int", UserID: "user", OccurredAt: time.Now().UTC()}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	first, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, "act-int", string(first.Key))
	var decoded ActivityStarted
	require.NoError(t, json.Unmarshal(first.Value, &decoded))
	require.Equal(t, started.FirstItemID, decoded.FirstItemID)

	second, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, TypeActivityCompleted, string(second.Headers[0].Value))
}
