//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Krisp140/sebi/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

func TestComicEventPublisher_RabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	ctx := context.Background()

	container, err := tcrabbitmq.Run(ctx, "rabbitmq:3.13-management-alpine")
	require.NoError(t, err, "Failed to start rabbitmq container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	amqpURL, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pubCh, err := conn.Channel()
	require.NoError(t, err)
	publisher, err := NewComicEventPublisher(pubCh, "comic_events_test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	subCh, err := conn.Channel()
	require.NoError(t, err)
	q, err := subCh.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, subCh.QueueBind(q.Name, "", "comic_events_test", false, nil))
	deliveries, err := subCh.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, publisher.Emit(ctx, domain.ComicEvent{SessionID: "s1", Type: domain.EventCompleted}))

	select {
	case d := <-deliveries:
		var ev domain.ComicEvent
		require.NoError(t, json.Unmarshal(d.Body, &ev))
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, domain.EventCompleted, ev.Type)
	case <-time.After(10 * time.Second):
		t.Fatal("comic event was not delivered")
	}
}
