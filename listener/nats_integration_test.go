//go:build integration

package listener

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestConsumer_OverNATS(t *testing.T) {
	ctx := context.Background()
	container, err := nats.Run(ctx, "nats:2.10-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Server is ready"),
				wait.ForListeningPort("4222/tcp"),
			).WithDeadline(45*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	transport, err := NewTransport(TransportConfig{Kind: TransportNATS, NATSURL: url}, testLogger())
	require.NoError(t, err)

	h := &fakeHandler{failures: map[string][]error{}}
	consumer, err := NewConsumer(ConsumerConfig{Topic: "test.finalized", MaxRetries: 2}, transport.Subscriber, h, testLogger())
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = transport.Close()
	})
	select {
	case <-consumer.Running():
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not start")
	}

	pub := NewCompletionPublisher(transport.Publisher, "test.finalized")
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(ctx, models.CompletionEvent{ExternalMatchID: "em-nats", TeamAScore: 1, TeamBScore: 2, FinalizedAt: at}))

	require.Eventually(t, func() bool { return h.callsFor("em-nats") == 1 }, 10*time.Second, 20*time.Millisecond)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 2, h.events[0].TeamBScore)
	assert.True(t, at.Equal(h.events[0].FinalizedAt))
}
