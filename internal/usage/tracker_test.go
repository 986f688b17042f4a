package usage

import (
	"context"
	"testing"
	"time"

	"llmgate/internal/events"

	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	l := newTestLedger(t)
	hub := events.NewHub()
	sub, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	tr := NewTracker(l, hub)
	tr.Start()

	tr.Track(&Record{Channel: "openai", Model: "gpt-4o", PromptTokens: 3, CompletionTokens: 2})
	tr.Stop()

	n, err := l.LogsCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	select {
	case ev := <-sub:
		require.Equal(t, events.TopicUsageLogged, ev.Topic)
		rec, ok := ev.Payload.(*Record)
		require.True(t, ok)
		require.Equal(t, int64(5), rec.TotalTokens)
		require.False(t, rec.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no usage event published")
	}
}
