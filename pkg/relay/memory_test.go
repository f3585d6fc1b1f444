package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"school_messaging_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	m.Run()
}

type update struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
}

func TestMemoryRelay_PublishBind(t *testing.T) {
	r := NewMemoryRelay(0)
	defer r.Close()

	sub, err := r.Subscribe(context.Background(), UserChannel("bob"))
	require.NoError(t, err)

	got := make(chan update, 1)
	sub.Bind("unread-count-updated", func(e Event) {
		var u update
		_ = e.Decode(&u)
		got <- u
	})

	require.NoError(t, r.Publish(context.Background(), "user-bob", "unread-count-updated", update{ConversationID: "c1"}))

	select {
	case u := <-got:
		assert.Equal(t, "c1", u.ConversationID)
		assert.Equal(t, 0, u.UnreadCount)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMemoryRelay_ChannelsAreIsolated(t *testing.T) {
	r := NewMemoryRelay(0)
	defer r.Close()

	sub, err := r.Subscribe(context.Background(), UserChannel("alice"))
	require.NoError(t, err)

	var mu sync.Mutex
	var names []string
	sub.Bind(AllEvents, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, e.Channel+"/"+e.Name)
	})

	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, UserChannel("bob"), "conversation-updated", nil))
	require.NoError(t, r.Publish(ctx, UserChannel("alice"), "new-conversation", nil))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"user-alice/new-conversation"}, names)
}

func TestMemoryRelay_OrderPreserved(t *testing.T) {
	r := NewMemoryRelay(128)
	defer r.Close()

	sub, err := r.Subscribe(context.Background(), PresenceChannel)
	require.NoError(t, err)

	var mu sync.Mutex
	var seq []int
	sub.Bind("online", func(e Event) {
		var n int
		_ = e.Decode(&n)
		mu.Lock()
		seq = append(seq, n)
		mu.Unlock()
	})

	for i := 0; i < 100; i++ {
		require.NoError(t, r.Publish(context.Background(), PresenceChannel, "online", i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seq) == 100
	}, time.Second, 5*time.Millisecond)
	for i, n := range seq {
		assert.Equal(t, i, n)
	}
}

func TestMemoryRelay_UnsubscribeAndUnbind(t *testing.T) {
	r := NewMemoryRelay(0)
	defer r.Close()

	sub, err := r.Subscribe(context.Background(), "user-x")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Subscribers("user-x"))

	sub.Bind("a", func(Event) { t.Error("unbound handler called") })
	sub.Unbind("a")
	require.NoError(t, r.Publish(context.Background(), "user-x", "a", nil))

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 0, r.Subscribers("user-x"))
}

func TestMemoryRelay_ContextCancelUnsubscribes(t *testing.T) {
	r := NewMemoryRelay(0)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Subscribe(ctx, "user-y")
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return r.Subscribers("user-y") == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryRelay_SlowSubscriberDrops(t *testing.T) {
	r := NewMemoryRelay(1)
	defer r.Close()

	sub, err := r.Subscribe(context.Background(), "user-slow")
	require.NoError(t, err)

	block := make(chan struct{})
	sub.Bind("e", func(Event) { <-block })

	for i := 0; i < 10; i++ {
		assert.NoError(t, r.Publish(context.Background(), "user-slow", "e", i))
	}
	close(block)
}

func TestMemoryRelay_Closed(t *testing.T) {
	r := NewMemoryRelay(0)
	require.NoError(t, r.Close())

	_, err := r.Subscribe(context.Background(), "c")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Publish(context.Background(), "c", "e", nil), ErrClosed)
}

func TestNewEvent_RawPayload(t *testing.T) {
	ev, err := NewEvent("c", "e", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(ev.Payload))
	assert.False(t, ev.SentAt.IsZero())
}
