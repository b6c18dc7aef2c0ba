package bot

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/jagmitg/botservice/pkg/errors"
	"github.com/jagmitg/botservice/runtime/statestore"
	"github.com/jagmitg/botservice/runtime/types"
)

// newReplica builds a bot with its own redis client, as a separate process would.
func newReplica(t *testing.T, mr *miniredis.Miniredis) *Bot {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := statestore.NewRedisStore(client)
	b, err := New(configuredRecognizer(), store, store)
	require.NoError(t, err)
	return b
}

func TestOnTurn_ReplicasSerialiseSameConversation(t *testing.T) {
	mr := miniredis.RunT(t)
	replicas := []*Bot{newReplica(t, mr), newReplica(t, mr)}
	ctx := context.Background()

	_, err := replicas[0].OnTurn(ctx, types.Turn{ConversationID: "c", Text: "hi"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(b *Bot) {
			defer wg.Done()
			_, err := b.OnTurn(ctx, types.Turn{ConversationID: "c", Text: "hi"})
			errs <- err
		}(replicas[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	conv, err := statestore.NewRedisStore(client).Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, n+1, conv.TurnCount)
	assert.False(t, mr.Exists("botservice:lock:c"))
}

// lockedStore reports every conversation as locked elsewhere.
type lockedStore struct {
	*statestore.MemoryStore
	err error
}

func (s lockedStore) LockConversation(context.Context, string) (func(), error) {
	return nil, s.err
}

func TestOnTurn_LockFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"held elsewhere", statestore.ErrLockTimeout, http.StatusConflict},
		{"store down", assert.AnError, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := lockedStore{MemoryStore: statestore.NewMemoryStore(), err: tt.err}
			b, err := New(configuredRecognizer(), store, store)
			require.NoError(t, err)

			_, err = b.OnTurn(context.Background(), types.Turn{ConversationID: "c", Text: "hi"})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.status, pkgerrors.StatusCode(err, 0))
			assert.Zero(t, store.Len())
			assert.Zero(t, b.locks.size())
		})
	}
}
