package statestore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jagmitg/botservice/runtime/dialog"
)

func sampleState(id string) *ConversationState {
	return &ConversationState{
		ID:        id,
		UserID:    "user-alice",
		TurnCount: 3,
		Dialogs: &dialog.State{Stack: []dialog.Frame{{
			DialogID:  "renewDialog",
			StepIndex: 2,
			Values:    map[string]any{"name": "Alice"},
		}}},
		Metadata: map[string]any{"channel": "web"},
	}
}

func TestMemoryStore_LoadNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidState)
	assert.ErrorIs(t, store.Save(ctx, &ConversationState{}), ErrInvalidID)
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrInvalidID)
}

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("conv-1")))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "user-alice", loaded.UserID)
	assert.Equal(t, 3, loaded.TurnCount)
	require.NotNil(t, loaded.Dialogs)
	assert.Equal(t, []string{"renewDialog"}, loaded.Dialogs.DialogIDs())
	assert.Equal(t, "Alice", dialog.ValueString(loaded.Dialogs.Stack[0].Values, "name"))
	assert.False(t, loaded.LastAccessedAt.IsZero())
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleState("conv-1")))

	first, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	first.Dialogs.Stack[0].Values["name"] = "Mallory"
	first.TurnCount = 99

	second, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", second.Dialogs.Stack[0].Values["name"])
	assert.Equal(t, 3, second.TurnCount)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleState("conv-1")))

	require.NoError(t, store.Delete(ctx, "conv-1"))
	assert.ErrorIs(t, store.Delete(ctx, "conv-1"), ErrNotFound)
	_, err := store.Load(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Profiles(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	def := UserProfile{Age: DeclinedAge}
	p, err := store.GetProfile(ctx, "user-1", def)
	require.NoError(t, err)
	assert.Equal(t, def, p)

	require.NoError(t, store.SetProfile(ctx, "user-1", UserProfile{Name: "Alice", Age: 45}))
	p, err = store.GetProfile(ctx, "user-1", def)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 45, p.Age)
	assert.True(t, p.HasAge())

	_, err = store.GetProfile(ctx, "", def)
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.SetProfile(ctx, "", p), ErrInvalidID)
}

func TestMemoryStore_UpdateProfileIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateProfile(ctx, "user-1", func(p UserProfile) (UserProfile, error) {
				p.Age++
				return p, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.GetProfile(ctx, "user-1", UserProfile{})
	require.NoError(t, err)
	assert.Equal(t, writers, p.Age)
}

func TestMemoryStore_UpdateProfileError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SetProfile(ctx, "user-1", UserProfile{Name: "Alice"}))

	boom := errors.New("boom")
	_, err := store.UpdateProfile(ctx, "user-1", func(p UserProfile) (UserProfile, error) {
		return UserProfile{Name: "Bob"}, boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := store.GetProfile(ctx, "user-1", UserProfile{})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
}

func TestUserProfile_HasAge(t *testing.T) {
	assert.False(t, UserProfile{Age: DeclinedAge}.HasAge())
	assert.False(t, UserProfile{}.HasAge())
	assert.True(t, UserProfile{Age: 1}.HasAge())
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ ProfileStore = (*MemoryStore)(nil)
	_ Store        = (*RedisStore)(nil)
	_ ProfileStore = (*RedisStore)(nil)
)
