package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/securenote/internal/cache"
	"github.com/smallbiznis/securenote/internal/domain"
)

// fakeClient is an in-memory stand-in for the Redis commands the store uses.
type fakeClient struct {
	entries map[string]string
	getErr  error
	setErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{entries: map[string]string{}}
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	value, ok := f.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.entries[key] = string(v)
	case string:
		f.entries[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var deleted int64
	for _, key := range keys {
		if _, ok := f.entries[key]; ok {
			delete(f.entries, key)
			deleted++
		}
	}
	return redis.NewIntResult(deleted, nil)
}

func sampleNotes() []domain.NoteWithOwner {
	return []domain.NoteWithOwner{
		{
			Note: domain.Note{
				ID:        1,
				OwnerID:   7,
				Title:     "groceries",
				Content:   "milk and eggs",
				IsPublic:  false,
				CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
			OwnerUsername: "alice",
		},
		{
			Note: domain.Note{
				ID:       2,
				OwnerID:  7,
				Title:    "public plan",
				IsPublic: true,
			},
			OwnerUsername: "alice",
		},
	}
}

func TestGetNoteListMissOnAbsentKey(t *testing.T) {
	store := cache.NewStore(newFakeClient(), time.Minute)

	notes, ok, err := store.GetNoteList(context.Background(), cache.UserNotesKey(7))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, notes)
}

func TestSetThenGetNoteList(t *testing.T) {
	client := newFakeClient()
	store := cache.NewStore(client, time.Minute)
	key := cache.UserNotesKey(7)

	require.NoError(t, store.SetNoteList(context.Background(), key, sampleNotes()))

	notes, ok, err := store.GetNoteList(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleNotes(), notes)
}

func TestGetNoteListStaleVersionIsMiss(t *testing.T) {
	client := newFakeClient()
	client.entries[cache.PublicFeedKey] = `{"version":0,"notes":[{"id":1}]}`
	store := cache.NewStore(client, time.Minute)

	_, ok, err := store.GetNoteList(context.Background(), cache.PublicFeedKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetNoteListCorruptEntryErrors(t *testing.T) {
	client := newFakeClient()
	client.entries[cache.PublicFeedKey] = `not json`
	store := cache.NewStore(client, time.Minute)

	_, ok, err := store.GetNoteList(context.Background(), cache.PublicFeedKey)
	require.Error(t, err)
	require.False(t, ok)
}

func TestGetNoteListPropagatesBackendError(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("connection refused")
	store := cache.NewStore(client, time.Minute)

	_, ok, err := store.GetNoteList(context.Background(), cache.PublicFeedKey)
	require.Error(t, err)
	require.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	client := newFakeClient()
	store := cache.NewStore(client, time.Minute)

	require.NoError(t, store.SetNoteList(context.Background(), cache.UserNotesKey(7), sampleNotes()))
	require.NoError(t, store.SetNoteList(context.Background(), cache.PublicFeedKey, sampleNotes()))

	require.NoError(t, store.Invalidate(context.Background(), cache.UserNotesKey(7), cache.PublicFeedKey))
	require.Empty(t, client.entries)

	// Deleting keys that were never set is not an error.
	require.NoError(t, store.Invalidate(context.Background(), "absent"))
	require.NoError(t, store.Invalidate(context.Background()))
}

func TestCacheKeys(t *testing.T) {
	require.Equal(t, "user_notes:42", cache.UserNotesKey(42))
	require.Equal(t, "public_notes_feed", cache.PublicFeedKey)
}
