// Package cache memoizes note-list reads in Redis. Entries are disposable
// projections: losing one only forces a recompute on the next read.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/securenote/internal/domain"
)

// PublicFeedKey is the shared cache key for the public notes feed.
const PublicFeedKey = "public_notes_feed"

// UserNotesKey returns the per-user note-list cache key.
func UserNotesKey(userID int64) string {
	return fmt.Sprintf("user_notes:%d", userID)
}

// Client is the slice of redis.UniversalClient the store needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const opTimeout = 2 * time.Second

// noteListVersion guards the cached shape: entries written by an older
// schema read as misses instead of deserializing into the wrong fields.
const noteListVersion = 1

type cachedNote struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
	OwnerUsername string    `json:"owner_username,omitempty"`
}

type noteListEnvelope struct {
	Version int          `json:"version"`
	Notes   []cachedNote `json:"notes"`
}

// Store is a Redis-backed note-list cache with a fixed TTL per entry.
type Store struct {
	client Client
	ttl    time.Duration
}

// NewStore constructs a Store writing entries with the given TTL.
func NewStore(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// GetNoteList loads a cached note list. A missing key, an expired entry, or
// an envelope with a stale version all report a miss without error.
func (s *Store) GetNoteList(ctx context.Context, key string) ([]domain.NoteWithOwner, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var envelope noteListEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if envelope.Version != noteListVersion {
		return nil, false, nil
	}

	notes := make([]domain.NoteWithOwner, 0, len(envelope.Notes))
	for _, n := range envelope.Notes {
		notes = append(notes, domain.NoteWithOwner{
			Note: domain.Note{
				ID:        n.ID,
				OwnerID:   n.OwnerID,
				Title:     n.Title,
				Content:   n.Content,
				IsPublic:  n.IsPublic,
				CreatedAt: n.CreatedAt,
			},
			OwnerUsername: n.OwnerUsername,
		})
	}
	return notes, true, nil
}

// SetNoteList stores the note list under key with the configured TTL.
func (s *Store) SetNoteList(ctx context.Context, key string, notes []domain.NoteWithOwner) error {
	cached := make([]cachedNote, 0, len(notes))
	for _, n := range notes {
		cached = append(cached, cachedNote{
			ID:            n.ID,
			OwnerID:       n.OwnerID,
			Title:         n.Title,
			Content:       n.Content,
			IsPublic:      n.IsPublic,
			CreatedAt:     n.CreatedAt,
			OwnerUsername: n.OwnerUsername,
		})
	}
	payload, err := json.Marshal(noteListEnvelope{Version: noteListVersion, Notes: cached})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes the given keys. Missing keys are a no-op.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.client.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
