package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/securenote/internal/cache"
	"github.com/smallbiznis/securenote/internal/config"
	"github.com/smallbiznis/securenote/internal/crypto"
	"github.com/smallbiznis/securenote/internal/domain"
	"github.com/smallbiznis/securenote/internal/repository"
	"github.com/smallbiznis/securenote/internal/search"
)

// NoteService owns note creation and the cached/search read paths. Title
// and content are encrypted before they reach the repository and decrypted
// on every read.
type NoteService struct {
	notes     repository.NoteRepository
	cache     *cache.Store
	cipher    *crypto.Cipher
	engine    search.Engine
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewNoteService wires dependencies.
func NewNoteService(notes repository.NoteRepository, store *cache.Store, cipher *crypto.Cipher, engine search.Engine, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *NoteService {
	return &NoteService{
		notes:     notes,
		cache:     store,
		cipher:    cipher,
		engine:    engine,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/smallbiznis/securenote/internal/service"),
	}
}

// Create persists an encrypted note and invalidates the owner's note-list
// cache, plus the shared public feed when the note is public. Cache
// failures never fail the request.
func (s *NoteService) Create(ctx context.Context, owner domain.User, title, content string, isPublic bool) (domain.Note, error) {
	ctx, span := s.startSpan(ctx, "NoteService.Create")
	defer span.End()

	encTitle, err := s.cipher.Encrypt(title)
	if err != nil {
		span.RecordError(err)
		return domain.Note{}, fmt.Errorf("encrypt title: %w", err)
	}
	encContent, err := s.cipher.Encrypt(content)
	if err != nil {
		span.RecordError(err)
		return domain.Note{}, fmt.Errorf("encrypt content: %w", err)
	}

	note := domain.Note{
		ID:       s.snowflake.Generate().Int64(),
		OwnerID:  owner.ID,
		Title:    encTitle,
		Content:  encContent,
		IsPublic: isPublic,
	}
	created, err := s.notes.Create(ctx, note)
	if err != nil {
		span.RecordError(err)
		return domain.Note{}, fmt.Errorf("create note: %w", err)
	}

	keys := []string{cache.UserNotesKey(owner.ID)}
	if isPublic {
		keys = append(keys, cache.PublicFeedKey)
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log().Warn("cache invalidate failed", zap.Int64("user_id", owner.ID), zap.Error(err))
	}

	created.Title = title
	created.Content = content
	s.auditNote("note.created", owner.ID, created.ID, isPublic)
	return created, nil
}

// ListOwn returns the user's notes, cache-aside on the per-user key.
func (s *NoteService) ListOwn(ctx context.Context, user domain.User) ([]domain.Note, error) {
	ctx, span := s.startSpan(ctx, "NoteService.ListOwn")
	defer span.End()

	key := cache.UserNotesKey(user.ID)
	if cached, ok := s.cacheGet(ctx, key); ok {
		notes := make([]domain.Note, 0, len(cached))
		for _, n := range cached {
			notes = append(notes, n.Note)
		}
		return notes, nil
	}

	rows, err := s.notes.ListByOwner(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list notes: %w", err)
	}

	notes := make([]domain.Note, 0, len(rows))
	entries := make([]domain.NoteWithOwner, 0, len(rows))
	for _, row := range rows {
		plain := s.decryptNote(row)
		notes = append(notes, plain)
		entries = append(entries, domain.NoteWithOwner{Note: plain, OwnerUsername: user.Username})
	}

	s.cacheSet(ctx, key, entries)
	return notes, nil
}

// PublicFeed returns the shared public notes feed, cache-aside on the
// global key.
func (s *NoteService) PublicFeed(ctx context.Context) ([]domain.NoteWithOwner, error) {
	ctx, span := s.startSpan(ctx, "NoteService.PublicFeed")
	defer span.End()

	if cached, ok := s.cacheGet(ctx, cache.PublicFeedKey); ok {
		return cached, nil
	}

	rows, err := s.notes.ListPublic(ctx, s.cfg.SearchMaxLimit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list public notes: %w", err)
	}

	feed := make([]domain.NoteWithOwner, 0, len(rows))
	for _, row := range rows {
		feed = append(feed, s.decryptNoteWithOwner(row))
	}

	s.cacheSet(ctx, cache.PublicFeedKey, feed)
	return feed, nil
}

// Search ranks the user's visible notes (their own plus public) against the
// query. The limit is clamped server-side regardless of what the client
// asked for.
func (s *NoteService) Search(ctx context.Context, user domain.User, query string, offset, limit int) ([]domain.NoteWithOwner, error) {
	ctx, span := s.startSpan(ctx, "NoteService.Search")
	defer span.End()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.SearchMaxLimit
	}

	rows, err := s.notes.ListVisible(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list visible notes: %w", err)
	}

	byID := make(map[int64]domain.NoteWithOwner, len(rows))
	docs := make([]search.Document, 0, len(rows))
	for _, row := range rows {
		plain := s.decryptNoteWithOwner(row)
		byID[plain.ID] = plain
		docs = append(docs, search.Document{ID: plain.ID, Title: plain.Title, Content: plain.Content})
	}

	matches := s.engine.Rank(query, docs)
	if offset >= len(matches) {
		return []domain.NoteWithOwner{}, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]domain.NoteWithOwner, 0, len(matches))
	for _, m := range matches {
		results = append(results, byID[m.ID])
	}
	return results, nil
}

// cacheGet reads a note list, degrading to a miss on any cache failure.
func (s *NoteService) cacheGet(ctx context.Context, key string) ([]domain.NoteWithOwner, bool) {
	notes, ok, err := s.cache.GetNoteList(ctx, key)
	if err != nil {
		s.log().Warn("cache read failed, bypassing", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return notes, ok
}

func (s *NoteService) cacheSet(ctx context.Context, key string, notes []domain.NoteWithOwner) {
	if err := s.cache.SetNoteList(ctx, key, notes); err != nil {
		s.log().Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *NoteService) decryptNote(note domain.Note) domain.Note {
	note.Title = s.cipher.Decrypt(note.Title)
	note.Content = s.cipher.Decrypt(note.Content)
	return note
}

func (s *NoteService) decryptNoteWithOwner(note domain.NoteWithOwner) domain.NoteWithOwner {
	note.Note = s.decryptNote(note.Note)
	return note
}

func (s *NoteService) auditNote(event string, userID, noteID int64, isPublic bool) {
	s.log().Info("audit",
		zap.String("event", event),
		zap.Time("timestamp", time.Now().UTC()),
		zap.Int64("user_id", userID),
		zap.Int64("note_id", noteID),
		zap.Bool("is_public", isPublic),
	)
}

func (s *NoteService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *NoteService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
