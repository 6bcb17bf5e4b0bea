package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/securenote/internal/domain"
	"github.com/smallbiznis/securenote/internal/http/middleware"
	"github.com/smallbiznis/securenote/internal/service"
)

// NoteHandler serves note creation, listing, search, and the public feed.
// All routes require a bearer token.
type NoteHandler struct {
	Notes *service.NoteService
}

// NewNoteHandler creates the handler set.
func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{Notes: notes}
}

// NoteView is the plaintext note shape returned to clients.
type NoteView struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"owner_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
}

// NoteWithOwnerView adds the denormalized owner username.
type NoteWithOwnerView struct {
	NoteView
	OwnerUsername string `json:"owner_username"`
}

func newNoteView(note domain.Note) NoteView {
	return NoteView{
		ID:       note.ID,
		OwnerID:  note.OwnerID,
		Title:    note.Title,
		Content:  note.Content,
		IsPublic: note.IsPublic,
	}
}

func newNoteWithOwnerViews(notes []domain.NoteWithOwner) []NoteWithOwnerView {
	views := make([]NoteWithOwnerView, 0, len(notes))
	for _, n := range notes {
		views = append(views, NoteWithOwnerView{NoteView: newNoteView(n.Note), OwnerUsername: n.OwnerUsername})
	}
	return views
}

// Create stores a new note for the authenticated user.
func (h *NoteHandler) Create(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	var req struct {
		Title    string `json:"title" binding:"required"`
		Content  string `json:"content"`
		IsPublic bool   `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "Title is required."})
		return
	}

	note, err := h.Notes.Create(c.Request.Context(), user, req.Title, req.Content, req.IsPublic)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newNoteView(note))
}

// List returns the authenticated user's own notes.
func (h *NoteHandler) List(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	notes, err := h.Notes.ListOwn(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]NoteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, newNoteView(n))
	}
	c.JSON(http.StatusOK, views)
}

// Search ranks the user's visible notes against the q parameter.
func (h *NoteHandler) Search(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "Query parameter q is required."})
		return
	}
	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", 0)

	results, err := h.Notes.Search(c.Request.Context(), user, query, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newNoteWithOwnerViews(results))
}

// Public returns the shared public notes feed.
func (h *NoteHandler) Public(c *gin.Context) {
	if _, ok := middleware.GetCurrentUser(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	feed, err := h.Notes.PublicFeed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newNoteWithOwnerViews(feed))
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
