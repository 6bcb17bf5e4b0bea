package domain

import "time"

// Note is a user-owned note. Title and Content hold ciphertext at the
// repository boundary and plaintext everywhere above it.
type Note struct {
	ID        int64
	OwnerID   int64
	Title     string
	Content   string
	IsPublic  bool
	CreatedAt time.Time
}

// NoteWithOwner is a note denormalized with its owner's username, as
// returned by search and the public feed.
type NoteWithOwner struct {
	Note
	OwnerUsername string
}
