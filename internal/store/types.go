package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus int

const (
	DocumentProcessing DocumentStatus = iota
	DocumentExtracted
	DocumentEmbedding
	DocumentCompleted
	DocumentFailed
)

// String returns the externally observable status value.
func (s DocumentStatus) String() string {
	switch s {
	case DocumentProcessing:
		return "processing"
	case DocumentExtracted:
		return "extracted"
	case DocumentEmbedding:
		return "embedding"
	case DocumentCompleted:
		return "completed"
	case DocumentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a member of the closed enumeration.
func (s DocumentStatus) Valid() bool {
	return s >= DocumentProcessing && s <= DocumentFailed
}

// ParseDocumentStatus maps a stored status value back to the enumeration.
func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	for s := DocumentProcessing; s <= DocumentFailed; s++ {
		if s.String() == raw {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown document status %q", raw)
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Failed is reachable from any state; a content re-upload resets any
// state back to processing.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if next == DocumentFailed || next == DocumentProcessing {
		return true
	}
	switch s {
	case DocumentProcessing:
		return next == DocumentExtracted
	case DocumentExtracted:
		// A document whose text yields no chunks completes without an
		// embedding phase.
		return next == DocumentEmbedding || next == DocumentCompleted
	case DocumentEmbedding:
		return next == DocumentCompleted
	default:
		return false
	}
}

// documentStatusesAllowing returns the stored values of every state from
// which next is reachable. Used by SetDocumentStatus to enforce the state
// machine inside the UPDATE itself.
func documentStatusesAllowing(next DocumentStatus) []string {
	var from []string
	for s := DocumentProcessing; s <= DocumentFailed; s++ {
		if s.CanTransition(next) {
			from = append(from, s.String())
		}
	}
	return from
}

// ChunkStatus tracks one chunk through embedding.
type ChunkStatus int

const (
	ChunkUploaded ChunkStatus = iota
	ChunkEmbedding
	ChunkCompleted
	ChunkFailed
)

// String returns the externally observable status value.
func (s ChunkStatus) String() string {
	switch s {
	case ChunkUploaded:
		return "uploaded"
	case ChunkEmbedding:
		return "embedding"
	case ChunkCompleted:
		return "completed"
	case ChunkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a member of the closed enumeration.
func (s ChunkStatus) Valid() bool {
	return s >= ChunkUploaded && s <= ChunkFailed
}

// ParseChunkStatus maps a stored status value back to the enumeration.
func ParseChunkStatus(raw string) (ChunkStatus, error) {
	for s := ChunkUploaded; s <= ChunkFailed; s++ {
		if s.String() == raw {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown chunk status %q", raw)
}

// Terminal reports whether the chunk has settled (completed or failed).
func (s ChunkStatus) Terminal() bool {
	return s == ChunkCompleted || s == ChunkFailed
}

// CanTransition reports whether moving from s to next is legal. Failed
// chunks may re-enter embedding (independent retry).
func (s ChunkStatus) CanTransition(next ChunkStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if next == ChunkFailed {
		return true
	}
	switch s {
	case ChunkUploaded, ChunkFailed:
		return next == ChunkEmbedding
	case ChunkEmbedding:
		return next == ChunkCompleted
	default:
		return false
	}
}

// chunkStatusesAllowing returns the stored values of every state from which
// next is reachable.
func chunkStatusesAllowing(next ChunkStatus) []string {
	var from []string
	for s := ChunkUploaded; s <= ChunkFailed; s++ {
		if s.CanTransition(next) {
			from = append(from, s.String())
		}
	}
	return from
}

// Role is a message author role. The set is closed and validated on write.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four allowed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// Document is an ingested piece of source material. A nil ConversationID
// means the document is globally visible; otherwise it is private to one
// conversation.
type Document struct {
	ID             uuid.UUID
	Text           string
	Status         DocumentStatus
	ConversationID *uuid.UUID
	OwnerID        uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentChunk is one token window of a document. Order is 1-based,
// strictly increasing within a document, and never reused after deletion:
// a re-chunk replaces the whole set.
type DocumentChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Text       string
	Order      int
	Status     ChunkStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewChunk is the input to ReplaceChunks.
type NewChunk struct {
	Order int
	Text  string
}

// Conversation groups an ordered set of messages and optionally some
// scoped documents.
type Conversation struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one immutable conversation turn. Creation order (created_at,
// then id) defines message ordering.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// Contact is a directory record served by the built-in lookup tools.
type Contact struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// ChunkMatch is one nearest-neighbour result with its cosine distance.
type ChunkMatch struct {
	Chunk    DocumentChunk
	Distance float64
}
