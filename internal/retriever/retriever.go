// Package retriever turns query embeddings into ranked document context.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lantern-ai/lantern/internal/config"
	"github.com/lantern-ai/lantern/internal/store"
)

// ErrDimensionMismatch is returned when a query vector does not match the
// active profile's embedding dimension. This is a configuration error and
// is caught before any query runs.
var ErrDimensionMismatch = errors.New("retriever: query vector dimension mismatch")

// ScopeKind selects which documents a search may see.
type ScopeKind int

const (
	// ScopeGlobal matches only documents not attached to any conversation.
	ScopeGlobal ScopeKind = iota
	// ScopeConversation matches only documents attached to one conversation.
	ScopeConversation
	// ScopeUnion matches a conversation's documents plus global ones.
	ScopeUnion
)

// Scope is a retrieval visibility filter.
type Scope struct {
	Kind           ScopeKind
	ConversationID uuid.UUID
}

// ConversationScope restricts search to one conversation's documents.
func ConversationScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeConversation, ConversationID: id}
}

// UnionScope searches a conversation's documents and global documents
// together.
func UnionScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeUnion, ConversationID: id}
}

// GlobalScope searches only documents visible to every conversation.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// Searcher is the slice of the store the retriever needs.
type Searcher interface {
	SimilarChunks(ctx context.Context, column string, vec pgvector.Vector, conversationID *uuid.UUID, includeGlobal bool, limit int) ([]store.ChunkMatch, error)
}

// Retriever ranks embedded chunks by cosine distance to a query vector.
type Retriever struct {
	searcher  Searcher
	profile   config.Profile
	limit     int
	threshold float64
	logger    *slog.Logger
}

// New builds a Retriever using the active embedding profile. The limit
// caps result count; threshold is the maximum cosine distance a match may
// have (matches at exactly the threshold are kept).
func New(searcher Searcher, profile config.Profile, limit int, threshold float64, logger *slog.Logger) *Retriever {
	return &Retriever{
		searcher:  searcher,
		profile:   profile,
		limit:     limit,
		threshold: threshold,
		logger:    logger,
	}
}

// FindSimilar returns up to the configured limit of completed chunks within
// scope, nearest first. Results past the distance threshold are dropped.
// Ties on distance break by chunk order so results are deterministic.
func (r *Retriever) FindSimilar(ctx context.Context, query []float32, scope Scope) ([]store.ChunkMatch, error) {
	if len(query) != r.profile.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d, profile %q wants %d",
			ErrDimensionMismatch, len(query), r.profile.Name, r.profile.EmbeddingDim)
	}

	var conversationID *uuid.UUID
	includeGlobal := true
	switch scope.Kind {
	case ScopeConversation:
		conversationID = &scope.ConversationID
		includeGlobal = false
	case ScopeUnion:
		conversationID = &scope.ConversationID
	case ScopeGlobal:
	}

	matches, err := r.searcher.SimilarChunks(ctx, r.profile.EmbeddingColumn,
		pgvector.NewVector(query), conversationID, includeGlobal, r.limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	filtered := matches[:0]
	for _, m := range matches {
		if m.Distance <= r.threshold {
			filtered = append(filtered, m)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Distance != filtered[j].Distance {
			return filtered[i].Distance < filtered[j].Distance
		}
		return filtered[i].Chunk.Order < filtered[j].Chunk.Order
	})

	if len(filtered) > r.limit {
		filtered = filtered[:r.limit]
	}

	r.logger.Debug("retrieved context",
		"candidates", len(matches), "kept", len(filtered), "scope", scope.Kind)
	return filtered, nil
}
