// Package chunker splits document text into overlapping token windows.
//
// Chunking is the single sequential pass that assigns chunk order values
// for a document; it is deterministic for identical input, so re-chunking
// the same text always yields the same ordered chunk sequence.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lantern-ai/lantern/internal/tokenizer"
)

// ErrOverlapTooLarge indicates overlap_size >= chunk_size, which would keep
// the sliding window from ever advancing. Rejected at construction.
var ErrOverlapTooLarge = errors.New("overlap size must be smaller than chunk size")

// Chunk is one token window of a document. Order is 1-based and strictly
// increasing within a document.
type Chunk struct {
	Order int
	Text  string
}

// Chunker produces overlapping token-window chunks using a Codec.
type Chunker struct {
	codec     tokenizer.Codec
	chunkSize int
	overlap   int
}

// New creates a Chunker. chunkSize and overlap are in tokens.
func New(codec tokenizer.Codec, chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_size=%d overlap_size=%d", ErrOverlapTooLarge, chunkSize, overlap)
	}
	return &Chunker{codec: codec, chunkSize: chunkSize, overlap: overlap}, nil
}

// Split encodes text once and slides a chunk-sized window over the token
// sequence with stride chunkSize-overlap. Windows that trim to an empty
// string are skipped without consuming an order value.
func (c *Chunker) Split(text string) []Chunk {
	tokens := c.codec.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.chunkSize - c.overlap
	var chunks []Chunk
	order := 1

	for start := 0; start < len(tokens); start += stride {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		if len(window) == 0 {
			break
		}

		chunkText := strings.TrimSpace(c.codec.Decode(window))
		if chunkText == "" {
			continue
		}

		chunks = append(chunks, Chunk{Order: order, Text: chunkText})
		order++
	}

	return chunks
}
