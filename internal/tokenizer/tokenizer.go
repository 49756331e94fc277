// Package tokenizer wraps a byte-pair-encoding tokenizer behind a small
// Codec interface so callers (chiefly the chunker) can be tested without
// loading a real vocabulary.
package tokenizer

import (
	"errors"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// ErrUnknownEncoding indicates the configured vocabulary name does not
// resolve to a known BPE encoding. This is a configuration error, fatal at
// startup.
var ErrUnknownEncoding = errors.New("unknown tokenizer encoding")

// Codec encodes text to token ids and decodes ids back to text.
//
// Encode is deterministic and pure. Decode round-trips any token-aligned
// slice of an Encode result, though a slice ending mid multi-byte sequence
// may decode to a string that needs trimming.
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Adapter implements Codec on top of a tiktoken BPE encoding.
type Adapter struct {
	enc *tiktoken.Tiktoken
}

// New resolves the named encoding (e.g. "cl100k_base", "p50k_base").
// Unknown names return ErrUnknownEncoding.
func New(encoding string) (*Adapter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownEncoding, encoding, err)
	}
	return &Adapter{enc: enc}, nil
}

// Encode converts text into a sequence of token ids.
func (a *Adapter) Encode(text string) []int {
	return a.enc.Encode(text, nil, nil)
}

// Decode converts token ids back into text.
func (a *Adapter) Decode(tokens []int) string {
	return a.enc.Decode(tokens)
}
