package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v2"
)

// ErrDimensionMismatch indicates the provider returned a vector whose
// dimensionality does not match the active profile's embedding column.
// This is a configuration error, not a transient failure.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embed converts text into a fixed-length vector using the profile's
// embedding model. Rate-limit errors (HTTP 429) are retried with
// exponential backoff; all other failures are returned to the caller,
// which records them per-chunk without aborting sibling work.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var vector []float32

	operation := func() error {
		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfString: openai.String(text),
			},
			Model: openai.EmbeddingModel(c.profile.EmbeddingModel),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // retry with backoff
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("empty embedding response"))
		}
		vector = toFloat32(resp.Data[0].Embedding)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("embedding %q model call: %w", c.profile.EmbeddingModel, err)
	}

	if len(vector) != c.profile.EmbeddingDim {
		return nil, fmt.Errorf("%w: model %q returned %d dims, column %q holds %d",
			ErrDimensionMismatch, c.profile.EmbeddingModel, len(vector),
			c.profile.EmbeddingColumn, c.profile.EmbeddingDim)
	}

	return vector, nil
}

// isRateLimitError reports whether err is an HTTP 429 from the provider.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vector for pgvector storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
