package config

import (
	"fmt"
)

// tokenizer encodings known to the tokenizer adapter.
var knownTokenizers = map[string]bool{
	"cl100k_base": true,
	"p50k_base":   true,
	"r50k_base":   true,
	"o200k_base":  true,
}

// Validate checks the configuration and returns the first problem found.
// All failures here are configuration errors: fatal, surfaced immediately,
// never retried.
func (c *Config) Validate() error {
	profile, ok := profiles[c.Profile]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, c.Profile)
	}

	if !knownTokenizers[profile.Tokenizer] {
		return fmt.Errorf("%w: profile %q uses unknown tokenizer %q",
			ErrUnknownProfile, profile.Name, profile.Tokenizer)
	}

	// overlap >= chunk size means the sliding window never advances.
	if profile.ChunkSize <= 0 || profile.OverlapSize < 0 || profile.OverlapSize >= profile.ChunkSize {
		return fmt.Errorf("%w: chunk_size=%d overlap_size=%d",
			ErrInvalidChunking, profile.ChunkSize, profile.OverlapSize)
	}

	dim, ok := columnDims[profile.EmbeddingColumn]
	if !ok {
		return fmt.Errorf("%w: unknown embedding column %q",
			ErrInvalidDimension, profile.EmbeddingColumn)
	}
	if dim != profile.EmbeddingDim {
		return fmt.Errorf("%w: profile %q declares %d, column %q holds %d",
			ErrInvalidDimension, profile.Name, profile.EmbeddingDim, profile.EmbeddingColumn, dim)
	}

	if c.Profile == ProfileOpenAI && c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai profile", ErrMissingAPIKey)
	}

	if c.RetrievalLimit <= 0 {
		return fmt.Errorf("retrieval_limit must be positive, got %d", c.RetrievalLimit)
	}
	if c.DistanceThreshold <= 0 || c.DistanceThreshold > 2 {
		return fmt.Errorf("distance_threshold must be in (0, 2], got %g", c.DistanceThreshold)
	}
	if c.HistoryWindow < 1 || c.HistoryWindow > 1000 {
		return fmt.Errorf("%w: must be in [1, 1000], got %d", ErrInvalidHistoryWindow, c.HistoryWindow)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgres)
	}

	return nil
}
