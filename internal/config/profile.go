package config

// Profile names selectable via the "profile" configuration key.
const (
	ProfileOpenAI = "openai"
	ProfileOllama = "ollama"
)

// Embedding column identifiers. Each column has a fixed dimensionality;
// vectors from different columns are never compared.
const (
	ColumnOpenAI = "embedding_openai"
	ColumnOllama = "embedding_ollama"
)

// Profile is an immutable, named retrieval configuration. All fields switch
// together as one unit; components receive the resolved Profile value and
// never consult global state.
type Profile struct {
	Name            string
	EmbeddingModel  string
	ChatModel       string
	Tokenizer       string
	ChunkSize       int
	OverlapSize     int
	EmbeddingColumn string
	EmbeddingDim    int
}

// profiles defines the supported retrieval profiles. Dimensions match the
// vector columns in the schema (migration 0001).
var profiles = map[string]Profile{
	ProfileOpenAI: {
		Name:            ProfileOpenAI,
		EmbeddingModel:  "text-embedding-3-small",
		ChatModel:       "gpt-4o-mini",
		Tokenizer:       "cl100k_base",
		ChunkSize:       500,
		OverlapSize:     50,
		EmbeddingColumn: ColumnOpenAI,
		EmbeddingDim:    1536,
	},
	ProfileOllama: {
		Name:            ProfileOllama,
		EmbeddingModel:  "nomic-embed-text",
		ChatModel:       "llama3",
		Tokenizer:       "p50k_base",
		ChunkSize:       300,
		OverlapSize:     30,
		EmbeddingColumn: ColumnOllama,
		EmbeddingDim:    768,
	},
}

// columnDims maps embedding columns to their schema dimensionality.
var columnDims = map[string]int{
	ColumnOpenAI: 1536,
	ColumnOllama: 768,
}
