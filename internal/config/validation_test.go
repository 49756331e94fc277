package config

import (
	"errors"
	"testing"
)

// validConfig returns a Config that passes validation, for mutation in tests.
func validConfig() *Config {
	return &Config{
		Profile:           ProfileOllama,
		OllamaHost:        "http://localhost:11434",
		RetrievalLimit:    3,
		DistanceThreshold: 0.7,
		HistoryWindow:     20,
		WorkerCount:       4,
		ServerAddr:        ":8080",
		PostgresHost:      "localhost",
		PostgresPort:      5432,
		PostgresUser:      "lantern",
		PostgresPassword:  "pw",
		PostgresDBName:    "lantern",
		PostgresSSLMode:   "disable",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown profile",
			mutate:  func(c *Config) { c.Profile = "mistral" },
			wantErr: ErrUnknownProfile,
		},
		{
			name:    "openai profile without api key",
			mutate:  func(c *Config) { c.Profile = ProfileOpenAI; c.OpenAIAPIKey = "" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "history window zero",
			mutate:  func(c *Config) { c.HistoryWindow = 0 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgres,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 99999 },
			wantErr: ErrInvalidPostgres,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestProfiles_ChunkingAlwaysProgresses(t *testing.T) {
	for name, p := range profiles {
		if p.OverlapSize >= p.ChunkSize {
			t.Errorf("profile %q: overlap %d >= chunk size %d", name, p.OverlapSize, p.ChunkSize)
		}
	}
}

func TestProfiles_DimensionsMatchColumns(t *testing.T) {
	for name, p := range profiles {
		dim, ok := columnDims[p.EmbeddingColumn]
		if !ok {
			t.Fatalf("profile %q: column %q has no declared dimension", name, p.EmbeddingColumn)
		}
		if dim != p.EmbeddingDim {
			t.Errorf("profile %q: declares %d dims, column holds %d", name, p.EmbeddingDim, dim)
		}
	}
}

func TestActiveProfile(t *testing.T) {
	cfg := validConfig()
	p, err := cfg.ActiveProfile()
	if err != nil {
		t.Fatalf("ActiveProfile() error = %v", err)
	}
	if p.Name != ProfileOllama {
		t.Errorf("ActiveProfile().Name = %q, want %q", p.Name, ProfileOllama)
	}
	if p.EmbeddingColumn != ColumnOllama || p.EmbeddingDim != 768 {
		t.Errorf("unexpected ollama profile: %+v", p)
	}

	cfg.Profile = "nope"
	if _, err := cfg.ActiveProfile(); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("ActiveProfile() with unknown name = %v, want ErrUnknownProfile", err)
	}
}
