package provider

import (
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"

	"github.com/lantern-ai/lantern/internal/config"
	"github.com/lantern-ai/lantern/internal/log"
)

// Client wraps an OpenAI-compatible API client bound to one retrieval
// profile. Both the OpenAI and Ollama profiles go through this client;
// Ollama exposes an OpenAI-compatible API under /v1.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	api     openai.Client
	profile config.Profile
	limiter *rate.Limiter
	logger  log.Logger
}

// NewClient creates a Client for the given configuration and its active
// profile. The rate limiter bounds embedding traffic; chat calls are
// request-scoped and not limited here.
func NewClient(cfg *config.Config, profile config.Profile, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}

	var opts []option.RequestOption
	switch profile.Name {
	case config.ProfileOllama:
		base := strings.TrimSuffix(cfg.OllamaHost, "/") + "/v1"
		opts = append(opts,
			option.WithBaseURL(base),
			option.WithAPIKey("ollama"), // Ollama accepts any bearer token
		)
	default:
		opts = append(opts, option.WithAPIKey(cfg.OpenAIAPIKey))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		profile: profile,
		// 10 embedding calls/sec sustained, burst of 30.
		limiter: rate.NewLimiter(10, 30),
		logger:  logger,
	}
}

// Profile returns the retrieval profile this client is bound to.
func (c *Client) Profile() config.Profile {
	return c.profile
}
