package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is the model the original edge function called.
const DefaultModel = "gemini-2.0-flash-exp"

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	Model      string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini calls the Gemini API through google.golang.org/genai. The API key is
// looked up on every call so a key stored while the server runs is picked up.
type Gemini struct {
	cfg GeminiConfig
	key func() (string, error)
}

// NewGemini creates a generator. key returns "" when no key is configured.
func NewGemini(cfg GeminiConfig, key func() (string, error)) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1beta"
	}
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Gemini{cfg: cfg, key: key}
}

// Model reports the configured model name.
func (g *Gemini) Model() string { return g.cfg.Model }

func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	apiKey, err := g.key()
	if err != nil {
		return "", fmt.Errorf("resolve api key: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    g.cfg.BaseURL,
			APIVersion: g.cfg.APIVersion,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(p.Text)}
	if p.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(p.Image.Data, p.Image.MIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, contents, nil)
	if err != nil {
		return "", upstreamError(err)
	}
	return firstText(resp), nil
}

func upstreamError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Code: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &UpstreamError{Code: apiErrPtr.Code, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UpstreamError{Err: err}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return ""
	}
	return c.Content.Parts[0].Text
}
