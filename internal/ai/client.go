// Package ai provides the vision analysis capabilities used during an
// inspection: free-text photo description and structured damage detection.
// Both are idempotent, side-effect-free analyses of an uploaded photo.
//
// Unavailability is a structured signal (ErrUnavailable), never a sentinel
// substring in returned text: callers degrade gracefully without parsing
// prose.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"fleetgate/platform/logger"
)

// ErrUnavailable signals that the analysis capability cannot be reached or
// is not configured. Callers treat it as a non-fatal, degraded condition.
var ErrUnavailable = errors.New("analysis capability unavailable")

// Verdict is the structured damage-detection result for one photo.
// Immutable once produced; a retake discards it.
type Verdict struct {
	HasDamage   bool     `json:"hasDamage"`
	Severity    string   `json:"severity"` // minor, moderate, severe
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Analyzer exposes the two vision capabilities consumed by the workflow.
type Analyzer interface {
	// Describe generates a short factual description of the photo.
	Describe(ctx context.Context, imageData []byte, stepLabel string) (string, error)
	// Analyze inspects the photo for vehicle damage.
	Analyze(ctx context.Context, imageData []byte, stepLabel string) (*Verdict, error)
}

// Config provides the settings needed by the client. Keys are injected
// explicitly so the workflow stays testable without network access.
type Config interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetAIRequestTimeout() time.Duration
	GetAIRequestsPerSecond() float64
	IsAIEnabled() bool
}

// Client calls the Gemini multimodal API for both capabilities.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a Gemini-backed analyzer. When no API key is configured
// the client is still usable: every call returns ErrUnavailable, which the
// workflow treats as offline degradation.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	c := &Client{
		model:   cfg.GetGeminiModel(),
		timeout: cfg.GetAIRequestTimeout(),
		limiter: rate.NewLimiter(rate.Limit(cfg.GetAIRequestsPerSecond()), 2),
		log:     log,
	}

	if !cfg.IsAIEnabled() {
		log.Warn("gemini api key not configured, analysis capabilities disabled")
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.client = client

	return c, nil
}

const describePromptTemplate = `You are documenting a vehicle condition inspection.
Describe this photo of the "%s" view in 2-3 factual sentences.
Mention visible condition, cleanliness, and anything notable.
Do not speculate about what is outside the frame. Answer in plain text.`

// Describe generates a short factual description of the photo.
func (c *Client) Describe(ctx context.Context, imageData []byte, stepLabel string) (string, error) {
	prompt := fmt.Sprintf(describePromptTemplate, stepLabel)

	text, err := c.generate(ctx, imageData, prompt)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("describe %s: %w", stepLabel, ErrUnavailable)
	}
	return text, nil
}

const analyzePromptTemplate = `You are a vehicle damage inspector examining the "%s" view.
Look for dents, scratches, cracks, broken parts, paint damage or missing elements.
Respond with a single JSON object, no prose, matching exactly:
{
  "hasDamage": true or false,
  "severity": "minor" | "moderate" | "severe",
  "description": "what you see",
  "location": "where on the vehicle",
  "suggestions": ["recommended action"]
}
If there is no visible damage, set hasDamage to false and severity to "minor".`

// Analyze inspects the photo for vehicle damage and returns a structured
// verdict.
func (c *Client) Analyze(ctx context.Context, imageData []byte, stepLabel string) (*Verdict, error) {
	prompt := fmt.Sprintf(analyzePromptTemplate, stepLabel)

	text, err := c.generate(ctx, imageData, prompt)
	if err != nil {
		return nil, err
	}

	verdict, err := ParseVerdict(text)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", stepLabel, err)
	}
	return verdict, nil
}

// generate sends one multimodal request and returns the response text.
func (c *Client) generate(ctx context.Context, imageData []byte, prompt string) (string, error) {
	if c.client == nil {
		return "", ErrUnavailable
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", classify(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageData, "image/jpeg"),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", classify(err)
	}

	return resp.Text(), nil
}

// classify maps transport-level failures to ErrUnavailable so callers can
// distinguish "offline" from a malformed response.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	return err
}

// Compile-time check that Client implements Analyzer.
var _ Analyzer = (*Client)(nil)
