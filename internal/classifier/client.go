// Package classifier sends waste photos to a vision model and turns its
// answer into a priced category.
package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ecocycle/internal/catalog"
)

// NonRecyclable is reported instead of the category when it pays nothing.
const NonRecyclable = "Non-recyclable"

const prompt = `You are a waste expert. Classify the image into:
Plastic, Paper, Metal, Glass, Organic, Other

Return ONLY JSON:
{
  "class": "Plastic",
  "confidence": 0.95,
  "reasoning": "Clear plastic bottle with label"
}
`

var (
	ErrCircuitOpen   = errors.New("classifier unavailable: circuit open")
	ErrUpstream      = errors.New("classifier upstream error")
	ErrNotConfigured = errors.New("classifier API key not configured")
)

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	TestModel  string
	Timeout    time.Duration
	MaxRetries int
	Breaker    BreakerConfig
	// Backoff overrides CalculateBackoff, mostly for tests.
	Backoff func(retry int) time.Duration
}

// Debug carries the model's own explanation.
type Debug struct {
	Reasoning string `json:"reasoning"`
	Model     string `json:"model"`
}

// Result is what the classification endpoint returns.
type Result struct {
	Category   string          `json:"-"`
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence"`
	Recyclable bool            `json:"recyclable"`
	PricePerKg decimal.Decimal `json:"price_per_kg"`
	Debug      Debug           `json:"debug"`
}

// Client talks to an OpenAI-compatible chat completions API (Groq by default).
type Client struct {
	http       *resty.Client
	catalog    *catalog.Catalog
	apiKey     string
	model      string
	testModel  string
	maxRetries int
	backoff    func(int) time.Duration
	breaker    *CircuitBreaker
}

// New builds a Client.
func New(opts Options, cat *catalog.Catalog) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff == nil {
		opts.Backoff = CalculateBackoff
	}
	if opts.Breaker.Name == "" {
		opts.Breaker = DefaultBreakerConfig("classifier")
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		rc.SetAuthToken(opts.APIKey)
	}
	return &Client{
		http:       rc,
		catalog:    cat,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		testModel:  opts.TestModel,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		breaker:    NewCircuitBreaker(opts.Breaker),
	}
}

// Model returns the vision model name.
func (c *Client) Model() string { return c.model }

// BreakerState exposes the breaker for health output.
func (c *Client) BreakerState() State { return c.breaker.State() }

// Classify asks the vision model what the photo shows and prices the answer.
func (c *Client) Classify(ctx context.Context, image []byte, contentType string) (*Result, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		Temperature: 0.1,
		MaxTokens:   300,
	}
	text, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	category, confidence, reasoning := ParseReply(text)
	if !c.catalog.Known(category) {
		category = catalog.OtherCategory
	}
	price := c.catalog.PriceFor(category)
	res := &Result{
		Category:   category,
		Class:      category,
		Confidence: round2(confidence),
		Recyclable: price.IsPositive(),
		PricePerKg: price,
		Debug:      Debug{Reasoning: reasoning, Model: c.model},
	}
	if !res.Recyclable {
		res.Class = NonRecyclable
	}
	return res, nil
}

// Ping sends a tiny text prompt to the test model and returns its reply.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.complete(ctx, chatRequest{
		Model:     c.testModel,
		Messages:  []chatMessage{{Role: "user", Content: "Hi"}},
		MaxTokens: 10,
	})
}

// complete runs one chat completion with retries and the circuit breaker.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return "", err
			}
		}
		if !c.breaker.Allow() {
			return "", ErrCircuitOpen
		}

		var out chatResponse
		var apiErr apiError
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			SetError(&apiErr).
			Post("/chat/completions")

		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.breaker.RecordFailure()
			lastErr = fmt.Errorf("%w: %v", ErrUpstream, err)
			logrus.WithFields(logrus.Fields{"attempt": attempt, "error": err.Error()}).Warn("Classifier request failed")
			continue
		}

		status := resp.StatusCode()
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			c.breaker.RecordFailure()
			lastErr = fmt.Errorf("%w: status %d: %s", ErrUpstream, status, apiErr.message(resp))
			logrus.WithFields(logrus.Fields{"attempt": attempt, "status": status}).Warn("Classifier upstream unavailable")
			continue
		}
		if resp.IsError() {
			// the request itself is wrong; retrying will not help
			return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, status, apiErr.message(resp))
		}

		c.breaker.RecordSuccess()
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("%w: empty choices", ErrUpstream)
		}
		return out.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e apiError) message(resp *resty.Response) string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(resp.String())
}
