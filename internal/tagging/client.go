package tagging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/moodboard/backend/internal/logging"
)

// Config configures the tagging client.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration

	// RequestsPerMinute paces calls to the endpoint. Zero disables pacing.
	RequestsPerMinute int

	// BreakerFailures consecutive failures open the breaker for BreakerOpen.
	BreakerFailures uint32
	BreakerOpen     time.Duration

	HTTPClient *http.Client
}

// DefaultConfig returns the client defaults for endpoint and model.
func DefaultConfig(endpoint, model string) Config {
	return Config{
		Endpoint:          endpoint,
		Model:             model,
		Timeout:           60 * time.Second,
		RequestsPerMinute: 20,
		BreakerFailures:   5,
		BreakerOpen:       30 * time.Second,
	}
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg     Config
	vocab   *Vocabulary
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]string]
	log     zerolog.Logger
}

// NewClient creates a client. A nil vocab uses DefaultVocabulary.
func NewClient(cfg Config, vocab *Vocabulary) *Client {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	c := &Client{
		cfg:     cfg,
		vocab:   vocab,
		http:    httpClient,
		limiter: limiter,
		log:     logging.Component("tagging"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:        "tagging",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the endpoint.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("tagging breaker state changed")
		},
	})
	return c
}

// State reports the breaker state, e.g. for the health endpoint.
func (c *Client) State() string {
	return c.breaker.State().String()
}

// Tag asks the endpoint for tags. Videos are not sent and get no tags.
func (c *Client) Tag(ctx context.Context, media []byte, mimeType, language string) ([]string, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for tagging slot: %w", err)
	}

	prompt, lang := c.vocab.Prompt(language)
	tags, err := c.breaker.Execute(func() ([]string, error) {
		return c.call(ctx, media, mimeType, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, err
	}

	tags = Normalize(tags, c.vocab.MaxTags)
	c.log.Debug().Str("language", lang).Int("tags", len(tags)).Msg("media tagged")
	return tags, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
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

func (c *Client) call(ctx context.Context, media []byte, mimeType, prompt string) ([]string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(media),
				}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding tagging request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building tagging request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tagging request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("tagging endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding tagging response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("tagging response has no choices")
	}
	return ParseTags(out.Choices[0].Message.Content), nil
}
