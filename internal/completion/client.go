// Package completion issues single-shot chat completion requests against
// an OpenAI-compatible endpoint, with retries governed by a per-purpose
// RetryPolicy.
//
// Each call moves through Attempting -> Success, or Attempting ->
// retryable failure -> (backoff) -> Attempting, or Attempting -> Failed.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/novtran/internal/config"
	"github.com/valpere/novtran/internal/logging"
	"github.com/valpere/novtran/internal/postprocess"
)

type Purpose string

const (
	PurposeTranslate    Purpose = "translate"
	PurposeExtractTerms Purpose = "extract_terms"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// Request is one logical completion. APIKey is chosen by the caller so a
// credential pool can rotate keys between calls. MinChars overrides the
// client's minimum response length when positive.
type Request struct {
	Prompt      string
	Temperature float64
	Purpose     Purpose
	APIKey      string
	MinChars    int
}

type Config struct {
	URL              string
	Model            string
	Timeout          time.Duration
	MinResponseChars int
	Policies         map[Purpose]RetryPolicy
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

type Client struct {
	url        string
	model      string
	timeout    time.Duration
	minChars   int
	policies   map[Purpose]RetryPolicy
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		url:        cfg.URL,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		minChars:   cfg.MinResponseChars,
		policies:   cfg.Policies,
		httpClient: cfg.HTTPClient,
		logger:     logging.OrNop(cfg.Logger),
	}
}

// NewFromConfig wires a Client from the application config.
func NewFromConfig(c *config.Config, logger *zap.Logger) *Client {
	return NewClient(Config{
		URL:              c.APIURL,
		Model:            c.Model,
		Timeout:          c.APITimeout,
		MinResponseChars: c.MinResponseChars,
		Policies:         PoliciesFromConfig(c.Retry),
		Logger:           logger,
	})
}

// PoliciesFromConfig builds the translate and extract_terms policies. They
// differ only in the ceiling for generic failures.
func PoliciesFromConfig(r config.RetryConfig) map[Purpose]RetryPolicy {
	build := func(generic int) RetryPolicy {
		return RetryPolicy{
			BaseDelay:         r.BaseDelay,
			MaxDelay:          r.MaxDelay,
			RateLimitMinDelay: r.RateLimitMinDelay,
			Ceilings: map[Kind]int{
				KindGeneric:   generic,
				KindTimeout:   r.Timeout,
				KindNetwork:   r.Network,
				KindMalformed: r.Malformed,
				KindRateLimit: r.RateLimit,
			},
		}
	}
	return map[Purpose]RetryPolicy{
		PurposeTranslate:    build(r.TranslateMax),
		PurposeExtractTerms: build(r.ExtractMax),
	}
}

func (c *Client) policy(p Purpose) RetryPolicy {
	if policy, ok := c.policies[p]; ok {
		return policy
	}
	return c.policies[PurposeTranslate]
}

// Complete runs req until it succeeds or its policy gives up. The returned
// text has thinking blocks and answer prefixes removed. Failures are
// returned as *Error.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	policy := c.policy(req.Purpose)
	minChars := c.minChars
	if req.MinChars > 0 {
		minChars = req.MinChars
	}

	for failures := 1; ; failures++ {
		text, err := c.attempt(ctx, req, minChars)
		if err == nil {
			return text, nil
		}

		if ctx.Err() != nil {
			return "", &Error{Kind: KindCanceled, Attempts: failures, Err: ctx.Err()}
		}
		err.Attempts = failures
		if !policy.ShouldRetry(err.Kind, failures) {
			return "", err
		}

		delay := policy.Delay(failures, err.Kind, err.RetryAfter)
		c.logger.Warn("completion attempt failed, retrying",
			zap.String("purpose", string(req.Purpose)),
			zap.String("kind", err.Kind.String()),
			zap.Int("attempt", failures),
			zap.Duration("backoff", delay),
			zap.Error(err.Err))

		if serr := policy.sleep(ctx, delay); serr != nil {
			return "", &Error{Kind: KindCanceled, Attempts: failures, Err: serr}
		}
	}
}

// Probe sends a trivial prompt once with apiKey and reports the outcome.
func (c *Client) Probe(ctx context.Context, apiKey string) error {
	_, err := c.attempt(ctx, Request{
		Prompt:      "Reply with the single word: ok",
		Temperature: 0,
		Purpose:     PurposeTranslate,
		APIKey:      apiKey,
	}, 1)
	if err != nil {
		err.Attempts = 1
		return err
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) attempt(ctx context.Context, req Request, minChars int) (string, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jsonData, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", &Error{Kind: KindGeneric, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", &Error{Kind: KindGeneric, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Err: apiError(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{
			Kind:       KindRateLimit,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        apiError(body),
		}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return "", &Error{Kind: KindTimeout, StatusCode: resp.StatusCode, Err: apiError(body)}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Kind: KindGeneric, StatusCode: resp.StatusCode, Err: apiError(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return "", &Error{Kind: KindGeneric, StatusCode: resp.StatusCode, Err: errors.New(chatResp.Error.Message)}
	}
	if len(chatResp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: errors.New("no choices in response")}
	}

	text := postprocess.Clean(chatResp.Choices[0].Message.Content)
	if n := len([]rune(text)); n < minChars {
		return "", &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("response too short (%d chars)", n)}
	}
	return text, nil
}

func transportError(err error) *Error {
	kind := KindOf(err)
	if kind == KindGeneric {
		kind = KindNetwork
	}
	return &Error{Kind: kind, Err: err}
}

// apiError extracts a readable message from an error response body.
func apiError(body []byte) error {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return errors.New(parsed.Error.Message)
	}
	msg := strings.TrimSpace(string(body))
	if r := []rune(msg); len(r) > 200 {
		msg = string(r[:200]) + "..."
	}
	if msg == "" {
		msg = "empty response body"
	}
	return errors.New(msg)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
