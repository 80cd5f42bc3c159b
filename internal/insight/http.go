package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reclaim/internal/models"
)

// HTTPProvider asks a remote analysis service for insight text.
type HTTPProvider struct {
	url         string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

// NewHTTPProvider builds a client limited to ratePerSec requests per second.
func NewHTTPProvider(url, apiKey string, ratePerSec float64) *HTTPProvider {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &HTTPProvider{
		url:         url,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), defaultBurst),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

type generateRequest struct {
	UserID string             `json:"user_id"`
	Kind   models.InsightKind `json:"kind"`
}

type generateResponse struct {
	Insight string `json:"insight"`
}

// Generate retries transport failures, 429 and 5xx answers with exponential backoff.
func (p *HTTPProvider) Generate(ctx context.Context, userID string, kind models.InsightKind) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := p.doRequest(ctx, generateRequest{UserID: userID, Kind: kind})
		if err == nil {
			return text, nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (p *HTTPProvider) doRequest(ctx context.Context, body generateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("insight request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return "", fmt.Errorf("insight response exceeds %d bytes", maxResponseBytes)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return "", nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &retryableError{err: errors.New("rate limited (429)")}
	case resp.StatusCode >= 500:
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, bytes.TrimSpace(raw))}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("insight API error (%d): %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return strings.TrimSpace(out.Insight), nil
}
