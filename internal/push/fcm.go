package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// fcmMaxBatch is the registration_ids limit of the legacy HTTP API.
const fcmMaxBatch = 1000

type FCMGateway struct {
	endpoint   string
	serverKey  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewFCMGateway(endpoint, serverKey string) *FCMGateway {
	return &FCMGateway{
		endpoint:   endpoint,
		serverKey:  serverKey,
		httpClient: newHTTPClient(),
		limiter:    newLimiter(),
	}
}

type fcmRequest struct {
	RegistrationIDs []string        `json:"registration_ids"`
	Notification    fcmNotification `json:"notification"`
	Data            map[string]any  `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Send posts the payload in batches of at most 1000 tokens and sums the
// per-batch success counts.
func (g *FCMGateway) Send(ctx context.Context, tokens []string, p Payload) (int, error) {
	delivered := 0
	var errs []error
	for start := 0; start < len(tokens); start += fcmMaxBatch {
		end := min(start+fcmMaxBatch, len(tokens))
		n, err := g.sendBatch(ctx, tokens[start:end], p)
		delivered += n
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return delivered, errors.Join(errs...)
}

func (g *FCMGateway) sendBatch(ctx context.Context, tokens []string, p Payload) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("fcm rate limiter: %w", err)
	}

	body, err := json.Marshal(fcmRequest{
		RegistrationIDs: tokens,
		Notification:    fcmNotification{Title: p.Title, Body: p.Body},
		Data:            p.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("fcm marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+g.serverKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("fcm read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fcm status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out fcmResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("fcm parse response: %w", err)
	}
	return out.Success, nil
}
