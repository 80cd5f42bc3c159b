package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// APNsGateway talks to the APNs provider API, one request per device token.
type APNsGateway struct {
	endpoint   string
	authToken  string
	topic      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewAPNsGateway(endpoint, authToken, topic string) *APNsGateway {
	return &APNsGateway{
		endpoint:   strings.TrimRight(endpoint, "/"),
		authToken:  authToken,
		topic:      topic,
		httpClient: newHTTPClient(),
		limiter:    newLimiter(),
	}
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send counts the tokens APNs answered 200 for. It errors only when no token
// was accepted.
func (g *APNsGateway) Send(ctx context.Context, tokens []string, p Payload) (int, error) {
	body, err := g.body(p)
	if err != nil {
		return 0, err
	}

	delivered := 0
	var lastErr error
	for _, token := range tokens {
		if err := g.sendOne(ctx, token, body); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return 0, lastErr
	}
	return delivered, nil
}

func (g *APNsGateway) body(p Payload) ([]byte, error) {
	doc := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		doc[k] = v
	}
	doc["aps"] = map[string]any{
		"alert": apnsAlert{Title: p.Title, Body: p.Body},
		"sound": "default",
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("apns marshal: %w", err)
	}
	return body, nil
}

func (g *APNsGateway) sendOne(ctx context.Context, token string, body []byte) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("apns rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/3/device/"+token, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("apns request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+g.authToken)
	req.Header.Set("apns-push-type", "alert")
	if g.topic != "" {
		req.Header.Set("apns-topic", g.topic)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apns send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("apns status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
