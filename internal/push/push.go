// Package push delivers notifications to the platform push gateways.
package push

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"reclaim/internal/config"
	"reclaim/internal/models"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 20 // requests per second
	defaultBurst     = 5
)

// Payload is what a device displays, plus the deep-link data it receives.
type Payload struct {
	Title string
	Body  string
	Data  map[string]any
}

// Gateway sends one payload to a batch of device tokens of a single platform.
// It returns how many deliveries the gateway accepted; a non-nil error means at
// least part of the batch could not be attempted or was rejected wholesale.
type Gateway interface {
	Send(ctx context.Context, tokens []string, p Payload) (int, error)
}

// Gateways maps each platform to its configured gateway. A missing entry means
// the platform has no credentials and its tokens are skipped.
type Gateways map[models.Platform]Gateway

// NewGateways registers the gateways whose credentials are present.
func NewGateways(cfg config.PushConfig) Gateways {
	gw := Gateways{}
	if cfg.FCMServerKey != "" {
		gw[models.PlatformAndroid] = NewFCMGateway(cfg.FCMEndpoint, cfg.FCMServerKey)
	}
	if cfg.APNsEndpoint != "" && cfg.APNsAuthToken != "" {
		gw[models.PlatformIOS] = NewAPNsGateway(cfg.APNsEndpoint, cfg.APNsAuthToken, cfg.APNsTopic)
	}
	return gw
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst)
}
