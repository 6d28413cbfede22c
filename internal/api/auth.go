package api

import (
	"crypto/subtle"
	"errors"
	"strings"

	"salonbook/internal/config"
)

const (
	apiKeyHeaderDefault  = "x-api-key"
	permReadAvailability = "read:availability"
	permReadBookings     = "read:bookings"
	permWriteBookings    = "write:bookings"
	clientKeyUnknown     = "unknown"
	requestIDHeader      = "X-Request-ID"
	requestIDMetadataKey = "x-request-id"
)

var (
	errMissingAPIKey    = errors.New("missing api key header")
	errInvalidAPIKey    = errors.New("invalid api key")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// authenticator checks API keys and permissions for both transports.
type authenticator struct {
	cfg     config.APIConfig
	clients []config.APIClientKey
	limiter *rateLimiter
}

func newAuthenticator(cfg config.APIConfig) *authenticator {
	return &authenticator{
		cfg:     cfg,
		clients: cfg.Auth.APIKeys,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *authenticator) header() string {
	h := strings.ToLower(strings.TrimSpace(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

// authorize returns nil when auth is off or apiKey grants permission.
func (a *authenticator) authorize(apiKey, permission string) error {
	if !a.cfg.Auth.Enabled {
		return nil
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errMissingAPIKey
	}

	client, ok := a.lookup(apiKey)
	if !ok {
		return errInvalidAPIKey
	}
	return checkPermissions(client, permission)
}

func (a *authenticator) lookup(apiKey string) (config.APIClientKey, bool) {
	var (
		found config.APIClientKey
		ok    bool
	)
	for _, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(c.Key), []byte(apiKey)) == 1 {
			found, ok = c, true
		}
	}
	return found, ok
}

// checkPermissions treats an empty permission list as allow-all.
func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func (a *authenticator) rateLimit(clientKey string) error {
	if !a.limiter.allow(clientKey) {
		return errRateLimited
	}
	return nil
}
