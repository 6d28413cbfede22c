package api

import (
	"context"
	"testing"
	"time"

	"salonbook/internal/config"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "reader", Name: "widget", Permissions: []string{permReadAvailability}},
				{Key: "admin", Name: "backoffice"},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}
}

func TestAuthInterceptor(t *testing.T) {
	auth := newAuthenticator(authConfig())
	interceptor := auth.AuthUnaryInterceptor()

	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}

	read := &grpc.UnaryServerInfo{FullMethod: methodGetAvailability}
	write := &grpc.UnaryServerInfo{FullMethod: methodCreateBooking}

	withKey := func(key string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", key))
	}

	t.Run("Success", func(t *testing.T) {
		resp, err := interceptor(withKey("reader"), "req", read, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", read, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := interceptor(withKey("nope"), "req", read, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		_, err := interceptor(withKey("reader"), "req", write, handler)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		_, err := interceptor(withKey("admin"), "req", write, handler)
		assert.NoError(t, err)
	})
}

func TestAuthDisabled(t *testing.T) {
	cfg := authConfig()
	cfg.Auth.Enabled = false
	auth := newAuthenticator(cfg)

	assert.NoError(t, auth.authorize("", permWriteBookings))
	assert.Equal(t, apiKeyHeaderDefault, newAuthenticator(config.APIConfig{}).header())
}

func TestRateLimiter(t *testing.T) {
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	auth := newAuthenticator(cfg)
	interceptor := auth.AuthUnaryInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "reader"))
	info := &grpc.UnaryServerInfo{FullMethod: methodGetAvailability}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	for i := 0; i < 2; i++ {
		_, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
	}
	_, err := interceptor(ctx, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Other clients keep their own bucket.
	assert.True(t, auth.limiter.allow("someone-else"))

	unlimited := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.allow("k"))
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	lim := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 1})
	lim.now = func() time.Time { return now }

	assert.True(t, lim.allow("a"))
	assert.False(t, lim.allow("a"))
	assert.True(t, lim.allow("b"))
	assert.Equal(t, 2, lim.size())

	now = now.Add(clientIdleExpiry / 2)
	assert.True(t, lim.allow("b"))
	now = now.Add(clientIdleExpiry / 2)
	assert.True(t, lim.allow("b"))
	assert.Equal(t, 1, lim.size(), "idle client dropped")

	assert.True(t, lim.allow("a"), "evicted client starts with a full bucket")
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	chain := ChainUnaryInterceptors(mk("a"), mk("b"))
	_, err := chain(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
