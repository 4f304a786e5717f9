package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OmniLens/OmniLens-sub000/pkg/config"
)

func TestTierLimiterAllow(t *testing.T) {
	limiter := newTierLimiter(config.RateLimitTier{RequestsPerMinute: 3})

	// Each IP gets its own bucket sized to the per-minute budget.
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow("10.0.0.1"), "request %d", i)
	}

	assert.False(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		expected   string
	}{
		{
			name:       "socket address",
			remoteAddr: "192.0.2.7:51234",
			expected:   "192.0.2.7",
		},
		{
			name:       "socket address without port",
			remoteAddr: "192.0.2.7",
			expected:   "192.0.2.7",
		},
		{
			name:       "forwarded chain takes the first hop",
			remoteAddr: "10.0.0.1:80",
			forwarded:  "203.0.113.9, 10.0.0.1",
			expected:   "203.0.113.9",
		},
		{
			name:       "single forwarded address",
			remoteAddr: "10.0.0.1:80",
			forwarded:  "203.0.113.9",
			expected:   "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr

			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			assert.Equal(t, tt.expected, clientIP(req))
		})
	}
}
