package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_allowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("ip:1.2.3.4"), "request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("ip:1.2.3.4"), "request over the limit should be blocked")
}

func TestRateLimiter_keysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1)

	assert.True(t, rl.Allow("ip:1.1.1.1"))
	assert.False(t, rl.Allow("ip:1.1.1.1"))
	assert.True(t, rl.Allow("ip:2.2.2.2"), "a different key has its own window")
}

func TestRateLimiter_windowSlides(t *testing.T) {
	rl := NewRateLimiter(50*time.Millisecond, 1)

	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("k"), "expired entries should free the window")
}

func TestGetIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1", GetIPKey(req), "ephemeral port is stripped")

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", GetIPKey(req), "first forwarded hop wins")
}

// Two connections from the same host share one bucket.
func TestGetIPKey_sameHostDifferentPorts(t *testing.T) {
	req1 := httptest.NewRequest(http.MethodPost, "/", nil)
	req1.RemoteAddr = "10.0.0.1:50001"
	req2 := httptest.NewRequest(http.MethodPost, "/", nil)
	req2.RemoteAddr = "10.0.0.1:50002"
	assert.Equal(t, GetIPKey(req1), GetIPKey(req2))

	req3 := httptest.NewRequest(http.MethodPost, "/", nil)
	req3.RemoteAddr = "no-port-here"
	assert.Equal(t, "ip:no-port-here", GetIPKey(req3), "unparseable address is used as-is")
}
