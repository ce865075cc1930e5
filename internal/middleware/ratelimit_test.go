package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, length time.Duration, now *time.Time) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		enabled: true,
		limit:   limit,
		length:  length,
		windows: make(map[string]*window),
		logger:  logrus.New(),
		now:     func() time.Time { return *now },
	}
}

func TestAllowWithinLimit(t *testing.T) {
	now := time.Now()
	rl := newTestLimiter(10, time.Minute, &now)

	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow("1.2.3.4"), "request %d should be admitted", i+1)
	}
	require.False(t, rl.Allow("1.2.3.4"), "11th request within the window should be rejected")
}

func TestWindowExpiryResetsCount(t *testing.T) {
	now := time.Now()
	rl := newTestLimiter(10, time.Minute, &now)

	for i := 0; i < 11; i++ {
		rl.Allow("1.2.3.4")
	}
	require.False(t, rl.Allow("1.2.3.4"))

	now = now.Add(61 * time.Second)
	require.True(t, rl.Allow("1.2.3.4"), "a call after the window elapses starts a fresh window")

	// The fresh window has budget again
	for i := 0; i < 9; i++ {
		require.True(t, rl.Allow("1.2.3.4"))
	}
	require.False(t, rl.Allow("1.2.3.4"))
}

func TestIdentitiesAreIndependent(t *testing.T) {
	now := time.Now()
	rl := newTestLimiter(1, time.Minute, &now)

	require.True(t, rl.Allow("1.2.3.4"))
	require.False(t, rl.Allow("1.2.3.4"))
	require.True(t, rl.Allow("5.6.7.8"))
}

func TestEmptyIdentityUsesFallback(t *testing.T) {
	now := time.Now()
	rl := newTestLimiter(1, time.Minute, &now)

	require.True(t, rl.Allow(""))
	require.False(t, rl.Allow(fallbackIdentity))
}

func TestReset(t *testing.T) {
	now := time.Now()
	rl := newTestLimiter(1, time.Minute, &now)

	require.True(t, rl.Allow("1.2.3.4"))
	require.False(t, rl.Allow("1.2.3.4"))

	rl.Reset("1.2.3.4")
	require.True(t, rl.Allow("1.2.3.4"))
}

func TestDisabledLimiterAdmitsEverything(t *testing.T) {
	rl := &FixedWindowLimiter{enabled: false}
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("1.2.3.4"))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "forwarded first hop",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"},
			want:       "1.2.3.4",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "5.6.7.8"},
			want:       "5.6.7.8",
		},
		{
			name:       "remote addr host",
			remoteAddr: "9.9.9.9:5555",
			want:       "9.9.9.9",
		},
		{
			name: "fallback",
			want: fallbackIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, "/chat/o/b", nil)
			require.NoError(t, err)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, ClientIP(req))
		})
	}
}
