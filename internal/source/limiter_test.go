package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHostLimiterUnlimitedWhenRPSNotSet(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.wait(ctx, "https://api.example.com/jobs"))
	}
}

func TestHostLimiterBucketsArePerHost(t *testing.T) {
	t.Parallel()

	// One token per five seconds. Draining host A's burst must not slow
	// host B down, but a second request to host A cannot fit the deadline.
	l := newHostLimiter(0.2, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, l.wait(ctx, "https://a.example.com/jobs"))
	require.NoError(t, l.wait(ctx, "https://b.example.com/jobs"))
	require.Error(t, l.wait(ctx, "https://a.example.com/more"))
}

func TestHostLimiterCanceledContext(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(0.1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.wait(ctx, "https://a.example.com/jobs"))

	cancel()
	err := l.wait(ctx, "https://a.example.com/jobs")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit wait for a.example.com")
}

func TestHostLimiterUnparsableURLFallsBackToSharedBucket(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(0, 0)
	require.NoError(t, l.wait(context.Background(), "::not-a-url"))
}
