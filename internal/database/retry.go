package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	connectRetries         = 4
	connectInitialInterval = 500 * time.Millisecond
	connectMaxInterval     = 5 * time.Second
)

func connectBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectInitialInterval
	b.MaxInterval = connectMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, connectRetries), ctx)
}

// pingWithRetry retries ping with exponential backoff so the server survives
// starting slightly before its backing services in compose setups.
func pingWithRetry(ctx context.Context, log zerolog.Logger, target string, ping func(context.Context) error) error {
	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return ping(ctx)
		},
		connectBackOff(ctx),
		func(err error, wait time.Duration) {
			log.Warn().
				Err(err).
				Str("target", target).
				Int("attempt", attempt).
				Dur("retry_in", wait).
				Msg("Ping failed, retrying")
		},
	)
}
