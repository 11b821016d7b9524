package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Saver writes the browser storage state (cookies included) to path.
type Saver interface {
	SaveState(ctx context.Context, path string) error
}

// Persist saves the storage state every interval and once more when ctx is
// done, so the next run can skip the login form.
func Persist(ctx context.Context, s Saver, path string, interval time.Duration, logger zerolog.Logger) {
	if path == "" {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	save := func(ctx context.Context) {
		if err := s.SaveState(ctx, path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("save cookies")
			return
		}
		logger.Debug().Str("path", path).Msg("cookies saved")
	}

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			save(final)
			cancel()
			return
		case <-ticker.C:
			save(ctx)
		}
	}
}
