package editor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultAutoSaveInterval = 30 * time.Second

// AutoSave writes the current project through every interval until ctx is
// cancelled. Failed writes are logged and retried on the next tick.
func AutoSave(ctx context.Context, s *Store, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saved, err := s.Save(ctx)
			if err != nil {
				logrus.WithError(err).Warn("Auto-save failed")
				continue
			}
			if saved {
				logrus.Debug("Auto-saved project")
			}
		}
	}
}
