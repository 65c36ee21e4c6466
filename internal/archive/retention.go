package archive

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RetentionConfig configures the retention cleaner.
type RetentionConfig struct {
	// Retention is how long rows are kept. Zero or less disables cleanup.
	Retention time.Duration
	// Interval between cleanups. Defaults to one hour.
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// RetentionCleaner periodically deletes archived rows older than the
// retention window.
type RetentionCleaner struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewRetentionCleaner runs one cleanup immediately and then one per
// interval. It returns nil when retention is disabled.
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.Retention <= 0 {
		return nil
	}
	if conf.Interval <= 0 {
		conf.Interval = time.Hour
	}
	if conf.Clock == nil {
		conf.Clock = clockwork.NewRealClock()
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}

	rc := &RetentionCleaner{
		store:     store,
		retention: conf.Retention,
		interval:  conf.Interval,
		clock:     conf.Clock,
		logger:    conf.Logger,
		done:      make(chan struct{}),
	}

	// Catch up after downtime.
	rc.cleanup()

	ticker := rc.clock.NewTicker(rc.interval)
	rc.wg.Add(1)
	go rc.tickLoop(ticker)
	return rc
}

func (rc *RetentionCleaner) tickLoop(ticker clockwork.Ticker) {
	defer rc.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	cutoff := rc.clock.Now().Add(-rc.retention)
	rows, err := rc.store.DeleteBefore(context.Background(), cutoff)
	if err != nil {
		rc.logger.Error("retention cleanup failed", zap.Error(err))
		return
	}
	if rows > 0 {
		rc.logger.Info("retention cleanup",
			zap.Int64("deleted", rows), zap.Duration("retention", rc.retention))
	}
}

// Stop halts the cleaner. It is safe to call more than once.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
