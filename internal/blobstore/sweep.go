package blobstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// DefaultSweepSchedule runs the temp sweep hourly.
const DefaultSweepSchedule = "@every 1h"

// SweepTemp removes temp files under root/uploads older than ttl. They are
// left behind only when the process dies mid-write. Returns the number removed.
func (l *Local) SweepTemp(ctx context.Context, ttl time.Duration) (int, error) {
	dir := filepath.Join(l.root, KeyPrefix)
	cutoff := time.Now().Add(-ttl)
	removed := 0

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), tempSuffix) || !strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// RunTempSweeper sweeps once immediately, to clear leftovers from a previous
// crash, then on every tick of schedule (standard cron syntax or a
// descriptor such as "@every 30m") until ctx is cancelled.
func RunTempSweeper(ctx context.Context, l *Local, ttl time.Duration, schedule string, logger logging.Logger) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	sweep := func() {
		n, err := l.SweepTemp(ctx, ttl)
		if err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "temp sweep failed", "root", l.root, "err", err)
			return
		}
		if n > 0 {
			logger.Info(ctx, "temp sweep complete", "removed", n)
		}
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(sweep))

	go func() {
		sweep()
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
