// Package cleanup removes processed entries from the remote export-job list.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/jobtable"
)

// DefaultSettle is the pause after each deletion, giving the table time to
// re-index before the next row is touched.
const DefaultSettle = time.Second

// Deleter issues the remote delete action for an entry. Implemented by
// jobtable.Client.
type Deleter interface {
	Delete(ctx context.Context, e jobtable.Entry) error
}

// Cleaner deletes processed job-table entries, highest row first. The table
// re-indexes after every deletion, so descending order keeps the not yet
// visited rows' indices valid. Cleanup is best effort: the list is shared
// mutable state with no transactional guarantee, and a failed deletion only
// costs a warning.
type Cleaner struct {
	jobs Deleter
	log  *zap.Logger

	// Settle is the pause after each successful deletion.
	Settle time.Duration
}

// NewCleaner wires a cleaner over the given deleter.
func NewCleaner(jobs Deleter, log *zap.Logger) *Cleaner {
	return &Cleaner{
		jobs:   jobs,
		log:    log,
		Settle: DefaultSettle,
	}
}

// Run deletes every entry, last row first. Returns how many deletions
// succeeded.
func (c *Cleaner) Run(ctx context.Context, entries []jobtable.Entry) int {
	deleted := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		err := c.jobs.Delete(ctx, e)
		// The table re-indexes after a click lands; settle before touching
		// the next row whether or not this click was accepted.
		time.Sleep(c.Settle)
		if err != nil {
			c.log.Warn("delete export job entry",
				zap.String("entry", e.RawName), zap.Int("row", e.Row), zap.Error(err))
			continue
		}
		c.log.Info("export job entry removed",
			zap.String("entry", e.RawName), zap.Int("row", e.Row))
		deleted++
	}
	return deleted
}
