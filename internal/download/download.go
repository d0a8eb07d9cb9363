// Package download reconciles pending export-job entries with files on disk.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/filewait"
	"github.com/wfzhang817/rjmart-order-exporter/internal/jobtable"
)

// Target is the deterministic on-disk destination derived from a job entry.
// The canonical name is stable across runs for the same owner and export
// type, which is what makes delete-then-download overwrite semantics work.
type Target struct {
	BaseName      string
	CanonicalName string
	Path          string
}

// DeriveTarget maps a server-supplied raw name like "Orders-20240101-8f3a"
// to its target in dir. The base name is everything before the first dash.
func DeriveTarget(rawName, owner, dir string) Target {
	base, _, _ := strings.Cut(rawName, "-")
	canonical := base + "_" + owner
	return Target{
		BaseName:      base,
		CanonicalName: canonical,
		Path:          filepath.Join(dir, canonical+".xlsx"),
	}
}

// Status is the per-entry outcome of a reconcile pass.
type Status int

const (
	// Downloaded means the file arrived at its target path.
	Downloaded Status = iota
	// TimedOut means the download was triggered but the file never showed.
	TimedOut
	// Failed means the download could not be triggered at all.
	Failed
)

func (s Status) String() string {
	switch s {
	case Downloaded:
		return "downloaded"
	case TimedOut:
		return "timed out"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result records what happened to one entry.
type Result struct {
	Entry  jobtable.Entry
	Target Target
	Status Status
}

// Trigger issues the remote download action for an entry. Implemented by
// jobtable.Client.
type Trigger interface {
	Download(ctx context.Context, e jobtable.Entry, dir, name string) error
}

// entriesPerCycle is how many fresh exports one cycle produces: the order
// detail and the goods detail files, sitting in the top two rows of the
// job table.
const entriesPerCycle = 2

// Reconciler downloads the freshly generated export files to their
// deterministic paths.
type Reconciler struct {
	jobs Trigger
	wait *filewait.Waiter
	log  *zap.Logger
}

// NewReconciler wires a reconciler over the given trigger and waiter.
func NewReconciler(jobs Trigger, wait *filewait.Waiter, log *zap.Logger) *Reconciler {
	return &Reconciler{jobs: jobs, wait: wait, log: log}
}

// Reconcile processes the two most recent entries (the first two rows of the
// listing). For each: derive the target, drop any stale file already at that
// path so the subsequent wait can only be satisfied by this cycle's
// download, trigger the download, and wait for the file. One entry's
// failure or timeout is recorded and never stops the remaining entries.
func (r *Reconciler) Reconcile(ctx context.Context, entries []jobtable.Entry, owner, dir string) []Result {
	n := len(entries)
	if n > entriesPerCycle {
		n = entriesPerCycle
	}

	results := make([]Result, 0, n)
	for _, e := range entries[:n] {
		results = append(results, r.reconcileOne(ctx, e, owner, dir))
	}
	return results
}

func (r *Reconciler) reconcileOne(ctx context.Context, e jobtable.Entry, owner, dir string) Result {
	target := DeriveTarget(e.RawName, owner, dir)
	log := r.log.With(
		zap.String("owner", owner),
		zap.String("entry", e.RawName),
		zap.String("file", target.Path),
	)

	// At most one generation of this file may exist per cycle; a leftover
	// from an earlier run would satisfy the wait before the new download
	// lands.
	if err := removeStale(target.Path); err != nil {
		log.Warn("remove stale file", zap.Error(err))
	}

	// The trigger's completion watcher must not outlive this entry's wait:
	// a transfer that completes after we have given up would otherwise
	// rename itself onto a later entry's target.
	watchCtx, cancelWatch := context.WithTimeout(ctx, r.wait.Timeout)
	defer cancelWatch()

	if err := r.jobs.Download(watchCtx, e, dir, target.CanonicalName); err != nil {
		log.Error("trigger download", zap.Error(err))
		return Result{Entry: e, Target: target, Status: Failed}
	}

	if outcome := r.wait.Await(ctx, target.Path); outcome == filewait.TimedOut {
		log.Warn("download timed out")
		return Result{Entry: e, Target: target, Status: TimedOut}
	}

	log.Info("downloaded")
	return Result{Entry: e, Target: target, Status: Downloaded}
}

func removeStale(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", path, err)
}
