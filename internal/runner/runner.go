// Package runner sequences the per-account export cycle and the
// multi-account loop.
package runner

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/browser"
	"github.com/wfzhang817/rjmart-order-exporter/internal/config"
	"github.com/wfzhang817/rjmart-order-exporter/internal/download"
	"github.com/wfzhang817/rjmart-order-exporter/internal/jobtable"
	"github.com/wfzhang817/rjmart-order-exporter/internal/portal"
	"github.com/wfzhang817/rjmart-order-exporter/internal/report"
)

// State tracks where an account is in its cycle. Transitions are strictly
// sequential; any step's failure drops the account into StateFailed and
// skips the rest of its steps, never the rest of the batch.
type State int

const (
	StateIdle State = iota
	StateLoggedIn
	StateRangeSet
	StateExported
	StateReconciled
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoggedIn:
		return "logged-in"
	case StateRangeSet:
		return "range-set"
	case StateExported:
		return "exported"
	case StateReconciled:
		return "reconciled"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the browser resource handle the runner drives. Implemented by
// browser.Session.
type Session interface {
	NewTab(ctx context.Context) (context.Context, error)
	Reset(dir string) error
}

// Portal is the site driver capability set. Implemented by portal.Driver.
type Portal interface {
	Login(ctx context.Context, username, password string) error
	SetDateRange(ctx context.Context, start, end string) error
	TriggerDetailExports(ctx context.Context) error
	TriggerListExport(ctx context.Context) error
}

// JobLister reads the remote export-job table. Implemented by
// jobtable.Client.
type JobLister interface {
	List(ctx context.Context) ([]jobtable.Entry, error)
}

// Reconciler downloads pending entries. Implemented by download.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, entries []jobtable.Entry, owner, dir string) []download.Result
}

// Cleaner removes processed entries. Implemented by cleanup.Cleaner.
type Cleaner interface {
	Run(ctx context.Context, entries []jobtable.Entry) int
}

// Runner holds the wired components for a run.
type Runner struct {
	Session    Session
	Portal     Portal
	Jobs       JobLister
	Reconciler Reconciler
	Cleaner    Cleaner

	DownloadBase string
	StartDate    string

	Stats *report.Stats
	Log   *zap.Logger

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// RunAll processes every account in order. One account's failure never
// aborts the batch; only a dead browser session does, since no later account
// could be served. The final tally is logged either way.
func (r *Runner) RunAll(ctx context.Context, accounts []config.Account) {
	for i, acct := range accounts {
		r.Log.Info("processing account",
			zap.Int("index", i+1), zap.Int("total", len(accounts)),
			zap.String("owner", acct.Owner))

		result, err := r.runAccount(ctx, acct)
		r.Stats.AddAccount(result)

		if err != nil && browser.IsClosed(err) {
			r.Log.Error("browser session lost, aborting remaining accounts", zap.Error(err))
			for _, rest := range accounts[i+1:] {
				r.Stats.AddAccount(report.AccountResult{
					Owner:      rest.Owner,
					FailedStep: "browser unavailable",
				})
			}
			break
		}
	}

	r.Log.Info("run complete",
		zap.Int("succeeded", r.Stats.Succeeded()),
		zap.Int("failed", r.Stats.Failed()))
}

// runAccount walks one account through the cycle. The returned error is the
// failing step's error, nil on success; the result is always populated.
func (r *Runner) runAccount(ctx context.Context, acct config.Account) (report.AccountResult, error) {
	state := StateIdle
	log := r.Log.With(zap.String("owner", acct.Owner))

	fail := func(step string, err error) (report.AccountResult, error) {
		log.Error("account failed",
			zap.String("step", step), zap.Stringer("state", state), zap.Error(err))
		r.Stats.AddError(acct.Owner, step+": "+err.Error())
		return report.AccountResult{Owner: acct.Owner, FailedStep: step}, err
	}
	advance := func(next State) {
		state = next
		log.Debug("state transition", zap.Stringer("state", state))
	}

	tabCtx, err := r.Session.NewTab(ctx)
	if err != nil {
		return fail("open tab", err)
	}

	dir := filepath.Join(r.DownloadBase, acct.Owner)
	if err := r.Session.Reset(dir); err != nil {
		return fail("configure downloads", err)
	}

	if err := r.Portal.Login(tabCtx, acct.Username, acct.Password); err != nil {
		return fail("login", err)
	}
	advance(StateLoggedIn)

	end := portal.Yesterday(r.now())
	if err := r.Portal.SetDateRange(tabCtx, r.StartDate, end); err != nil {
		return fail("set date range", err)
	}
	advance(StateRangeSet)

	if err := r.Portal.TriggerDetailExports(tabCtx); err != nil {
		return fail("trigger detail exports", err)
	}
	if err := r.Portal.TriggerListExport(tabCtx); err != nil {
		return fail("trigger list export", err)
	}
	advance(StateExported)

	entries, err := r.Jobs.List(tabCtx)
	if err != nil {
		return fail("list export jobs", err)
	}

	results := r.Reconciler.Reconcile(tabCtx, entries, acct.Owner, dir)
	advance(StateReconciled)

	downloads, timeouts, failures := 0, 0, 0
	for _, res := range results {
		switch res.Status {
		case download.Downloaded:
			downloads++
		case download.TimedOut:
			timeouts++
			r.Stats.AddError(acct.Owner, "download "+res.Target.CanonicalName+": "+res.Status.String())
		default:
			failures++
			r.Stats.AddError(acct.Owner, "download "+res.Target.CanonicalName+": "+res.Status.String())
		}
	}

	r.Cleaner.Run(tabCtx, entries)
	advance(StateDone)

	log.Info("account complete",
		zap.Int("downloads", downloads), zap.Int("timeouts", timeouts), zap.Int("failures", failures))
	return report.AccountResult{
		Owner:     acct.Owner,
		Succeeded: true,
		Downloads: downloads,
		Timeouts:  timeouts,
		Failures:  failures,
	}, nil
}
