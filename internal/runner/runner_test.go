package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/cleanup"
	"github.com/wfzhang817/rjmart-order-exporter/internal/config"
	"github.com/wfzhang817/rjmart-order-exporter/internal/download"
	"github.com/wfzhang817/rjmart-order-exporter/internal/filewait"
	"github.com/wfzhang817/rjmart-order-exporter/internal/jobtable"
	"github.com/wfzhang817/rjmart-order-exporter/internal/report"
)

type fakeSession struct {
	tabs      int
	resetDirs []string
}

func (f *fakeSession) NewTab(ctx context.Context) (context.Context, error) {
	f.tabs++
	return ctx, nil
}

func (f *fakeSession) Reset(dir string) error {
	f.resetDirs = append(f.resetDirs, dir)
	return os.MkdirAll(dir, 0755)
}

type fakePortal struct {
	failLogins map[string]bool

	logins []string
	ranges [][2]string
}

func (f *fakePortal) Login(ctx context.Context, username, password string) error {
	f.logins = append(f.logins, username)
	if f.failLogins[username] {
		return errors.New("bad credentials")
	}
	return nil
}

func (f *fakePortal) SetDateRange(ctx context.Context, start, end string) error {
	f.ranges = append(f.ranges, [2]string{start, end})
	return nil
}

func (f *fakePortal) TriggerDetailExports(ctx context.Context) error { return nil }
func (f *fakePortal) TriggerListExport(ctx context.Context) error    { return nil }

type fakeJobs struct {
	entries []jobtable.Entry
}

func (f *fakeJobs) List(ctx context.Context) ([]jobtable.Entry, error) {
	return f.entries, nil
}

// writeOnDownload satisfies download.Trigger by writing the file a real
// download would produce.
type writeOnDownload struct{}

func (writeOnDownload) Download(ctx context.Context, e jobtable.Entry, dir, name string) error {
	return os.WriteFile(filepath.Join(dir, name+".xlsx"), []byte("xlsx"), 0644)
}

type recordingDeleter struct {
	rows []int
}

func (d *recordingDeleter) Delete(ctx context.Context, e jobtable.Entry) error {
	d.rows = append(d.rows, e.Row)
	return nil
}

func newTestRunner(t *testing.T, sess Session, p Portal, jobs JobLister, deleter *recordingDeleter) (*Runner, string) {
	t.Helper()
	base := t.TempDir()

	waiter := &filewait.Waiter{Interval: 5 * time.Millisecond, Timeout: 100 * time.Millisecond}
	cleaner := cleanup.NewCleaner(deleter, zap.NewNop())
	cleaner.Settle = 0

	r := &Runner{
		Session:      sess,
		Portal:       p,
		Jobs:         jobs,
		Reconciler:   download.NewReconciler(writeOnDownload{}, waiter, zap.NewNop()),
		Cleaner:      cleaner,
		DownloadBase: base,
		StartDate:    "2024-01-01",
		Stats:        report.New(),
		Log:          zap.NewNop(),
		Now: func() time.Time {
			return time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
		},
	}
	return r, base
}

func testEntries() []jobtable.Entry {
	return []jobtable.Entry{
		{RawName: "Orders-20240614-a1", Row: 1},
		{RawName: "Goods-20240614-b2", Row: 2},
		{RawName: "List-20240614-c3", Row: 3},
	}
}

func TestRunAllFullCycle(t *testing.T) {
	sess := &fakeSession{}
	p := &fakePortal{}
	deleter := &recordingDeleter{}
	r, base := newTestRunner(t, sess, p, &fakeJobs{entries: testEntries()}, deleter)

	accounts := []config.Account{
		{Owner: "alice", Username: "alice@corp.cn", Password: "x"},
		{Owner: "bob", Username: "bob@corp.cn", Password: "y"},
	}
	r.RunAll(context.Background(), accounts)

	assert.Equal(t, 2, r.Stats.Succeeded())
	assert.Equal(t, 0, r.Stats.Failed())

	// Each account got its own tab and its own download directory.
	assert.Equal(t, 2, sess.tabs)
	assert.Equal(t, []string{
		filepath.Join(base, "alice"),
		filepath.Join(base, "bob"),
	}, sess.resetDirs)

	// Exactly two canonical files per account.
	for _, owner := range []string{"alice", "bob"} {
		assert.FileExists(t, filepath.Join(base, owner, "Orders_"+owner+".xlsx"))
		assert.FileExists(t, filepath.Join(base, owner, "Goods_"+owner+".xlsx"))

		files, err := os.ReadDir(filepath.Join(base, owner))
		require.NoError(t, err)
		assert.Len(t, files, 2)
	}

	// The end date is always yesterday relative to the run clock.
	require.Len(t, p.ranges, 2)
	for _, rg := range p.ranges {
		assert.Equal(t, "2024-01-01", rg[0])
		assert.Equal(t, "2024-06-14", rg[1])
	}

	// Cleanup visited all rows descending, once per account.
	assert.Equal(t, []int{3, 2, 1, 3, 2, 1}, deleter.rows)
}

func TestRunAllContinuesPastLoginFailure(t *testing.T) {
	sess := &fakeSession{}
	p := &fakePortal{failLogins: map[string]bool{"alice@corp.cn": true}}
	deleter := &recordingDeleter{}
	r, base := newTestRunner(t, sess, p, &fakeJobs{entries: testEntries()}, deleter)

	accounts := []config.Account{
		{Owner: "alice", Username: "alice@corp.cn", Password: "x"},
		{Owner: "bob", Username: "bob@corp.cn", Password: "y"},
	}
	r.RunAll(context.Background(), accounts)

	assert.Equal(t, 1, r.Stats.Succeeded())
	assert.Equal(t, 1, r.Stats.Failed())

	require.Len(t, r.Stats.Accounts, 2)
	assert.Equal(t, "login", r.Stats.Accounts[0].FailedStep)
	assert.True(t, r.Stats.Accounts[1].Succeeded)

	// Account 2 was still fully processed.
	assert.Equal(t, []string{"alice@corp.cn", "bob@corp.cn"}, p.logins)
	assert.FileExists(t, filepath.Join(base, "bob", "Orders_bob.xlsx"))

	// Nothing downloaded or deleted for the failed account.
	_, err := os.Stat(filepath.Join(base, "alice", "Orders_alice.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunAllAbortsWhenBrowserDies(t *testing.T) {
	sess := &fakeSession{}
	p := &fakePortal{}
	deleter := &recordingDeleter{}
	r, _ := newTestRunner(t, sess, p, &fakeJobs{entries: testEntries()}, deleter)

	// A canceled chromedp context looks like a dead browser.
	r.Portal = portalLoginErr{err: context.Canceled}

	accounts := []config.Account{
		{Owner: "alice", Username: "a", Password: "x"},
		{Owner: "bob", Username: "b", Password: "y"},
	}
	r.RunAll(context.Background(), accounts)

	require.Len(t, r.Stats.Accounts, 2)
	assert.Equal(t, 2, r.Stats.Failed())
	assert.Equal(t, "browser unavailable", r.Stats.Accounts[1].FailedStep)
	// Only the first account ever reached the portal.
	assert.Equal(t, 1, sess.tabs)
}

// failRowTrigger refuses one row and downloads the rest.
type failRowTrigger struct {
	failRow int
}

func (f failRowTrigger) Download(ctx context.Context, e jobtable.Entry, dir, name string) error {
	if e.Row == f.failRow {
		return jobtable.ErrElementNotFound
	}
	return os.WriteFile(filepath.Join(dir, name+".xlsx"), []byte("xlsx"), 0644)
}

func TestRunAllCountsUntriggeredSeparately(t *testing.T) {
	sess := &fakeSession{}
	p := &fakePortal{}
	deleter := &recordingDeleter{}
	r, _ := newTestRunner(t, sess, p, &fakeJobs{entries: testEntries()}, deleter)

	waiter := &filewait.Waiter{Interval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond}
	r.Reconciler = download.NewReconciler(failRowTrigger{failRow: 1}, waiter, zap.NewNop())

	r.RunAll(context.Background(), []config.Account{
		{Owner: "alice", Username: "a", Password: "x"},
	})

	require.Len(t, r.Stats.Accounts, 1)
	got := r.Stats.Accounts[0]
	assert.True(t, got.Succeeded)
	assert.Equal(t, 1, got.Downloads)
	assert.Equal(t, 1, got.Failures, "an untriggered download is not a timeout")
	assert.Zero(t, got.Timeouts)
	assert.Equal(t, 1, r.Stats.Failures())
}

type portalLoginErr struct {
	err error
}

func (p portalLoginErr) Login(ctx context.Context, username, password string) error { return p.err }
func (p portalLoginErr) SetDateRange(ctx context.Context, start, end string) error  { return nil }
func (p portalLoginErr) TriggerDetailExports(ctx context.Context) error             { return nil }
func (p portalLoginErr) TriggerListExport(ctx context.Context) error                { return nil }

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
}
