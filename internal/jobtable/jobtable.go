// Package jobtable drives the portal's export-job list: the remote table of
// generated export files, with per-row download and delete actions.
package jobtable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrElementNotFound means a row or its action control was not present in
// the DOM. Fatal for the current step; the row indices may have shifted.
var ErrElementNotFound = errors.New("jobtable: element not found")

// Entry is one row of the remote export-job list. Row is its 1-based
// position below the header row and is volatile: it shifts as rows are
// deleted, which is why cleanup works from the highest row down.
type Entry struct {
	RawName string
	Row     int
}

// Client reads and mutates the export-job table through the browser.
type Client struct {
	log *zap.Logger
}

// NewClient returns a job-table client.
func NewClient(log *zap.Logger) *Client {
	return &Client{log: log}
}

// jsListNames collects the name cell of every row below the header.
const jsListNames = `
(function() {
	const rows = document.querySelectorAll('div[class*="ZenTable-table-body"] > div');
	const names = [];
	for (let i = 1; i < rows.length; i++) {
		const span = rows[i].querySelector('div:first-child span');
		names.push(span ? span.textContent.trim() : '');
	}
	return names;
})()
`

// jsRowAction clicks the action control labelled %q inside row %d (1-based,
// header excluded). Yields true when the control was found and clicked.
const jsRowAction = `
(function() {
	const rows = document.querySelectorAll('div[class*="ZenTable-table-body"] > div');
	if (%d >= rows.length) {
		return false;
	}
	const spans = rows[%d].querySelectorAll('div[class*="ZenTable-table-td"] span');
	for (const s of spans) {
		if (s.textContent.trim() === %q) {
			s.click();
			return true;
		}
	}
	return false;
})()
`

// List returns the current entries of the export-job table, header row
// excluded, most recent first (the portal lists newest exports on top).
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	var names []string
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsListNames, &names)); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	entries := entriesFromNames(names)
	c.log.Info("export job list read", zap.Int("entries", len(entries)))
	return entries, nil
}

// entriesFromNames assigns 1-based row positions matching the on-page table
// (row 0 is the header and is never listed).
func entriesFromNames(names []string) []Entry {
	entries := make([]Entry, 0, len(names))
	for i, name := range names {
		entries = append(entries, Entry{RawName: name, Row: i + 1})
	}
	return entries
}

// watchAction is the event router's verdict for one observed CDP event.
type watchAction int

const (
	watchNone watchAction = iota
	watchRename
	watchStop
)

// downloadWatch correlates CDP download events with a single click. The
// first will-begin event seen after the click claims the download's GUID;
// events carrying any other GUID belong to an earlier entry's transfer and
// must be ignored, or a late completion would rename the wrong bytes onto
// this entry's target.
type downloadWatch struct {
	guid string
}

// observe consumes one target event and reports what to do with it, plus
// the GUID the action applies to.
func (w *downloadWatch) observe(v interface{}) (watchAction, string) {
	switch ev := v.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		if w.guid == "" {
			w.guid = ev.GUID
		}
	case *cdpbrowser.EventDownloadProgress:
		if w.guid == "" || ev.GUID != w.guid {
			break
		}
		switch ev.State {
		case cdpbrowser.DownloadProgressStateCompleted:
			return watchRename, ev.GUID
		case cdpbrowser.DownloadProgressStateCanceled:
			return watchStop, ev.GUID
		}
	}
	return watchNone, ""
}

// Download clicks the entry's download control and arranges for the finished
// file to land at dir/name.xlsx. Chrome writes the transfer under a
// CDP-assigned GUID (the session configures AllowAndName behavior); the
// completion event for the GUID claimed by this click triggers the rename
// to the canonical name. The listener dies with ctx, so callers bound ctx
// to however long they are willing to wait; a transfer completing after
// that cannot touch a later entry's target. Download returns once the click
// landed; arrival of the file is the caller's wait.
func (c *Client) Download(ctx context.Context, e Entry, dir, name string) error {
	target := filepath.Join(dir, name+".xlsx")

	lctx, lcancel := context.WithCancel(ctx)
	watch := &downloadWatch{}
	chromedp.ListenTarget(lctx, func(v interface{}) {
		action, guid := watch.observe(v)
		switch action {
		case watchRename:
			src := filepath.Join(dir, guid)
			if err := os.Rename(src, target); err != nil {
				c.log.Warn("rename downloaded file",
					zap.String("from", src), zap.String("to", target), zap.Error(err))
			} else {
				c.log.Debug("download renamed", zap.String("file", target))
			}
			lcancel()
		case watchStop:
			lcancel()
		}
	})

	var clicked bool
	js := fmt.Sprintf(jsRowAction, e.Row, e.Row, "下载")
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		lcancel()
		return fmt.Errorf("click download on row %d: %w", e.Row, err)
	}
	if !clicked {
		lcancel()
		return fmt.Errorf("download control on row %d: %w", e.Row, ErrElementNotFound)
	}

	c.log.Info("download triggered",
		zap.String("entry", e.RawName), zap.String("target", target))
	return nil
}

// Delete clicks the entry's delete control, removing the row from the remote
// list. The table re-indexes afterwards.
func (c *Client) Delete(ctx context.Context, e Entry) error {
	var clicked bool
	js := fmt.Sprintf(jsRowAction, e.Row, e.Row, "删除")
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return fmt.Errorf("click delete on row %d: %w", e.Row, err)
	}
	if !clicked {
		return fmt.Errorf("delete control on row %d: %w", e.Row, ErrElementNotFound)
	}
	return nil
}
