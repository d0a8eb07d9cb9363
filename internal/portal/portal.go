// Package portal drives the RJMart site: login, the order-list date filter,
// and export-job triggering. Every DOM query it depends on is named in
// queries.go.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/browser"
)

// ErrElementNotFound means a named query matched nothing. The page layout
// changed or never finished loading; fatal for the current step.
var ErrElementNotFound = errors.New("portal: element not found")

// Driver runs portal flows against a browser tab.
type Driver struct {
	log   *zap.Logger
	sleep func(time.Duration)
}

// New returns a portal driver.
func New(log *zap.Logger) *Driver {
	return &Driver{log: log, sleep: time.Sleep}
}

// Login signs the account in through the login form.
func (d *Driver) Login(ctx context.Context, username, password string) error {
	if err := browser.Navigate(ctx, LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	err := chromedp.Run(ctx,
		chromedp.WaitVisible(queryUsernameInput, chromedp.ByQuery),
		chromedp.SetValue(queryUsernameInput, username, chromedp.ByQuery),
		chromedp.SetValue(queryPasswordInput, password, chromedp.ByQuery),
		chromedp.Click(queryLoginSubmit, chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
	)
	if err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	d.log.Info("logged in", zap.String("username", username))
	return nil
}

// TriggerDetailExports queues the order-detail and goods-detail export jobs
// from the export drop menu, dismissing the confirmation dialog after each.
func (d *Driver) TriggerDetailExports(ctx context.Context) error {
	for _, exportType := range []string{ExportOrderDetail, ExportGoodsDetail} {
		if err := d.triggerMenuExport(ctx, exportType); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) triggerMenuExport(ctx context.Context, exportType string) error {
	var found bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsHoverExportMenu, &found)); err != nil {
		return fmt.Errorf("open export menu: %w", err)
	}
	if !found {
		return fmt.Errorf("export menu trigger: %w", ErrElementNotFound)
	}
	d.sleep(2 * time.Second)

	if err := chromedp.Run(ctx, chromedp.Evaluate(jsClickMenuItem(exportType), &found)); err != nil {
		return fmt.Errorf("click %s: %w", exportType, err)
	}
	if !found {
		return fmt.Errorf("menu entry %s: %w", exportType, ErrElementNotFound)
	}
	d.sleep(2 * time.Second)

	d.closeExportDialog(ctx)
	d.sleep(2 * time.Second)

	d.log.Info("export queued", zap.String("type", exportType))
	return nil
}

// TriggerListExport clicks the standalone export-list button.
func (d *Driver) TriggerListExport(ctx context.Context) error {
	d.sleep(2 * time.Second)

	var found bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsClickListExport, &found)); err != nil {
		return fmt.Errorf("click list export: %w", err)
	}
	if !found {
		return fmt.Errorf("list export button: %w", ErrElementNotFound)
	}
	d.sleep(2 * time.Second)

	d.log.Info("export queued", zap.String("type", "导出列表"))
	return nil
}

// closeExportDialog is best effort; a dialog that failed to appear, or to
// close, does not block the run.
func (d *Driver) closeExportDialog(ctx context.Context) {
	var found bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsCloseExportDialog, &found)); err != nil {
		d.log.Warn("close export dialog", zap.Error(err))
		return
	}
	if !found {
		d.log.Warn("export dialog close button not found")
		return
	}
	d.sleep(time.Second)
}
