package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/browser"
	"github.com/wfzhang817/rjmart-order-exporter/internal/config"
)

// Yesterday formats the day before now as a portal date. The order list is
// always filtered up to yesterday so the export never contains a partial
// current day.
func Yesterday(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(config.DateFormat)
}

// dateOps are the primitive date-filter interactions. Split out so the
// verify-and-retry sequencing can be exercised without a browser.
type dateOps interface {
	setInput(ctx context.Context, which, date string) error
	submit(ctx context.Context) error
	readBack(ctx context.Context) (start, end string, err error)
}

// SetDateRange opens the order list and applies the start..end filter. The
// picker gives no reliable feedback, so the applied values are read back and
// the whole set-and-submit sequence is retried exactly once on mismatch. A
// second mismatch is tolerated with a warning: the run proceeds with
// whatever range ended up applied.
func (d *Driver) SetDateRange(ctx context.Context, start, end string) error {
	if err := browser.Navigate(ctx, OrderListURL); err != nil {
		return fmt.Errorf("open order list: %w", err)
	}
	return d.applyDateRange(ctx, chromedpDateOps{}, start, end)
}

func (d *Driver) applyDateRange(ctx context.Context, ops dateOps, start, end string) error {
	apply := func() error {
		if err := ops.setInput(ctx, "start", start); err != nil {
			return fmt.Errorf("set start date: %w", err)
		}
		d.sleep(2 * time.Second)
		if err := ops.setInput(ctx, "end", end); err != nil {
			return fmt.Errorf("set end date: %w", err)
		}
		d.sleep(2 * time.Second)
		if err := ops.submit(ctx); err != nil {
			return fmt.Errorf("submit date filter: %w", err)
		}
		d.sleep(3 * time.Second)
		return nil
	}

	if err := apply(); err != nil {
		return err
	}

	gotStart, gotEnd, err := ops.readBack(ctx)
	if err != nil {
		return fmt.Errorf("verify date range: %w", err)
	}
	if gotStart == start && gotEnd == end {
		d.log.Info("date range applied", zap.String("start", start), zap.String("end", end))
		return nil
	}

	d.log.Warn("date range mismatch, retrying once",
		zap.String("want_start", start), zap.String("want_end", end),
		zap.String("got_start", gotStart), zap.String("got_end", gotEnd))

	if err := apply(); err != nil {
		return err
	}

	gotStart, gotEnd, err = ops.readBack(ctx)
	if err != nil {
		return fmt.Errorf("verify date range: %w", err)
	}
	if gotStart != start || gotEnd != end {
		d.log.Warn("date range still mismatched, proceeding with applied range",
			zap.String("got_start", gotStart), zap.String("got_end", gotEnd))
		return nil
	}

	d.log.Info("date range applied on retry", zap.String("start", start), zap.String("end", end))
	return nil
}

// chromedpDateOps implements dateOps against the live page.
type chromedpDateOps struct{}

func (chromedpDateOps) setInput(ctx context.Context, which, date string) error {
	var found bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsSetDateInput(which, date), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s date input: %w", which, ErrElementNotFound)
	}
	return nil
}

func (chromedpDateOps) submit(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.WaitVisible(querySearchButton, chromedp.ByQuery),
		chromedp.Click(querySearchButton, chromedp.ByQuery),
	)
}

func (chromedpDateOps) readBack(ctx context.Context) (string, string, error) {
	var values []string
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsReadDateInputs, &values)); err != nil {
		return "", "", err
	}
	if len(values) != 2 {
		return "", "", fmt.Errorf("date inputs: %w", ErrElementNotFound)
	}
	return values[0], values[1], nil
}
