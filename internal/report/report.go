// Package report collects run statistics and prints the final summary.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AccountResult is the outcome of one account's export cycle.
type AccountResult struct {
	Owner     string
	Succeeded bool
	// FailedStep names the step that failed, empty on success.
	FailedStep string
	Downloads  int
	// Timeouts counts downloads that were triggered but never produced a
	// file; Failures counts downloads that could not be triggered at all.
	Timeouts int
	Failures int
}

// ErrorEntry records one error with its account context.
type ErrorEntry struct {
	Timestamp time.Time
	Owner     string
	Message   string
}

// Stats holds everything collected during a run.
type Stats struct {
	StartTime   time.Time
	EndTime     time.Time
	Accounts    []AccountResult
	Errors      []ErrorEntry
	DownloadDir string
	TotalSize   int64
}

// New returns Stats with the start time set to now.
func New() *Stats {
	return &Stats{StartTime: time.Now()}
}

// AddAccount records one account's outcome.
func (s *Stats) AddAccount(r AccountResult) {
	s.Accounts = append(s.Accounts, r)
}

// AddError records an error with its owner context.
func (s *Stats) AddError(owner, message string) {
	s.Errors = append(s.Errors, ErrorEntry{Timestamp: time.Now(), Owner: owner, Message: message})
}

// Succeeded returns how many accounts completed their full cycle.
func (s *Stats) Succeeded() int {
	n := 0
	for _, a := range s.Accounts {
		if a.Succeeded {
			n++
		}
	}
	return n
}

// Failed returns how many accounts did not complete.
func (s *Stats) Failed() int {
	return len(s.Accounts) - s.Succeeded()
}

// Downloads returns the total completed downloads across accounts.
func (s *Stats) Downloads() int {
	n := 0
	for _, a := range s.Accounts {
		n += a.Downloads
	}
	return n
}

// Timeouts returns the total download timeouts across accounts.
func (s *Stats) Timeouts() int {
	n := 0
	for _, a := range s.Accounts {
		n += a.Timeouts
	}
	return n
}

// Failures returns the total downloads that never got triggered.
func (s *Stats) Failures() int {
	n := 0
	for _, a := range s.Accounts {
		n += a.Failures
	}
	return n
}

// Finish fixes the end time and sums the size of everything downloaded.
func (s *Stats) Finish() {
	s.EndTime = time.Now()
	if s.DownloadDir != "" {
		s.TotalSize = dirSize(s.DownloadDir)
	}
}

// Duration returns the total execution duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns the final one-line tally.
func (s *Stats) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed (%d downloads, %d timeouts, %d not triggered) in %s",
		s.Succeeded(), s.Failed(), s.Downloads(), s.Timeouts(), s.Failures(),
		formatDuration(s.Duration()))
}

func dirSize(dir string) int64 {
	var size int64
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Print writes the final report to stdout.
func (s *Stats) Print() {
	s.Finish()

	line := colorCyan + strings.Repeat("=", 52) + colorReset

	fmt.Println()
	fmt.Println(line)
	fmt.Printf("  %sEXPORT RUN REPORT%s\n", colorBold, colorReset)
	fmt.Println(line)
	fmt.Printf("  Duration   %s\n", formatDuration(s.Duration()))
	fmt.Printf("  Accounts   %d (%s%d ok%s, %s%d failed%s)\n",
		len(s.Accounts), colorGreen, s.Succeeded(), colorReset, colorRed, s.Failed(), colorReset)
	fmt.Printf("  Downloads  %d completed, %d timed out, %d not triggered\n",
		s.Downloads(), s.Timeouts(), s.Failures())
	if s.TotalSize > 0 {
		fmt.Printf("  Total size %s\n", formatBytes(s.TotalSize))
	}

	for _, a := range s.Accounts {
		if a.Succeeded {
			fmt.Printf("  %s✓%s %-20s %d files\n", colorGreen, colorReset, a.Owner, a.Downloads)
		} else {
			fmt.Printf("  %s✗%s %-20s failed at %s\n", colorRed, colorReset, a.Owner, a.FailedStep)
		}
	}

	if len(s.Errors) > 0 {
		fmt.Println(line)
		fmt.Printf("  %sErrors (%d):%s\n", colorYellow, len(s.Errors), colorReset)
		max := 5
		for i, e := range s.Errors {
			if i >= max {
				fmt.Printf("    ... and %d more\n", len(s.Errors)-max)
				break
			}
			fmt.Printf("    - [%s] %s\n", e.Owner, e.Message)
		}
	}

	fmt.Println(line)
	fmt.Println()
}
