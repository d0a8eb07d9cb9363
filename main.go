package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wfzhang817/rjmart-order-exporter/internal/browser"
	"github.com/wfzhang817/rjmart-order-exporter/internal/cleanup"
	"github.com/wfzhang817/rjmart-order-exporter/internal/config"
	"github.com/wfzhang817/rjmart-order-exporter/internal/download"
	"github.com/wfzhang817/rjmart-order-exporter/internal/filewait"
	"github.com/wfzhang817/rjmart-order-exporter/internal/jobtable"
	"github.com/wfzhang817/rjmart-order-exporter/internal/logging"
	"github.com/wfzhang817/rjmart-order-exporter/internal/portal"
	"github.com/wfzhang817/rjmart-order-exporter/internal/report"
	"github.com/wfzhang817/rjmart-order-exporter/internal/runner"
)

// appVersion is set at build time via -ldflags="-X main.appVersion=x.x.x"
var appVersion = "dev"

type options struct {
	configPath  string
	browserPath string
	downloadDir string
	headless    bool
	verbose     bool
	logFile     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "rjmart-order-exporter",
		Short:        "Export RJMart order data for each configured account",
		Version:      appVersion,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.json", "Path to the JSON configuration file")
	cmd.Flags().StringVar(&opts.browserPath, "browser", "", "Chrome executable (auto-detect if empty)")
	cmd.Flags().StringVar(&opts.downloadDir, "download-dir", "", "Base download directory (overrides config)")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "Run Chrome headless")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "rjmart-export.log", "JSON log file (empty to disable)")

	return cmd
}

func run(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.browserPath != "" {
		cfg.Settings.BrowserPath = opts.browserPath
	}
	if opts.downloadDir != "" {
		cfg.Settings.DownloadPath = opts.downloadDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(opts.verbose, opts.logFile)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", uuid.NewString()))

	execPath := cfg.Settings.BrowserPath
	if execPath == "" {
		execPath = browser.Detect()
		if execPath == "" {
			return errors.New("could not find Chrome/Chromium; install one or set settings.browser_path")
		}
		log.Info("browser auto-detected", zap.String("path", execPath))
	}

	if err := os.MkdirAll(cfg.Settings.DownloadPath, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	log.Info("starting export run",
		zap.String("version", appVersion),
		zap.Int("accounts", len(cfg.Accounts)),
		zap.String("download_path", cfg.Settings.DownloadPath),
		zap.String("start_date", cfg.Settings.StartDate))

	bcfg := browser.DefaultConfig()
	bcfg.ExecPath = execPath
	bcfg.Headless = opts.headless

	sess, err := browser.New(bcfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	jobs := jobtable.NewClient(log)
	stats := report.New()
	stats.DownloadDir = cfg.Settings.DownloadPath

	r := &runner.Runner{
		Session:      sess,
		Portal:       portal.New(log),
		Jobs:         jobs,
		Reconciler:   download.NewReconciler(jobs, filewait.New(), log),
		Cleaner:      cleanup.NewCleaner(jobs, log),
		DownloadBase: cfg.Settings.DownloadPath,
		StartDate:    cfg.Settings.StartDate,
		Stats:        stats,
		Log:          log,
	}

	r.RunAll(ctx, cfg.Accounts)

	stats.Print()
	log.Info(stats.Summary())
	return nil
}
