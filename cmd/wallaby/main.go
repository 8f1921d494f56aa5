package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/use-agent/wallaby/config"
	"github.com/use-agent/wallaby/crawl"
	"github.com/use-agent/wallaby/listing"
	"github.com/use-agent/wallaby/models"
)

var version = "dev"

var (
	tasksFile string
	logDir    string
	outDir    string
	workers   int
	maxRetry  int
	headless  bool
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "wallaby",
		Short:        "Retrying, bounded-concurrency browser crawl runner",
		Version:      version,
		SilenceUsage: true,
	}

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a batch of listing tasks from a task file",
		Example: `  # Run every task in tasks.yaml with two parallel sessions
  wallaby crawl --tasks tasks.yaml --workers 2

  # Watch a single flaky task with a visible browser
  wallaby crawl --tasks tasks.yaml --headless=false --verbose`,
		RunE: runCrawl,
	}

	crawlCmd.Flags().StringVarP(&tasksFile, "tasks", "t", "tasks.yaml", "Task file (yaml or json) with a top-level 'tasks' list")
	crawlCmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for per-task log files (default from config)")
	crawlCmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Directory for crawl artifacts (default from config)")
	crawlCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent tasks (default from config)")
	crawlCmd.Flags().IntVar(&maxRetry, "max-retry", 0, "Attempts per task before giving up (default from config)")
	crawlCmd.Flags().BoolVar(&headless, "headless", true, "Run browsers headless")
	crawlCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Mirror per-task logs to stderr")

	rootCmd.AddCommand(crawlCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if logDir != "" {
		cfg.Crawl.LogDir = logDir
	}
	if outDir != "" {
		cfg.Crawl.OutputDir = outDir
	}
	if workers > 0 {
		cfg.Crawl.Workers = workers
	}
	if maxRetry > 0 {
		cfg.Crawl.MaxRetry = maxRetry
	}
	cfg.Browser.Headless = headless
	cfg.Crawl.Verbose = verbose

	argsList, err := loadTasks(tasksFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newProgressBar(len(argsList), "crawling")
	crawler := listing.New(cfg.Browser, cfg.Crawl.OutputDir)

	summary, err := crawl.ParallelCrawl(ctx, crawler, argsList, crawl.BatchConfig{
		LogDir:            cfg.Crawl.LogDir,
		Headless:          cfg.Browser.Headless,
		Verbose:           cfg.Crawl.Verbose,
		MaxRetry:          cfg.Crawl.MaxRetry,
		Workers:           cfg.Crawl.Workers,
		LaunchesPerSecond: cfg.Crawl.LaunchesPerSecond,
		LaunchBurst:       cfg.Crawl.LaunchBurst,
		OnTaskDone: func(models.TaskResult) {
			bar.Add(1)
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr)

	fmt.Printf("run %s: %d/%d finished in %s\n",
		summary.RunID, summary.Finished, summary.Total, summary.Duration.Round(time.Millisecond))
	for _, r := range summary.Results {
		if r.Status != models.TaskFinished {
			fmt.Printf("  FAILED %s after %d attempts, see %s\n", r.ID, r.Attempts, r.LogPath)
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", summary.Failed, summary.Total)
	}
	return nil
}

// loadTasks reads the task file. Expected shape:
//
//	tasks:
//	  - url: https://example.com/list
//	    item_selector: "li.item a"
//	    attr: href
func loadTasks(path string) ([]models.Args, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var raw []map[string]any
	if err := v.UnmarshalKey("tasks", &raw); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("task file %s has no tasks", path)
	}

	argsList := make([]models.Args, len(raw))
	for i, m := range raw {
		argsList[i] = models.Args(m)
	}
	return argsList, nil
}

func newProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
