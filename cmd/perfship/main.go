package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/perfship/internal/adapters/beacon"
	"github.com/bft-labs/perfship/internal/adapters/fs"
	"github.com/bft-labs/perfship/internal/adapters/trace"
	"github.com/bft-labs/perfship/internal/cliconfig"
	"github.com/bft-labs/perfship/pkg/log"
	"github.com/bft-labs/perfship/pkg/perfship"
)

const longHelp = `Measure how fast your assets load and report it to the insights collector.

perfship fetches the given URLs through a recording HTTP client, keeps the
timings of requests that match your prefixes, and delivers them once as a
single package. The first URL is recorded as the navigation.

Instead of fetching, --entries reads performance entries exported from a
browser (JSON array or one entry per line) and follows appends to the file.

Settings come from flags, PERFSHIP_* variables, a TOML or YAML config file,
or the collector <script> tag of an HTML page (--page).`

var exampleUsage = strings.TrimSpace(`
  perfship --token <token> --prefix cdn.example.com https://www.example.com/ https://cdn.example.com/app.js
  perfship --page index.html --entries perf-entries.ndjson
  perfship --config $HOME/.perfship/config.yaml --dry-run https://www.example.com/
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "perfship [url...]",
		Short:   "Measure asset load timings and report them to the insights collector",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// Lowest precedence first: page, file, env. Flags win throughout.
			if cfg.Page != "" {
				attrs, err := cliconfig.LoadPage(cfg.Page)
				if err != nil {
					return fmt.Errorf("load page: %w", err)
				}
				if err := cliconfig.ApplyAttributes(&cfg, attrs, changed); err != nil {
					return err
				}
			}

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			zl := cliconfig.Logger(cfg.LogLevel)
			logCfg := cfg
			if logCfg.Token != "" {
				logCfg.Token = "*****"
			}
			zl.Debug().Interface("config", logCfg).Msg("configuration")

			return run(cmd.Context(), cfg, args, zl)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.perfship/config.toml)")
	root.Flags().StringVar(&cfg.Token, "token", cfg.Token, "site token")
	root.Flags().StringSliceVar(&cfg.Prefixes, "prefix", cfg.Prefixes, "collect only URLs starting with this prefix (repeatable, comma-separated)")
	root.Flags().StringSliceVar(&cfg.Patterns, "pattern", cfg.Patterns, "regular expression matched against URLs in pattern mode (repeatable)")
	root.Flags().StringVar(&cfg.FilterMode, "filter-mode", cfg.FilterMode, "how entries are selected: prefix or pattern")
	root.Flags().StringSliceVar(&cfg.Kinds, "kinds", cfg.Kinds, "entry types to collect: resource, navigation")
	root.Flags().StringVar(&cfg.Backend, "backend", cfg.Backend, "collection backend path (collect or collect-wg)")

	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, fmt.Sprintf("base service URL (defaults to %s; override only for testing)", cliconfig.DefaultServiceURL))
	if err := root.Flags().MarkHidden("service-url"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to hide service-url flag:", err)
	}

	root.Flags().DurationVar(&cfg.Delay, "delay", cfg.Delay, "how long to wait for buffer-count entries; 0 reads once and sends immediately")
	root.Flags().IntVar(&cfg.BufferCount, "buffer-count", cfg.BufferCount, "number of matching entries that triggers delivery")
	root.Flags().BoolVar(&cfg.ResolveRandom, "resolve-random", cfg.ResolveRandom, "request a random subdomain of the first prefix to measure a cold DNS lookup")
	root.Flags().BoolVar(&cfg.Connection, "connection", cfg.Connection, "include connection-quality hints")
	root.Flags().BoolVar(&cfg.Dedup, "dedup", cfg.Dedup, "keep only the first entry per URL")
	root.Flags().BoolVar(&cfg.Clear, "clear", cfg.Clear, "clear the entry buffer after reading it")
	root.Flags().BoolVar(&cfg.Compress, "compress", cfg.Compress, "gzip fallback POST bodies")

	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout for fetches and delivery")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "poll interval for sources that cannot push entries")
	root.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel fetches after the first URL")

	root.Flags().StringVar(&cfg.EntriesFile, "entries", cfg.EntriesFile, "read performance entries from this file instead of fetching")
	root.Flags().BoolVar(&cfg.Replay, "replay", cfg.Replay, "deliver entries already in the entries file, not only appended ones")
	root.Flags().StringVar(&cfg.Page, "page", cfg.Page, "HTML page whose collector <script> tag supplies settings")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	root.Flags().BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "print the package to stdout instead of sending it")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		zl := cliconfig.Logger("info")
		zl.Error().Err(err).Msg("perfship")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, urls []string, zl zerolog.Logger) error {
	if cfg.EntriesFile != "" && len(urls) > 0 {
		return errors.New("URLs cannot be fetched when --entries is set")
	}
	if cfg.EntriesFile == "" && len(urls) == 0 {
		return errors.New("nothing to measure: pass URLs or --entries")
	}

	logger := log.NewZerologAdapterWithLogger(zl)
	opts := []perfship.Option{perfship.WithLogger(logger)}

	if cfg.EntriesFile != "" {
		src := fs.NewEntryFile(cfg.EntriesFile, fs.EntryFileConfig{Buffered: cfg.Replay}, logger)
		opts = append(opts, perfship.WithTimingSource(src))
	}
	if cfg.DryRun {
		opts = append(opts, perfship.WithBeacon(beacon.NewWriter(os.Stdout)))
	}

	// A snapshot reads the recorder once, so it must wait for the fetches.
	var ready chan struct{}
	if cfg.EntriesFile == "" && cfg.Delay == 0 {
		ready = make(chan struct{})
		opts = append(opts, perfship.WithReady(ready))
	}

	c, err := perfship.New(cfg.Library(), opts...)
	if err != nil {
		return fmt.Errorf("create collector: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}

	if client := c.Client(); client != nil {
		fetchAll(ctx, client, urls, cfg.Concurrency, zl)
	}
	if ready != nil {
		close(ready)
	}

	select {
	case <-c.Done():
	case <-ctx.Done():
		zl.Info().Msg("received signal, stopping...")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout+time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop collector: %w", err)
	}
	zl.Info().Str("state", c.Status().String()).Msg("done")
	return nil
}

// fetchAll loads the first URL as the navigation, then the rest in parallel.
// Fetch failures are logged; the failed request is still recorded.
func fetchAll(ctx context.Context, client *http.Client, urls []string, concurrency int, zl zerolog.Logger) {
	fetch := func(ctx context.Context, u string) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			zl.Warn().Err(err).Str("url", u).Msg("bad URL")
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			zl.Warn().Err(err).Str("url", u).Msg("fetch failed")
			return
		}
		n, _ := io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		zl.Debug().Str("url", u).Int("status", resp.StatusCode).Int64("bytes", n).Msg("fetched")
	}

	fetch(trace.WithNavigation(ctx), urls[0])

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, u := range urls[1:] {
		u := u
		g.Go(func() error {
			fetch(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
}
