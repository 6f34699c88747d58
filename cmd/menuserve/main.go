// Copyright 2025 The MenuServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main runs the menuserve catalog engine as a msgpack IPC server or as
an interactive CLI [DBG].

menuserve keeps restaurants and menu items in prefix indexes fronted by
Bloom filters and LRU caches, orders pending work in a priority queue and
ranks dishes by collaborative filtering over user ratings.

# Usage

Start the server over a catalog file:

	menuserve --catalog catalog.yaml

Reload the indexes whenever the catalog file changes:

	menuserve --catalog catalog.toml --watch

Run in CLI mode for interactive testing:

	menuserve --cli --catalog catalog.yaml --limit 10 -d

Catalog files may be YAML (.yaml, .yml), TOML (.toml) or msgpack (.msgpack,
.mpk). Relative paths are looked up in the working dir, next to the
executable and in the config dir.

# Configuration

Runtime configuration lives in a TOML file, created with defaults on first
run:

	[search]
	ttl_seconds = 300
	default_limit = 20

	[dispatch]
	capacity = 10000
	compact_ratio = 0.5
	workers = 4

	[server]
	max_limit = 64
	min_prefix = 1
	max_prefix = 60
	enable_filter = false

See the config package for every section.

# IPC Protocol

The server reads msgpack requests from stdin and writes responses to stdout.
Logs always go to stderr.

	{"id": "req1", "op": "search_restaurants", "q": "piz", "l": 10}
	{"id": "req1", "status": "ok", "results": [...], "c": 2, "t": 41}

See the server package for every op.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastiangx/menuserve/internal/cli"
	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/config"
	"github.com/bastiangx/menuserve/pkg/engine"
	"github.com/bastiangx/menuserve/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	urfave "github.com/urfave/cli/v2"
)

const (
	Version = "0.3.0-beta"
	AppName = "menuserve"
	gh      = "https://github.com/bastiangx/menuserve"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func newApp() *urfave.App {
	defaults := config.DefaultConfig()
	urfave.VersionPrinter = printVersion

	return &urfave.App{
		Name:    AppName,
		Usage:   "Fast catalog search, order dispatch and recommendations over msgpack IPC",
		Version: Version,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  "config",
				Usage: "Path to config.toml (default: user config dir)",
			},
			&urfave.StringFlag{
				Name:  "catalog",
				Usage: "Catalog file to index (yaml, toml or msgpack)",
			},
			&urfave.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Toggle debug mode",
			},
			&urfave.BoolFlag{
				Name:    "cli",
				Aliases: []string{"c"},
				Usage:   "Run CLI -- useful for testing and debugging",
			},
			&urfave.BoolFlag{
				Name:  "watch",
				Usage: "Rebuild indexes when the catalog file changes",
			},
			&urfave.IntFlag{
				Name:  "limit",
				Usage: "Number of results to show per section in CLI mode",
				Value: defaults.Search.DefaultLimit,
			},
			&urfave.IntFlag{
				Name:  "prmin",
				Usage: "Minimum query length in CLI mode",
				Value: defaults.Server.MinPrefix,
			},
			&urfave.IntFlag{
				Name:  "prmax",
				Usage: "Maximum query length in CLI mode",
				Value: defaults.Server.MaxPrefix,
			},
			&urfave.BoolFlag{
				Name:  "no-filter",
				Usage: "Disable input filtering (DBG only)",
			},
			&urfave.BoolFlag{
				Name:  "rebuild-config",
				Usage: "Overwrite the default config.toml with defaults and exit",
			},
		},
		Action: run,
	}
}

// run only manages the flow; every piece of logic lives in the packages.
func run(c *urfave.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("rebuild-config") {
		if err := config.RebuildConfigFile(); err != nil {
			return fmt.Errorf("rebuild config: %w", err)
		}
		log.Info("Rebuilt config file with defaults")
		return nil
	}

	cfg, configPath, err := config.LoadConfigWithPriority(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Warnf("%v, keeping default level", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	catalogPath := cfg.Catalog.Path
	if c.IsSet("catalog") {
		catalogPath = c.String("catalog")
	}
	src, resolved := resolveSource(catalogPath)

	var opts []engine.Option
	if src != nil {
		opts = append(opts, engine.WithSource(src))
	}
	e, err := engine.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	if src != nil {
		if err := e.Load(ctx); err != nil {
			return fmt.Errorf("load catalog %s: %w", resolved, err)
		}
		if c.Bool("watch") || cfg.Catalog.Watch {
			if err := e.WatchCatalog(resolved, cfg.Catalog.Debounce()); err != nil {
				return err
			}
			log.Debugf("Watching catalog: %s", resolved)
		}
	} else {
		log.Warn("No catalog found, running with empty indexes...")
	}

	// CLI would be mainly used for testing and dbg purposes.
	if c.Bool("cli") {
		noFilter := c.Bool("no-filter") || !cfg.Server.EnableFilter
		log.SetReportTimestamp(false)
		log.Debug("Input info:",
			"minPrefix", c.Int("prmin"),
			"maxPrefix", c.Int("prmax"),
			"limit", c.Int("limit"),
			"noFilter", noFilter)

		handler := cli.NewInputHandler(e.Search, c.Int("prmin"), c.Int("prmax"), c.Int("limit"), noFilter)
		return handler.Start()
	}

	showStartupInfo(resolved, e)
	srv := server.NewServer(e)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// resolveSource finds the catalog file and wraps it in a FileSource. It
// returns nil when no usable file is found.
func resolveSource(path string) (catalog.Source, string) {
	if path == "" {
		return nil, ""
	}
	resolved := path
	if pr, err := utils.NewPathResolver(); err == nil {
		if found, err := pr.ResolveCatalog(path); err == nil {
			resolved = found
		}
	}
	if !utils.FileExists(resolved) {
		log.Warnf("Catalog not found: %s", path)
		return nil, ""
	}
	src, err := catalog.NewFileSource(resolved)
	if err != nil {
		log.Warnf("Unusable catalog %s: %v", resolved, err)
		return nil, ""
	}
	return src, resolved
}

func printVersion(c *urfave.Context) {
	l := logger.NewWithConfig(os.Stderr, "", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ MenuServe ] Serves really fast catalog search!")
	l.Print("", "version", c.App.Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
// stdout carries the IPC stream, so everything goes to stderr.
func showStartupInfo(catalogPath string, e *engine.Engine) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	fmt.Fprintln(os.Stderr, "===========")
	fmt.Fprintln(os.Stderr, " MenuServe ")
	fmt.Fprintln(os.Stderr, "===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("catalog: ( %s )", catalogPath)
	stats := e.Search.Stats()
	log.Infof("indexed: %s restaurants, %s menu items",
		utils.FormatWithCommas(stats["restaurant.entities"]),
		utils.FormatWithCommas(stats["menu_item.entities"]))
	log.Infof("status: %s", e.Search.State())
	if builtAt := e.Search.BuiltAt(); !builtAt.IsZero() {
		log.Infof("built at: %s (generation %d)", builtAt.Format(time.RFC3339), e.Search.Generation())
	}
	fmt.Fprintln(os.Stderr, "===========")
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
