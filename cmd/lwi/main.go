package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lwi/internal/config"
	"github.com/standardbeagle/lwi/internal/debug"
	"github.com/standardbeagle/lwi/internal/engine"
	"github.com/standardbeagle/lwi/internal/index"
	"github.com/standardbeagle/lwi/internal/mcp"
	"github.com/standardbeagle/lwi/internal/version"
	"github.com/standardbeagle/lwi/internal/watch"
	"github.com/standardbeagle/lwi/internal/workspace"
)

func main() {
	app := &cli.App{
		Name:                   "lwi",
		Usage:                  "Live workspace index for AI assistants",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "solution",
				Aliases: []string{"s"},
				Usage:   "Solution file path (discovered under root when omitted)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Watch the workspace and serve the index over MCP on stdio",
				Action: runServe,
			},
			{
				Name:      "search",
				Usage:     "Load the workspace once and search symbols",
				ArgsUsage: "<pattern>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum results",
						Value: 50,
					},
				},
				Action: runSearch,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Println(version.FullInfo())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadWorkspace resolves configuration, loads the graph, and returns the
// running synchronizer pieces.
func loadWorkspace(ctx context.Context, c *cli.Context) (*config.Config, *workspace.Synchronizer, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}
	if sln := c.String("solution"); sln != "" {
		cfg.Workspace.Solution = sln
	}
	if cfg.Workspace.Solution == "" {
		sln, err := discoverSolution(cfg.Workspace.Root)
		if err != nil {
			return nil, nil, err
		}
		cfg.Workspace.Solution = sln
	}

	eng := engine.New(cfg.Watch.MaxFileSize)
	snap, err := eng.LoadGraph(ctx, cfg.Workspace.Solution)
	if err != nil {
		return nil, nil, fmt.Errorf("initial load failed: %w", err)
	}

	store := workspace.NewStore(snap)
	ref := index.NewRef()
	sync := workspace.NewSynchronizer(store, eng, ref, cfg.Backoff())
	sync.RebuildIndex(snap)
	return cfg, sync, nil
}

// discoverSolution finds a single solution file directly under root.
func discoverSolution(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*.sln"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no solution file found under %s; pass --solution", root)
	}
	if len(matches) > 1 {
		sort.Strings(matches)
		log.Printf("Warning: multiple solution files under %s, using %s", root, matches[0])
	}
	return matches[0], nil
}

func runServe(c *cli.Context) error {
	// Stdio carries the protocol, so diagnostics must stay off it.
	debug.SetMCPMode(true)
	if debug.IsDebugEnabled() {
		if path, err := debug.InitDebugLogFile(); err == nil {
			defer debug.CloseDebugLog()
			log.Printf("Debug log: %s", path)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, sync, err := loadWorkspace(ctx, c)
	if err != nil {
		return err
	}

	aggregator := watch.NewAggregator(sync, cfg.Debounce())
	defer aggregator.Shutdown()

	watcher, err := watch.NewWatcher(aggregator, cfg.Workspace.Root, cfg.Exclude, cfg.Watch.MaxFileSize)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	return mcp.NewServer(sync, aggregator).Run(ctx)
}

func runSearch(c *cli.Context) error {
	pattern := c.Args().First()
	if pattern == "" {
		return fmt.Errorf("usage: lwi search <pattern>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, sync, err := loadWorkspace(ctx, c)
	if err != nil {
		return err
	}

	max := c.Int("max")
	n := 0
	for ref := range sync.Index().Load().Search(pattern) {
		if n >= max {
			fmt.Printf("... truncated at %d results\n", max)
			break
		}
		fmt.Println(ref.String())
		n++
	}
	if n == 0 {
		fmt.Println("no symbols matched")
	}
	return nil
}
