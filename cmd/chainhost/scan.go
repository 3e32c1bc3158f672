package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-pluginhost/host/catalog"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

func newScanCmd(a *app) *cobra.Command {
	var watch, rescan bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover installed plugins and update the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			known, err := a.loadKnown()
			if err != nil {
				return err
			}

			if err := a.scanOnce(cmd.Context(), known, rescan); err != nil {
				return err
			}

			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return a.watch(ctx, known)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and rescan when plugin files change")
	cmd.Flags().BoolVar(&rescan, "rescan", false, "describe plugins that are already in the catalog again")

	return cmd
}

func (a *app) scanOnce(ctx context.Context, known *catalog.KnownList, rescan bool) error {
	if a.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.cfg.ScanTimeout)
		defer cancel()
	}

	scanner := catalog.NewScanner(a.formats, known,
		catalog.WithLogger(a.logger), catalog.WithRescan(rescan))

	result, err := scanner.Scan(ctx, a.cfg.SearchPaths)
	if err != nil {
		return err
	}

	if err := known.Save(a.cfg.CatalogPath); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "found %d, failed %d, skipped %d, %d in catalog (%s)\n",
		len(result.Found), len(result.Failed), result.Skipped, known.Len(), result.Duration.Round(time.Millisecond))

	if result.Cancelled {
		return errors.New("scan cancelled before it finished")
	}

	return nil
}

// searchDirs returns the directories every discoverable format scans.
func (a *app) searchDirs() []string {
	var dirs []string

	for _, f := range a.formats.Formats() {
		d, ok := f.(plugin.Discoverer)
		if !ok {
			continue
		}

		paths, ok := a.cfg.SearchPaths[f.Name()]
		if !ok {
			paths = d.DefaultSearchPaths()
		}

		dirs = append(dirs, paths...)
	}

	return dirs
}

// watch rescans whenever the watcher reports a settled burst of changes.
// Bursts that arrive during a rescan collapse into one follow-up rescan.
func (a *app) watch(ctx context.Context, known *catalog.KnownList) error {
	w := catalog.NewWatcher(a.searchDirs(), catalog.WithLogger(a.logger))
	changes := make(chan []string, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(changes)

		return w.Run(gctx, func(paths []string) {
			select {
			case changes <- paths:
			default:
			}
		})
	})

	g.Go(func() error {
		for paths := range changes {
			a.logger.Info("plugin files changed, rescanning", "paths", len(paths))
			pruneMissing(known, paths)

			if err := a.scanOnce(gctx, known, false); err != nil && gctx.Err() == nil {
				a.logger.Warn("rescan failed", "error", err)
			}
		}

		return nil
	})

	fmt.Fprintln(a.stdout, "watching for plugin changes, interrupt to stop")

	return g.Wait()
}

// pruneMissing drops catalog entries whose file was among paths and no
// longer exists.
func pruneMissing(known *catalog.KnownList, paths []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			continue
		}

		for _, d := range known.Descriptors() {
			if d.Path == p {
				known.Remove(d.Identifier())
			}
		}
	}
}
