package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/velmie/streambox"
	"github.com/velmie/streambox/sqlstore"
)

type cleanupOptions struct {
	boxes      []string
	retention  time.Duration
	checkEvery time.Duration
	limit      int
	lockName   string
	once       bool
}

func newCleanupCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &cleanupOptions{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished records past their retention",
		Long: `Delete FINISHED rows whose finished_at is older than --retention.

Pending rows are never touched. Without --once the command keeps running and repeats
every --check-every until interrupted. On MySQL and PostgreSQL an advisory lock per
table keeps concurrent runs from overlapping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.boxes, "box", nil, "limit to these boxes (repeatable)")
	cmd.Flags().DurationVar(&opts.retention, "retention", 0, "delete rows finished longer ago than this (required)")
	cmd.Flags().DurationVar(&opts.checkEvery, "check-every", time.Hour, "how often to run cleanup")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max rows deleted per run and table (0 uses default)")
	cmd.Flags().StringVar(&opts.lockName, "lock-name", "", "advisory lock name prefix (optional)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "run once and exit")

	return cmd
}

func runCleanup(cmd *cobra.Command, rootOpts *rootOptions, opts *cleanupOptions) error {
	boxes, err := rootOpts.cfg.selectBoxes(opts.boxes)
	if err != nil {
		return err
	}
	logger, err := rootOpts.logger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, stores, err := rootOpts.openStores(ctx, boxes)
	if err != nil {
		return err
	}
	defer base.Close()

	maintainers := make(map[string]*sqlstore.CleanupMaintainer, len(boxes))
	for _, box := range boxes {
		cfg := sqlstore.CleanupMaintainerConfig{
			Retention:  opts.retention,
			CheckEvery: opts.checkEvery,
			Limit:      opts.limit,
			Clock:      streambox.SystemClock{},
			Logger:     logger.With("box", box.Name),
		}
		if opts.lockName != "" {
			cfg.LockName = opts.lockName + ":" + box.table()
		}
		maintainer, err := sqlstore.NewCleanupMaintainer(stores[box.Name], cfg)
		if err != nil {
			return fmt.Errorf("box %q: init maintainer: %w", box.Name, err)
		}
		maintainers[box.Name] = maintainer
	}

	if opts.once {
		for _, box := range boxes {
			result, err := maintainers[box.Name].Ensure(ctx)
			if err != nil {
				return fmt.Errorf("box %q: cleanup: %w", box.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d\n", box.Name, result.Finished)
		}

		return nil
	}

	var wg sync.WaitGroup
	for name, maintainer := range maintainers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := maintainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("cleanup maintainer stopped", "box", name, "err", err)
			}
		}()
	}
	wg.Wait()

	return nil
}
