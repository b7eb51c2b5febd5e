package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/console"
)

func newDashboardCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Show system stats, health, security and performance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.authorize(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			poller := console.NewPoller[admin.Snapshot](a.pollerOptions())
			defer poller.Close()
			view := console.NewDashboardView(client, poller)
			view.Mount()
			defer view.Unmount()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDashboardView(ctx, a, poller, view, watch)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and redraw on every refresh")
	return cmd
}

func runDashboardView(ctx context.Context, a *app, poller *console.Poller[admin.Snapshot], view *console.DashboardView, watch bool) error {
	renderer := console.NewRenderer(a.stdout)
	settled := func() bool {
		s := view.Model().Status
		return s == console.StatusSuccess || s == console.StatusFailed
	}
	if err := waitSettled(ctx, poller.Changes(), settled); err != nil {
		return err
	}
	vm := view.Model()
	if err := renderer.Dashboard(vm); err != nil {
		return err
	}
	if err := decisionError(vm.Decision); err != nil {
		return err
	}
	if !watch {
		return vm.Err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poller.Changes():
			vm := view.Model()
			if vm.Status == console.StatusLoading {
				continue
			}
			fmt.Fprintln(a.stdout)
			if err := renderer.Dashboard(vm); err != nil {
				return err
			}
			if err := decisionError(vm.Decision); err != nil {
				return err
			}
		}
	}
}
