package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/console"
)

type auditFlags struct {
	page         int
	perPage      int
	userID       int64
	action       string
	resourceType string
	from         string
	to           string
	search       string
	risk         string
	watch        bool
}

func (f auditFlags) query() (audit.Query, error) {
	from, err := parseBound(f.from, false)
	if err != nil {
		return audit.Query{}, err
	}
	to, err := parseBound(f.to, true)
	if err != nil {
		return audit.Query{}, err
	}
	return audit.Query{
		Page:         f.page,
		PerPage:      f.perPage,
		UserID:       f.userID,
		Action:       audit.Action(f.action),
		ResourceType: f.resourceType,
		From:         from,
		To:           to,
	}, nil
}

func newAuditCmd(a *app) *cobra.Command {
	var f auditFlags
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show audit log entries with security metrics",
		Example: `  lexconsole audit --action login --from 2024-03-01
  lexconsole audit --search 192.168 --risk high --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.authorize(); err != nil {
				return err
			}
			q, err := f.query()
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			poller := console.NewPoller[audit.Page](a.pollerOptions())
			defer poller.Close()
			view := console.NewAuditView(client, poller, a.clock)
			if !view.SetFilter(console.Filter{Search: f.search, Risk: console.RiskFilter(f.risk)}) {
				return fmt.Errorf("invalid risk filter %q", f.risk)
			}
			if !view.SetQuery(q) {
				return errors.New("invalid audit query: check page, per-page, action and date range")
			}
			defer view.Unmount()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runAuditView(ctx, a, poller, view, f.watch)
		},
	}
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.perPage, "per-page", audit.DefaultPerPage, "entries per page")
	cmd.Flags().Int64Var(&f.userID, "user-id", 0, "only entries of this user")
	cmd.Flags().StringVar(&f.action, "action", "", "only entries with this action")
	cmd.Flags().StringVar(&f.resourceType, "resource-type", "", "only entries on this resource type")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest timestamp (yyyy-mm-dd or RFC 3339)")
	cmd.Flags().StringVar(&f.to, "to", "", "latest timestamp (yyyy-mm-dd or RFC 3339)")
	cmd.Flags().StringVar(&f.search, "search", "", "filter the loaded page by user, description, IP or resource")
	cmd.Flags().StringVar(&f.risk, "risk", string(console.RiskAll), "filter the loaded page by risk: all, low, medium, high, critical")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "keep polling and redraw on every refresh")
	return cmd
}

func runAuditView(ctx context.Context, a *app, poller *console.Poller[audit.Page], view *console.AuditView, watch bool) error {
	renderer := console.NewRenderer(a.stdout)
	settled := func() bool {
		s := view.Model().Status
		return s == console.StatusSuccess || s == console.StatusFailed
	}
	if err := waitSettled(ctx, poller.Changes(), settled); err != nil {
		return err
	}
	vm := view.Model()
	if err := renderer.Audit(vm); err != nil {
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
			if err := renderer.Audit(vm); err != nil {
				return err
			}
			if err := decisionError(vm.Decision); err != nil {
				return err
			}
		}
	}
}
