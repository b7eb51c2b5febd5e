package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/console"
)

func newExportCmd(a *app) *cobra.Command {
	var format, from, to, dir string
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Download audit log entries as CSV",
		Example: `  lexconsole export --from 2024-01-01 --to 2024-01-31 --dir ./exports`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.authorize(); err != nil {
				return err
			}
			fromTime, err := parseBound(from, false)
			if err != nil {
				return err
			}
			toTime, err := parseBound(to, true)
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

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout)
			defer cancel()
			artifact, ok := view.Export(ctx, console.ExportRequest{Format: format, From: fromTime, To: toTime})
			notice := <-view.Notices()
			if !ok {
				return fmt.Errorf("%s", notice.Message)
			}
			path := filepath.Join(dir, artifact.Name)
			if err := os.WriteFile(path, artifact.Data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(a.stdout, "%s -> %s\n", notice.Message, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", audit.ExportFormatCSV, "export format")
	cmd.Flags().StringVar(&from, "from", "", "earliest timestamp (yyyy-mm-dd or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest timestamp (yyyy-mm-dd or RFC 3339)")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write the export into")
	return cmd
}
