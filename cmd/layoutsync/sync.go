package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"layoutsync/internal/datasource"
	"layoutsync/internal/datasource/file"
	"layoutsync/internal/datasource/httpds"
	"layoutsync/internal/ingest"
)

func newSyncCmd(a *app) *cobra.Command {
	var (
		retries  int
		insecure bool
	)
	cmd := &cobra.Command{
		Use:   "sync <bundle.zip|url>",
		Short: "Sync every table of a ZIP bundle and print the report as JSON",
		Long: "Sync every <table>.txt / <table>_layout.txt pair of a ZIP bundle. The bundle is a\n" +
			"local path or an http(s) URL. The command exits with status 1 when any table fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			if err := a.setup(true); err != nil {
				return err
			}
			ctx := cmd.Context()
			runner, err := a.runner(ctx)
			if err != nil {
				return err
			}

			var src datasource.Source
			if target := args[0]; strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				client := httpds.NewClient(httpds.Config{
					MaxRetries:         retries,
					InsecureSkipVerify: insecure,
					Logger:             a.logger.Named("download"),
				})
				src = httpds.NewRemote(client, target)
			} else {
				src = file.NewLocal(target)
			}

			rep, runErr := runner.Run(ctx, ingest.NewID(), src)

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if runErr != nil || !rep.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&retries, "retries", 3, "Retries for transient download failures")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification when downloading")
	return cmd
}
