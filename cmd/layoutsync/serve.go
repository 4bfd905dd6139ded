package main

import (
	"github.com/spf13/cobra"

	"layoutsync/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			if err := a.setup(true); err != nil {
				return err
			}
			ctx := cmd.Context()
			runner, err := a.runner(ctx)
			if err != nil {
				return err
			}
			srv := httpapi.NewServer(httpapi.Config{
				Addr:           a.cfg.Addr,
				MaxUploadBytes: a.cfg.MaxUploadBytes(),
				Logger:         a.logger.Named("http"),
			}, runner)
			return srv.ListenAndServe(ctx)
		},
	}
}
