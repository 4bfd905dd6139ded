package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"layoutsync/internal/fixedwidth"
	"layoutsync/internal/layout"
)

// checkReport is what check prints.
type checkReport struct {
	Valid    bool                   `json:"valid"`
	Encoding string                 `json:"encoding"`
	Columns  int                    `json:"columns"`
	Width    int                    `json:"width"`
	Records  int                    `json:"records"`
	Adjusted int                    `json:"adjusted"`
	Issues   []fixedwidth.LineIssue `json:"issues"`
	Elapsed  string                 `json:"elapsed"`
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <data.txt> <layout.txt>",
		Short: "Validate a data file against its layout without touching a database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			if err := a.setup(false); err != nil {
				return err
			}
			start := time.Now()

			specs, err := layout.ReadFile(args[1])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read data file: %w", err)
			}

			dec := a.decoder()
			preferred := strings.TrimSpace(a.cfg.Encoding)
			issues, enc, err := dec.Validate(data, specs, preferred)
			if err != nil {
				return err
			}
			res, err := dec.Decode(data, specs, preferred)
			if err != nil {
				return err
			}

			rep := checkReport{
				Valid:    len(issues) == 0,
				Encoding: enc,
				Columns:  len(specs),
				Width:    layout.ExpectedLength(specs),
				Records:  len(res.Records),
				Adjusted: res.Adjusted,
				Issues:   issues,
				Elapsed:  time.Since(start).Round(time.Millisecond).String(),
			}
			if rep.Issues == nil {
				rep.Issues = []fixedwidth.LineIssue{}
			}
			out := json.NewEncoder(a.stdout)
			out.SetIndent("", "  ")
			if err := out.Encode(rep); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !rep.Valid {
				return errReported
			}
			return nil
		},
	}
}
