package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dripsheet/dripsheet/internal/model"
	"github.com/dripsheet/dripsheet/internal/service"
)

var (
	runRows   []int
	runLimit  int
	runAsJSON bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send the next campaign email to every eligible contact",
	RunE:  runCampaign,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what run would send without sending or writing anything",
	RunE:  runPlan,
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, planCmd} {
		cmd.Flags().IntSliceVar(&runRows, "rows", nil, "sheet row numbers to process, as shown in the spreadsheet (default: all)")
		cmd.Flags().IntVar(&runLimit, "limit", 0, "maximum emails to send, overrides campaign.email_limit")
		cmd.Flags().BoolVar(&runAsJSON, "json", false, "print the report as JSON")
		rootCmd.AddCommand(cmd)
	}
}

// runOptions converts spreadsheet row numbers into data row indices.
func runOptions() (service.RunOptions, error) {
	opts := service.RunOptions{Limit: runLimit}
	for _, n := range runRows {
		if n < 2 {
			return opts, fmt.Errorf("row %d is not a data row; the first contact is on row 2", n)
		}
		opts.Rows = append(opts.Rows, n-2)
	}
	return opts, nil
}

func runCampaign(cmd *cobra.Command, args []string) error {
	opts, err := runOptions()
	if err != nil {
		return err
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.svc.Run(cmd.Context(), opts)
	if err := printReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if report.Unreconciled > 0 {
		return errUnreconciled
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts, err := runOptions()
	if err != nil {
		return err
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Plan(cmd.Context(), opts)
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, report model.RunReport) error {
	if runAsJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tEMAIL\tSTEP\tSTATUS\tDETAIL")
	for _, o := range report.Outcomes {
		detail := o.MessageID
		if o.Err != nil {
			detail = o.Err.Error()
		}
		status := string(o.Status)
		if o.Unreconciled {
			status += " (UNRECONCILED)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", o.SheetRow, o.ContactEmail, o.Step, status, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if report.DryRun {
		_, err := fmt.Fprintf(w, "\n%d ready, %d skipped, %d failed (dry run, nothing sent)\n",
			report.Ready, report.Skipped, report.Failed)
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d sent, %d skipped, %d failed, %d unreconciled\n",
		report.Sent, report.Skipped, report.Failed, report.Unreconciled)
	return err
}
