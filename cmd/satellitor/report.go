package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"satellitor-desktop/internal/report"
)

var (
	reportDir     string
	reportTimeout time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the PDF land analysis report for the stored analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openSession(false)
		if err != nil {
			return err
		}
		rec, err := repo.Analysis()
		if err != nil {
			return err
		}

		g := report.NewGenerator(settings.ReportURL, settings.RequestTimeout())
		g.OnChange(func(s report.State) {
			logVerbose("Report %s", s.Status)
		})
		defer g.Abandon()

		if err := g.Generate(cmd.Context(), rec.Analysis); err != nil {
			return err
		}
		fmt.Println("Generating report...")

		ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
		defer cancel()
		state, err := g.Wait(ctx)
		if err != nil {
			return fmt.Errorf("report not ready: %w", err)
		}
		if state.Status == report.StatusFailed {
			return fmt.Errorf("report generation failed: %s", state.Error)
		}

		dir := reportDir
		if dir == "" {
			dir = settings.DownloadPath
		}
		path, err := g.Download(dir)
		if err != nil {
			return err
		}

		fmt.Printf("Report saved to %s (%d bytes)\n", path, state.Size)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDir, "dir", "", "Directory to save the report in (defaults to the download folder)")
	reportCmd.Flags().DurationVar(&reportTimeout, "timeout", report.DefaultTimeout, "How long to wait for the report")
	rootCmd.AddCommand(reportCmd)
}
