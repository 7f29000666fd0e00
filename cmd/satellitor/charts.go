package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"satellitor-desktop/internal/results"
)

var (
	chartsOut   string
	chartsTheme string
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Render the land cover charts of the stored analysis as HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openSession(false)
		if err != nil {
			return err
		}
		rec, err := repo.Analysis()
		if err != nil {
			return err
		}

		ds := results.Transform(rec.Analysis)
		if ds.Len() == 0 {
			return fmt.Errorf("the stored analysis has no land cover categories")
		}

		opts := results.DefaultChartOptions()
		if chartsTheme != "" {
			opts.Theme = chartsTheme
		}

		if chartsOut == "-" {
			return results.RenderCharts(os.Stdout, ds, opts)
		}

		f, err := os.Create(chartsOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", chartsOut, err)
		}
		if err := results.RenderCharts(f, ds, opts); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Printf("Charts for %d categories written to %s\n", ds.Len(), chartsOut)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openSession(false)
		if err != nil {
			return err
		}
		rec, err := repo.Analysis()
		if err != nil {
			return err
		}

		printSummary(results.Summarize(rec.Coordinates, rec.Analysis))
		if crops := rec.Analysis.BestCrops; len(crops) > 0 {
			fmt.Printf("\nBest crops\n")
			fmt.Printf("----------\n")
			for _, c := range crops {
				fmt.Printf("  %-20s %s\n", c.Name, c.Data.Category)
			}
		}
		return nil
	},
}

func init() {
	chartsCmd.Flags().StringVarP(&chartsOut, "out", "o", "charts.html", "Output file, - for stdout")
	chartsCmd.Flags().StringVar(&chartsTheme, "theme", "", "ECharts theme (dark, light, ...)")
	rootCmd.AddCommand(chartsCmd)
	rootCmd.AddCommand(showCmd)
}
