package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readinglog/internal/entrypoint"
	"github.com/mrlokans/readinglog/internal/insights"
)

func newInsightsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show reading totals, the daily series and current books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(false, func(app *entrypoint.App) error {
				out := cmd.OutOrStdout()

				summary, err := app.Insights.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				if !summary.HasSessions() {
					fmt.Fprintln(out, "No reading sessions yet")
					return nil
				}
				fmt.Fprintln(out, summaryTable(summary))

				if daily := summary.Daily(); len(daily) > 0 {
					rows := make([][]string, 0, len(daily))
					for _, d := range daily {
						rows = append(rows, []string{d.Date, d.Label, strconv.Itoa(d.PagesRead), strconv.Itoa(d.Sessions)})
					}
					fmt.Fprintln(out, renderTable("Pages per day",
						[]string{"Date", "Day", "Pages", "Sessions"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
				}

				reading, err := app.Insights.CurrentlyReading(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(reading) > 0 {
					rows := make([][]string, 0, len(reading))
					for _, r := range reading {
						rows = append(rows, []string{
							r.Name,
							fmt.Sprintf("%d/%d", r.PagesRead, r.TotalPages),
							fmt.Sprintf("%.2f%%", r.Percent),
							r.Message,
						})
					}
					fmt.Fprintln(out, renderTable("Currently reading",
						[]string{"Book", "Pages", "Done", ""}, rows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", insights.DefaultReadingLimit, "Number of current books to show")
	return cmd
}

func summaryTable(s *insights.Insights) string {
	rows := [][]string{
		{"Sessions", strconv.Itoa(s.TotalSessions)},
		{"Pages read", strconv.Itoa(s.TotalPagesRead)},
		{"Time read", insights.FormatDuration(s.TotalDurationMs)},
		{"Pages per session", fmt.Sprintf("%.1f", s.AveragePagesPerSession)},
		{"Time per session", insights.FormatDuration(int64(s.AverageTimePerSessionMs))},
	}
	return renderTable("Reading insights", []string{"Metric", "Value"}, rows,
		[]columnAlignment{alignLeft, alignRight})
}
