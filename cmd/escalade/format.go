package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pterm/pterm"

	"github.com/EscaladeProject/escalade/pkg/escalator"
)

func printReportTable(report *escalator.Report) error {
	pterm.DefaultSection.Printf("Escalation run %s (%s)\n", report.RunID, report.Test)

	table := tablewriter.NewWriter(os.Stdout)
	table.Append([]string{"Tier", "Cost Rank", "Outcome", "Failed Step", "Duration", "Teardown", "Artifacts"})

	for _, rec := range report.Records {
		teardown := "ok"
		if rec.ClusterID == "" {
			teardown = "-"
		}
		if rec.TeardownErr != "" {
			teardown = "UNCONFIRMED"
		}
		if report.KeptClusterID != "" && rec.ClusterID == report.KeptClusterID {
			teardown = "kept"
		}

		table.Append([]string{
			rec.Tier,
			fmt.Sprintf("%d", rec.CostRank),
			string(rec.Outcome),
			orDash(rec.FailedStep),
			formatDuration(rec.Duration),
			teardown,
			orDash(rec.ArtifactDir),
		})
	}
	table.Render()

	switch report.Final {
	case escalator.FinalDone:
		winner := report.Records[len(report.Records)-1]
		pterm.Success.Printfln("Pipeline succeeded on tier %q", winner.Tier)
		if report.KeptClusterID != "" {
			pterm.Info.Printfln("Cluster %s kept running", report.KeptClusterID)
		}
	case escalator.FinalExhausted:
		pterm.Error.Printfln("All %d tiers failed", len(report.Records))
	case escalator.FinalCancelled:
		pterm.Warning.Printfln("Run cancelled after %d tier(s)", len(report.Records))
	}

	for _, rec := range report.TeardownWarnings() {
		pterm.Warning.Printfln("Cluster %s (tier %s) may still be running: %s",
			rec.ClusterID, rec.Tier, rec.TeardownErr)
	}

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
