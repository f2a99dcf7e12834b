package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// maxListedIssues caps the issues spelled out in a text summary.
const maxListedIssues = 5

// Summary formats a run as a short plain text message.
func Summary(title string, res *model.SyncResult) string {
	run := res.Run
	c := run.Counters
	var b strings.Builder

	fmt.Fprintf(&b, "*%s*\n", title)
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(run.Status)))
	fmt.Fprintf(&b, "Window: %s to %s\n",
		run.Window.Start.Format("2006-01-02 15:04"), run.Window.End.Format("2006-01-02 15:04"))
	if run.Options.DryRun {
		b.WriteString("Mode: dry run (nothing written)\n")
	}
	fmt.Fprintf(&b, "Retrieved: %d | Processed: %d | Inserted: %d | Skipped: %d\n",
		c.Retrieved, c.Processed, c.Inserted, c.Skipped)
	fmt.Fprintf(&b, "Valid: %d | Invalid: %d | Duplicates collapsed: %d\n", c.Valid, c.Invalid, c.Collapsed)
	fmt.Fprintf(&b, "Duration: %s\n", run.Duration.Round(time.Millisecond))

	listIssues(&b, "Errors", run.Errors)
	listIssues(&b, "Warnings", run.Warnings)
	fmt.Fprintf(&b, "Run ID: %s", run.ID)
	return b.String()
}

func listIssues(b *strings.Builder, label string, issues []model.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", label, len(issues))
	for i, issue := range issues {
		if i == maxListedIssues {
			fmt.Fprintf(b, "  ... and %d more\n", len(issues)-maxListedIssues)
			break
		}
		fmt.Fprintf(b, "  - %s\n", issue)
	}
}
