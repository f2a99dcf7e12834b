package notify

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// XLSXContentType is the MIME type of the run report.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	summarySheet = "Summary"
	issuesSheet  = "Issues"
)

// Report renders a run as an XLSX workbook with a summary sheet and one row
// per warning or error.
func Report(res *model.SyncResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	run := res.Run
	c := run.Counters
	rows := [][]any{
		{"Run ID", run.ID},
		{"Status", string(run.Status)},
		{"Initiator", run.Initiator},
		{"Window start", run.Window.Start.Format("2006-01-02 15:04:05")},
		{"Window end", run.Window.End.Format("2006-01-02 15:04:05")},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration (s)", run.Duration.Seconds()},
		{"Dry run", run.Options.DryRun},
		{"Retrieved", c.Retrieved},
		{"Processed", c.Processed},
		{"Inserted", c.Inserted},
		{"Created", c.Created},
		{"Skipped", c.Skipped},
		{"Valid", c.Valid},
		{"Invalid", c.Invalid},
		{"Collapsed", c.Collapsed},
		{"Warnings", len(run.Warnings)},
		{"Errors", len(run.Errors)},
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(issuesSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	issues := [][]any{{"Severity", "Code", "Group", "Message"}}
	for _, i := range run.Errors {
		issues = append(issues, []any{"error", string(i.Code), i.Key, i.Message})
	}
	for _, i := range run.Warnings {
		issues = append(issues, []any{"warning", string(i.Code), i.Key, i.Message})
	}
	if err := writeRows(f, issuesSheet, issues); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
