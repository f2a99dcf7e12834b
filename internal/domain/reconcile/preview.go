package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// lowSuccessPercent is the success rate below which validation recommends
// reviewing the data before running.
var lowSuccessPercent = decimal.NewFromInt(80)

// Preview reports what a run over w would touch. It never writes.
func (o *Orchestrator) Preview(ctx context.Context, w model.Window, opts model.RunOptions) (*model.PreviewResult, error) {
	cfg, err := o.settingsFor(opts)
	if err != nil {
		return nil, err
	}
	if err := o.checkWindow(w); err != nil {
		return nil, err
	}

	res := &model.PreviewResult{Window: w, Controllers: []string{}, Sample: []model.GroupSample{}}
	employees := make(map[string]struct{})
	controllers := make(map[string]struct{})
	sess := o.resolver.Session()

	err = o.eachBatch(ctx, w, cfg.batchSize, sess, func(ctx context.Context, b batch) bool {
		res.TotalTransactions += b.retrieved
		for _, key := range b.keys {
			punches, ok := b.groups[key]
			if !ok {
				continue
			}
			res.TotalGroups++
			employees[key.StaffNo] = struct{}{}
			for _, p := range punches {
				if p.Controller != "" {
					controllers[p.Controller] = struct{}{}
				}
			}
			if len(res.Sample) >= o.defaults.SampleSize {
				continue
			}
			out, err := o.evaluate(ctx, sess, key, punches, cfg)
			if err != nil {
				res.Warnings = append(res.Warnings, issueFor(key, err))
				continue
			}
			res.Sample = append(res.Sample, model.GroupSample{
				Key: key, Punches: len(punches), Record: out.record, Collapsed: len(out.match.Collapsed),
			})
		}
		return true
	})
	if err != nil {
		res.Warnings = append(res.Warnings, model.Issue{Code: model.IssueSource, Message: err.Error()})
	}

	res.Employees = len(employees)
	for c := range controllers {
		res.Controllers = append(res.Controllers, c)
	}
	sort.Strings(res.Controllers)
	res.EstimatedDuration = o.perGroup() * time.Duration(res.TotalGroups)
	res.EstimatedDurationMS = res.EstimatedDuration.Milliseconds()
	return res, nil
}

// perGroup is the measured time per group of the last run, or the
// configured estimate when there is none.
func (o *Orchestrator) perGroup() time.Duration {
	last, ok := o.LastRun()
	if ok && last.Counters.Processed > 0 && last.Duration > 0 && !last.Options.DryRun {
		return last.Duration / time.Duration(last.Counters.Processed)
	}
	return o.defaults.PerGroupEstimate
}

// Validate runs match and classify over w without persisting and reports
// data quality.
func (o *Orchestrator) Validate(ctx context.Context, w model.Window, opts model.RunOptions) (*model.ValidationResult, error) {
	cfg, err := o.settingsFor(opts)
	if err != nil {
		return nil, err
	}
	if err := o.checkWindow(w); err != nil {
		return nil, err
	}

	res := &model.ValidationResult{Window: w, Recommendations: []string{}, Issues: []model.Issue{}}
	missing := make(map[string]struct{})
	sess := o.resolver.Session()

	err = o.eachBatch(ctx, w, cfg.batchSize, sess, func(ctx context.Context, b batch) bool {
		res.TotalTransactions += b.retrieved
		for _, key := range b.keys {
			punches, ok := b.groups[key]
			if !ok {
				continue
			}
			res.TotalGroups++
			out, err := o.evaluate(ctx, sess, key, punches, cfg)
			if err != nil {
				res.Invalid++
				addIssue(res, issueFor(key, err))
				continue
			}
			if !out.found {
				res.MissingSchedules++
				if _, dup := missing[key.StaffNo]; !dup {
					missing[key.StaffNo] = struct{}{}
					addIssue(res, out.issues[0])
				}
			}
			res.OutOfRangeEvents += out.match.OutsideRange
			res.DuplicatePunches += len(out.match.Collapsed)
			res.AmbiguousMatches += len(out.match.Ambiguous)
			if out.record.ActualIn == nil {
				res.MissingIn++
			}
			if out.record.ActualOut == nil {
				res.MissingOut++
			}
			if out.record.Valid() {
				res.Valid++
			} else {
				res.Invalid++
			}
		}
		return true
	})
	if err != nil {
		addIssue(res, model.Issue{Code: model.IssueSource, Message: err.Error()})
	}

	res.SuccessPercent = successPercent(res.Valid, res.TotalGroups)
	res.Recommendations = recommend(res, len(missing))
	return res, nil
}

func addIssue(res *model.ValidationResult, i model.Issue) {
	if len(res.Issues) < maxIssues {
		res.Issues = append(res.Issues, i)
	}
}

func issueFor(key model.GroupKey, err error) model.Issue {
	code := model.IssueValidationFailure
	var ge *groupError
	if errors.As(err, &ge) {
		code = ge.code
	}
	return model.Issue{Code: code, Key: key.String(), Message: err.Error()}
}

// successPercent is valid/total as a percentage with two decimals.
func successPercent(valid, total int) string {
	if total == 0 {
		return decimal.Zero.StringFixed(2)
	}
	return decimal.NewFromInt(int64(valid)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		StringFixed(2)
}

func recommend(res *model.ValidationResult, staffWithoutSchedule int) []string {
	var out []string
	if res.TotalGroups == 0 {
		return append(out, "No pending transactions in the window; nothing to sync.")
	}
	if staffWithoutSchedule > 0 {
		out = append(out, fmt.Sprintf("Assign a shift schedule to %d employee(s); their days cannot be evaluated.", staffWithoutSchedule))
	}
	if res.OutOfRangeEvents > 0 {
		out = append(out, fmt.Sprintf("Review %d outside-range read(s); enable outside_range_fallback to use them when a day has no regular punch.", res.OutOfRangeEvents))
	}
	if res.DuplicatePunches > 0 {
		out = append(out, fmt.Sprintf("%d duplicate read(s) will be collapsed; check controllers for double reads.", res.DuplicatePunches))
	}
	if res.AmbiguousMatches > 0 {
		out = append(out, fmt.Sprintf("%d edge(s) have no single closest punch; consider FILO matching.", res.AmbiguousMatches))
	}
	if res.MissingOut > 0 && res.MissingOut*2 >= res.TotalGroups {
		out = append(out, "Half or more of the days have no clock-out; if a controller was down, run with a manual clock-out time.")
	}
	if pct, err := decimal.NewFromString(res.SuccessPercent); err == nil && pct.LessThan(lowSuccessPercent) {
		out = append(out, "Success rate is below "+lowSuccessPercent.String()+"%; review the data before running the sync.")
	}
	if len(out) == 0 {
		out = append(out, "Data looks consistent; safe to run the sync.")
	}
	return out
}
