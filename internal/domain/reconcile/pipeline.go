package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/classify"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/dedupe"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/match"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
	"github.com/widjis/attend-now-report-view-sub001/pkg/metrics"
)

// batch is one page of groups, complete across all sources.
type batch struct {
	keys   []model.GroupKey
	groups map[model.GroupKey][]model.RawTransaction
	// retrieved counts the transactions assigned to the batch's groups
	retrieved int
}

// sourceError marks a failure to page or fetch from a source.
type sourceError struct {
	source string
	err    error
}

func (e *sourceError) Error() string { return fmt.Sprintf("source %s: %v", e.source, e.err) }
func (e *sourceError) Unwrap() error { return e.err }

// eachBatch pages pending group keys from every source and hands complete
// groups to fn. A group is handed over once per call, even when the
// overnight shift it belongs to spans two pages.
func (o *Orchestrator) eachBatch(ctx context.Context, w model.Window, size int, sess *schedule.Session, fn func(ctx context.Context, b batch) bool) error {
	emitted := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
	var after model.GroupKey
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		keys, more, err := o.pendingKeys(ctx, w, after, size)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		after = keys[len(keys)-1]

		b, err := o.fetch(ctx, w, keys, sess, emitted)
		if err != nil {
			return err
		}
		if !fn(ctx, b) || !more {
			return nil
		}
	}
}

// pendingKeys merges the next page of keys from all sources. more is true
// while any source may still have keys past the page.
func (o *Orchestrator) pendingKeys(ctx context.Context, w model.Window, after model.GroupKey, limit int) ([]model.GroupKey, bool, error) {
	seen := make(map[model.GroupKey]struct{})
	var merged []model.GroupKey
	more := false
	for _, src := range o.sources {
		var keys []model.GroupKey
		err := o.call(ctx, "pending_keys", func(ctx context.Context) error {
			var err error
			keys, err = src.PendingKeys(ctx, w, after, limit)
			return err
		})
		if err != nil {
			return nil, false, &sourceError{source: src.Name(), err: err}
		}
		if len(keys) >= limit {
			more = true
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, k)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Less(merged[j]) })
	if len(merged) > limit {
		merged = merged[:limit]
		more = true
	}
	return merged, more, nil
}

// fetch loads the punches of a page and groups them by work date. The next
// calendar day of every key is fetched too, past the window end, so an
// overnight shift receives its clock-out. A punch regrouped onto the
// previous day joins the page when that shift starts inside the window.
// Groups already handed over by this pass are dropped.
func (o *Orchestrator) fetch(ctx context.Context, w model.Window, keys []model.GroupKey, sess *schedule.Session, emitted dedupe.Deduper) (batch, error) {
	wanted := make(map[model.GroupKey]struct{}, len(keys))
	query := make([]model.GroupKey, 0, 2*len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
		query = append(query, k)
	}
	for _, k := range keys {
		next := model.GroupKey{StaffNo: k.StaffNo, Date: o.shiftDate(k.Date, 1)}
		if _, ok := wanted[next]; !ok && next.Date != "" {
			query = append(query, next)
		}
	}
	span := model.Window{Start: w.Start, End: w.End.Add(24 * time.Hour)}

	groups := make(map[model.GroupKey][]model.RawTransaction, len(keys))
	extra := make(map[model.GroupKey]struct{})
	for _, src := range o.sources {
		var rows []model.RawTransaction
		err := o.call(ctx, "fetch", func(ctx context.Context) error {
			var err error
			rows, err = src.Fetch(ctx, span, query)
			return err
		})
		if err != nil {
			return batch{}, &sourceError{source: src.Name(), err: err}
		}
		for _, r := range rows {
			if r.Source == "" {
				r.Source = src.Name()
			}
			date, shiftIn, moved := o.workDate(ctx, sess, r)
			k := model.GroupKey{StaffNo: r.StaffNo, Date: date}
			if _, ok := wanted[k]; !ok {
				if !moved || !w.Contains(shiftIn) {
					continue
				}
				extra[k] = struct{}{}
			} else if !w.Contains(r.Timestamp) && !moved {
				continue
			}
			groups[k] = append(groups[k], r)
		}
	}

	b := batch{groups: make(map[model.GroupKey][]model.RawTransaction, len(groups))}
	all := append([]model.GroupKey(nil), keys...)
	for k := range extra {
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	for _, k := range all {
		punches, ok := groups[k]
		if !ok {
			continue
		}
		if emitted.SeenAndRecord(ctx, k.String()) {
			continue
		}
		b.keys = append(b.keys, k)
		b.groups[k] = punches
		b.retrieved += len(punches)
	}
	metrics.AddPunchesRetrieved(b.retrieved)
	return b, nil
}

// workDate is the date of the shift a punch belongs to. A punch early on
// day D+1 belongs to an overnight shift that started on D when it lands
// before that shift's scheduled end plus the overnight slack, or before the
// midpoint to the next shift's start when that comes sooner. shiftIn is the
// start of the overnight shift for moved punches.
func (o *Orchestrator) workDate(ctx context.Context, sess *schedule.Session, t model.RawTransaction) (date string, shiftIn time.Time, moved bool) {
	date = t.WorkDate(o.loc)
	prevDate := o.shiftDate(date, -1)
	if prevDate == "" {
		return date, time.Time{}, false
	}
	prev, found, err := sess.Resolve(ctx, t.StaffNo, prevDate)
	if err != nil || !found || !prev.Known() || !prev.Window.Overnight() {
		return date, time.Time{}, false
	}
	prevIn, err := prev.ScheduledIn(o.loc)
	if err != nil {
		return date, time.Time{}, false
	}
	prevOut, err := prev.ScheduledOut(o.loc)
	if err != nil {
		return date, time.Time{}, false
	}

	cutoff := prevOut.Add(o.defaults.OvernightSlack)
	if own, ok, err := sess.Resolve(ctx, t.StaffNo, date); err == nil && ok && own.Known() {
		if ownIn, err := own.ScheduledIn(o.loc); err == nil && ownIn.Before(cutoff) {
			if mid := prevOut.Add(ownIn.Sub(prevOut) / 2); mid.Before(cutoff) {
				cutoff = mid
			}
		}
	}
	if t.Timestamp.Before(cutoff) {
		return prevDate, prevIn, true
	}
	return date, time.Time{}, false
}

// shiftDate moves a DateLayout date by days; "" when date does not parse.
func (o *Orchestrator) shiftDate(date string, days int) string {
	d, err := time.ParseInLocation(model.DateLayout, date, o.loc)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, days).Format(model.DateLayout)
}

// outcome is the evaluated, not yet persisted, result for one group.
type outcome struct {
	key    model.GroupKey
	record model.CanonicalRecord
	match  match.Result
	found  bool
	issues []model.Issue
}

// evaluate resolves, matches and classifies one group without writing.
func (o *Orchestrator) evaluate(ctx context.Context, sess *schedule.Session, key model.GroupKey, punches []model.RawTransaction, s settings) (outcome, error) {
	out := outcome{key: key}

	var sched model.ShiftSchedule
	err := o.call(ctx, "schedule", func(ctx context.Context) error {
		var err error
		sched, out.found, err = sess.Resolve(ctx, key.StaffNo, key.Date)
		return err
	})
	if err != nil {
		return out, &groupError{code: model.IssueSchedule, err: err}
	}
	if !out.found {
		out.issues = append(out.issues, model.Issue{
			Code: model.IssueScheduleNotFound, Key: key.String(),
			Message: "no shift schedule for " + key.StaffNo,
		})
	}

	res, err := match.Match(punches, sched, s.match)
	if err != nil {
		return out, &groupError{code: model.IssueMatchAmbiguous, err: err}
	}
	out.match = res
	for _, edge := range res.Ambiguous {
		out.issues = append(out.issues, model.Issue{
			Code: model.IssueMatchAmbiguous, Key: key.String(),
			Message: "no single closest " + edge.String() + " punch",
		})
	}

	statuses, err := classify.Day(sched, punchOf(res.In), punchOf(res.Out), s.tolerance, o.loc)
	if err != nil {
		return out, &groupError{code: model.IssueSchedule, err: err}
	}
	out.record = buildRecord(key, sched, res, statuses, o.loc)
	return out, nil
}

func punchOf(t *model.RawTransaction) *classify.Punch {
	if t == nil {
		return nil
	}
	return &classify.Punch{At: t.Timestamp, Kind: t.Kind}
}

func buildRecord(key model.GroupKey, sched model.ShiftSchedule, res match.Result, st classify.Pair, loc *time.Location) model.CanonicalRecord {
	rec := model.CanonicalRecord{
		StaffNo:      key.StaffNo,
		Date:         key.Date,
		ScheduleType: sched.Type,
		InStatus:     st.In,
		OutStatus:    st.Out,
	}
	if sched.Known() {
		if t, err := sched.ScheduledIn(loc); err == nil {
			rec.ScheduledIn = &t
		}
		if t, err := sched.ScheduledOut(loc); err == nil {
			rec.ScheduledOut = &t
		}
	}
	if res.In != nil {
		t := res.In.Timestamp
		rec.ActualIn = &t
		rec.InController = res.In.Controller
	}
	if res.Out != nil {
		t := res.Out.Timestamp
		rec.ActualOut = &t
		rec.OutController = res.Out.Controller
	}
	return rec
}

// groupError is a per-group failure with the issue code it is reported under.
type groupError struct {
	code model.IssueCode
	err  error
}

func (e *groupError) Error() string { return e.err.Error() }
func (e *groupError) Unwrap() error { return e.err }

// call runs one store call under the retry policy and records its latency.
func (o *Orchestrator) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := o.policy.Do(ctx, fn)
	metrics.RecordStoreLatency(op, time.Since(start))
	if err != nil {
		metrics.RecordStoreError(op)
	}
	return err
}
