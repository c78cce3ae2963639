package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	availabilityRepo "fitbook/database/repository/availability"
	"fitbook/models"
)

// ResolvedWindow is a concrete availability interval for a specific date,
// derived from the trainer's rules. It is recomputed on demand and never
// cached across a transaction that also mutates bookings.
type ResolvedWindow struct {
	Window
	RuleID       string
	MaxBookings  int
	BufferBefore time.Duration
	BufferAfter  time.Duration
	// Remaining is MaxBookings minus the overlapping active booking count.
	// Populated only by AnnotateRemaining; zero value means "not annotated".
	Remaining int
}

// AvailabilityResolver expands a trainer's recurring rules, blocks and
// exceptions into the concrete free windows of a date range.
type AvailabilityResolver struct {
	Rules availabilityRepo.AvailabilityRepository
}

func NewAvailabilityResolver(rules availabilityRepo.AvailabilityRepository) *AvailabilityResolver {
	return &AvailabilityResolver{Rules: rules}
}

// ruleInstance is one rule materialized on one date.
type ruleInstance struct {
	win  Window
	rule models.AvailabilityRule
}

// instantiate anchors the rule's minute offsets on the given day (UTC
// midnight).
func instantiate(rule models.AvailabilityRule, day time.Time) Window {
	return Window{
		Start: day.Add(time.Duration(rule.StartMinute) * time.Minute),
		End:   day.Add(time.Duration(rule.EndMinute) * time.Minute),
	}
}

// Resolve computes the trainer's free windows over [from, to), sorted by
// start. Per date: regular rules are instantiated and union-merged, blocked
// windows are subtracted (full containment removes, partial overlap
// truncates or splits), then exception windows are overlaid as-is.
func (r *AvailabilityResolver) Resolve(ctx context.Context, trainerID string, from, to time.Time) ([]ResolvedWindow, error) {
	query, err := NewWindow(from, to)
	if err != nil {
		return nil, fmt.Errorf("invalid availability query range: %w", err)
	}

	rules, err := r.Rules.ListActiveByTrainer(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability rules: %w", err)
	}

	var out []ResolvedWindow
	firstDay := dateOnlyUTC(from)
	for day := firstDay; day.Before(to); day = day.AddDate(0, 0, 1) {
		var regular, blocked []ruleInstance
		var exceptions []ruleInstance
		for _, rule := range rules {
			if !rule.Recurrence.CoversDate(day, rule.DayOfWeek) {
				continue
			}
			inst := ruleInstance{win: instantiate(rule, day), rule: rule}
			switch rule.SlotType {
			case models.SlotTypeRegular:
				regular = append(regular, inst)
			case models.SlotTypeBlocked:
				blocked = append(blocked, inst)
			case models.SlotTypeException:
				exceptions = append(exceptions, inst)
			}
		}

		blockWins := make([]Window, 0, len(blocked))
		for _, b := range blocked {
			blockWins = append(blockWins, b.win)
		}

		for _, group := range mergeInstances(regular) {
			for _, frag := range subtractWindows(group.Window, blockWins) {
				if !frag.Overlaps(query) {
					continue
				}
				rw := group
				rw.Window = frag
				out = append(out, rw)
			}
		}

		// Exceptions add one-off capacity on top of the recurring schedule
		// and are applied after blocking.
		for _, e := range exceptions {
			if !e.win.Overlaps(query) {
				continue
			}
			out = append(out, ResolvedWindow{
				Window:       e.win,
				RuleID:       e.rule.ID,
				MaxBookings:  maxInt(e.rule.MaxBookings, 1),
				BufferBefore: time.Duration(e.rule.BufferBeforeMin) * time.Minute,
				BufferAfter:  time.Duration(e.rule.BufferAfterMin) * time.Minute,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// mergeInstances unions overlapping regular windows of one day. The merged
// window keeps the earliest contributing rule's id and the maximum
// contributor capacity and buffers; max (not sum) keeps the combined
// effective capacity within the sum of the contributing rules' limits.
func mergeInstances(instances []ruleInstance) []ResolvedWindow {
	if len(instances) == 0 {
		return nil
	}
	sorted := make([]ruleInstance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].win.Start.Before(sorted[j].win.Start) })

	toResolved := func(inst ruleInstance) ResolvedWindow {
		return ResolvedWindow{
			Window:       inst.win,
			RuleID:       inst.rule.ID,
			MaxBookings:  maxInt(inst.rule.MaxBookings, 1),
			BufferBefore: time.Duration(inst.rule.BufferBeforeMin) * time.Minute,
			BufferAfter:  time.Duration(inst.rule.BufferAfterMin) * time.Minute,
		}
	}

	merged := []ResolvedWindow{toResolved(sorted[0])}
	for _, inst := range sorted[1:] {
		last := &merged[len(merged)-1]
		next := toResolved(inst)
		if !next.Start.After(last.End) {
			if next.End.After(last.End) {
				last.End = next.End
			}
			last.MaxBookings = maxInt(last.MaxBookings, next.MaxBookings)
			last.BufferBefore = maxDuration(last.BufferBefore, next.BufferBefore)
			last.BufferAfter = maxDuration(last.BufferAfter, next.BufferAfter)
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

func dateOnlyUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
