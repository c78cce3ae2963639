package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SlotType classifies an availability rule.
type SlotType string

const (
	SlotTypeRegular   SlotType = "regular"   // weekly recurring availability
	SlotTypeException SlotType = "exception" // one-off window added on top of recurrence
	SlotTypeBlocked   SlotType = "blocked"   // window subtracted from availability
)

// RecurrenceKind tags the recurrence variant of a rule.
type RecurrenceKind string

const (
	RecurrenceWeekly    RecurrenceKind = "weekly"
	RecurrenceDateRange RecurrenceKind = "date_range"
	RecurrenceNone      RecurrenceKind = "none"
)

// RecurrencePattern is the decoded form of a rule's recurrence. It is an
// explicit tagged variant rather than a free-form string: weekly rules repeat
// on DayOfWeek, date_range rules repeat on DayOfWeek only between Start and
// End (inclusive dates), and none marks a single-date rule anchored at Start.
type RecurrencePattern struct {
	Kind  RecurrenceKind `bson:"kind" json:"kind"`
	Start *time.Time     `bson:"start,omitempty" json:"start,omitempty"`
	End   *time.Time     `bson:"end,omitempty" json:"end,omitempty"`
}

// UnmarshalJSON validates the tag and its required fields at the boundary so
// core logic never sees a malformed pattern.
func (p *RecurrencePattern) UnmarshalJSON(data []byte) error {
	type alias RecurrencePattern
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case RecurrenceWeekly:
	case RecurrenceDateRange:
		if raw.Start == nil || raw.End == nil {
			return fmt.Errorf("date_range recurrence requires start and end")
		}
		if raw.End.Before(*raw.Start) {
			return fmt.Errorf("date_range recurrence end precedes start")
		}
	case RecurrenceNone:
		if raw.Start == nil {
			return fmt.Errorf("none recurrence requires an anchor date")
		}
	default:
		return fmt.Errorf("unknown recurrence kind %q", raw.Kind)
	}
	*p = RecurrencePattern(raw)
	return nil
}

// CoversDate reports whether the pattern makes the rule applicable on the
// given calendar day (UTC midnight).
func (p RecurrencePattern) CoversDate(day time.Time, ruleWeekday time.Weekday) bool {
	switch p.Kind {
	case RecurrenceWeekly:
		return day.Weekday() == ruleWeekday
	case RecurrenceDateRange:
		if day.Weekday() != ruleWeekday {
			return false
		}
		return !day.Before(dateOnly(*p.Start)) && !day.After(dateOnly(*p.End))
	case RecurrenceNone:
		return day.Equal(dateOnly(*p.Start))
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AvailabilityRule is a trainer's availability template. Start and End are
// minutes from midnight UTC, half-open: a 09:00-12:00 rule is [540, 720).
// Rules referenced by future bookings are never hard-deleted, only
// deactivated.
type AvailabilityRule struct {
	ID              string            `bson:"id" json:"id"`
	TrainerID       string            `bson:"trainer_id" json:"trainerId"`
	DayOfWeek       time.Weekday      `bson:"day_of_week" json:"dayOfWeek"`
	StartMinute     int               `bson:"start_minute" json:"startMinute"`
	EndMinute       int               `bson:"end_minute" json:"endMinute"`
	SlotType        SlotType          `bson:"slot_type" json:"slotType"`
	Recurrence      RecurrencePattern `bson:"recurrence" json:"recurrence"`
	BufferBeforeMin int               `bson:"buffer_before_min" json:"bufferBeforeMin"`
	BufferAfterMin  int               `bson:"buffer_after_min" json:"bufferAfterMin"`
	MaxBookings     int               `bson:"max_bookings" json:"maxBookings"`
	Active          bool              `bson:"active" json:"active"`
	CreatedAt       time.Time         `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updatedAt"`
}

// Validate checks the rule's shape before it is persisted.
func (r AvailabilityRule) Validate() error {
	if r.TrainerID == "" {
		return fmt.Errorf("rule missing trainer id")
	}
	if r.StartMinute < 0 || r.EndMinute > 24*60 {
		return fmt.Errorf("rule window outside the day: [%d, %d)", r.StartMinute, r.EndMinute)
	}
	if r.EndMinute <= r.StartMinute {
		return fmt.Errorf("rule window has non-positive duration: [%d, %d)", r.StartMinute, r.EndMinute)
	}
	switch r.SlotType {
	case SlotTypeRegular, SlotTypeException, SlotTypeBlocked:
	default:
		return fmt.Errorf("unknown slot type %q", r.SlotType)
	}
	if r.SlotType == SlotTypeRegular && r.MaxBookings < 1 {
		return fmt.Errorf("regular rule needs maxBookings >= 1, got %d", r.MaxBookings)
	}
	if r.BufferBeforeMin < 0 || r.BufferAfterMin < 0 {
		return fmt.Errorf("negative buffer minutes")
	}
	return nil
}
