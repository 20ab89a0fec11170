// Package medication defines the canonical medication model and the
// invariants enforced before any persistence write.
package medication

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a wall-clock time with minute precision, independent of
// any calendar date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a strict 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String renders the time as 24-hour "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON renders the time as a JSON "HH:MM" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar date with no time component. Comparisons are
// purely calendrical; the zone a date is evaluated in is supplied by
// the caller (see DateIn).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses an ISO "YYYY-MM-DD" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateIn returns the calendar date of the instant t in the given zone.
func DateIn(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

// String renders the date as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return o.Before(d) }

// MarshalJSON renders the date as a JSON "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Dose is one scheduled time-of-day at which the medication should be
// taken. BeforeMeal and AfterMeal are mutually exclusive; both false
// means no meal relation.
type Dose struct {
	ID         string    `json:"id,omitempty"`
	TimeOfDay  TimeOfDay `json:"time_of_day"`
	BeforeMeal bool      `json:"before_meal"`
	AfterMeal  bool      `json:"after_meal"`
}

// SetBeforeMeal sets the before-meal flag, clearing the after-meal flag
// when enabling it.
func (d *Dose) SetBeforeMeal(v bool) {
	d.BeforeMeal = v
	if v {
		d.AfterMeal = false
	}
}

// SetAfterMeal sets the after-meal flag, clearing the before-meal flag
// when enabling it.
func (d *Dose) SetAfterMeal(v bool) {
	d.AfterMeal = v
	if v {
		d.BeforeMeal = false
	}
}

// Medication is the canonical persisted record. Dose order carries no
// scheduling meaning but is preserved for display stability.
type Medication struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Dosage            string    `json:"dosage,omitempty"`
	Instructions      string    `json:"instructions,omitempty"`
	StartDate         Date      `json:"start_date"`
	EndDate           *Date     `json:"end_date,omitempty"`
	Timezone          string    `json:"timezone"`
	IsActive          bool      `json:"is_active"`
	Quantity          *int      `json:"quantity,omitempty"`
	RemainingStock    *int      `json:"remaining_stock,omitempty"`
	LowStockThreshold *int      `json:"low_stock_threshold,omitempty"`
	Doses             []Dose    `json:"doses"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DoseDraft is the unvalidated dose input. Time is the raw "HH:MM"
// string as captured by the caller.
type DoseDraft struct {
	Time       string `json:"time_of_day"`
	BeforeMeal bool   `json:"before_meal"`
	AfterMeal  bool   `json:"after_meal"`
}

// Draft is the full-replacement input for create and update. The dose
// list replaces the stored one wholesale; there is no partial-dose
// mutation.
type Draft struct {
	Name              string      `json:"name"`
	Dosage            string      `json:"dosage,omitempty"`
	Instructions      string      `json:"instructions,omitempty"`
	StartDate         Date        `json:"start_date"`
	EndDate           *Date       `json:"end_date,omitempty"`
	Timezone          string      `json:"timezone,omitempty"`
	IsActive          bool        `json:"is_active"`
	Quantity          *int        `json:"quantity,omitempty"`
	RemainingStock    *int        `json:"remaining_stock,omitempty"`
	LowStockThreshold *int        `json:"low_stock_threshold,omitempty"`
	Doses             []DoseDraft `json:"doses"`
}

// Normalize trims free text, falls back to the device timezone when the
// draft carries none, and resolves both meal flags being set at once
// (before-meal wins, mirroring that setting one clears the other).
func (d *Draft) Normalize(deviceTimezone string) {
	d.Name = strings.TrimSpace(d.Name)
	d.Dosage = strings.TrimSpace(d.Dosage)
	d.Instructions = strings.TrimSpace(d.Instructions)
	if d.Timezone == "" {
		d.Timezone = deviceTimezone
	}
	for i := range d.Doses {
		if d.Doses[i].BeforeMeal && d.Doses[i].AfterMeal {
			d.Doses[i].AfterMeal = false
		}
	}
}

// ValidationError reports an invariant violation detected before any
// I/O. The medication state is unchanged when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validate enforces the write invariants. It returns non-fatal warnings
// (duplicate dose times are allowed but worth surfacing) alongside the
// first violation found, if any.
func (d *Draft) Validate() ([]string, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if d.StartDate.IsZero() {
		return nil, &ValidationError{Field: "start_date", Reason: "required"}
	}
	if d.EndDate != nil && d.EndDate.Before(d.StartDate) {
		return nil, &ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}
	if d.Timezone == "" {
		return nil, &ValidationError{Field: "timezone", Reason: "required"}
	}
	if _, err := time.LoadLocation(d.Timezone); err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: "unknown IANA zone " + d.Timezone}
	}
	if d.Quantity != nil && *d.Quantity < 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if d.RemainingStock != nil {
		if *d.RemainingStock < 0 {
			return nil, &ValidationError{Field: "remaining_stock", Reason: "must not be negative"}
		}
		if d.Quantity != nil && *d.RemainingStock > *d.Quantity {
			return nil, &ValidationError{Field: "remaining_stock", Reason: "must not exceed quantity"}
		}
	}
	if d.LowStockThreshold != nil && *d.LowStockThreshold < 0 {
		return nil, &ValidationError{Field: "low_stock_threshold", Reason: "must not be negative"}
	}

	seen := make(map[string]bool, len(d.Doses))
	var warnings []string
	for i, dose := range d.Doses {
		t, err := ParseTimeOfDay(dose.Time)
		if err != nil {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("doses[%d].time_of_day", i),
				Reason: err.Error(),
			}
		}
		if seen[t.String()] {
			warnings = append(warnings, fmt.Sprintf("duplicate dose time %s will fire as separate reminders", t))
		}
		seen[t.String()] = true
	}
	return warnings, nil
}

// Materialize builds a Medication from a validated draft, assigning the
// given id and fresh dose ids. It must only be called after Validate.
func (d *Draft) Materialize(id string, now time.Time) Medication {
	doses := make([]Dose, len(d.Doses))
	for i, dose := range d.Doses {
		t, _ := ParseTimeOfDay(dose.Time)
		doses[i] = Dose{
			ID:         uuid.New().String(),
			TimeOfDay:  t,
			BeforeMeal: dose.BeforeMeal,
			AfterMeal:  dose.AfterMeal,
		}
		if doses[i].BeforeMeal && doses[i].AfterMeal {
			doses[i].AfterMeal = false
		}
	}
	return Medication{
		ID:                id,
		Name:              strings.TrimSpace(d.Name),
		Dosage:            d.Dosage,
		Instructions:      d.Instructions,
		StartDate:         d.StartDate,
		EndDate:           d.EndDate,
		Timezone:          d.Timezone,
		IsActive:          d.IsActive,
		Quantity:          d.Quantity,
		RemainingStock:    d.RemainingStock,
		LowStockThreshold: d.LowStockThreshold,
		Doses:             doses,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
}
