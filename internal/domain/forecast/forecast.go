// Package forecast estimates when a medication's supply runs out.
//
// The computation is pure and side-effect free, safe to run on every
// read. Remaining stock is an estimate entered by the user, not a
// ledger: nothing here (or anywhere else in the engine) decrements it
// as doses are taken.
package forecast

import "github.com/medkeep/go-remind/internal/domain/medication"

// Forecast is the display-only stock projection for one medication.
// DaysRemaining is nil when no forecast is possible, i.e. remaining
// stock is unknown or the medication has no daily doses.
type Forecast struct {
	DosesPerDay   int  `json:"doses_per_day"`
	DaysRemaining *int `json:"days_remaining"`
	IsLowStock    bool `json:"is_low_stock"`
}

// Compute projects days of supply left from the last manually entered
// stock value and the current dose schedule.
func Compute(med medication.Medication) Forecast {
	f := Forecast{DosesPerDay: len(med.Doses)}

	if med.RemainingStock == nil || f.DosesPerDay == 0 {
		return f
	}

	days := *med.RemainingStock / f.DosesPerDay
	f.DaysRemaining = &days

	f.IsLowStock = med.LowStockThreshold != nil && days <= *med.LowStockThreshold
	return f
}
