// Package court computes billable court time and the total court fee.
package court

import "badminton-expense-bot/internal/model"

// BillableHours returns the billable span of one booking in fractional
// hours. Inverted or zero-length spans bill zero; a malformed entry can
// lower the fee but never raise an error.
func BillableHours(entry model.CourtSetupEntry) float64 {
	start := entry.StartHour*60 + entry.StartMinute
	end := entry.EndHour*60 + entry.EndMinute
	if end <= start {
		return 0
	}
	return float64(end-start) / 60
}

// TotalFee returns the day's court fee: hourly rate times the sum of
// billable hours over all bookings.
func TotalFee(setup model.CourtSetup) float64 {
	var hours float64
	for _, e := range setup.Entries {
		hours += BillableHours(e)
	}
	return setup.RatePerHour * hours
}
