package fundnova

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type nextPaymentTest struct {
	Frequency Frequency
	From      time.Time
	Want      time.Time
}

var nextPaymentExamples = map[string]nextPaymentTest{
	"weekly":                {FrequencyWeekly, date(2026, 3, 10), date(2026, 3, 17)},
	"weekly_month_boundary": {FrequencyWeekly, date(2026, 3, 28), date(2026, 4, 4)},
	"monthly":               {FrequencyMonthly, date(2026, 5, 15), date(2026, 6, 15)},
	// Jan 31 + 1 month normalizes the way AddDate does.
	"monthly_short_month": {FrequencyMonthly, date(2026, 1, 31), date(2026, 3, 3)},
	"yearly":              {FrequencyYearly, date(2026, 7, 1), date(2027, 7, 1)},
	"yearly_leap":         {FrequencyYearly, date(2024, 2, 29), date(2025, 3, 1)},
}

func TestNextPaymentDate(t *testing.T) {
	for k, v := range nextPaymentExamples {
		t.Run(k, func(t *testing.T) {
			if got := NextPaymentDate(v.Frequency, v.From); !got.Equal(v.Want) {
				t.Fatalf("NextPaymentDate(%s, %s) = %s, expected %s", v.Frequency, v.From.Format(time.DateOnly), got.Format(time.DateOnly), v.Want.Format(time.DateOnly))
			}
		})
	}
}

func TestValidFrequency(t *testing.T) {
	for _, f := range []Frequency{FrequencyWeekly, FrequencyMonthly, FrequencyYearly} {
		if !ValidFrequency(f) {
			t.Fatalf("Frequency %q should be valid", f)
		}
	}
	for _, f := range []Frequency{"daily", "biweekly", ""} {
		if ValidFrequency(f) {
			t.Fatalf("Frequency %q should be invalid", f)
		}
	}
}
