package analytics

import "fmt"

// Insights derives the textual insight strings from a computed summary. The
// rules fire independently; when none fire, a single prompt to keep tracking
// is returned.
func Insights(s *Summary) []string {
	var out []string

	switch {
	case s.Streak >= 7:
		out = append(out, fmt.Sprintf("You're on a %d-day streak.", s.Streak))
	case s.Streak >= 3:
		out = append(out, fmt.Sprintf("%d days in a row.", s.Streak))
	}

	if s.Rates.Weekly >= 90 {
		out = append(out, "Outstanding weekly adherence.")
	} else if s.Rates.Weekly < 70 {
		out = append(out, "Your adherence has dropped this week.")
	}

	for _, bucket := range s.Buckets {
		if bucket.Rate > 0 && bucket.Rate < 70 {
			out = append(out, fmt.Sprintf("You tend to miss %s medications.", bucket.Bucket))
		}
	}

	if s.PerfectDays >= 20 {
		out = append(out, fmt.Sprintf("%d perfect days.", s.PerfectDays))
	}

	if len(out) == 0 {
		out = append(out, "Keep tracking to see insights.")
	}
	return out
}
