package calculation

import "gradebook/backend/internal/shared"

const MentionFail = "F"

// mentionBands are lower bounds, highest first
var mentionBands = []struct {
	min     float64
	mention string
}{
	{18, "A++"},
	{17, "A+"},
	{16, "A"},
	{15, "B+"},
	{14, "B"},
	{13, "C+"},
	{12, "C"},
	{11, "D+"},
	{10, "D"},
}

// MentionFor maps an average to its letter band
func MentionFor(average float64) string {
	for _, b := range mentionBands {
		if average >= b.min {
			return b.mention
		}
	}
	return MentionFail
}

// mentionForStatus forces F on anything that is not validated
func mentionForStatus(average float64, status string) string {
	if status != shared.StatusValidated {
		return MentionFail
	}
	return MentionFor(average)
}
