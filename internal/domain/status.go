package domain

import "time"

// ApplyStatusUpdate merges a status event into a reservation record.
// The event's status always replaces the current one; optional fields
// overwrite only when present, so an absent field never erases a value
// set by an earlier event. Repeated identical events are idempotent,
// and differing terminal events resolve last-writer-wins.
func ApplyStatusUpdate(current Reservation, update StatusUpdate) Reservation {
	merged := current
	merged.Status = update.Status
	if update.StatusMessage != "" {
		merged.StatusMessage = update.StatusMessage
	}
	if update.StatusDetails != "" {
		merged.StatusDetails = update.StatusDetails
	}
	if update.FinalDateTime != "" {
		merged.FinalDateTime = update.FinalDateTime
	}
	if update.PersonName != "" {
		merged.PersonName = update.PersonName
	}
	if update.ConfirmedPartySize != 0 {
		merged.ConfirmedPartySize = update.ConfirmedPartySize
	}
	if update.SpecialInstructions != "" {
		merged.SpecialInstructions = update.SpecialInstructions
	}
	return merged
}

// confirmedLayouts are the accepted shapes of "<date>T<time>" input.
var confirmedLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// FormatConfirmedDateTime renders a confirmed date and time-of-day as a
// human-readable string, e.g. "Wednesday, April 23, 2025 at 7:30 PM".
// Unparseable input falls back to the raw values joined with a space so
// a confirmation is never lost to a formatting error.
func FormatConfirmedDateTime(date, timeOfDay string) string {
	if date == "" || timeOfDay == "" {
		return ""
	}
	for _, layout := range confirmedLayouts {
		if t, err := time.Parse(layout, date+"T"+timeOfDay); err == nil {
			return t.Format("Monday, January 2, 2006 at 3:04 PM")
		}
	}
	return date + " " + timeOfDay
}
