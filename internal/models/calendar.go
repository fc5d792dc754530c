package models

import "time"

// CalendarReminder is a notification attached to an event.
type CalendarReminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// CalendarEvent is a weekly recurring lecture meeting.
type CalendarEvent struct {
	LectureID  string             `json:"lecture_id"`
	Summary    string             `json:"summary"`
	Location   string             `json:"location,omitempty"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Recurrence []string           `json:"recurrence"`
	Attendees  []string           `json:"attendees"`
	Reminders  []CalendarReminder `json:"reminders,omitempty"`
}

// CalendarSyncResult reports what was pushed to the attendee's calendar.
type CalendarSyncResult struct {
	CalendarID string          `json:"calendar_id"`
	Events     []CalendarEvent `json:"events"`
	Published  int             `json:"published"`
}
