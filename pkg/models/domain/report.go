package domain

import "time"

// Report summarises one pipeline run for the terminal
type Report struct {
	Title    string
	RunID    string
	Period   TimePeriod
	Output   OutputMode
	Sections []ReportSection
	Elapsed  time.Duration
}

// TimePeriod represents the date range the run covered
type TimePeriod struct {
	Start time.Time
	End   time.Time
	AsOf  time.Time
}

// ReportSection describes one persisted dataset
type ReportSection struct {
	Title   string
	Summary map[string]interface{}
	Details []ReportDetail
}

// ReportDetail describes one column of a persisted dataset
type ReportDetail struct {
	Name        string
	Value       interface{}
	Unit        string
	Description string
}
