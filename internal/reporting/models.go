package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SessionsSummaryRequest selects sessions by creation time, [From, To).
type SessionsSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type SessionsSummary struct {
	Range TimeRange `json:"range"`

	TotalSessions int            `json:"totalSessions"`
	ByStatus      map[string]int `json:"byStatus"`
	OpenSessions  int            `json:"openSessions"`

	// ConnectedSessions counts sessions whose phone leg ever answered.
	ConnectedSessions int     `json:"connectedSessions"`
	ConnectionRate    float64 `json:"connectionRate"`

	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`
}
