package models

// Stage is a lead's position in the sales pipeline
type Stage string

const (
	StageNew               Stage = "new"
	StageContactAttempted  Stage = "contact_attempted"
	StageInfoRequested     Stage = "info_requested"
	StageInfoReceived      Stage = "info_received"
	StageLossRunsRequested Stage = "loss_runs_requested"
	StageLossRunsReceived  Stage = "loss_runs_received"
	StageQuoted            Stage = "quoted"
	StageQuoteSent         Stage = "quote_sent"
	StageQuoteSentUnaware  Stage = "quote-sent-unaware"
	StageQuoteSentAware    Stage = "quote-sent-aware"
	StageInterested        Stage = "interested"
	StageAppPrepared       Stage = "app_prepared"
	StageAppSent           Stage = "app_sent"
	StageNotInterested     Stage = "not-interested"
	StageClosed            Stage = "closed"
)

// AllStages lists every known pipeline stage in pipeline order
var AllStages = []Stage{
	StageNew,
	StageContactAttempted,
	StageInfoRequested,
	StageInfoReceived,
	StageLossRunsRequested,
	StageLossRunsReceived,
	StageQuoted,
	StageQuoteSent,
	StageQuoteSentUnaware,
	StageQuoteSentAware,
	StageInterested,
	StageAppPrepared,
	StageAppSent,
	StageNotInterested,
	StageClosed,
}

// IsValid checks if the stage is a known pipeline stage
func (s Stage) IsValid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

// RequiresReachOut reports whether leads in this stage owe the prospect a reach-out
func (s Stage) RequiresReachOut() bool {
	switch s {
	case StageQuoted, StageInfoRequested, StageQuoteSent, StageQuoteSentUnaware,
		StageQuoteSentAware, StageInterested, StageContactAttempted, StageLossRunsRequested:
		return true
	default:
		return false
	}
}

// RequiresFreshReachOut reports whether entering this stage starts a new reach-out cycle.
// contact_attempted and interested keep the work already logged.
func (s Stage) RequiresFreshReachOut() bool {
	switch s {
	case StageInfoRequested, StageLossRunsRequested, StageQuoted, StageQuoteSent,
		StageQuoteSentUnaware, StageQuoteSentAware:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further pipeline work is expected
func (s Stage) IsTerminal() bool {
	return s == StageClosed || s == StageNotInterested
}

// Priority is the response-rate tier of a lead
type Priority string

const (
	PriorityHigh  Priority = "High"
	PriorityMid   Priority = "Mid"
	PriorityLower Priority = "Lower"
	PriorityLow   Priority = "Low"
)

// IsValid checks if the priority is a known tier. Empty means unclassified.
func (p Priority) IsValid() bool {
	switch p {
	case "", PriorityHigh, PriorityMid, PriorityLower, PriorityLow:
		return true
	default:
		return false
	}
}

// LeadStatus separates the working collection from archived leads
type LeadStatus string

const (
	LeadStatusActive   LeadStatus = "active"
	LeadStatusArchived LeadStatus = "archived"
)

// IsValid checks if the status is a valid LeadStatus value
func (s LeadStatus) IsValid() bool {
	return s == LeadStatusActive || s == LeadStatusArchived
}
