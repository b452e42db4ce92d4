package reachout

import "github.com/checkfox/go_reachout/internal/models"

// Next-action hints shown while a reach-out is outstanding
const (
	HintCall         = "TO DO: Call"
	HintEmail        = "TO DO: Email"
	HintText         = "TO DO: Text"
	HintCallDuration = "TO DO: Log call duration"
)

// NextActionForStage returns the pipeline hint for a stage
func NextActionForStage(stage models.Stage) string {
	if stage.RequiresReachOut() {
		return "Reach Out"
	}
	switch stage {
	case models.StageNew:
		return "Assign Stage"
	case models.StageInfoReceived:
		return "Prepare Quote"
	case models.StageLossRunsReceived:
		return "Prepare app."
	case models.StageAppPrepared:
		return "Send application"
	case models.StageAppSent:
		return ""
	case models.StageNotInterested:
		return "Archive lead"
	case models.StageClosed:
		return "Process complete"
	default:
		return "Review lead"
	}
}

// outstandingHint walks the channel sequence call, email, text. Counters carry
// across a reopened cycle, so a reopened ledger is judged by the per-cycle flags.
func outstandingHint(l *models.ReachOutLedger) string {
	if l.PendingCallIndex() >= 0 {
		return HintCallDuration
	}

	called, emailed := l.CallAttempts > 0, l.EmailCount > 0
	if l.HighlightExpired {
		called, emailed = l.CallMade, l.EmailSent
	}
	switch {
	case !called:
		return HintCall
	case !emailed:
		return HintEmail
	default:
		return HintText
	}
}
