package reachout

import (
	"testing"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func floatPtr(f float64) *float64 { return &f }

func TestEvaluate_StageNotTracked(t *testing.T) {
	ledger := &models.ReachOutLedger{CallAttempts: 3, CompletedAt: timePtr(testNow.Add(-time.Hour))}

	eval := Evaluate(models.StageNew, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusNotApplicable, eval.Status)
	assert.Equal(t, ReasonStageNotTracked, eval.Reason)
	assert.Equal(t, "Assign Stage", eval.NextAction)
	assert.False(t, eval.Changed)
	require.NotNil(t, eval.Ledger)
	assert.Equal(t, 3, eval.Ledger.CallAttempts, "history must survive while display is suppressed")
}

func TestEvaluate_AppSentStaysHighlighted(t *testing.T) {
	eval := Evaluate(models.StageAppSent, nil, testNow, DefaultPolicy())

	assert.Equal(t, StatusNotApplicable, eval.Status)
	assert.True(t, eval.Highlighted)
	assert.Nil(t, eval.Ledger)
}

func TestEvaluate_EmptyLedgerIsOutstanding(t *testing.T) {
	eval := Evaluate(models.StageQuoteSent, nil, testNow, DefaultPolicy())

	assert.Equal(t, StatusOutstanding, eval.Status)
	assert.Equal(t, ReasonNoActivity, eval.Reason)
	assert.Equal(t, HintCall, eval.NextAction)
	assert.True(t, eval.Changed, "a ledger is created when the stage needs reach-out")
	require.NotNil(t, eval.Ledger)
}

func TestEvaluate_OrphanCleanup(t *testing.T) {
	ledger := &models.ReachOutLedger{
		CompletedAt:         timePtr(testNow.Add(-time.Hour)),
		ReachOutCompletedAt: timePtr(testNow.Add(-time.Hour)),
		GreenHighlightUntil: timePtr(testNow.Add(10 * time.Hour)),
	}

	eval := Evaluate(models.StageInfoRequested, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusOutstanding, eval.Status)
	assert.Equal(t, ReasonOrphanCleared, eval.Reason)
	assert.True(t, eval.Changed)
	assert.False(t, eval.Highlighted)
	assert.Nil(t, eval.Ledger.CompletedAt)
	assert.Nil(t, eval.Ledger.ReachOutCompletedAt)
	assert.NotNil(t, ledger.CompletedAt, "input ledger must not be modified")
}

func TestEvaluate_CompletedWithinWindow(t *testing.T) {
	completed := testNow.Add(-3 * time.Hour)
	ledger := &models.ReachOutLedger{
		CallAttempts:        1,
		CallsConnected:      1,
		CompletedAt:         timePtr(completed),
		ReachOutCompletedAt: timePtr(completed),
		GreenHighlightUntil: timePtr(completed.Add(24 * time.Hour)),
	}

	eval := Evaluate(models.StageQuoted, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusCompleted, eval.Status)
	assert.Equal(t, ReasonCompleted, eval.Reason)
	require.NotNil(t, eval.CompletedAt)
	assert.True(t, eval.CompletedAt.Equal(completed))
	assert.True(t, eval.Highlighted)
	assert.False(t, eval.Changed)
}

func TestEvaluate_UnansweredAttemptWithoutCompletionStaysOutstanding(t *testing.T) {
	ledger := &models.ReachOutLedger{CallAttempts: 2, CallLogs: []models.CallLog{{Timestamp: testNow}}}

	eval := Evaluate(models.StageContactAttempted, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusOutstanding, eval.Status)
	assert.Equal(t, ReasonAwaitingCompletion, eval.Reason)
	assert.Equal(t, HintEmail, eval.NextAction)
}

func TestEvaluate_ChannelSequenceHints(t *testing.T) {
	tests := []struct {
		name   string
		ledger *models.ReachOutLedger
		want   string
	}{
		{"no calls", &models.ReachOutLedger{}, HintCall},
		{"called, no email", &models.ReachOutLedger{CallAttempts: 1}, HintEmail},
		{"called and emailed", &models.ReachOutLedger{CallAttempts: 1, EmailCount: 1}, HintText},
		{"pending duration", &models.ReachOutLedger{
			CallAttempts: 1, CallsConnected: 1,
			CallLogs: []models.CallLog{{Connected: true, Pending: true}},
		}, HintCallDuration},
		{"reopened cycle", &models.ReachOutLedger{CallAttempts: 4, EmailCount: 2, HighlightExpired: true}, HintCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(models.StageQuoteSent, tt.ledger, testNow, DefaultPolicy())
			assert.Equal(t, tt.want, eval.NextAction)
		})
	}
}

func TestEvaluate_CycleExpiryReopens(t *testing.T) {
	completed := testNow.Add(-72 * time.Hour)
	ledger := &models.ReachOutLedger{
		CallAttempts:        2,
		CallsConnected:      1,
		TextCount:           1,
		CompletedAt:         timePtr(completed),
		ReachOutCompletedAt: timePtr(completed),
		GreenHighlightUntil: timePtr(testNow.Add(96 * time.Hour)),
		CallMade:            true,
		TextSent:            true,
		EmailSent:           true,
	}

	eval := Evaluate(models.StageQuoteSent, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusOutstanding, eval.Status)
	assert.Equal(t, ReasonCycleExpired, eval.Reason)
	assert.True(t, eval.Reopened())
	assert.False(t, eval.Highlighted)

	l := eval.Ledger
	assert.Equal(t, 0, l.CallsConnected)
	assert.Equal(t, 0, l.TextCount)
	assert.Equal(t, 2, l.CallAttempts)
	assert.Nil(t, l.CompletedAt)
	assert.Nil(t, l.ReachOutCompletedAt)
	assert.Nil(t, l.GreenHighlightUntil)
	assert.False(t, l.CallMade)
	assert.False(t, l.TextSent)
	assert.False(t, l.EmailSent)
	assert.True(t, l.HighlightExpired)
	require.NotNil(t, l.ExpiredAt)
	assert.True(t, l.ExpiredAt.Equal(testNow))
}

func TestEvaluate_ExactlyTwoDaysIsStillCompleted(t *testing.T) {
	completed := testNow.Add(-48 * time.Hour)
	ledger := &models.ReachOutLedger{
		CallAttempts:        1,
		ReachOutCompletedAt: timePtr(completed),
	}

	eval := Evaluate(models.StageQuoteSent, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusCompleted, eval.Status)
}

func TestEvaluate_HighlightLapseReopens(t *testing.T) {
	completed := testNow.Add(-30 * time.Hour)
	ledger := &models.ReachOutLedger{
		CallAttempts:        1,
		CallsConnected:      1,
		ReachOutCompletedAt: timePtr(completed),
		GreenHighlightUntil: timePtr(completed.Add(24 * time.Hour)),
	}

	eval := Evaluate(models.StageQuoteSent, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusOutstanding, eval.Status)
	assert.Equal(t, ReasonHighlightExpired, eval.Reason)
	assert.Equal(t, HintCall, eval.NextAction)
}

func TestEvaluate_FallsBackToCompletedAt(t *testing.T) {
	ledger := &models.ReachOutLedger{
		CallAttempts: 1,
		CompletedAt:  timePtr(testNow.Add(-49 * time.Hour)),
	}

	eval := Evaluate(models.StageQuoteSent, ledger, testNow, DefaultPolicy())

	assert.Equal(t, ReasonCycleExpired, eval.Reason)
}

func TestEvaluate_NonCallCompletionIsNotOrphaned(t *testing.T) {
	ledger := &models.ReachOutLedger{
		ReachOutCompletedAt: timePtr(testNow.Add(-time.Hour)),
		CompletedVia:        models.ChannelEmailConfirmation,
		EmailConfirmed:      true,
		GreenHighlightUntil: timePtr(testNow.Add(6 * 24 * time.Hour)),
	}

	eval := Evaluate(models.StageQuoteSent, ledger, testNow, DefaultPolicy())

	assert.Equal(t, StatusCompleted, eval.Status)
	assert.True(t, eval.Highlighted)
}

func TestNextAction_AdvancesThroughReopenedCycle(t *testing.T) {
	completed := testNow.Add(-30 * time.Hour)
	ledger := &models.ReachOutLedger{
		CallAttempts:        3,
		CallsConnected:      1,
		EmailCount:          2,
		ReachOutCompletedAt: timePtr(completed),
		GreenHighlightUntil: timePtr(completed.Add(24 * time.Hour)),
	}

	eval := Evaluate(models.StageQuoteSent, ledger, testNow, DefaultPolicy())
	require.Equal(t, ReasonHighlightExpired, eval.Reason)
	assert.Equal(t, HintCall, eval.NextAction)

	res := RecordCallAttempt(eval.Ledger, testEnv(), CallAttempt{LeftVoicemail: true})
	eval = Evaluate(models.StageQuoteSent, res.Ledger, testNow, DefaultPolicy())
	assert.Equal(t, HintEmail, eval.NextAction)

	res = RecordEmailSent(eval.Ledger, testEnv())
	eval = Evaluate(models.StageQuoteSent, res.Ledger, testNow, DefaultPolicy())
	assert.Equal(t, HintText, eval.NextAction)

	res = RecordTextSent(eval.Ledger, testEnv())
	eval = Evaluate(models.StageQuoteSent, res.Ledger, testNow, DefaultPolicy())
	assert.Equal(t, StatusCompleted, eval.Status)
	assert.False(t, res.Ledger.HighlightExpired)
}
