package reachout

import (
	"math"
	"strconv"
	"strings"

	"github.com/checkfox/go_reachout/internal/models"
)

// underMinute is the value recorded for calls logged as "< 1 min"
const underMinute = 0.5

// ParseCallDuration reads a call duration in minutes. It accepts "5", "5 min",
// "12 minutes", "< 1 min", "1:30" (m:ss) and "1.5h". Anything else yields 0
// and ok=false; callers record the 0 rather than blocking the call.
func ParseCallDuration(raw string) (minutes float64, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	if strings.HasPrefix(s, "<") {
		return underMinute, true
	}

	if mins, secs, found := strings.Cut(s, ":"); found {
		m, err1 := strconv.Atoi(strings.TrimSpace(mins))
		sec, err2 := strconv.Atoi(strings.TrimSpace(secs))
		if err1 != nil || err2 != nil || m < 0 || sec < 0 || sec >= 60 {
			return 0, false
		}
		return float64(m) + float64(sec)/60, true
	}

	scale := 1.0
	for _, suffix := range []string{"minutes", "minute", "mins", "min", "m"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}
	for _, suffix := range []string{"hours", "hour", "hrs", "hr", "h"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			scale = 60
			break
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v * scale, true
}

// FormatCallDuration renders minutes the way call logs store them
func FormatCallDuration(minutes float64) string {
	switch {
	case minutes <= 0:
		return "0 min"
	case minutes < 1:
		return "< 1 min"
	default:
		return strconv.FormatFloat(math.Round(minutes*10)/10, 'f', -1, 64) + " min"
	}
}

// TotalConnectedMinutes sums the durations of finalised connected calls
func TotalConnectedMinutes(l *models.ReachOutLedger) float64 {
	if l == nil {
		return 0
	}
	var total float64
	for _, entry := range l.CallLogs {
		if !entry.Connected || entry.Pending || entry.Duration == nil {
			continue
		}
		if m, ok := ParseCallDuration(*entry.Duration); ok {
			total += m
		}
	}
	return total
}
