package services

import (
	"math"
	"sort"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/reachout"
)

// UnassignedAgent groups leads with no assignedTo detail
const UnassignedAgent = "unassigned"

// AgentStats is the live call summary for one agent's leads
type AgentStats struct {
	Agent             string  `json:"agent"`
	TotalLeads        int     `json:"totalLeads"`
	TotalCalls        int     `json:"totalCalls"`
	ConnectedCalls    int     `json:"connectedCalls"`
	TotalCallDuration float64 `json:"totalCallDuration"`
	HighValueLeads    int     `json:"highValueLeads"`
	LowValueLeads     int     `json:"lowValueLeads"`
	ContactRate       int     `json:"contactRate"` // percent of logged calls that connected
	OutstandingLeads  int     `json:"outstandingLeads"`
	HighlightedLeads  int     `json:"highlightedLeads"`
}

// LiveStats aggregates agent stats over the active collection
type LiveStats struct {
	Totals      AgentStats   `json:"totals"`
	Agents      []AgentStats `json:"agents"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// ComputeLiveStats summarises call activity per agent. Archived leads are skipped.
func ComputeLiveStats(leads []*models.Lead, now time.Time, policy reachout.Policy) LiveStats {
	byAgent := make(map[string]*AgentStats)
	totals := &AgentStats{Agent: "all"}

	for _, lead := range leads {
		if lead == nil || lead.IsArchived() {
			continue
		}
		agent := assignedAgent(lead)
		s, ok := byAgent[agent]
		if !ok {
			s = &AgentStats{Agent: agent}
			byAgent[agent] = s
		}

		minutes := reachout.TotalConnectedMinutes(lead.ReachOut)
		eval := reachout.Evaluate(lead.Stage, lead.ReachOut, now, policy)

		for _, target := range []*AgentStats{s, totals} {
			target.TotalLeads++
			if lead.ReachOut != nil {
				for _, call := range lead.ReachOut.CallLogs {
					target.TotalCalls++
					if call.Connected {
						target.ConnectedCalls++
					}
				}
			}
			target.TotalCallDuration += minutes
			if minutes >= policy.HighValueMinutes && policy.HighValueMinutes > 0 {
				target.HighValueLeads++
			}
			if eval.Status == reachout.StatusOutstanding {
				target.OutstandingLeads++
			}
			if eval.Highlighted {
				target.HighlightedLeads++
			}
		}
	}

	out := LiveStats{Totals: finish(*totals), LastUpdated: now.UTC()}
	for _, s := range byAgent {
		out.Agents = append(out.Agents, finish(*s))
	}
	sort.Slice(out.Agents, func(i, j int) bool { return out.Agents[i].Agent < out.Agents[j].Agent })
	return out
}

func finish(s AgentStats) AgentStats {
	s.LowValueLeads = s.TotalLeads - s.HighValueLeads
	s.TotalCallDuration = math.Round(s.TotalCallDuration*10) / 10
	if s.TotalCalls > 0 {
		s.ContactRate = int(math.Round(float64(s.ConnectedCalls) / float64(s.TotalCalls) * 100))
	}
	return s
}

func assignedAgent(lead *models.Lead) string {
	if lead.Details != nil {
		if v, ok := lead.Details["assignedTo"].(string); ok && v != "" {
			return v
		}
	}
	return UnassignedAgent
}
