package replan

import (
	"sort"
	"time"
)

// SubjectGroup holds one subject's overdue sessions in placement order.
type SubjectGroup struct {
	Subject  string
	Sessions []Session
}

// GroupBySubject buckets overdue sessions by subject. Groups are ordered by
// subject name and sessions inside a group by (date, id), which keeps a
// subject's original sequence intact and makes runs reproducible.
func GroupBySubject(overdue []Session) []SubjectGroup {
	index := make(map[string]int)
	var groups []SubjectGroup
	for _, s := range overdue {
		i, ok := index[s.SubjectName]
		if !ok {
			i = len(groups)
			index[s.SubjectName] = i
			groups = append(groups, SubjectGroup{Subject: s.SubjectName})
		}
		groups[i].Sessions = append(groups[i].Sessions, s)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Subject < groups[j].Subject })
	for _, g := range groups {
		sessions := g.Sessions
		sort.SliceStable(sessions, func(i, j int) bool {
			di, dj := Date(sessions[i].Date), Date(sessions[j].Date)
			if !di.Equal(dj) {
				return di.Before(dj)
			}
			return sessions[i].ID < sessions[j].ID
		})
	}
	return groups
}

// EarliestFuture returns, per subject, the earliest date in the future set.
func EarliestFuture(future []Session) map[string]time.Time {
	earliest := make(map[string]time.Time)
	for _, s := range future {
		d := Date(s.Date)
		if current, ok := earliest[s.SubjectName]; !ok || d.Before(current) {
			earliest[s.SubjectName] = d
		}
	}
	return earliest
}
