package main

import "sort"

// Manager is the resolved identity attached to a candidate. Resolved is
// false when the managerId had no match in the manager roster; the display
// name then falls back to "Manager <id>" and no summary can be sent.
type Manager struct {
	ID       string
	Name     string
	Email    string
	Resolved bool
}

func (m Manager) DisplayName() string {
	if m.Resolved && m.Name != "" {
		return m.Name
	}
	return "Manager " + m.ID
}

// Candidate is a user whose status warrants notification, joined with its
// manager.
type Candidate struct {
	User    UserRecord
	Manager Manager
}

// ManagerGroup collects the candidates reporting to one manager.
type ManagerGroup struct {
	Manager Manager
	Users   []UserRecord
}

func resolveManager(id string, managers map[string]ManagerRecord) Manager {
	if rec, ok := managers[id]; ok {
		return Manager{ID: id, Name: rec.Name, Email: rec.Email, Resolved: true}
	}
	return Manager{ID: id}
}

// selectCandidates filters classified users down to those needing
// notification and left-joins each with its manager. Every candidate
// appears exactly once; an unmatched managerId never drops the user.
func selectCandidates(users []UserRecord, managers map[string]ManagerRecord) []Candidate {
	candidates := []Candidate{}
	for _, user := range users {
		if user.Status != StatusInactive && user.Status != StatusDeactivated {
			continue
		}
		candidates = append(candidates, Candidate{
			User:    user,
			Manager: resolveManager(user.ManagerID, managers),
		})
	}
	return candidates
}

// groupByManager buckets candidates per manager id, ordered by id so runs
// are reproducible.
func groupByManager(candidates []Candidate) []ManagerGroup {
	buckets := map[string]*ManagerGroup{}
	for _, candidate := range candidates {
		group, ok := buckets[candidate.Manager.ID]
		if !ok {
			group = &ManagerGroup{Manager: candidate.Manager}
			buckets[candidate.Manager.ID] = group
		}
		group.Users = append(group.Users, candidate.User)
	}

	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make([]ManagerGroup, 0, len(buckets))
	for _, id := range ids {
		groups = append(groups, *buckets[id])
	}
	return groups
}
