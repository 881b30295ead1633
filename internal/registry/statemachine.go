package registry

import (
	"fmt"

	"staffing/internal/models"
)

var edges = map[models.Status][]models.Status{
	models.StatusApplied:            {models.StatusInterviewScheduled, models.StatusApproved, models.StatusRejected, models.StatusWithdrawn},
	models.StatusInterviewScheduled: {models.StatusApproved, models.StatusRejected, models.StatusWithdrawn},
	models.StatusApproved:           {models.StatusHired},
	models.StatusHired:              {models.StatusCompleted, models.StatusResigned},
}

var knownStatuses = map[models.Status]bool{
	models.StatusApplied:            true,
	models.StatusInterviewScheduled: true,
	models.StatusApproved:           true,
	models.StatusRejected:           true,
	models.StatusHired:              true,
	models.StatusCompleted:          true,
	models.StatusResigned:           true,
	models.StatusWithdrawn:          true,
}

func Known(s models.Status) bool {
	return knownStatuses[s]
}

// Terminal reports whether no edge leaves s.
func Terminal(s models.Status) bool {
	return Known(s) && len(edges[s]) == 0
}

func CanTransition(from, to models.Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobStatusFor returns the task progress implied by a lifecycle state.
func JobStatusFor(s models.Status) models.JobStatus {
	switch s {
	case models.StatusHired:
		return models.JobStatusInProgress
	case models.StatusCompleted:
		return models.JobStatusCompleted
	case models.StatusResigned:
		return models.JobStatusResigned
	}
	return models.JobStatusNone
}

// ValidateState checks the composite (status, jobStatus) pair. Task progress
// exists only from hire onwards and must agree with the lifecycle state.
func ValidateState(status models.Status, jobStatus models.JobStatus) error {
	if !Known(status) {
		return fmt.Errorf("unknown status %q", status)
	}
	if want := JobStatusFor(status); jobStatus != want {
		return fmt.Errorf("job status %q is not valid with status %q (want %q)", jobStatus, status, want)
	}
	return nil
}

var rolePolicy = map[string]map[models.Status]bool{
	models.RoleCandidate: {
		models.StatusWithdrawn: true,
	},
	models.RoleClient: {
		models.StatusInterviewScheduled: true,
		models.StatusApproved:           true,
		models.StatusRejected:           true,
	},
}

// RoleAllows reports whether role may move an application into target.
// Staff and admins may take every edge.
func RoleAllows(role string, target models.Status) bool {
	switch role {
	case models.RoleStaff, models.RoleAdmin:
		return true
	}
	return rolePolicy[role][target]
}
