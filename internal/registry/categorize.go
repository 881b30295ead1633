package registry

import "staffing/internal/models"

// Categories partitions a candidate's applications into overlapping buckets.
// An application may appear in several buckets.
type Categories struct {
	Applied            []*models.Application `json:"applied"`
	InterviewScheduled []*models.Application `json:"interviewScheduled"`
	PendingReview      []*models.Application `json:"pendingReview"`
	Approved           []*models.Application `json:"approved"`
	Rejected           []*models.Application `json:"rejected"`
	Completed          []*models.Application `json:"completed"`
	Withdrawn          []*models.Application `json:"withdrawn"`
}

// Categorize is a pure function of each application's status and jobStatus;
// input order is preserved within every bucket.
func Categorize(apps []*models.Application) Categories {
	c := Categories{
		Applied:            []*models.Application{},
		InterviewScheduled: []*models.Application{},
		PendingReview:      []*models.Application{},
		Approved:           []*models.Application{},
		Rejected:           []*models.Application{},
		Completed:          []*models.Application{},
		Withdrawn:          []*models.Application{},
	}

	for _, app := range apps {
		switch app.Status {
		case models.StatusApplied:
			c.Applied = append(c.Applied, app)
			c.PendingReview = append(c.PendingReview, app)
		case models.StatusInterviewScheduled:
			c.Applied = append(c.Applied, app)
			c.InterviewScheduled = append(c.InterviewScheduled, app)
		case models.StatusApproved, models.StatusHired:
			c.Approved = append(c.Approved, app)
		case models.StatusRejected:
			c.Rejected = append(c.Rejected, app)
		case models.StatusWithdrawn:
			c.Withdrawn = append(c.Withdrawn, app)
		}

		if app.Status == models.StatusCompleted || app.JobStatus == models.JobStatusCompleted {
			c.Completed = append(c.Completed, app)
		}
	}
	return c
}
