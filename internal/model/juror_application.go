package model

import "time"

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

// JurorApplication is a juror's request to serve on a case
type JurorApplication struct {
	ID         int64             `json:"id"`
	CaseID     int64             `json:"case_id"`
	JurorID    int64             `json:"juror_id"`
	Status     ApplicationStatus `json:"status"`
	AppliedAt  time.Time         `json:"applied_at"`
	ReviewedAt *time.Time        `json:"reviewed_at"`
	ReviewedBy *int64            `json:"reviewed_by"`
}

// IsPending checks if application is pending
func (a *JurorApplication) IsPending() bool {
	return a.Status == ApplicationStatusPending
}

// IsApproved checks if application is approved
func (a *JurorApplication) IsApproved() bool {
	return a.Status == ApplicationStatusApproved
}
