package models

import "time"

// ClaimStatus enumerates the discount claim lifecycle states.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
	// ClaimStatusUsed is set by redemption, which this service does not perform.
	ClaimStatusUsed ClaimStatus = "used"
)

// Terminal reports whether no further transition is allowed from the status.
func (s ClaimStatus) Terminal() bool {
	return s != ClaimStatusPending
}

// DiscountClaim is a student's request to redeem points. The points, percent
// and duration are copied from the shop settings at creation and never change.
type DiscountClaim struct {
	ID              string      `db:"id" json:"id"`
	StudentID       string      `db:"student_id" json:"student_id"`
	PointsRequired  int         `db:"points_required" json:"points_required"`
	DiscountPercent int         `db:"discount_percent" json:"discount_percent"`
	MonthDuration   int         `db:"month_duration" json:"month_duration"`
	Status          ClaimStatus `db:"status" json:"status"`
	RequestedAt     time.Time   `db:"requested_at" json:"requested_at"`
	ApprovedAt      *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
}

// ClaimFilter narrows claim listings.
type ClaimFilter struct {
	StudentID string
	Status    ClaimStatus
}
