package models

// LeaderboardEntry is one row of a ranked view.
type LeaderboardEntry struct {
	Position    int     `json:"position"`
	StudentID   string  `json:"student_id"`
	FullName    string  `json:"full_name"`
	GroupID     *string `json:"group_id,omitempty"`
	TotalPoints int     `json:"total_points"`
}

// Standing summarises a student's balance, rank and claim eligibility.
type Standing struct {
	StudentID       string         `json:"student_id"`
	TotalPoints     int            `json:"total_points"`
	GroupPosition   int            `json:"group_position"`
	OverallPosition int            `json:"overall_position"`
	PointsRequired  int            `json:"points_required"`
	PendingClaim    *DiscountClaim `json:"pending_claim,omitempty"`
	CanClaim        bool           `json:"can_claim"`
}
