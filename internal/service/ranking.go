package service

import (
	"sort"

	"github.com/noah-isme/lms-points-api/internal/models"
)

// Rank orders students by total points, highest first. Students with equal
// totals keep their relative input order. The input slice is not modified.
func Rank(students []models.User) []models.User {
	ranked := make([]models.User, len(students))
	copy(ranked, students)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalPoints > ranked[j].TotalPoints
	})
	return ranked
}

// Position returns the 1-based position of studentID in ranked, or 0 when absent.
func Position(ranked []models.User, studentID string) int {
	for i := range ranked {
		if ranked[i].ID == studentID {
			return i + 1
		}
	}
	return 0
}
