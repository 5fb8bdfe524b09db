package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lms-points-api/internal/models"
)

func students(pairs ...interface{}) []models.User {
	var out []models.User
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.User{ID: pairs[i].(string), Role: models.RoleStudent, TotalPoints: pairs[i+1].(int)})
	}
	return out
}

func ids(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
	assert.Empty(t, Rank([]models.User{}))
}

func TestRankDistinctTotalsDescending(t *testing.T) {
	ranked := Rank(students("a", 10, "b", 50, "c", 30))
	assert.Equal(t, []string{"b", "c", "a"}, ids(ranked))
	for i := 1; i < len(ranked); i++ {
		assert.Greater(t, ranked[i-1].TotalPoints, ranked[i].TotalPoints)
	}
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	input := students("first", 40, "top", 90, "second", 40, "third", 40)
	ranked := Rank(input)
	assert.Equal(t, []string{"top", "first", "second", "third"}, ids(ranked))
	assert.Equal(t, "first", input[0].ID, "input must not be reordered")
}

func TestPosition(t *testing.T) {
	ranked := Rank(students("a", 10, "b", 50))
	assert.Equal(t, 1, Position(ranked, "b"))
	assert.Equal(t, 2, Position(ranked, "a"))
	assert.Equal(t, 0, Position(ranked, "ghost"))
	assert.Equal(t, 0, Position(nil, "a"))
}
