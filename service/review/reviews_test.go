package review_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/db/dbtest"
	"github.com/KAsare1/Lexconsult-server/service/apitest"
	"github.com/KAsare1/Lexconsult-server/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, review.Average(nil))

	reviews := []models.Review{{Rating: 5}, {Rating: 5}, {Rating: 4}}
	assert.InDelta(t, 14.0/3.0, review.Average(reviews), 1e-9)
}

func TestCreateValidatesTarget(t *testing.T) {
	gdb := dbtest.New(t)
	ctx := context.Background()
	client := dbtest.User(t, gdb, "esi", models.RoleUser)
	plain := dbtest.User(t, gdb, "kojo", models.RoleUser)
	lawyer, _ := dbtest.Lawyer(t, gdb, "adjoa", 200)

	_, err := review.Create(ctx, gdb, client.ID, review.Input{LawyerID: plain.ID, Rating: 4})
	assert.True(t, utils.IsKind(err, utils.KindNotFound), "got %v", err)

	_, err = review.Create(ctx, gdb, lawyer.ID, review.Input{LawyerID: lawyer.ID, Rating: 4})
	assert.True(t, utils.IsKind(err, utils.KindValidation), "got %v", err)

	for _, rating := range []int{0, 6} {
		_, err = review.Create(ctx, gdb, client.ID, review.Input{LawyerID: lawyer.ID, Rating: rating})
		assert.True(t, utils.IsKind(err, utils.KindValidation), "rating %d: got %v", rating, err)
	}
}

func newEnv(t *testing.T) *apitest.Env {
	env := apitest.New(t)
	review.NewReviewHandler(env.DB, env.Auth).RegisterRoutes(env.Router)
	return env
}

func TestLawyerReviewsAverage(t *testing.T) {
	env := newEnv(t)
	lawyer, _ := dbtest.Lawyer(t, env.DB, "adjoa", 200)
	path := fmt.Sprintf("/reviews/lawyer/%d", lawyer.ID)

	rec := env.Do(http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Reviews       []models.Review `json:"reviews"`
		AverageRating float64         `json:"averageRating"`
	}
	apitest.Decode(t, rec, &body)
	assert.Empty(t, body.Reviews)
	assert.Equal(t, 0.0, body.AverageRating)

	for i, rating := range []int{5, 5, 4} {
		author := dbtest.User(t, env.DB, fmt.Sprintf("client%d", i), models.RoleUser)
		rec := env.Do(http.MethodPost, "/reviews", review.Input{LawyerID: lawyer.ID, Rating: rating, Text: "good"}, author)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = env.Do(http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apitest.Decode(t, rec, &body)
	assert.Len(t, body.Reviews, 3)
	assert.InDelta(t, 4.6666666, body.AverageRating, 1e-6)
}

func TestReviewOwnership(t *testing.T) {
	env := newEnv(t)
	lawyer, _ := dbtest.Lawyer(t, env.DB, "adjoa", 200)
	author := dbtest.User(t, env.DB, "esi", models.RoleUser)
	other := dbtest.User(t, env.DB, "kofi", models.RoleUser)
	admin := dbtest.User(t, env.DB, "root", models.RoleAdmin)

	create := func() uint {
		rec := env.Do(http.MethodPost, "/reviews", review.Input{LawyerID: lawyer.ID, Rating: 3}, author)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var r models.Review
		apitest.Decode(t, rec, &r)
		return r.ID
	}

	id := create()
	path := fmt.Sprintf("/reviews/%d", id)

	rec := env.Do(http.MethodPut, path, map[string]int{"rating": 5}, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.Do(http.MethodPut, path, map[string]int{"rating": 5}, author)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Review
	apitest.Decode(t, rec, &updated)
	assert.Equal(t, 5, updated.Rating)

	rec = env.Do(http.MethodDelete, path, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the reviewed lawyer may remove it
	rec = env.Do(http.MethodDelete, path, nil, lawyer)
	assert.Equal(t, http.StatusOK, rec.Code)

	id = create()
	rec = env.Do(http.MethodDelete, fmt.Sprintf("/reviews/%d", id), nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Unscoped().Model(&models.Review{}).Count(&count).Error)
	assert.Zero(t, count)
}
