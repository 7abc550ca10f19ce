package fatsecret

import (
	"context"

	"github.com/haukened/mealplanner/internal/domain"
)

// Profile is the authenticated user's profile.get response.
type Profile struct {
	GoalWeightKg      Float  `json:"goal_weight_kg,omitempty"`
	LastWeightKg      Float  `json:"last_weight_kg,omitempty"`
	LastWeightDateInt Int    `json:"last_weight_date_int,omitempty"`
	LastWeightComment string `json:"last_weight_comment,omitempty"`
	HeightCm          Float  `json:"height_cm,omitempty"`
	CalorieGoal       Int    `json:"calorie_goal,omitempty"`
	WeightMeasure     string `json:"weight_measure,omitempty"`
	HeightMeasure     string `json:"height_measure,omitempty"`
}

// Profile runs profile.get.
func (c *Client) Profile(ctx context.Context, tok domain.AccessToken) (Profile, error) {
	var resp struct {
		Profile Profile `json:"profile"`
	}
	if err := c.CallAuthorized(ctx, tok, "profile.get", nil, &resp); err != nil {
		return Profile{}, err
	}
	return resp.Profile, nil
}
