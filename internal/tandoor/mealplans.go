package tandoor

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

const dateLayout = "2006-01-02"

// MealType is a user-defined meal slot (breakfast, lunch, ...).
type MealType struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// MealPlan is one scheduled meal.
type MealPlan struct {
	ID       MealPlanID     `json:"id"`
	Title    string         `json:"title,omitempty"`
	Recipe   *RecipeSummary `json:"recipe,omitempty"`
	Servings float64        `json:"servings"`
	Note     string         `json:"note,omitempty"`
	FromDate string         `json:"from_date"`
	ToDate   string         `json:"to_date,omitempty"`
	MealType MealType       `json:"meal_type"`
}

// NewMealPlan describes a meal plan to create. Either RecipeID or Title
// must be set.
type NewMealPlan struct {
	RecipeID   RecipeID
	Title      string
	Servings   float64
	FromDate   time.Time
	ToDate     time.Time
	MealTypeID int64
	Note       string
}

// ErrInvalidMealPlan is returned when NewMealPlan lacks a recipe and title,
// servings or a meal type.
var ErrInvalidMealPlan = errors.New("tandoor: meal plan needs a recipe or title, servings > 0 and a meal type")

type mealPlanBody struct {
	Title    string    `json:"title,omitempty"`
	Recipe   *recipeID `json:"recipe,omitempty"`
	Servings float64   `json:"servings"`
	Note     string    `json:"note,omitempty"`
	FromDate string    `json:"from_date"`
	ToDate   string    `json:"to_date,omitempty"`
	MealType MealType  `json:"meal_type"`
}

type recipeID struct {
	ID RecipeID `json:"id"`
}

// ListMealPlans returns meal plans overlapping [from, to]. Zero times leave
// that bound open.
func (c *Client) ListMealPlans(ctx context.Context, from, to time.Time) (Page[MealPlan], error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from_date", from.Format(dateLayout))
	}
	if !to.IsZero() {
		q.Set("to_date", to.Format(dateLayout))
	}
	var p Page[MealPlan]
	err := c.do(ctx, http.MethodGet, "/api/meal-plan/", q, nil, &p)
	return p, err
}

// CreateMealPlan schedules a meal.
func (c *Client) CreateMealPlan(ctx context.Context, n NewMealPlan) (MealPlan, error) {
	if (!n.RecipeID.Valid() && n.Title == "") || n.Servings <= 0 || n.MealTypeID <= 0 || n.FromDate.IsZero() {
		return MealPlan{}, ErrInvalidMealPlan
	}
	body := mealPlanBody{
		Title:    n.Title,
		Servings: n.Servings,
		Note:     n.Note,
		FromDate: n.FromDate.Format(dateLayout),
		MealType: MealType{ID: n.MealTypeID},
	}
	if n.RecipeID.Valid() {
		body.Recipe = &recipeID{ID: n.RecipeID}
	}
	if !n.ToDate.IsZero() {
		body.ToDate = n.ToDate.Format(dateLayout)
	}
	var mp MealPlan
	err := c.do(ctx, http.MethodPost, "/api/meal-plan/", nil, body, &mp)
	return mp, err
}
