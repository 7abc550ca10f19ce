package tandoor

import (
	"context"
	"fmt"
	"net/http"
)

type (
	RecipeID   int64
	FoodID     int64
	MealPlanID int64
	KeywordID  int64
)

func (id RecipeID) Valid() bool   { return id > 0 }
func (id FoodID) Valid() bool     { return id > 0 }
func (id MealPlanID) Valid() bool { return id > 0 }

// Keyword is a recipe tag.
type Keyword struct {
	ID          KeywordID `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
}

// RecipeSummary is one row of the recipe list.
type RecipeSummary struct {
	ID          RecipeID  `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Keywords    []Keyword `json:"keywords,omitempty"`
	WorkingTime int       `json:"working_time,omitempty"`
	WaitingTime int       `json:"waiting_time,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	Servings    int       `json:"servings,omitempty"`
}

// Unit is an ingredient measurement unit.
type Unit struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Ingredient is one line of a recipe step.
type Ingredient struct {
	ID     int64   `json:"id"`
	Amount float64 `json:"amount"`
	Food   *Food   `json:"food,omitempty"`
	Unit   *Unit   `json:"unit,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// Step is one instruction block of a recipe.
type Step struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name,omitempty"`
	Instruction string       `json:"instruction"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Recipe is the full recipe record.
type Recipe struct {
	RecipeSummary
	SourceURL string `json:"source_url,omitempty"`
	Image     string `json:"image,omitempty"`
	Steps     []Step `json:"steps"`
}

// ListRecipes returns one page of recipes.
func (c *Client) ListRecipes(ctx context.Context, opts ListOptions) (Page[RecipeSummary], error) {
	var p Page[RecipeSummary]
	err := c.do(ctx, http.MethodGet, "/api/recipe/", opts.values(), nil, &p)
	return p, err
}

// GetRecipe fetches one recipe.
func (c *Client) GetRecipe(ctx context.Context, id RecipeID) (Recipe, error) {
	if !id.Valid() {
		return Recipe{}, fmt.Errorf("%w: recipe id %d", ErrNotFound, id)
	}
	var r Recipe
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/recipe/%d/", id), nil, nil, &r)
	return r, err
}

// DeleteRecipe removes a recipe.
func (c *Client) DeleteRecipe(ctx context.Context, id RecipeID) error {
	if !id.Valid() {
		return fmt.Errorf("%w: recipe id %d", ErrNotFound, id)
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/recipe/%d/", id), nil, nil, nil)
}

// TestConnection lists one recipe to confirm the URL and token, and
// reports the total recipe count.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	p, err := c.ListRecipes(ctx, ListOptions{PageSize: 1})
	if err != nil {
		return 0, err
	}
	return p.Count, nil
}

// ListKeywords returns one page of keywords.
func (c *Client) ListKeywords(ctx context.Context, opts ListOptions) (Page[Keyword], error) {
	var p Page[Keyword]
	err := c.do(ctx, http.MethodGet, "/api/keyword/", opts.values(), nil, &p)
	return p, err
}
