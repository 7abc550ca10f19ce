package fatsecret

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/haukened/mealplanner/internal/domain"
)

// RecipeSummary is one row of recipes.search.v3.
type RecipeSummary struct {
	RecipeID          string `json:"recipe_id"`
	RecipeName        string `json:"recipe_name"`
	RecipeDescription string `json:"recipe_description"`
	RecipeURL         string `json:"recipe_url,omitempty"`
	RecipeImage       string `json:"recipe_image,omitempty"`
}

// RecipeSearchResult is a page of recipes.search.v3.
type RecipeSearchResult struct {
	Recipes List[RecipeSummary] `json:"recipes"`
	Page
}

// Ingredient is one line of a recipe.
type Ingredient struct {
	FoodID                 string `json:"food_id"`
	FoodName               string `json:"food_name"`
	ServingID              string `json:"serving_id,omitempty"`
	NumberOfUnits          Float  `json:"number_of_units"`
	MeasurementDescription string `json:"measurement_description"`
	IngredientDescription  string `json:"ingredient_description"`
	IngredientURL          string `json:"ingredient_url,omitempty"`
}

// Direction is one numbered preparation step.
type Direction struct {
	DirectionNumber      Int    `json:"direction_number"`
	DirectionDescription string `json:"direction_description"`
}

// Recipe is the full record returned by recipe.get.v2. The nested
// single-or-list wrappers are flattened.
type Recipe struct {
	RecipeID           string           `json:"recipe_id"`
	RecipeName         string           `json:"recipe_name"`
	RecipeURL          string           `json:"recipe_url,omitempty"`
	RecipeDescription  string           `json:"recipe_description"`
	RecipeImage        string           `json:"recipe_image,omitempty"`
	NumberOfServings   Float            `json:"number_of_servings"`
	PreparationTimeMin Int              `json:"preparation_time_min,omitempty"`
	CookingTimeMin     Int              `json:"cooking_time_min,omitempty"`
	Rating             Float            `json:"rating,omitempty"`
	RecipeTypes        List[string]     `json:"-"`
	Ingredients        List[Ingredient] `json:"-"`
	Directions         List[Direction]  `json:"-"`
	Nutrition          *RecipeNutrition `json:"-"`
}

// RecipeNutrition is the per-serving nutrition of a recipe.
type RecipeNutrition struct {
	Calories     Float `json:"calories"`
	Carbohydrate Float `json:"carbohydrate"`
	Protein      Float `json:"protein"`
	Fat          Float `json:"fat"`
}

func (n *RecipeNutrition) UnmarshalJSON(b []byte) error {
	var wrap struct {
		Serving List[struct {
			Calories     Float `json:"calories"`
			Carbohydrate Float `json:"carbohydrate"`
			Protein      Float `json:"protein"`
			Fat          Float `json:"fat"`
		}] `json:"serving"`
	}
	if err := json.Unmarshal(b, &wrap); err != nil {
		return err
	}
	if len(wrap.Serving) > 0 {
		*n = RecipeNutrition(wrap.Serving[0])
	}
	return nil
}

func (r *Recipe) UnmarshalJSON(b []byte) error {
	type alias Recipe
	var aux struct {
		alias
		RecipeTypes *struct {
			RecipeType List[string] `json:"recipe_type"`
		} `json:"recipe_types"`
		Ingredients *struct {
			Ingredient List[Ingredient] `json:"ingredient"`
		} `json:"ingredients"`
		Directions *struct {
			Direction List[Direction] `json:"direction"`
		} `json:"directions"`
		ServingSizes *RecipeNutrition `json:"serving_sizes"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Recipe(aux.alias)
	if aux.RecipeTypes != nil {
		r.RecipeTypes = aux.RecipeTypes.RecipeType
	}
	if aux.Ingredients != nil {
		r.Ingredients = aux.Ingredients.Ingredient
	}
	if aux.Directions != nil {
		r.Directions = aux.Directions.Direction
	}
	r.Nutrition = aux.ServingSizes
	return nil
}

func (r Recipe) MarshalJSON() ([]byte, error) {
	type alias Recipe
	return json.Marshal(struct {
		alias
		Nutrition   *RecipeNutrition `json:"nutrition,omitempty"`
		RecipeTypes []string         `json:"recipe_types"`
		Ingredients []Ingredient     `json:"ingredients"`
		Directions  []Direction      `json:"directions"`
	}{alias(r), r.Nutrition, nonNil(r.RecipeTypes), nonNil(r.Ingredients), nonNil(r.Directions)})
}

// SearchRecipes runs recipes.search.v3.
func (c *Client) SearchRecipes(ctx context.Context, query string, opts SearchOptions) (RecipeSearchResult, error) {
	if query == "" {
		return RecipeSearchResult{}, ErrEmptyQuery
	}
	p := url.Values{"search_expression": {query}}
	opts.apply(p)
	var resp struct {
		Recipes struct {
			Recipe List[RecipeSummary] `json:"recipe"`
			Page
		} `json:"recipes"`
	}
	if err := c.Call(ctx, "recipes.search.v3", p, &resp); err != nil {
		return RecipeSearchResult{}, err
	}
	return RecipeSearchResult{Recipes: nonNil(resp.Recipes.Recipe), Page: resp.Recipes.Page}, nil
}

// GetRecipe runs recipe.get.v2.
func (c *Client) GetRecipe(ctx context.Context, id domain.RecipeID) (Recipe, error) {
	if !id.Valid() {
		return Recipe{}, domain.ErrInvalidID
	}
	var resp struct {
		Recipe Recipe `json:"recipe"`
	}
	if err := c.Call(ctx, "recipe.get.v2", url.Values{"recipe_id": {id.String()}}, &resp); err != nil {
		return Recipe{}, err
	}
	return resp.Recipe, nil
}
