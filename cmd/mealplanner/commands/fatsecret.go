package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/fatsecret"
	"github.com/haukened/mealplanner/internal/lambda"
)

func (a *cliApp) fatsecretCommand() *cli.Command {
	sub := func(name, usage string, run cli.ActionFunc) *cli.Command {
		return &cli.Command{Name: name, Usage: usage, Action: run}
	}
	qualified := func(name string) string { return "fatsecret " + name }

	return &cli.Command{
		Name:  "fatsecret",
		Usage: "FatSecret Platform API",
		Commands: []*cli.Command{
			sub("oauth-start", "begin the 3-legged authorization", action(a, qualified("oauth-start"), needStore, oauthStart)),
			sub("oauth-complete", "exchange the verifier for an access token", action(a, qualified("oauth-complete"), needStore, oauthComplete)),
			sub("oauth-callback", "serve the authorization redirect locally", action(a, qualified("oauth-callback"), needStore, oauthCallback)),
			sub("token-status", "report the stored access token state", action(a, qualified("token-status"), needStore, tokenStatus)),
			sub("disconnect", "delete the stored access token", action(a, qualified("disconnect"), needStore, disconnect)),
			sub("cleanup", "delete expired pending authorizations", action(a, qualified("cleanup"), needStore, cleanup)),

			sub("foods-search", "foods.search", action(a, qualified("foods-search"), needNothing, foodsSearch)),
			sub("food-get", "food.get.v5", action(a, qualified("food-get"), needNothing, foodGet)),
			sub("foods-autocomplete", "foods.autocomplete.v2", action(a, qualified("foods-autocomplete"), needNothing, foodsAutocomplete)),
			sub("food-barcode", "food.find_id_for_barcode.v2", action(a, qualified("food-barcode"), needNothing, foodBarcode)),
			sub("recipes-search", "recipes.search.v3", action(a, qualified("recipes-search"), needNothing, recipesSearch)),
			sub("recipe-get", "recipe.get.v2", action(a, qualified("recipe-get"), needNothing, recipeGet)),

			sub("food-entries", "food_entries.get for one day", action(a, qualified("food-entries"), needStore, foodEntries)),
			sub("food-entry-create", "food_entry.create", action(a, qualified("food-entry-create"), needStore, foodEntryCreate)),
			sub("food-entry-delete", "food_entry.delete", action(a, qualified("food-entry-delete"), needStore, foodEntryDelete)),
			sub("profile", "profile.get", action(a, qualified("profile"), needStore, profile)),
		},
	}
}

type searchInput struct {
	FatSecret  *FatSecretResource `json:"fatsecret"`
	Query      string             `json:"query" validate:"required"`
	Page       int                `json:"page" validate:"gte=0"`
	MaxResults int                `json:"max_results" validate:"gte=0,lte=50"`
}

func (in searchInput) options() fatsecret.SearchOptions {
	return fatsecret.SearchOptions{MaxResults: in.MaxResults, PageNumber: in.Page}
}

func foodsSearch(ctx context.Context, rt *runtime, in searchInput) (lambda.Fields, error) {
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	res, err := c.SearchFoods(ctx, in.Query, in.options())
	if err != nil {
		return nil, err
	}
	return lambda.Fields{
		"foods":         res.Foods,
		"total_results": res.TotalResults,
		"page_number":   res.PageNumber,
	}, nil
}

type foodGetInput struct {
	FatSecret *FatSecretResource    `json:"fatsecret"`
	FoodID    lambda.StringOrNumber `json:"food_id" validate:"required"`
}

func foodGet(ctx context.Context, rt *runtime, in foodGetInput) (lambda.Fields, error) {
	id, err := domain.ParseFoodID(string(in.FoodID))
	if err != nil {
		return nil, err
	}
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	food, err := c.GetFood(ctx, id)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"food": food}, nil
}

type autocompleteInput struct {
	FatSecret  *FatSecretResource `json:"fatsecret"`
	Expression string             `json:"expression" validate:"required"`
	MaxResults int                `json:"max_results" validate:"gte=0,lte=10"`
}

func foodsAutocomplete(ctx context.Context, rt *runtime, in autocompleteInput) (lambda.Fields, error) {
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	s, err := c.Autocomplete(ctx, in.Expression, in.MaxResults)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"suggestions": s}, nil
}

type barcodeInput struct {
	FatSecret *FatSecretResource `json:"fatsecret"`
	Barcode   string             `json:"barcode" validate:"required,numeric"`
}

func foodBarcode(ctx context.Context, rt *runtime, in barcodeInput) (lambda.Fields, error) {
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	id, err := c.FindIDForBarcode(ctx, in.Barcode)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"food_id": id}, nil
}

func recipesSearch(ctx context.Context, rt *runtime, in searchInput) (lambda.Fields, error) {
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	res, err := c.SearchRecipes(ctx, in.Query, in.options())
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"recipes": res.Recipes, "total_results": res.TotalResults}, nil
}

type recipeGetInput struct {
	FatSecret *FatSecretResource    `json:"fatsecret"`
	RecipeID  lambda.StringOrNumber `json:"recipe_id" validate:"required"`
}

func recipeGet(ctx context.Context, rt *runtime, in recipeGetInput) (lambda.Fields, error) {
	id, err := domain.ParseRecipeID(string(in.RecipeID))
	if err != nil {
		return nil, err
	}
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	r, err := c.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"recipe": r}, nil
}

// day parses an optional YYYY-MM-DD date, defaulting to today in UTC.
func day(s string) (time.Time, error) {
	if s == "" {
		y, m, d := time.Now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return domain.ParseDate(s)
}

type foodEntriesInput struct {
	FatSecret *FatSecretResource `json:"fatsecret"`
	Date      string             `json:"date"`
	UserID    string             `json:"user_id"`
}

func foodEntries(ctx context.Context, rt *runtime, in foodEntriesInput) (lambda.Fields, error) {
	d, err := day(in.Date)
	if err != nil {
		return nil, err
	}
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	tok, err := credentials(ctx, rt, in.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := c.FoodEntries(ctx, tok, d)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"entries": entries, "date": domain.FormatDate(d)}, nil
}

type foodEntryCreateInput struct {
	FatSecret     *FatSecretResource    `json:"fatsecret"`
	FoodID        lambda.StringOrNumber `json:"food_id" validate:"required"`
	ServingID     lambda.StringOrNumber `json:"serving_id" validate:"required"`
	NumberOfUnits float64               `json:"number_of_units" validate:"gt=0"`
	Meal          string                `json:"meal" validate:"required"`
	Name          string                `json:"food_entry_name" validate:"required"`
	Date          string                `json:"date"`
	UserID        string                `json:"user_id"`
}

func foodEntryCreate(ctx context.Context, rt *runtime, in foodEntryCreateInput) (lambda.Fields, error) {
	foodID, err := domain.ParseFoodID(string(in.FoodID))
	if err != nil {
		return nil, err
	}
	servingID, err := domain.ParseServingID(string(in.ServingID))
	if err != nil {
		return nil, err
	}
	meal, err := fatsecret.ParseMeal(in.Meal)
	if err != nil {
		return nil, err
	}
	d, err := day(in.Date)
	if err != nil {
		return nil, err
	}
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	tok, err := credentials(ctx, rt, in.UserID)
	if err != nil {
		return nil, err
	}
	id, err := c.CreateFoodEntry(ctx, tok, fatsecret.NewFoodEntry{
		FoodID:        foodID,
		Name:          in.Name,
		ServingID:     servingID,
		NumberOfUnits: in.NumberOfUnits,
		Meal:          meal,
		Date:          d,
	})
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"food_entry_id": id}, nil
}

type foodEntryDeleteInput struct {
	FatSecret   *FatSecretResource    `json:"fatsecret"`
	FoodEntryID lambda.StringOrNumber `json:"food_entry_id" validate:"required"`
	UserID      string                `json:"user_id"`
}

func foodEntryDelete(ctx context.Context, rt *runtime, in foodEntryDeleteInput) (lambda.Fields, error) {
	id, err := domain.ParseFoodEntryID(string(in.FoodEntryID))
	if err != nil {
		return nil, err
	}
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	tok, err := credentials(ctx, rt, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := c.DeleteFoodEntry(ctx, tok, id); err != nil {
		return nil, err
	}
	return lambda.Fields{"message": "food entry " + id.String() + " deleted"}, nil
}

type profileInput struct {
	FatSecret *FatSecretResource `json:"fatsecret"`
	UserID    string             `json:"user_id"`
}

func profile(ctx context.Context, rt *runtime, in profileInput) (lambda.Fields, error) {
	c, err := rt.fatsecret(in.FatSecret)
	if err != nil {
		return nil, err
	}
	tok, err := credentials(ctx, rt, in.UserID)
	if err != nil {
		return nil, err
	}
	p, err := c.Profile(ctx, tok)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"profile": p}, nil
}
