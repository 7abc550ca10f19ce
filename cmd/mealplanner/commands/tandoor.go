package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/lambda"
	"github.com/haukened/mealplanner/internal/tandoor"
)

func (a *cliApp) tandoorCommand() *cli.Command {
	sub := func(name, usage string, run cli.ActionFunc) *cli.Command {
		return &cli.Command{Name: name, Usage: usage, Action: run}
	}
	qualified := func(name string) string { return "tandoor " + name }

	return &cli.Command{
		Name:  "tandoor",
		Usage: "Tandoor Recipes API",
		Commands: []*cli.Command{
			sub("test-connection", "check base_url and api_token", action(a, qualified("test-connection"), needNothing, tandoorTestConnection)),
			sub("recipes", "list recipes", action(a, qualified("recipes"), needNothing, tandoorRecipes)),
			sub("recipe-get", "get one recipe", action(a, qualified("recipe-get"), needNothing, tandoorRecipeGet)),
			sub("recipe-delete", "delete one recipe", action(a, qualified("recipe-delete"), needNothing, tandoorRecipeDelete)),
			sub("foods", "list foods", action(a, qualified("foods"), needNothing, tandoorFoods)),
			sub("food-get", "get one food", action(a, qualified("food-get"), needNothing, tandoorFoodGet)),
			sub("foods-update", "patch many foods concurrently", action(a, qualified("foods-update"), needNothing, tandoorFoodsUpdate)),
			sub("meal-plans", "list meal plans in a date range", action(a, qualified("meal-plans"), needNothing, tandoorMealPlans)),
			sub("meal-plan-create", "schedule a meal", action(a, qualified("meal-plan-create"), needNothing, tandoorMealPlanCreate)),
			sub("keywords", "list keywords", action(a, qualified("keywords"), needNothing, tandoorKeywords)),
		},
	}
}

type tandoorInput struct {
	Tandoor *TandoorResource `json:"tandoor"`
}

func tandoorTestConnection(ctx context.Context, rt *runtime, in tandoorInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	n, err := c.TestConnection(ctx)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"message": "connected to Tandoor", "recipe_count": n}, nil
}

type tandoorListInput struct {
	Tandoor  *TandoorResource `json:"tandoor"`
	Page     int              `json:"page" validate:"gte=0"`
	PageSize int              `json:"page_size" validate:"gte=0,lte=100"`
	Query    string           `json:"query"`
}

func (in tandoorListInput) options() tandoor.ListOptions {
	return tandoor.ListOptions{Page: in.Page, PageSize: in.PageSize, Query: in.Query}
}

func tandoorRecipes(ctx context.Context, rt *runtime, in tandoorListInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	p, err := c.ListRecipes(ctx, in.options())
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"count": p.Count, "recipes": p.Results, "next": p.Next}, nil
}

type tandoorRecipeInput struct {
	Tandoor  *TandoorResource `json:"tandoor"`
	RecipeID tandoor.RecipeID `json:"recipe_id" validate:"gt=0"`
}

func tandoorRecipeGet(ctx context.Context, rt *runtime, in tandoorRecipeInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	r, err := c.GetRecipe(ctx, in.RecipeID)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"recipe": r}, nil
}

func tandoorRecipeDelete(ctx context.Context, rt *runtime, in tandoorRecipeInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	if err := c.DeleteRecipe(ctx, in.RecipeID); err != nil {
		return nil, err
	}
	return lambda.Fields{"message": fmt.Sprintf("recipe %d deleted", in.RecipeID)}, nil
}

func tandoorFoods(ctx context.Context, rt *runtime, in tandoorListInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	p, err := c.ListFoods(ctx, in.options())
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"count": p.Count, "foods": p.Results, "next": p.Next}, nil
}

type tandoorFoodInput struct {
	Tandoor *TandoorResource `json:"tandoor"`
	FoodID  tandoor.FoodID   `json:"food_id" validate:"gt=0"`
}

func tandoorFoodGet(ctx context.Context, rt *runtime, in tandoorFoodInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	f, err := c.GetFood(ctx, in.FoodID)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"food": f}, nil
}

type tandoorFoodsUpdateInput struct {
	Tandoor     *TandoorResource     `json:"tandoor"`
	Updates     []tandoor.FoodUpdate `json:"updates" validate:"required,min=1,max=500,dive"`
	Concurrency int                  `json:"concurrency" validate:"gte=0,lte=32"`
}

// tandoorFoodsUpdate applies every update and reports per-food outcomes.
// Individual failures do not fail the invocation.
func tandoorFoodsUpdate(ctx context.Context, rt *runtime, in tandoorFoodsUpdateInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	conc := in.Concurrency
	if conc == 0 {
		conc = rt.cfg.Tandoor.Concurrency
	}
	res := c.BatchUpdateFoods(ctx, in.Updates, conc)
	for _, f := range res.Failed {
		rt.log.Warn("food update failed", "food_id", f.ID, "code", lambda.Classify(f.Err()), "err", f.Err())
	}
	return lambda.Fields{"updated": res.Updated, "failed": res.Failed}, nil
}

type tandoorMealPlansInput struct {
	Tandoor  *TandoorResource `json:"tandoor"`
	FromDate string           `json:"from_date"`
	ToDate   string           `json:"to_date"`
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}

func tandoorMealPlans(ctx context.Context, rt *runtime, in tandoorMealPlansInput) (lambda.Fields, error) {
	from, err := optionalDate(in.FromDate)
	if err != nil {
		return nil, err
	}
	to, err := optionalDate(in.ToDate)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: to_date is before from_date", lambda.ErrInvalidInput)
	}
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	p, err := c.ListMealPlans(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"count": p.Count, "meal_plans": p.Results}, nil
}

type tandoorMealPlanCreateInput struct {
	Tandoor    *TandoorResource `json:"tandoor"`
	RecipeID   tandoor.RecipeID `json:"recipe_id" validate:"gte=0"`
	Title      string           `json:"title" validate:"required_without=RecipeID"`
	Servings   float64          `json:"servings" validate:"gt=0"`
	FromDate   string           `json:"from_date" validate:"required"`
	ToDate     string           `json:"to_date"`
	MealTypeID int64            `json:"meal_type_id" validate:"gt=0"`
	Note       string           `json:"note"`
}

func tandoorMealPlanCreate(ctx context.Context, rt *runtime, in tandoorMealPlanCreateInput) (lambda.Fields, error) {
	from, err := domain.ParseDate(in.FromDate)
	if err != nil {
		return nil, err
	}
	to, err := optionalDate(in.ToDate)
	if err != nil {
		return nil, err
	}
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	mp, err := c.CreateMealPlan(ctx, tandoor.NewMealPlan{
		RecipeID:   in.RecipeID,
		Title:      in.Title,
		Servings:   in.Servings,
		FromDate:   from,
		ToDate:     to,
		MealTypeID: in.MealTypeID,
		Note:       in.Note,
	})
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"meal_plan": mp}, nil
}

type tandoorKeywordsInput struct {
	Tandoor *TandoorResource `json:"tandoor"`
	Query   string           `json:"query"`
}

func tandoorKeywords(ctx context.Context, rt *runtime, in tandoorKeywordsInput) (lambda.Fields, error) {
	c, err := rt.tandoor(in.Tandoor)
	if err != nil {
		return nil, err
	}
	p, err := c.ListKeywords(ctx, tandoor.ListOptions{Query: in.Query})
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"count": p.Count, "keywords": p.Results}, nil
}
