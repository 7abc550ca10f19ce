package tandoor

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds BatchUpdateFoods when the caller passes zero.
const DefaultConcurrency = 4

// SupermarketCategory groups foods on a shopping list.
type SupermarketCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Food is a Tandoor ingredient record.
type Food struct {
	ID                  FoodID               `json:"id"`
	Name                string               `json:"name"`
	PluralName          string               `json:"plural_name,omitempty"`
	Description         string               `json:"description,omitempty"`
	SupermarketCategory *SupermarketCategory `json:"supermarket_category,omitempty"`
	FDCID               *int64               `json:"fdc_id,omitempty"`
	OnHand              bool                 `json:"food_onhand,omitempty"`
}

// ListFoods returns one page of foods.
func (c *Client) ListFoods(ctx context.Context, opts ListOptions) (Page[Food], error) {
	var p Page[Food]
	err := c.do(ctx, http.MethodGet, "/api/food/", opts.values(), nil, &p)
	return p, err
}

// GetFood fetches one food.
func (c *Client) GetFood(ctx context.Context, id FoodID) (Food, error) {
	if !id.Valid() {
		return Food{}, fmt.Errorf("%w: food id %d", ErrNotFound, id)
	}
	var f Food
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/food/%d/", id), nil, nil, &f)
	return f, err
}

// FoodUpdate is a partial update applied with PATCH.
type FoodUpdate struct {
	ID     FoodID         `json:"id" validate:"gt=0"`
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

// UpdateFood patches one food and returns the updated record.
func (c *Client) UpdateFood(ctx context.Context, u FoodUpdate) (Food, error) {
	if !u.ID.Valid() {
		return Food{}, fmt.Errorf("%w: food id %d", ErrNotFound, u.ID)
	}
	var f Food
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/food/%d/", u.ID), nil, u.Fields, &f)
	return f, err
}

// FailedUpdate records one update that did not apply.
type FailedUpdate struct {
	ID    FoodID `json:"id"`
	Error string `json:"error"`
	err   error
}

// Err returns the underlying error.
func (f FailedUpdate) Err() error { return f.err }

// BatchResult reports per-food outcomes in input order.
type BatchResult struct {
	Updated []FoodID       `json:"updated"`
	Failed  []FailedUpdate `json:"failed"`
}

// BatchUpdateFoods applies updates with at most concurrency requests in
// flight. A failed update does not stop the others.
func (c *Client) BatchUpdateFoods(ctx context.Context, updates []FoodUpdate, concurrency int) BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	errs := make([]error, len(updates))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range updates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			_, errs[i] = c.UpdateFood(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Updated: []FoodID{}, Failed: []FailedUpdate{}}
	for i, err := range errs {
		if err != nil {
			res.Failed = append(res.Failed, FailedUpdate{ID: updates[i].ID, Error: err.Error(), err: err})
			continue
		}
		res.Updated = append(res.Updated, updates[i].ID)
	}
	return res
}
