package fatsecret

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/haukened/mealplanner/internal/domain"
)

// Serving is one portion definition of a food with its nutrition facts.
type Serving struct {
	ServingID              string `json:"serving_id"`
	ServingDescription     string `json:"serving_description"`
	ServingURL             string `json:"serving_url,omitempty"`
	MetricServingAmount    Float  `json:"metric_serving_amount,omitempty"`
	MetricServingUnit      string `json:"metric_serving_unit,omitempty"`
	NumberOfUnits          Float  `json:"number_of_units"`
	MeasurementDescription string `json:"measurement_description"`
	IsDefault              Int    `json:"is_default,omitempty"`
	Calories               Float  `json:"calories"`
	Carbohydrate           Float  `json:"carbohydrate"`
	Protein                Float  `json:"protein"`
	Fat                    Float  `json:"fat"`
	SaturatedFat           Float  `json:"saturated_fat,omitempty"`
	Cholesterol            Float  `json:"cholesterol,omitempty"`
	Sodium                 Float  `json:"sodium,omitempty"`
	Potassium              Float  `json:"potassium,omitempty"`
	Fiber                  Float  `json:"fiber,omitempty"`
	Sugar                  Float  `json:"sugar,omitempty"`
}

// Food is the full record returned by food.get.
type Food struct {
	FoodID    string        `json:"food_id"`
	FoodName  string        `json:"food_name"`
	FoodType  string        `json:"food_type"`
	FoodURL   string        `json:"food_url"`
	BrandName string        `json:"brand_name,omitempty"`
	Servings  List[Serving] `json:"-"`
}

type servingsField struct {
	Serving List[Serving] `json:"serving"`
}

// UnmarshalJSON flattens the servings wrapper.
func (f *Food) UnmarshalJSON(b []byte) error {
	type alias Food
	var aux struct {
		alias
		Servings *servingsField `json:"servings"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*f = Food(aux.alias)
	if aux.Servings != nil {
		f.Servings = aux.Servings.Serving
	}
	return nil
}

// MarshalJSON emits servings as a flat array.
func (f Food) MarshalJSON() ([]byte, error) {
	type alias Food
	return json.Marshal(struct {
		alias
		Servings []Serving `json:"servings"`
	}{alias(f), nonNil(f.Servings)})
}

// DefaultServing returns the serving flagged as default, else the first.
func (f Food) DefaultServing() (Serving, bool) {
	for _, s := range f.Servings {
		if s.IsDefault == 1 {
			return s, true
		}
	}
	if len(f.Servings) > 0 {
		return f.Servings[0], true
	}
	return Serving{}, false
}

// FoodSummary is one row of foods.search.
type FoodSummary struct {
	FoodID          string `json:"food_id"`
	FoodName        string `json:"food_name"`
	FoodType        string `json:"food_type"`
	FoodDescription string `json:"food_description"`
	BrandName       string `json:"brand_name,omitempty"`
	FoodURL         string `json:"food_url"`
}

// Page carries search paging metadata.
type Page struct {
	MaxResults   Int `json:"max_results"`
	TotalResults Int `json:"total_results"`
	PageNumber   Int `json:"page_number"`
}

// FoodSearchResult is a page of foods.search.
type FoodSearchResult struct {
	Foods List[FoodSummary] `json:"foods"`
	Page
}

// SearchOptions controls paging. Zero values use the API defaults.
type SearchOptions struct {
	MaxResults int
	PageNumber int
}

func (o SearchOptions) apply(p url.Values) {
	if o.MaxResults > 0 {
		p.Set("max_results", strconv.Itoa(o.MaxResults))
	}
	if o.PageNumber > 0 {
		p.Set("page_number", strconv.Itoa(o.PageNumber))
	}
}

// ErrEmptyQuery is returned for blank search expressions.
var ErrEmptyQuery = errors.New("fatsecret: search expression is required")

// SearchFoods runs foods.search.
func (c *Client) SearchFoods(ctx context.Context, query string, opts SearchOptions) (FoodSearchResult, error) {
	if query == "" {
		return FoodSearchResult{}, ErrEmptyQuery
	}
	p := url.Values{"search_expression": {query}}
	opts.apply(p)
	var resp struct {
		Foods struct {
			Food List[FoodSummary] `json:"food"`
			Page
		} `json:"foods"`
	}
	if err := c.Call(ctx, "foods.search", p, &resp); err != nil {
		return FoodSearchResult{}, err
	}
	return FoodSearchResult{Foods: nonNil(resp.Foods.Food), Page: resp.Foods.Page}, nil
}

// GetFood runs food.get.v5.
func (c *Client) GetFood(ctx context.Context, id domain.FoodID) (Food, error) {
	if !id.Valid() {
		return Food{}, domain.ErrInvalidID
	}
	p := url.Values{"food_id": {id.String()}, "flag_default_serving": {"true"}}
	var resp struct {
		Food Food `json:"food"`
	}
	if err := c.Call(ctx, "food.get.v5", p, &resp); err != nil {
		return Food{}, err
	}
	return resp.Food, nil
}

// Autocomplete runs foods.autocomplete.v2 and returns the suggestions.
func (c *Client) Autocomplete(ctx context.Context, expression string, max int) ([]string, error) {
	if expression == "" {
		return nil, ErrEmptyQuery
	}
	p := url.Values{"expression": {expression}}
	if max > 0 {
		p.Set("max_results", strconv.Itoa(max))
	}
	var resp struct {
		Suggestions struct {
			Suggestion List[string] `json:"suggestion"`
		} `json:"suggestions"`
	}
	if err := c.Call(ctx, "foods.autocomplete.v2", p, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Suggestions.Suggestion), nil
}

// FindIDForBarcode resolves a GTIN-13 barcode. A "0" id means no match and
// is reported as ErrNoMatch.
func (c *Client) FindIDForBarcode(ctx context.Context, barcode string) (domain.FoodID, error) {
	if barcode == "" {
		return "", ErrEmptyQuery
	}
	var resp struct {
		FoodID valueField `json:"food_id"`
	}
	if err := c.Call(ctx, "food.find_id_for_barcode.v2", url.Values{"barcode": {barcode}}, &resp); err != nil {
		return "", err
	}
	if resp.FoodID.Value == "" || resp.FoodID.Value == "0" {
		return "", ErrNoMatch
	}
	return domain.FoodID(resp.FoodID.Value), nil
}

// ErrNoMatch is returned when a lookup succeeds but finds nothing.
var ErrNoMatch = errors.New("fatsecret: no match")

func nonNil[T any](l []T) []T {
	if l == nil {
		return []T{}
	}
	return l
}
