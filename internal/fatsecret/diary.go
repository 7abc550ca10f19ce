package fatsecret

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/haukened/mealplanner/internal/domain"
)

// Meal is a diary meal slot.
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
	MealOther     Meal = "other"
)

// ErrInvalidMeal is returned by ParseMeal for unknown slots.
var ErrInvalidMeal = errors.New("meal must be breakfast, lunch, dinner or other")

// ParseMeal accepts the API names plus "snack" as an alias for other.
func ParseMeal(s string) (Meal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "breakfast":
		return MealBreakfast, nil
	case "lunch":
		return MealLunch, nil
	case "dinner":
		return MealDinner, nil
	case "other", "snack":
		return MealOther, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMeal, s)
}

// FoodEntry is one diary line.
type FoodEntry struct {
	FoodEntryID          string `json:"food_entry_id"`
	FoodEntryName        string `json:"food_entry_name"`
	FoodEntryDescription string `json:"food_entry_description"`
	FoodID               string `json:"food_id"`
	ServingID            string `json:"serving_id"`
	NumberOfUnits        Float  `json:"number_of_units"`
	Meal                 Meal   `json:"meal"`
	DateInt              Int    `json:"date_int"`
	Calories             Float  `json:"calories"`
	Carbohydrate         Float  `json:"carbohydrate"`
	Protein              Float  `json:"protein"`
	Fat                  Float  `json:"fat"`
	Fiber                Float  `json:"fiber,omitempty"`
	Sugar                Float  `json:"sugar,omitempty"`
	Sodium               Float  `json:"sodium,omitempty"`
}

// Date returns the entry's calendar day.
func (e FoodEntry) Date() time.Time { return domain.FromEpochDays(int(e.DateInt)) }

// NewFoodEntry describes a diary line to create.
type NewFoodEntry struct {
	FoodID        domain.FoodID    `json:"food_id" validate:"required,numeric"`
	Name          string           `json:"food_entry_name" validate:"required"`
	ServingID     domain.ServingID `json:"serving_id" validate:"required,numeric"`
	NumberOfUnits float64          `json:"number_of_units" validate:"gt=0"`
	Meal          Meal             `json:"meal" validate:"required,oneof=breakfast lunch dinner other"`
	Date          time.Time        `json:"-"`
}

// FoodEntries runs food_entries.get for one day.
func (c *Client) FoodEntries(ctx context.Context, tok domain.AccessToken, day time.Time) ([]FoodEntry, error) {
	p := url.Values{"date": {strconv.Itoa(domain.EpochDays(day))}}
	var resp struct {
		FoodEntries *struct {
			FoodEntry List[FoodEntry] `json:"food_entry"`
		} `json:"food_entries"`
	}
	if err := c.CallAuthorized(ctx, tok, "food_entries.get", p, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == CodeNoEntries {
			return []FoodEntry{}, nil
		}
		return nil, err
	}
	if resp.FoodEntries == nil {
		return []FoodEntry{}, nil
	}
	return nonNil(resp.FoodEntries.FoodEntry), nil
}

// CreateFoodEntry runs food_entry.create and returns the new entry id.
func (c *Client) CreateFoodEntry(ctx context.Context, tok domain.AccessToken, e NewFoodEntry) (domain.FoodEntryID, error) {
	if !e.FoodID.Valid() || !e.ServingID.Valid() {
		return "", domain.ErrInvalidID
	}
	p := url.Values{
		"food_id":         {e.FoodID.String()},
		"food_entry_name": {e.Name},
		"serving_id":      {e.ServingID.String()},
		"number_of_units": {strconv.FormatFloat(e.NumberOfUnits, 'f', -1, 64)},
		"meal":            {string(e.Meal)},
		"date":            {strconv.Itoa(domain.EpochDays(e.Date))},
	}
	var resp struct {
		FoodEntryID valueField `json:"food_entry_id"`
	}
	if err := c.CallAuthorized(ctx, tok, "food_entry.create", p, &resp); err != nil {
		return "", err
	}
	if resp.FoodEntryID.Value == "" {
		return "", fmt.Errorf("%w: food_entry.create returned no id", ErrDecode)
	}
	return domain.FoodEntryID(resp.FoodEntryID.Value), nil
}

// DeleteFoodEntry runs food_entry.delete.
func (c *Client) DeleteFoodEntry(ctx context.Context, tok domain.AccessToken, id domain.FoodEntryID) error {
	if !id.Valid() {
		return domain.ErrInvalidID
	}
	return c.CallAuthorized(ctx, tok, "food_entry.delete", url.Values{"food_entry_id": {id.String()}}, nil)
}
