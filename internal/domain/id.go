// Package domain id.go contains the opaque identifier types used across the
// FatSecret and token-store boundaries.
package domain

import (
	"strings"
	"unicode"
)

// UserID identifies the owner of stored OAuth tokens. A single-user deployment
// uses DefaultUserID.
type UserID string

// DefaultUserID is used when a lambda input does not name a user.
const DefaultUserID UserID = "default"

const maxUserIDLen = 128

// ParseUserID validates s as a UserID. Empty strings, control characters,
// whitespace and values longer than 128 bytes are rejected with ErrInvalidID.
func ParseUserID(s string) (UserID, error) {
	if s == "" || len(s) > maxUserIDLen {
		return "", ErrInvalidID
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return "", ErrInvalidID
	}
	return UserID(s), nil
}

// UserIDOrDefault parses s, falling back to fallback when s is empty.
func UserIDOrDefault(s string, fallback UserID) (UserID, error) {
	if s == "" {
		if fallback == "" {
			return DefaultUserID, nil
		}
		return fallback, nil
	}
	return ParseUserID(s)
}

func (id UserID) String() string { return string(id) }

// Valid reports whether id satisfies ParseUserID.
func (id UserID) Valid() bool {
	_, err := ParseUserID(string(id))
	return err == nil
}

// FatSecret identifiers. They are decimal strings on the wire and are kept as
// distinct types so a serving ID can never be passed where a food ID belongs.
type (
	FoodID      string
	ServingID   string
	RecipeID    string
	FoodEntryID string
	ExerciseID  string
)

func (id FoodID) String() string      { return string(id) }
func (id ServingID) String() string   { return string(id) }
func (id RecipeID) String() string    { return string(id) }
func (id FoodEntryID) String() string { return string(id) }
func (id ExerciseID) String() string  { return string(id) }

func (id FoodID) Valid() bool      { return isNumericID(string(id)) }
func (id ServingID) Valid() bool   { return isNumericID(string(id)) }
func (id RecipeID) Valid() bool    { return isNumericID(string(id)) }
func (id FoodEntryID) Valid() bool { return isNumericID(string(id)) }
func (id ExerciseID) Valid() bool  { return isNumericID(string(id)) }

func ParseFoodID(s string) (FoodID, error)           { return parseNumericID[FoodID](s) }
func ParseServingID(s string) (ServingID, error)     { return parseNumericID[ServingID](s) }
func ParseRecipeID(s string) (RecipeID, error)       { return parseNumericID[RecipeID](s) }
func ParseFoodEntryID(s string) (FoodEntryID, error) { return parseNumericID[FoodEntryID](s) }
func ParseExerciseID(s string) (ExerciseID, error)   { return parseNumericID[ExerciseID](s) }

func parseNumericID[T ~string](s string) (T, error) {
	s = strings.TrimSpace(s)
	if !isNumericID(s) {
		return "", ErrInvalidID
	}
	return T(s), nil
}

// isNumericID performs validation without allocating errors.
func isNumericID(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
