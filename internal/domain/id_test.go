package domain

import "testing"

func TestParseUserID(t *testing.T) {
	valid, err := ParseUserID("alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !valid.Valid() {
		t.Fatalf("Valid() returned false for a valid id")
	}

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	cases := []string{"", " alice", "al ice", "bob\n", "tab\tuser", string(long)}
	for _, c := range cases {
		if _, err := ParseUserID(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestUserIDOrDefault(t *testing.T) {
	id, err := UserIDOrDefault("", "")
	if err != nil || id != DefaultUserID {
		t.Fatalf("expected default user, got %q err=%v", id, err)
	}
	id, err = UserIDOrDefault("", "household")
	if err != nil || id != "household" {
		t.Fatalf("expected fallback user, got %q err=%v", id, err)
	}
	id, err = UserIDOrDefault("carol", "household")
	if err != nil || id != "carol" {
		t.Fatalf("expected explicit user, got %q err=%v", id, err)
	}
	if _, err = UserIDOrDefault("bad user", ""); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestParseNumericIDs(t *testing.T) {
	food, err := ParseFoodID(" 33691 ")
	if err != nil {
		t.Fatalf("ParseFoodID: %v", err)
	}
	if food != FoodID("33691") || !food.Valid() {
		t.Fatalf("unexpected food id %q", food)
	}
	if _, err := ParseServingID("29304"); err != nil {
		t.Fatalf("ParseServingID: %v", err)
	}
	if _, err := ParseRecipeID("91"); err != nil {
		t.Fatalf("ParseRecipeID: %v", err)
	}
	if _, err := ParseExerciseID("2"); err != nil {
		t.Fatalf("ParseExerciseID: %v", err)
	}

	bad := []string{"", "abc", "12a", "-1", "1.5", "123456789012345678901"}
	for _, c := range bad {
		if _, err := ParseFoodEntryID(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}
