package fatsecret

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/oauth1"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func fixedSigner(nonce string) Option {
	return WithSignerOptions(
		oauth1.WithNonceSource(func() (string, error) { return nonce, nil }),
		oauth1.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
}

// apiServer answers POST /rest/server.api with the body registered for the
// requested method and records the last form it saw.
type apiServer struct {
	*httptest.Server
	responses map[string]string
	status    int
	last      url.Values
}

func newAPIServer(t *testing.T, responses map[string]string) *apiServer {
	t.Helper()
	s := &apiServer{responses: responses, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		s.last = r.Form
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		body, ok := s.responses[r.Form.Get("method")]
		if !ok {
			body = `{"error":{"code":13,"message":"Invalid method"}}`
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, srv *apiServer) *Client {
	t.Helper()
	c, err := New(Config{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		APIURL:         srv.URL + apiPath,
		AuthURL:        srv.URL,
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{ConsumerSecret: "cs"})
	assert.ErrorIs(t, err, oauth1.ErrMissingConsumerKey)
	_, err = New(Config{ConsumerKey: "ck"})
	assert.ErrorIs(t, err, oauth1.ErrMissingConsumerSecret)
	assert.ErrorIs(t, err, oauth1.ErrConfiguration)
}

func TestConfigEndpoints(t *testing.T) {
	c := Config{}
	assert.Equal(t, "https://platform.fatsecret.com/rest/server.api", c.apiURL())
	assert.Equal(t, "https://authentication.fatsecret.com", c.authBase())
	c = Config{APIHost: "api.example", AuthHost: "auth.example"}
	assert.Equal(t, "https://api.example/rest/server.api", c.apiURL())
	assert.Equal(t, "https://auth.example", c.authBase())
}

func TestRequestTokenSignature(t *testing.T) {
	var seen url.Values
	var seenURL string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seenURL = r.URL.String()
		require.NoError(t, r.ParseForm())
		seen = r.PostForm
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("oauth_token=rt&oauth_token_secret=rts&oauth_callback_confirmed=true")),
			Header:     http.Header{},
		}, nil
	})
	c, err := New(Config{ConsumerKey: "ck", ConsumerSecret: "cs"},
		WithHTTPClient(&http.Client{Transport: rt}), fixedSigner("n3"))
	require.NoError(t, err)

	tok, err := c.RequestToken(context.Background(), "oob")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestToken{Token: "rt", Secret: "rts"}, tok)
	assert.Equal(t, "https://authentication.fatsecret.com/oauth/request_token", seenURL)
	assert.Equal(t, "+DOpPogF8KvU916anVfbFHwv1wI=", seen.Get(oauth1.ParamSignature))
	assert.Equal(t, "oob", seen.Get(oauth1.ParamCallback))
}

func TestAccessTokenExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != accessTokenPath || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get(oauth1.ParamToken) != "rt" || q.Get(oauth1.ParamVerifier) != "v123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "bad token")
			return
		}
		_, _ = io.WriteString(w, "oauth_token=at&oauth_token_secret=ats")
	}))
	defer srv.Close()
	c, err := New(Config{ConsumerKey: "ck", ConsumerSecret: "cs", AuthURL: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	at, err := c.AccessToken(context.Background(), domain.RequestToken{Token: "rt", Secret: "rts"}, "v123")
	require.NoError(t, err)
	assert.Equal(t, "at", at.Token)
	assert.Equal(t, "ats", at.Secret)

	_, err = c.AccessToken(context.Background(), domain.RequestToken{Token: "other", Secret: "x"}, "v123")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.False(t, Recoverable(err))
}

func TestAuthorizationURL(t *testing.T) {
	c, err := New(Config{ConsumerKey: "ck", ConsumerSecret: "cs"})
	require.NoError(t, err)
	assert.Equal(t, "https://authentication.fatsecret.com/authorize?oauth_token=a%2Bb", c.AuthorizationURL("a+b"))
}

func TestSearchFoodsSingleAndList(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"foods.search": `{"foods":{"food":{"food_id":"33691","food_name":"Chicken Soup","food_type":"Generic","food_description":"Per 1 cup","food_url":"u"},"max_results":"20","page_number":"0","total_results":"1"}}`,
	})
	c := newTestClient(t, srv)

	res, err := c.SearchFoods(context.Background(), "chicken soup", SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, res.Foods, 1)
	assert.Equal(t, "33691", res.Foods[0].FoodID)
	assert.EqualValues(t, 1, res.TotalResults)
	assert.Equal(t, "chicken soup", srv.last.Get("search_expression"))
	assert.Equal(t, "5", srv.last.Get("max_results"))
	assert.Equal(t, "json", srv.last.Get("format"))
	assert.Equal(t, "ck", srv.last.Get(oauth1.ParamConsumerKey))
	assert.Empty(t, srv.last.Get(oauth1.ParamToken))

	srv.responses["foods.search"] = `{"foods":{"food":[{"food_id":"1"},{"food_id":"2"}],"max_results":"20","page_number":"0","total_results":"2"}}`
	res, err = c.SearchFoods(context.Background(), "x", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Foods, 2)
}

func TestSearchFoodsEmptyResult(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"foods.search": `{"foods":{"max_results":"20","page_number":"0","total_results":"0"}}`,
	})
	res, err := newTestClient(t, srv).SearchFoods(context.Background(), "zzzz", SearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, res.Foods)
	assert.Empty(t, res.Foods)

	_, err = newTestClient(t, srv).SearchFoods(context.Background(), "", SearchOptions{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestGetFoodFlattensServings(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"food.get.v5": `{"food":{"food_id":"33691","food_name":"Soup","food_type":"Generic","food_url":"u","servings":{"serving":[
			{"serving_id":"1","serving_description":"1 cup","number_of_units":"1.000","measurement_description":"cup","calories":"120","carbohydrate":"10.5","protein":"8","fat":"3.2"},
			{"serving_id":"2","serving_description":"100 g","number_of_units":"100","measurement_description":"g","calories":"50","carbohydrate":"4","protein":"3","fat":"1","is_default":"1"}]}}}`,
	})
	food, err := newTestClient(t, srv).GetFood(context.Background(), "33691")
	require.NoError(t, err)
	require.Len(t, food.Servings, 2)
	assert.InDelta(t, 10.5, float64(food.Servings[0].Carbohydrate), 1e-9)
	def, ok := food.DefaultServing()
	require.True(t, ok)
	assert.Equal(t, "2", def.ServingID)
	assert.Equal(t, "true", srv.last.Get("flag_default_serving"))

	out, err := json.Marshal(food)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"servings":[`)
}

func TestGetFoodRejectsBadID(t *testing.T) {
	srv := newAPIServer(t, nil)
	_, err := newTestClient(t, srv).GetFood(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	assert.Nil(t, srv.last)
}

func TestAutocompleteAndBarcode(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"foods.autocomplete.v2":       `{"suggestions":{"suggestion":"chicken"}}`,
		"food.find_id_for_barcode.v2": `{"food_id":{"value":"4242"}}`,
	})
	c := newTestClient(t, srv)

	sugg, err := c.Autocomplete(context.Background(), "chick", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken"}, sugg)

	id, err := c.FindIDForBarcode(context.Background(), "0041570054161")
	require.NoError(t, err)
	assert.Equal(t, domain.FoodID("4242"), id)

	srv.responses["food.find_id_for_barcode.v2"] = `{"food_id":{"value":"0"}}`
	_, err = c.FindIDForBarcode(context.Background(), "0000000000000")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestGetRecipeFlattensWrappers(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"recipe.get.v2": `{"recipe":{"recipe_id":"91","recipe_name":"Stew","recipe_description":"d","number_of_servings":"4",
			"recipe_types":{"recipe_type":"Main Dish"},
			"ingredients":{"ingredient":[{"food_id":"1","food_name":"beef","number_of_units":"1","measurement_description":"lb","ingredient_description":"1 lb beef"}]},
			"directions":{"direction":{"direction_number":"1","direction_description":"Cook."}},
			"serving_sizes":{"serving":{"calories":"400","carbohydrate":"20","protein":"30","fat":"18"}}}}`,
	})
	r, err := newTestClient(t, srv).GetRecipe(context.Background(), "91")
	require.NoError(t, err)
	assert.Equal(t, []string{"Main Dish"}, []string(r.RecipeTypes))
	require.Len(t, r.Ingredients, 1)
	require.Len(t, r.Directions, 1)
	assert.EqualValues(t, 1, r.Directions[0].DirectionNumber)
	require.NotNil(t, r.Nutrition)
	assert.InDelta(t, 400.0, float64(r.Nutrition.Calories), 1e-9)
	assert.InDelta(t, 4.0, float64(r.NumberOfServings), 1e-9)
}

func TestSearchRecipes(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"recipes.search.v3": `{"recipes":{"recipe":[{"recipe_id":"1","recipe_name":"A"},{"recipe_id":"2","recipe_name":"B"}],"max_results":"2","page_number":"1","total_results":"9"}}`,
	})
	res, err := newTestClient(t, srv).SearchRecipes(context.Background(), "stew", SearchOptions{PageNumber: 1})
	require.NoError(t, err)
	assert.Len(t, res.Recipes, 2)
	assert.EqualValues(t, 9, res.TotalResults)
	assert.Equal(t, "1", srv.last.Get("page_number"))
}

func TestDiaryCallsAreThreeLegged(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"food_entries.get":  `{"food_entries":{"food_entry":{"food_entry_id":"77","food_entry_name":"Soup","food_id":"1","serving_id":"2","number_of_units":"1.5","meal":"lunch","date_int":"19675","calories":"180"}}}`,
		"food_entry.create": `{"food_entry_id":{"value":"78"}}`,
		"food_entry.delete": `{"success":{"value":"1"}}`,
	})
	c := newTestClient(t, srv)
	tok := domain.AccessToken{Token: "at", Secret: "ats"}
	day := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)

	entries, err := c.FoodEntries(context.Background(), tok, day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, MealLunch, entries[0].Meal)
	assert.Equal(t, day, entries[0].Date())
	assert.Equal(t, "19675", srv.last.Get("date"))
	assert.Equal(t, "at", srv.last.Get(oauth1.ParamToken))

	id, err := c.CreateFoodEntry(context.Background(), tok, NewFoodEntry{
		FoodID: "1", Name: "Soup", ServingID: "2", NumberOfUnits: 1.5, Meal: MealDinner, Date: day,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FoodEntryID("78"), id)
	assert.Equal(t, "1.5", srv.last.Get("number_of_units"))
	assert.Equal(t, "dinner", srv.last.Get("meal"))

	require.NoError(t, c.DeleteFoodEntry(context.Background(), tok, "78"))
	assert.Equal(t, "78", srv.last.Get("food_entry_id"))
}

func TestFoodEntriesNoEntriesIsEmpty(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"food_entries.get": `{"error":{"code":207,"message":"No entries found"}}`,
	})
	entries, err := newTestClient(t, srv).FoodEntries(context.Background(), domain.AccessToken{Token: "at", Secret: "s"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProfile(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"profile.get": `{"profile":{"goal_weight_kg":"70.5","last_weight_kg":"75","height_cm":"180","calorie_goal":"2200","weight_measure":"Kg"}}`,
	})
	p, err := newTestClient(t, srv).Profile(context.Background(), domain.AccessToken{Token: "at", Secret: "s"})
	require.NoError(t, err)
	assert.InDelta(t, 70.5, float64(p.GoalWeightKg), 1e-9)
	assert.EqualValues(t, 2200, p.CalorieGoal)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		auth        bool
		recoverable bool
	}{
		{"invalid signature", 200, `{"error":{"code":7,"message":"Invalid signature"}}`, true, false},
		{"invalid access token", 401, `{"error":{"code":"9","message":"bad token"}}`, true, false},
		{"unavailable", 200, `{"error":{"code":14,"message":"down"}}`, false, true},
		{"server error", 502, `<html>bad gateway</html>`, false, true},
		{"invalid id", 200, `{"error":{"code":106,"message":"Invalid ID"}}`, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAPIServer(t, map[string]string{"profile.get": tt.body})
			srv.status = tt.status
			_, err := newTestClient(t, srv).Profile(context.Background(), domain.AccessToken{Token: "at", Secret: "s"})
			require.Error(t, err)
			assert.Equal(t, tt.auth, IsAuthError(err))
			assert.Equal(t, tt.recoverable, Recoverable(err))
		})
	}
}

func TestTransportErrorIsRecoverable(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, errors.New("connection refused") })
	c, err := New(Config{ConsumerKey: "ck", ConsumerSecret: "cs"}, WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	_, err = c.SearchFoods(context.Background(), "x", SearchOptions{})
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, Recoverable(err))
}

func TestFlexibleNumbers(t *testing.T) {
	var v struct {
		A Float `json:"a"`
		B Float `json:"b"`
		C Int   `json:"c"`
		D Int   `json:"d"`
		E Int   `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.25","b":2,"c":"","d":"3.0","e":null}`), &v))
	assert.InDelta(t, 1.25, float64(v.A), 1e-9)
	assert.InDelta(t, 2.0, float64(v.B), 1e-9)
	assert.EqualValues(t, 0, v.C)
	assert.EqualValues(t, 3, v.D)
	assert.EqualValues(t, 0, v.E)
}

func TestParseMeal(t *testing.T) {
	m, err := ParseMeal(" Snack ")
	require.NoError(t, err)
	assert.Equal(t, MealOther, m)
	_, err = ParseMeal("brunch")
	assert.ErrorIs(t, err, ErrInvalidMeal)
}
