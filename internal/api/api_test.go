// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crmrec/internal/auth"
	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/messaging"
	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/recommend"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
	"github.com/tomtom215/crmrec/internal/recommend/storage"
)

// testDBSemaphore serializes DuckDB usage across tests.
var testDBSemaphore = make(chan struct{}, 1)

const testSecret = "api_test_secret_that_is_long_enough_for_hs256"

type testServer struct {
	handler http.Handler
	db      *database.DB
	engine  *recommend.Engine
	bus     *events.Bus
	jwt     *auth.JWTManager
}

func newTestServer(t *testing.T, authMode string) *testServer {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", QueryTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.SeedDemoData(context.Background()); err != nil {
		t.Fatalf("SeedDemoData() error = %v", err)
	}

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("storage.NewStore() error = %v", err)
	}
	reg, err := registry.Open("", store)
	if err != nil {
		t.Fatalf("registry.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	engine, err := recommend.NewEngine(db, db, reg, recommend.DefaultOptions())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(engine.Close)

	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	handler, err := NewHandler(Deps{
		Store:      db,
		Engine:     engine,
		Bus:        bus,
		Generator:  messaging.NewGenerator(db),
		Dispatcher: messaging.NewDispatcher(db, 0, 1),
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	jwtManager, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	authMW, err := auth.NewMiddleware(authMode, jwtManager)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	router := NewRouter(handler, authMW, RouterConfig{CORSOrigins: []string{"*"}, RateLimitDisabled: true})
	return &testServer{handler: router.Handler(), db: db, engine: engine, bus: bus, jwt: jwtManager}
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid envelope %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
}

func TestFactEndpoints(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	tests := []struct {
		name     string
		path     string
		wantCode int
		check    func(t *testing.T, env envelope)
	}{
		{
			name:     "content by product name",
			path:     "/api/v1/recommendations?product=termite",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					RecommendedProducts []string `json:"recommended_products"`
				}
				decodeData(t, env, &data)
				want := []string{"Termite Treatment Premium", "Rodent Control", "Rodent Control"}
				if strings.Join(data.RecommendedProducts, ",") != strings.Join(want, ",") {
					t.Errorf("recommended_products = %v, want %v", data.RecommendedProducts, want)
				}
			},
		},
		{
			name:     "content without product",
			path:     "/api/v1/recommendations",
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, env envelope) {
				if env.Error == nil || env.Error.Code != CodeValidation {
					t.Errorf("error = %+v", env.Error)
				}
			},
		},
		{
			name:     "similar customers",
			path:     "/api/v1/collaborative/1",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					SimilarCustomers []models.SimilarCustomer `json:"similar_customers"`
				}
				decodeData(t, env, &data)
				if len(data.SimilarCustomers) != 2 || data.SimilarCustomers[0].CustomerID != 2 || data.SimilarCustomers[0].CommonCount != 1 {
					t.Errorf("similar_customers = %+v", data.SimilarCustomers)
				}
			},
		},
		{
			name:     "similar customers bad id",
			path:     "/api/v1/collaborative/abc",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "upsell",
			path:     "/api/v1/upsell/1",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					Upsell []string `json:"upsell_suggestions"`
				}
				decodeData(t, env, &data)
				if len(data.Upsell) != 1 || data.Upsell[0] != "Termite Treatment Premium" {
					t.Errorf("upsell_suggestions = %v", data.Upsell)
				}
			},
		},
		{
			name:     "cross-sell",
			path:     "/api/v1/crosssell/2",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					CrossSell []models.CrossSellCount `json:"cross_sell_suggestions"`
				}
				decodeData(t, env, &data)
				if len(data.CrossSell) != 2 || data.CrossSell[0].ProductName != "Mosquito Control" {
					t.Errorf("cross_sell_suggestions = %+v", data.CrossSell)
				}
			},
		},
		{
			name:     "cross-sell unknown customer is empty",
			path:     "/api/v1/crosssell/999",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					CrossSell []models.CrossSellCount `json:"cross_sell_suggestions"`
				}
				decodeData(t, env, &data)
				if data.CrossSell == nil || len(data.CrossSell) != 0 {
					t.Errorf("cross_sell_suggestions = %#v, want empty list", data.CrossSell)
				}
			},
		},
		{
			name:     "products",
			path:     "/api/v1/products",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					Products []string `json:"products"`
				}
				decodeData(t, env, &data)
				if len(data.Products) != 5 || data.Products[0] != "Cockroach Control" {
					t.Errorf("products = %v", data.Products)
				}
			},
		},
		{
			name:     "dashboard",
			path:     "/api/v1/dashboard",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					Rows  []models.DashboardRow `json:"recommendations"`
					Count int                   `json:"count"`
				}
				decodeData(t, env, &data)
				if data.Count != 5 || data.Rows[0].ConfidenceScore < data.Rows[4].ConfidenceScore {
					t.Errorf("dashboard = %+v", data)
				}
			},
		},
		{
			name:     "dashboard filtered by type",
			path:     "/api/v1/dashboard?type=Upsell",
			wantCode: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				var data struct {
					Count int `json:"count"`
				}
				decodeData(t, env, &data)
				if data.Count != 1 {
					t.Errorf("count = %d, want 1", data.Count)
				}
			},
		},
		{
			name:     "dashboard bad type",
			path:     "/api/v1/dashboard?type=Bogus",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodGet, tt.path, "", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode == http.StatusOK && env.Status != "success" {
				t.Errorf("envelope status = %q", env.Status)
			}
			if tt.wantCode != http.StatusOK && env.Status != "error" {
				t.Errorf("envelope status = %q", env.Status)
			}
			if tt.check != nil {
				tt.check(t, env)
			}
		})
	}
}

func TestAIPersonalized(t *testing.T) {
	t.Run("open mode", func(t *testing.T) {
		s := newTestServer(t, auth.ModeNone)

		rec, env := s.do(t, http.MethodGet, "/api/v1/ai-personalized", "", nil)
		if rec.Code != http.StatusBadRequest || env.Error.Message != "Customer ID is required." {
			t.Errorf("missing id: status = %d, error = %+v", rec.Code, env.Error)
		}

		rec, _ = s.do(t, http.MethodGet, "/api/v1/ai-personalized?customer_id=abc", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("invalid id: status = %d", rec.Code)
		}

		rec, env = s.do(t, http.MethodGet, "/api/v1/ai-personalized?customer_id=1", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var data struct {
			CustomerID      int64                `json:"customer_id"`
			Recommendations []personalizedResult `json:"recommendations"`
		}
		decodeData(t, env, &data)
		if data.CustomerID != 1 {
			t.Errorf("customer_id = %d", data.CustomerID)
		}
		if len(data.Recommendations) == 0 || len(data.Recommendations) > 5 {
			t.Errorf("got %d recommendations, want 1..5", len(data.Recommendations))
		}
		for _, r := range data.Recommendations {
			if r.ProductTitle == "" {
				t.Errorf("empty product_title in %+v", r)
			}
		}
	})

	t.Run("jwt mode", func(t *testing.T) {
		s := newTestServer(t, auth.ModeJWT)

		rec, env := s.do(t, http.MethodGet, "/api/v1/ai-personalized?customer_id=1", "", nil)
		if rec.Code != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
			t.Errorf("no token: status = %d, error = %+v", rec.Code, env.Error)
		}

		token, err := s.jwt.GenerateToken("agent", "user")
		if err != nil {
			t.Fatal(err)
		}
		rec, _ = s.do(t, http.MethodGet, "/api/v1/ai-personalized?customer_id=1", "", map[string]string{
			"Authorization": "Bearer " + token,
		})
		if rec.Code != http.StatusOK {
			t.Errorf("with token: status = %d, body = %s", rec.Code, rec.Body.String())
		}

		// Other routes stay open.
		rec, _ = s.do(t, http.MethodGet, "/api/v1/products", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("products: status = %d", rec.Code)
		}
	})
}

func TestModelEndpoints(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	type strategyData struct {
		Strategy        string                     `json:"strategy"`
		Recommendations []recommend.Recommendation `json:"recommendations"`
		Count           int                        `json:"count"`
	}

	t.Run("similar items lazily trains content model", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/items/1/similar?k=2", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var data strategyData
		decodeData(t, env, &data)
		if data.Strategy != recommend.StrategyContent || data.Count > 2 || data.Count == 0 {
			t.Errorf("data = %+v", data)
		}
		for _, r := range data.Recommendations {
			if r.ID == 1 {
				t.Error("query item returned as its own neighbour")
			}
		}
	})

	t.Run("user recommendations", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/users/1/recommendations?k=3", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var data strategyData
		decodeData(t, env, &data)
		if data.Count == 0 || data.Count > 3 {
			t.Errorf("count = %d", data.Count)
		}
	})

	t.Run("generic route with text subject", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/recommend/sql-content/termite", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var data strategyData
		decodeData(t, env, &data)
		if data.Count != 3 {
			t.Errorf("count = %d, want 3", data.Count)
		}
	})

	t.Run("generic route with numeric product name", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/recommend/sql-content/2024", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var data strategyData
		decodeData(t, env, &data)
		if data.Count != 0 {
			t.Errorf("count = %d, want 0 for a product name nothing matches", data.Count)
		}
	})

	t.Run("generic route rejects text for numeric strategy", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/recommend/content/termite",
			"/api/v1/recommend/sql-upsell/termite",
			"/api/v1/recommend/collaborative/0",
		} {
			rec, env := s.do(t, http.MethodGet, path, "", nil)
			if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != CodeValidation {
				t.Errorf("%s: status = %d, error = %+v", path, rec.Code, env.Error)
			}
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/recommend/astrology/1", "", nil)
		if rec.Code != http.StatusNotFound || env.Error.Code != CodeNotFound {
			t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
		}
	})

	t.Run("negative k", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodGet, "/api/v1/users/1/recommendations?k=-1", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestTrainingEndpoints(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	received, err := s.bus.SubscribeRetrain(ctx)
	if err != nil {
		t.Fatalf("SubscribeRetrain() error = %v", err)
	}

	rec, env := s.do(t, http.MethodPost, "/api/v1/recommendations/train", "", map[string]string{"X-Request-ID": "train-req-1"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var data struct {
		EventID string `json:"event_id"`
	}
	decodeData(t, env, &data)

	select {
	case ev := <-received:
		if ev.EventID != data.EventID || ev.Source != events.SourceAPI || ev.RequestID != "train-req-1" {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("retrain event not delivered")
	}

	if _, err := s.engine.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/recommendations/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status struct {
		Training     recommend.TrainingStatus `json:"training"`
		BreakerState string                   `json:"breaker_state"`
	}
	decodeData(t, env, &status)
	if status.Training.Runs != 1 || len(status.Training.Models) != 3 {
		t.Errorf("training = %+v", status.Training)
	}
	for _, m := range status.Training.Models {
		if !m.Available || m.Version != 1 {
			t.Errorf("model %s = %+v, want version 1", m.Name, m)
		}
	}
	if status.BreakerState != "closed" {
		t.Errorf("breaker_state = %q", status.BreakerState)
	}
}

func TestDataEndpoints(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"valid rating", "/api/v1/ratings", `{"user_id":9,"item_id":1,"rating":4.5}`, http.StatusOK},
		{"rating out of range", "/api/v1/ratings", `{"user_id":9,"item_id":1,"rating":9}`, http.StatusBadRequest},
		{"rating missing user", "/api/v1/ratings", `{"item_id":1,"rating":3}`, http.StatusBadRequest},
		{"malformed json", "/api/v1/ratings", `{"user_id":`, http.StatusBadRequest},
		{"empty body", "/api/v1/ratings", ``, http.StatusBadRequest},
		{"valid interaction", "/api/v1/interactions", `{"user_id":9,"item_id":2,"interaction_type":"purchase","metadata":{"branch":"north"}}`, http.StatusOK},
		{"bad interaction type", "/api/v1/interactions", `{"user_id":9,"item_id":2,"interaction_type":"wave"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, tt.path, tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode == http.StatusBadRequest && (env.Error == nil || env.Error.Code != CodeValidation) {
				t.Errorf("error = %+v", env.Error)
			}
		})
	}

	ratings, err := s.db.UserRatings(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if ratings[1] != 4.5 {
		t.Errorf("stored ratings = %v", ratings)
	}

	rec, env := s.do(t, http.MethodGet, "/api/v1/users/9/interactions", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Interactions []models.Interaction `json:"interactions"`
		Count        int                  `json:"count"`
	}
	decodeData(t, env, &data)
	if data.Count != 1 || data.Interactions[0].Type != models.InteractionPurchase {
		t.Errorf("interactions = %+v", data)
	}
}

func TestRatingInvalidatesCache(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	s.do(t, http.MethodGet, "/api/v1/upsell/1", "", nil)
	before, err := s.engine.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if before.CacheEntries == 0 {
		t.Fatal("expected a cached response")
	}

	rec, _ := s.do(t, http.MethodPost, "/api/v1/ratings", `{"user_id":1,"item_id":2,"rating":2}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	after, err := s.engine.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if after.CacheEntries != 0 {
		t.Errorf("cache entries = %d after rating, want 0", after.CacheEntries)
	}
}

func TestMessageEndpoints(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	t.Run("templates", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/message-templates", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var templates []models.MessageTemplate
		decodeData(t, env, &templates)
		if len(templates) != 3 {
			t.Errorf("got %d templates, want 3", len(templates))
		}
	})

	t.Run("generate", func(t *testing.T) {
		body := `{"customer_name":"Asha","base_product":"Termite Treatment","recommended_product":"Rodent Control","recommendation_type":"Cross-Sell"}`
		rec, env := s.do(t, http.MethodPost, "/api/v1/messages/generate", body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var data map[string]string
		decodeData(t, env, &data)
		want := "Hi Asha, since you purchased Termite Treatment, you might love Rodent Control! (Type: Cross-Sell)"
		if data["message"] != want {
			t.Errorf("message = %q", data["message"])
		}
	})

	t.Run("generate missing fields", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/api/v1/messages/generate", `{"customer_name":"Asha"}`, nil)
		if rec.Code != http.StatusBadRequest || env.Error.Code != CodeValidation {
			t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
		}
	})

	t.Run("send and list", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodPost, "/api/v1/messages/send", `{"customer_id":2,"message":"Your service is due"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec, env := s.do(t, http.MethodGet, "/api/v1/messages/sent/2", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var data struct {
			Messages []models.SentMessage `json:"messages"`
		}
		decodeData(t, env, &data)
		if len(data.Messages) != 1 || data.Messages[0].Message != "Your service is due" || data.Messages[0].ID == "" {
			t.Errorf("messages = %+v", data.Messages)
		}
	})

	t.Run("send missing fields", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/api/v1/messages/send", `{"customer_id":2}`, nil)
		if rec.Code != http.StatusBadRequest || env.Error.Code != CodeValidation {
			t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
		}
	})

	t.Run("personalized", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/messages/personalized/1/1", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var msg messaging.PersonalizedMessage
		decodeData(t, env, &msg)
		if msg.RecommendedProduct != "Termite Treatment Premium" || msg.RecommendationType != models.RecommendationUpsell {
			t.Errorf("message = %+v", msg)
		}
	})

	t.Run("personalized unknown customer", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/api/v1/messages/personalized/99/1", "", nil)
		if rec.Code != http.StatusNotFound || env.Error.Code != CodeNotFound {
			t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
		}
	})
}

func TestHealthMetricsAndMiddleware(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)

	rec, env := s.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health HealthStatus
	decodeData(t, env, &health)
	if health.Status != "healthy" || !health.DatabaseConnected {
		t.Errorf("health = %+v", health)
	}

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "crmrec_api_requests_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/products", "", map[string]string{"X-Request-ID": "req-42"})
	if rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers missing: %v", rec.Header())
	}
	if env.Metadata.Timestamp.IsZero() {
		t.Error("metadata.timestamp not set")
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != CodeNotFound {
		t.Errorf("unknown route: status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, auth.ModeNone)
	handler, err := NewHandler(Deps{
		Store:      s.db,
		Engine:     s.engine,
		Bus:        s.bus,
		Generator:  messaging.NewGenerator(s.db),
		Dispatcher: messaging.NewDispatcher(s.db, 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	authMW, _ := auth.NewMiddleware(auth.ModeNone, nil)
	limited := NewRouter(handler, authMW, RouterConfig{
		CORSOrigins: []string{"*"},
		RateLimit:   RateLimitConfig{Requests: 2, Window: time.Minute},
	}).Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	if _, err := NewHandler(Deps{}); err == nil {
		t.Error("NewHandler(empty) expected error")
	}
}
