package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pricetracker/backend/config"
	"github.com/pricetracker/backend/internal/domain"
	"github.com/pricetracker/backend/internal/infrastructure/memory"
	"github.com/pricetracker/backend/internal/rules"
	"github.com/pricetracker/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:        "8080",
			Environment: "test",
		},
		Store:     config.StoreConfig{Driver: "memory"},
		Grouping:  config.GroupingConfig{Workers: 2},
		RateLimit: config.RateLimitConfig{PerIP: 1000},
	}
}

func newTestAggregator(t *testing.T) (*usecase.GroupAggregator, *memory.Store) {
	t.Helper()

	sets, err := rules.Defaults()
	if err != nil {
		t.Fatalf("rules.Defaults() error = %v", err)
	}
	registry, err := usecase.NewRegistry(sets)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	store := memory.NewStore()
	return usecase.NewGroupAggregator(store, registry, usecase.AggregatorConfig{Workers: 2}), store
}

// setupTestRouter creates a test router backed by an in-memory store
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	aggregator, _ := newTestAggregator(t)
	return SetupRouter(testConfig(), NewHandler(aggregator))
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
	}
}

const twoRetailerBatch = `[
	{"id": "u1", "name": "MSI GeForce RTX 4090 Suprim X 24GB", "url": "https://ultrapc.ma/u1",
	 "image_url": "https://ultrapc.ma/u1.jpg", "price": "21 999,00 DH", "category": "gpu", "website": "ultrapc"},
	{"id": "t1", "name": "MSI RTX 4090 SUPRIM X 24G", "url": "https://techspace.ma/t1",
	 "image_url": "https://techspace.ma/t1.jpg", "price": 20499, "category": "gpu", "website": "techspace"}
]`

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		w := doRequest(setupTestRouter(t), "GET", "/health", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		decodeBody(t, w, &response)

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "pricetracker-grouper" {
			t.Errorf("service = %v, want pricetracker-grouper", response["service"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(t)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doRequest(router, method, "/health", "")
			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestIngestEndpoint tests batch ingestion over HTTP
func TestIngestEndpoint(t *testing.T) {
	t.Run("groups listings of the same product", func(t *testing.T) {
		aggregator, store := newTestAggregator(t)
		router := SetupRouter(testConfig(), NewHandler(aggregator))

		w := doRequest(router, "POST", "/api/v1/ingest", twoRetailerBatch)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var stats domain.IngestStats
		decodeBody(t, w, &stats)

		if stats.Total != 2 || stats.Created != 2 || stats.Errors != 0 {
			t.Errorf("stats = %+v, want total=2 created=2 errors=0", stats)
		}
		if stats.GroupsCreated != 1 {
			t.Errorf("GroupsCreated = %d, want 1", stats.GroupsCreated)
		}
		if stats.BatchID == "" {
			t.Error("BatchID is empty")
		}

		groups, err := store.ListGroups(t.Context())
		if err != nil {
			t.Fatalf("ListGroups() error = %v", err)
		}
		if len(groups) != 1 {
			t.Fatalf("len(groups) = %d, want 1", len(groups))
		}
		if groups[0].StartingPrice != 20499 {
			t.Errorf("StartingPrice = %v, want 20499", groups[0].StartingPrice)
		}
		// the founding listing's image stays while it is still available
		if groups[0].RepresentativeImageURL != "https://ultrapc.ma/u1.jpg" {
			t.Errorf("RepresentativeImageURL = %s, want https://ultrapc.ma/u1.jpg", groups[0].RepresentativeImageURL)
		}
	})

	t.Run("derives missing ids when asked", func(t *testing.T) {
		aggregator, store := newTestAggregator(t)
		router := SetupRouter(testConfig(), NewHandler(aggregator))

		body := `[{"name": "Sapphire PULSE RX 7800 XT 16Go", "url": "https://ultrapc.ma/rx",
			"price": 6299, "category": "gpu", "website": "ultrapc"}]`
		w := doRequest(router, "POST", "/api/v1/ingest?derive_ids=true", body)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		products, err := store.ListProducts(t.Context(), "gpu")
		if err != nil {
			t.Fatalf("ListProducts() error = %v", err)
		}
		if len(products) != 1 || len(products[0].ID) != 64 {
			t.Errorf("products = %+v, want one product with a derived id", products)
		}
	})

	t.Run("counts records without id as errors", func(t *testing.T) {
		body := `[{"name": "Sapphire PULSE RX 7800 XT 16Go", "url": "https://ultrapc.ma/rx",
			"price": 6299, "category": "gpu", "website": "ultrapc"}]`
		w := doRequest(setupTestRouter(t), "POST", "/api/v1/ingest", body)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var stats domain.IngestStats
		decodeBody(t, w, &stats)
		if stats.Errors != 1 || stats.Created != 0 {
			t.Errorf("stats = %+v, want errors=1 created=0", stats)
		}
	})

	t.Run("returns 400 for invalid JSON", func(t *testing.T) {
		w := doRequest(setupTestRouter(t), "POST", "/api/v1/ingest", `{"id": `)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}

		var response map[string]interface{}
		decodeBody(t, w, &response)
		if response["error"] == nil {
			t.Error("expected error field in response")
		}
	})

	t.Run("counts a mistyped record without rejecting the batch", func(t *testing.T) {
		body := `[
			{"id": "u1", "name": "MSI RTX 4090 Suprim X 24GB", "url": "https://ultrapc.ma/u1",
			 "price": 21999, "category": "gpu", "website": "ultrapc"},
			{"id": 123, "name": "MSI RTX 4060 8GB", "url": "https://ultrapc.ma/u2",
			 "price": 3100, "category": "gpu", "website": "ultrapc"},
			{"id": "t1", "name": "MSI RTX 4090 SUPRIM X 24G", "url": "https://techspace.ma/t1",
			 "price": 20499, "availability": "yes", "category": "gpu", "website": "techspace"}
		]`
		w := doRequest(setupTestRouter(t), "POST", "/api/v1/ingest", body)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var stats domain.IngestStats
		decodeBody(t, w, &stats)
		if stats.Total != 3 || stats.Created != 1 || stats.Errors != 2 {
			t.Errorf("stats = %+v, want total=3 created=1 errors=2", stats)
		}
	})

	t.Run("returns 413 for an oversized body", func(t *testing.T) {
		aggregator, _ := newTestAggregator(t)
		cfg := testConfig()
		cfg.Server.MaxBodyBytes = 64
		router := SetupRouter(cfg, NewHandler(aggregator))

		w := doRequest(router, "POST", "/api/v1/ingest", twoRetailerBatch)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
		}
	})

	t.Run("returns 503 without a grouping service", func(t *testing.T) {
		router := SetupRouter(testConfig(), NewHandler(nil))
		w := doRequest(router, "POST", "/api/v1/ingest", twoRetailerBatch)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

// TestRegroupAndRecomputeEndpoints tests the maintenance endpoints
func TestRegroupAndRecomputeEndpoints(t *testing.T) {
	router := setupTestRouter(t)

	if w := doRequest(router, "POST", "/api/v1/ingest", twoRetailerBatch); w.Code != http.StatusOK {
		t.Fatalf("ingest Status = %d, want %d", w.Code, http.StatusOK)
	}

	t.Run("regroup re-ingests stored products", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/v1/regroup?category=gpu", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}

		var stats domain.IngestStats
		decodeBody(t, w, &stats)
		if stats.Total != 2 || stats.Updated != 2 || stats.GroupsCreated != 0 {
			t.Errorf("stats = %+v, want total=2 updated=2 groups_created=0", stats)
		}
	})

	t.Run("recompute reports every group", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/v1/groups/recompute", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var stats domain.AggregateStats
		decodeBody(t, w, &stats)
		if stats.Groups != 1 || stats.Failed != 0 {
			t.Errorf("stats = %+v, want groups=1 failed=0", stats)
		}
	})
}

// TestNormalizeEndpoint tests rule debugging over HTTP
func TestNormalizeEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("returns the normalized spec", func(t *testing.T) {
		body := `{"category": "gpu", "title": "ASUS ROG Strix GeForce RTX 4090 OC 24GB GDDR6X"}`
		w := doRequest(router, "POST", "/api/v1/normalize", body)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var spec domain.ProductSpec
		decodeBody(t, w, &spec)
		if spec.CanonicalModel != "RTX 4090 24 GB - ASUS" {
			t.Errorf("CanonicalModel = %s, want RTX 4090 24 GB - ASUS", spec.CanonicalModel)
		}
		if spec.KeySpecs.VRAM != 24 {
			t.Errorf("VRAM = %d, want 24", spec.KeySpecs.VRAM)
		}
	})

	t.Run("returns 404 for unregistered category", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/v1/normalize", `{"category": "cpu", "title": "Ryzen 7 7800X3D"}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("returns 400 for missing title", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/v1/normalize", `{"category": "gpu"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestCompareEndpoint tests grouping decisions over HTTP
func TestCompareEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name     string
		titleA   string
		titleB   string
		decision string
	}{
		{"same product", "MSI GeForce RTX 4090 Suprim X 24GB", "MSI RTX 4090 SUPRIM X 24G", domain.DecisionGroup},
		{"different memory", "MSI RTX 4060 Ventus 8GB", "MSI RTX 4060 Ventus 16GB", domain.DecisionSeparate},
		{"different partner", "MSI RTX 4070 12GB", "ASUS RTX 4070 12GB", domain.DecisionSeparate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CompareRequest{Category: "gpu", TitleA: tt.titleA, TitleB: tt.titleB}
			body, _ := json.Marshal(req)

			w := doRequest(router, "POST", "/api/v1/compare", string(body))
			if w.Code != http.StatusOK {
				t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
			}

			var decision domain.GroupDecision
			decodeBody(t, w, &decision)
			if decision.Decision != tt.decision {
				t.Errorf("Decision = %s (%s), want %s", decision.Decision, decision.Reason, tt.decision)
			}
		})
	}
}

// TestAPIVersioning checks that routes live under /api/v1
func TestAPIVersioning(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(router, "POST", "/ingest", twoRetailerBatch)
	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d for non-versioned route", w.Code, http.StatusNotFound)
	}
}
