package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func okRouter(middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware...)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	return router
}

func TestRequestIDMiddleware(t *testing.T) {
	router := okRouter(RequestIDMiddleware())

	t.Run("generates an id when none is sent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		id := w.Header().Get(RequestIDHeader)
		if len(id) != 36 {
			t.Errorf("X-Request-ID = %q, want a uuid", id)
		}
		if w.Body.String() != id {
			t.Errorf("GetRequestID() = %q, want %q", w.Body.String(), id)
		}
	})

	t.Run("reuses the caller's id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "scrape-42")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "scrape-42" {
			t.Errorf("X-Request-ID = %q, want scrape-42", got)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("rejects requests over the per-IP budget", func(t *testing.T) {
		router := okRouter(RateLimitMiddleware(2))

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = "10.0.0.1:5000"
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
			t.Errorf("first codes = %v, want 200 within budget", codes[:2])
		}
		if codes[2] != http.StatusTooManyRequests {
			t.Errorf("third code = %d, want %d", codes[2], http.StatusTooManyRequests)
		}
	})

	t.Run("budgets are per IP", func(t *testing.T) {
		router := okRouter(RateLimitMiddleware(1))

		for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("%s: Status = %d, want %d", addr, w.Code, http.StatusOK)
			}
		}
	})

	t.Run("non-positive limit disables limiting", func(t *testing.T) {
		router := okRouter(RateLimitMiddleware(0))

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("request %d: Status = %d, want %d", i, w.Code, http.StatusOK)
			}
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
