package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticHandlerServesIndexAtRoot(t *testing.T) {
	s := New("127.0.0.1:0", false, http.NotFoundHandler(), http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for root path, got %d", rec.Code)
	}
}

func TestMfdRouteOnlyAcceptsPost(t *testing.T) {
	called := false
	mfd := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	s := New("127.0.0.1:0", false, mfd, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/mfd", nil)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("GET should not reach the POST-only /api/mfd handler")
	}
}

func TestCorsMiddlewareSetsHeaders(t *testing.T) {
	s := New("127.0.0.1:0", true, http.NotFoundHandler(), http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/mfd", nil)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header to be set when corsOpen is true")
	}
}
