package web_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taeu.kr/portal/internal/platform/web"
)

func TestHandler_WritesJSONError(t *testing.T) {
	handler := web.Handler(func(w http.ResponseWriter, r *http.Request) *web.Error {
		return &web.Error{Code: http.StatusBadGateway, Message: "upstream down", Err: errors.New("dial tcp")}
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "upstream down" {
		t.Fatalf("expected error message, got %q", body["error"])
	}
}

func TestHandler_PassesThroughOnSuccess(t *testing.T) {
	handler := web.Handler(func(w http.ResponseWriter, r *http.Request) *web.Error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &web.Error{Code: http.StatusInternalServerError, Message: "failed", Err: cause}

	if !errors.Is(err, cause) {
		t.Fatal("expected web.Error to unwrap its cause")
	}
	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestLogger_RecordsStatus(t *testing.T) {
	handler := web.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
}
