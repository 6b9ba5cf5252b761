package analysis

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

func TestHandler_Analyze(t *testing.T) {
	h := NewHandler(&StubAnalyzer{Result: model.Analysis{
		Recommendation: RecommendBuy, Confidence: 80, Source: "stub",
	}})

	req := httptest.NewRequest(http.MethodPost, "/analyze",
		strings.NewReader(`{"symbol":"AAPL","type":"stock","chartData":[]}`))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"AAPL"`) {
		t.Errorf("response must carry the requested symbol: %s", rec.Body.String())
	}
}

func TestHandler_Analyze_BadInput(t *testing.T) {
	h := NewHandler(&StubAnalyzer{})

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"type":"stock"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol: expected 400, got %d", rec.Code)
	}
}

func TestHandler_Analyze_AnalyzerError(t *testing.T) {
	h := NewHandler(&StubAnalyzer{Err: errors.New("no data")})

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze",
		strings.NewReader(`{"symbol":"AAPL"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
