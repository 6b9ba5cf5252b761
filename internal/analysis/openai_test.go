package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

func chatReply(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func TestOpenAIAnalyzer_ParsesReply(t *testing.T) {
	srv := httptest.NewServer(chatReply(t,
		`{"summary":"Uptrend intact.","recommendation":"BUY","rationale":"Momentum.","confidence":82}`))
	defer srv.Close()

	a := NewOpenAIAnalyzer(srv.URL, "test-key", "gpt-3.5-turbo", NewTechnicalAnalyzer())
	result, err := a.Analyze(context.Background(), Request{Symbol: "AAPL", Candles: series(100, 101, 102)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Recommendation != RecommendBuy || result.Confidence != 82 {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Source != "openai" {
		t.Errorf("expected openai source, got %s", result.Source)
	}
}

func TestOpenAIAnalyzer_StripsCodeFence(t *testing.T) {
	srv := httptest.NewServer(chatReply(t,
		"```json\n{\"summary\":\"s\",\"recommendation\":\"sell\",\"rationale\":\"r\",\"confidence\":70}\n```"))
	defer srv.Close()

	a := NewOpenAIAnalyzer(srv.URL, "test-key", "gpt-3.5-turbo", NewTechnicalAnalyzer())
	result, err := a.Analyze(context.Background(), Request{Symbol: "BTC", Candles: series(100)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Recommendation != RecommendSell {
		t.Errorf("expected SELL, got %s", result.Recommendation)
	}
}

func TestOpenAIAnalyzer_FallsBackOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fallback := &StubAnalyzer{Result: model.Analysis{Recommendation: RecommendHold, Source: "technical"}}
	a := NewOpenAIAnalyzer(srv.URL, "test-key", "gpt-3.5-turbo", fallback)

	result, err := a.Analyze(context.Background(), Request{Symbol: "AAPL", Candles: series(100)})
	if err != nil {
		t.Fatalf("fallback must absorb upstream errors, got %v", err)
	}
	if result.Source != "technical" {
		t.Errorf("expected technical fallback, got %s", result.Source)
	}
}

func TestOpenAIAnalyzer_NoKeyUsesFallback(t *testing.T) {
	fallback := &StubAnalyzer{Result: model.Analysis{Recommendation: RecommendHold, Source: "technical"}}
	a := NewOpenAIAnalyzer("http://unreachable.invalid", "", "gpt-3.5-turbo", fallback)

	result, err := a.Analyze(context.Background(), Request{Symbol: "AAPL", Candles: series(100)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Source != "technical" {
		t.Errorf("expected technical fallback without a key, got %s", result.Source)
	}
}

func TestParseModelAnswer_InvalidRecommendationDefaultsToHold(t *testing.T) {
	result, err := parseModelAnswer("AAPL",
		`{"summary":"s","recommendation":"MAYBE","rationale":"r","confidence":120}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Recommendation != RecommendHold {
		t.Errorf("expected HOLD default, got %s", result.Recommendation)
	}
	if result.Confidence != 70 {
		t.Errorf("expected clamped confidence 70, got %d", result.Confidence)
	}
}
