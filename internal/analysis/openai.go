package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cryptocandle/dashboard-engine/internal/metrics"
	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// OpenAIAnalyzer proxies the analysis request to a chat-completions API.
// The API key never leaves the server. Any upstream failure falls back to
// the deterministic analyzer so the dashboard always gets an answer.
type OpenAIAnalyzer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	fallback   Analyzer
}

// NewOpenAIAnalyzer creates the proxy analyzer. fallback must not be nil.
func NewOpenAIAnalyzer(baseURL, apiKey, chatModel string, fallback Analyzer) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      chatModel,
		fallback:   fallback,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze asks the language model for a recommendation. Without an API key,
// or on any upstream error, it answers from the fallback analyzer instead.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req Request) (*model.Analysis, error) {
	if a.apiKey == "" {
		return a.fallback.Analyze(ctx, req)
	}

	analysis, err := a.callUpstream(ctx, req)
	if err != nil {
		slog.Warn("language model analysis failed, using technical fallback",
			"symbol", req.Symbol, "err", err)
		metrics.UpstreamRequests.WithLabelValues("openai", "error").Inc()
		return a.fallback.Analyze(ctx, req)
	}

	metrics.UpstreamRequests.WithLabelValues("openai", "ok").Inc()
	return analysis, nil
}

func (a *OpenAIAnalyzer) callUpstream(ctx context.Context, req Request) (*model.Analysis, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "You are a professional financial analyst specializing in market analysis. " +
					"Provide clear, concise, and actionable trading advice based on technical and fundamental analysis.",
			},
			{Role: "user", Content: buildPrompt(req)},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis: upstream returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, err
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("analysis: upstream returned no choices")
	}

	return parseModelAnswer(req.Symbol, chat.Choices[0].Message.Content)
}

// buildPrompt renders the market series the way the dashboard always
// prompted: recent OHLCV rows plus the computed indicator values, with a
// strict JSON response format.
func buildPrompt(req Request) string {
	recent := req.Candles
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	var rows strings.Builder
	for _, c := range recent {
		fmt.Fprintf(&rows, "%s: O:$%s H:$%s L:$%s C:$%s V:%s\n",
			time.Unix(c.Time, 0).UTC().Format("2006-01-02"),
			c.Open.StringFixed(2), c.High.StringFixed(2),
			c.Low.StringFixed(2), c.Close.StringFixed(2),
			c.Volume.StringFixed(0))
	}

	prices := closes(req.Candles)
	return fmt.Sprintf(`Analyze this %s (%s) market data and provide a professional trading analysis:

Current Price: $%s
24h Change: %s%% (%s)

Recent Price Data (Last 10 days):
%s
Technical Indicators:
- 20-day SMA: $%.2f
- 14-day RSI: %.2f

Please provide:
1. A 2-3 sentence summary of the current market trend
2. A clear BUY/SELL/HOLD recommendation
3. A brief rationale for your recommendation (1-2 sentences)
4. A confidence level (0-100%%)

Format your response as JSON:
{"summary": "...", "recommendation": "BUY/SELL/HOLD", "rationale": "...", "confidence": 85}`,
		req.AssetType, req.Symbol,
		req.Price.StringFixed(2), req.ChangePercent.StringFixed(2), req.Change.StringFixed(2),
		rows.String(), sma(prices, 20), rsi(prices, 14))
}

// parseModelAnswer decodes the model's JSON reply, tolerating a markdown
// code fence around it.
func parseModelAnswer(symbol, content string) (*model.Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed struct {
		Summary        string `json:"summary"`
		Recommendation string `json:"recommendation"`
		Rationale      string `json:"rationale"`
		Confidence     int    `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, fmt.Errorf("analysis: unparseable model reply: %w", err)
	}

	rec := strings.ToUpper(strings.TrimSpace(parsed.Recommendation))
	if rec != RecommendBuy && rec != RecommendSell && rec != RecommendHold {
		rec = RecommendHold
	}
	if parsed.Confidence < 0 || parsed.Confidence > 100 {
		parsed.Confidence = 70
	}

	return &model.Analysis{
		Symbol:         symbol,
		Summary:        parsed.Summary,
		Recommendation: rec,
		Rationale:      parsed.Rationale,
		Confidence:     parsed.Confidence,
		Source:         "openai",
	}, nil
}
