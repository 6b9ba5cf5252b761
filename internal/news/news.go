// Package news fetches the dashboard news feed from Google News RSS.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cryptocandle/dashboard-engine/internal/metrics"
	"github.com/cryptocandle/dashboard-engine/internal/model"
)

const defaultLimit = 20

// Client fetches news articles for one symbol at a time.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient points the fetcher at an RSS base URL, typically
// https://news.google.com/rss.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
	Source  string `xml:"source"`
}

// Fetch returns up to 20 recent articles for the symbol, newest first as
// the feed delivers them. Items with unparseable dates are dropped.
func (c *Client) Fetch(ctx context.Context, symbol string) ([]model.NewsArticle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	q := url.QueryEscape(symbol + " stock")
	u := fmt.Sprintf("%s/search?q=%s&hl=en-US&gl=US&ceid=US:en", c.baseURL, q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("news", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("news", "error").Inc()
		return nil, fmt.Errorf("news: feed returned status %d", resp.StatusCode)
	}

	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		metrics.UpstreamRequests.WithLabelValues("news", "error").Inc()
		return nil, fmt.Errorf("news: decoding feed: %w", err)
	}
	metrics.UpstreamRequests.WithLabelValues("news", "ok").Inc()

	articles := make([]model.NewsArticle, 0, defaultLimit)
	for _, item := range rss.Channel.Items {
		if len(articles) == defaultLimit {
			break
		}
		t, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			t, err = time.Parse(time.RFC1123, item.PubDate)
			if err != nil {
				continue
			}
		}

		// Google appends " - Publisher" to titles; the source tag carries
		// the publisher already.
		title := item.Title
		if idx := strings.LastIndex(title, " - "); idx > 0 {
			title = title[:idx]
		}

		articles = append(articles, model.NewsArticle{
			ID:          uuid.NewString(),
			Symbol:      symbol,
			Title:       title,
			Summary:     stripHTML(item.Desc),
			Source:      item.Source,
			URL:         item.Link,
			PublishedAt: t.UTC(),
		})
	}
	return articles, nil
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes tags and collapses whitespace.
func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
