// Package docsource adapts an upstream document repository's HTTP API
// to backfill.DocumentSource, so the backfill worker can page through
// it without knowing the upstream system's wire format.
package docsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agentic-rag/internal/backfill"
)

// HTTPDocumentSourceClient fetches documents from an upstream
// repository's paginated listing endpoint for the backfill worker.
type HTTPDocumentSourceClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPDocumentSourceClient constructs a new HTTP-based document
// source client. baseURL is the upstream repository's root URL; it is
// expected to expose GET {baseURL}/v1/internal/documents with
// since/after_id/limit query parameters.
func NewHTTPDocumentSourceClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPDocumentSourceClient {
	return &HTTPDocumentSourceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type documentPageResponse struct {
	Documents []documentDTO `json:"documents"`
	Count     int           `json:"count"`
}

type documentDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// FetchSince implements backfill.DocumentSource.
func (c *HTTPDocumentSourceClient) FetchSince(ctx context.Context, since time.Time, afterID string, limit int) ([]backfill.SourceDocument, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(limit))
	if afterID != "" {
		q.Set("after_id", afterID)
	}
	endpoint := fmt.Sprintf("%s/v1/internal/documents?%s", c.baseURL, q.Encode())

	c.logger.Info("fetching documents for backfill",
		slog.String("since", q.Get("since")),
		slog.String("after_id", afterID),
		slog.Int("limit", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build document fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document source returned status %d", resp.StatusCode)
	}

	var page documentPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode document page: %w", err)
	}

	docs := make([]backfill.SourceDocument, 0, len(page.Documents))
	for _, dto := range page.Documents {
		createdAt, err := time.Parse(time.RFC3339, dto.CreatedAt)
		if err != nil {
			c.logger.Warn("invalid created_at, skipping document",
				slog.String("id", dto.ID),
				slog.String("created_at", dto.CreatedAt))
			continue
		}
		docs = append(docs, backfill.SourceDocument{
			ID:        dto.ID,
			Title:     dto.Title,
			URL:       dto.URL,
			Body:      dto.Body,
			CreatedAt: createdAt,
		})
	}

	c.logger.Info("fetched documents for backfill", slog.Int("count", len(docs)))
	return docs, nil
}

var _ backfill.DocumentSource = (*HTTPDocumentSourceClient)(nil)
