package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/feedsearch/internal/models"
	"go.uber.org/zap"
)

// QdrantConfig configures a QdrantIndex.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a VectorIndex backed by the Qdrant REST API.
type QdrantIndex struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	collection string
	logger     *zap.Logger
}

// QdrantOption configures a QdrantIndex.
type QdrantOption func(*QdrantIndex)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) QdrantOption {
	return func(q *QdrantIndex) { q.logger = l }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) QdrantOption {
	return func(q *QdrantIndex) { q.client = c }
}

// NewQdrantIndex creates a client for one collection.
func NewQdrantIndex(cfg QdrantConfig, opts ...QdrantOption) (*QdrantIndex, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	q := &QdrantIndex{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance Metric `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload models.Payload `json:"payload"`
}

type upsertRequest struct {
	Points []qdrantPoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type searchResponse struct {
	Result []struct {
		ID      json.RawMessage `json:"id"`
		Score   float64         `json:"score"`
		Payload models.Payload  `json:"payload"`
	} `json:"result"`
}

type collectionResponse struct {
	Result struct {
		PointsCount int `json:"points_count"`
	} `json:"result"`
}

// deleteRequest uses an empty filter, which Qdrant matches against every point.
type deleteRequest struct {
	Filter struct{} `json:"filter"`
}

func (q *QdrantIndex) collectionURL(suffix string) string {
	return q.baseURL + "/collections/" + url.PathEscape(q.collection) + suffix
}

// EnsureCollection creates the collection. Qdrant answers 409 when it already
// exists, which counts as success.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimensions int, metric Metric) error {
	if metric == "" {
		metric = Cosine
	}
	body := createCollectionRequest{Vectors: vectorParams{Size: dimensions, Distance: metric}}
	status, err := q.do(ctx, http.MethodPut, q.collectionURL(""), body, nil, http.StatusConflict)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		q.logger.Debug("collection already exists", zap.String("collection", q.collection))
	} else {
		q.logger.Info("collection created", zap.String("collection", q.collection), zap.Int("dimensions", dimensions))
	}
	return nil
}

// DeleteAll removes every point in the collection and waits for completion.
func (q *QdrantIndex) DeleteAll(ctx context.Context) error {
	_, err := q.do(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), deleteRequest{}, nil)
	return err
}

// Upsert writes one point and waits for it to be persisted.
func (q *QdrantIndex) Upsert(ctx context.Context, point *models.IndexPoint) error {
	body := upsertRequest{Points: []qdrantPoint{{ID: point.ID, Vector: point.Vector, Payload: point.Payload}}}
	_, err := q.do(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), body, nil)
	return err
}

// Search queries the nearest points, excluding vectors from the response.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, limit int) ([]*Hit, error) {
	hits := make([]*Hit, 0)
	if limit <= 0 {
		return hits, nil
	}
	body := searchRequest{Vector: vector, Limit: limit, WithPayload: true}
	var resp searchResponse
	if _, err := q.do(ctx, http.MethodPost, q.collectionURL("/points/search"), body, &resp); err != nil {
		return nil, err
	}
	for _, r := range resp.Result {
		hits = append(hits, &Hit{ID: pointID(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// Count returns points_count from the collection info.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp collectionResponse
	if _, err := q.do(ctx, http.MethodGet, q.collectionURL(""), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Result.PointsCount, nil
}

// Close is a no-op.
func (q *QdrantIndex) Close() error { return nil }

// pointID renders a Qdrant point ID, which is either a UUID string or an integer.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// do sends a JSON request and decodes a 2xx response into out. Status codes in
// accept are returned without error and without decoding.
func (q *QdrantIndex) do(ctx context.Context, method, target string, in, out any, accept ...int) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, &models.TransportError{Op: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	for _, code := range accept {
		if resp.StatusCode == code {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		terr := &models.TransportError{Op: method, URL: target, StatusCode: resp.StatusCode}
		if len(msg) > 0 {
			terr.Err = fmt.Errorf("qdrant: %s", strings.TrimSpace(string(msg)))
		}
		if resp.StatusCode == http.StatusNotFound {
			terr.Err = fmt.Errorf("%w: %s", ErrCollectionNotFound, q.collection)
		}
		return resp.StatusCode, terr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
