package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

type Options struct {
	APIKey             string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.ResilienceExecutor,
		ensured:    make(map[string]int),
	}
}

type pointRecord struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (p pointRecord) stored() domain.StoredPoint {
	payload := p.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return domain.StoredPoint{ID: formatPointID(p.ID), Payload: payload}
}

// Lookup returns the first point matching filter, or domain.ErrRecordNotFound.
func (c *Client) Lookup(ctx context.Context, collection string, filter domain.Filter) (domain.StoredPoint, error) {
	points, err := c.Scroll(ctx, collection, filter, 1)
	if err != nil {
		return domain.StoredPoint{}, err
	}
	if len(points) == 0 {
		return domain.StoredPoint{}, domain.WrapError(
			domain.ErrRecordNotFound,
			"qdrant lookup",
			fmt.Errorf("no point in %s matches %s", collection, describeFilter(filter)),
		)
	}
	return points[0], nil
}

func (c *Client) Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.StoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if !filter.Empty() {
		reqBody["filter"] = encodeFilter(filter)
	}

	var resp struct {
		Result struct {
			Points []pointRecord `json:"points"`
		} `json:"result"`
	}
	found, err := c.call(ctx, "scroll", http.MethodPost, c.collectionPath(collection, "points/scroll"), reqBody, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.StoredPoint{}, nil
	}

	out := make([]domain.StoredPoint, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, p.stored())
	}
	return out, nil
}

func (c *Client) Search(
	ctx context.Context,
	collection string,
	vector []float32,
	limit int,
	filter domain.Filter,
) ([]domain.ScoredPoint, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if !filter.Empty() {
		reqBody["filter"] = encodeFilter(filter)
	}

	var resp struct {
		Result []pointRecord `json:"result"`
	}
	found, err := c.call(ctx, "search", http.MethodPost, c.collectionPath(collection, "points/search"), reqBody, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.ScoredPoint{}, nil
	}

	out := make([]domain.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.ScoredPoint{StoredPoint: r.stored(), Score: r.Score})
	}
	return out, nil
}

func (c *Client) Upsert(ctx context.Context, collection string, points []domain.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	body := make([]point, 0, len(points))
	for _, p := range points {
		body = append(body, point{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}

	found, err := c.call(ctx, "upsert", http.MethodPut, c.collectionPath(collection, "points?wait=true"), map[string]any{"points": body}, nil)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("qdrant upsert: collection %s does not exist", collection)
	}
	return nil
}

// EnsureCollection creates collection with cosine distance once per vector size.
func (c *Client) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	_, err := c.call(ctx, "ensure collection", http.MethodPut, c.collectionPath(collection, ""), reqBody, nil)
	if err != nil {
		var statusErr *resilience.StatusError
		// 409 when the collection already exists.
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusConflict {
			return err
		}
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[collection] = vectorSize
	return nil
}

// call reports found=false for a 404, which qdrant returns for a collection
// that has not been created yet.
func (c *Client) call(ctx context.Context, operation, method, path string, payload, out any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	found, err := resilience.Call(ctx, c.executor, "qdrant."+strings.ReplaceAll(operation, " ", "_"), func(callCtx context.Context) (bool, error) {
		return c.do(callCtx, operation, method, path, body, out)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return false, resilience.WrapFailure("qdrant "+operation, err, resilience.ClassifyHTTP)
	}
	return found, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodPost {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, resilience.NewStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return true, nil
}

func (c *Client) collectionPath(collection, suffix string) string {
	path := "/collections/" + url.PathEscape(collection)
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

func encodeFilter(filter domain.Filter) map[string]any {
	must := make([]map[string]any, 0, len(filter.Must))
	for _, m := range filter.Must {
		must = append(must, map[string]any{
			"key":   m.Key,
			"match": map[string]any{"value": m.Value},
		})
	}
	return map[string]any{"must": must}
}

func describeFilter(filter domain.Filter) string {
	parts := make([]string, 0, len(filter.Must))
	for _, m := range filter.Must {
		parts = append(parts, m.Key+"="+m.Value)
	}
	return strings.Join(parts, ",")
}

func formatPointID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
