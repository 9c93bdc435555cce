package crmapi

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

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
)

// Client talks plain JSON REST to the CRM API with bearer auth.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListLeads(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error) {
	q := url.Values{}
	if filter.PipelineID != "" {
		q.Set("pipeline", filter.PipelineID)
	}
	var leads []entity.Lead
	if err := c.do(ctx, http.MethodGet, "/leads", q, nil, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

func (c *Client) GetLead(ctx context.Context, id string) (*entity.Lead, error) {
	var lead entity.Lead
	if err := c.do(ctx, http.MethodGet, "/leads/"+url.PathEscape(id), nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (c *Client) CreateLead(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	var created entity.Lead
	if err := c.do(ctx, http.MethodPost, "/leads", nil, lead, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateLead(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	var updated entity.Lead
	if err := c.do(ctx, http.MethodPut, "/leads/"+url.PathEscape(lead.ID), nil, lead, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateLeadStage sends PUT /leads/:id with {id, leadStage, updated_by}.
func (c *Client) UpdateLeadStage(ctx context.Context, update entity.LeadStageUpdate) error {
	return c.do(ctx, http.MethodPut, "/leads/"+url.PathEscape(update.ID), nil, update, nil)
}

func (c *Client) DeleteLead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/leads/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListStages(ctx context.Context, filter entity.StageFilter) ([]entity.Stage, error) {
	q := url.Values{}
	if filter.StageType != "" {
		q.Set("stageType", filter.StageType)
	}
	if filter.PipelineID != "" {
		q.Set("pipeline", filter.PipelineID)
	}
	var stages []entity.Stage
	if err := c.do(ctx, http.MethodGet, "/stages", q, nil, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func (c *Client) CreateStage(ctx context.Context, stage *entity.Stage) (*entity.Stage, error) {
	var created entity.Stage
	if err := c.do(ctx, http.MethodPost, "/stages", nil, stage, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateStage(ctx context.Context, stage *entity.Stage) (*entity.Stage, error) {
	var updated entity.Stage
	if err := c.do(ctx, http.MethodPut, "/stages/"+url.PathEscape(stage.ID), nil, stage, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteStage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/stages/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListPipelines(ctx context.Context) ([]entity.Pipeline, error) {
	var pipelines []entity.Pipeline
	if err := c.do(ctx, http.MethodGet, "/pipelines", nil, nil, &pipelines); err != nil {
		return nil, err
	}
	return pipelines, nil
}

// do sends one request. A 401 triggers a token refresh and a single retry.
// When out is nil the response body is ignored.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	status, respBody, err := c.send(ctx, method, path, query, payload, false)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if _, err := c.tokens.Refresh(ctx); err != nil {
			c.logger.Warn("crm token refresh failed", zap.Error(err))
			return newRemoteError(method, path, status, respBody)
		}
		status, respBody, err = c.send(ctx, method, path, query, payload, true)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return newRemoteError(method, path, status, respBody)
	}
	if out == nil || status == http.StatusNoContent {
		return nil
	}
	return decodeEnvelope(respBody, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, retry bool) (int, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("crm token: %w", err)
	}
	c.addAuthHeaders(req, token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("crm api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read crm response: %w", err)
	}

	c.logger.Debug("crm api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Bool("retry", retry),
		zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, respBody, nil
}

func (c *Client) addAuthHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
