package crmapi

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
	"github.com/xavierca1/leadboard/internal/infra/cache"
)

// CachedClient serves queries through the tag cache and invalidates the
// affected tags after every successful mutation.
type CachedClient struct {
	api   *Client
	fetch *cache.Fetcher
}

func NewCachedClient(api *Client, fetch *cache.Fetcher) *CachedClient {
	return &CachedClient{api: api, fetch: fetch}
}

func (c *CachedClient) Invalidate(ctx context.Context, tags ...string) error {
	return c.fetch.Invalidate(ctx, tags...)
}

// invalidate runs after a mutation the CRM API already accepted, so a cache
// failure is logged and the entries are left to expire.
func (c *CachedClient) invalidate(ctx context.Context, tags ...string) {
	if err := c.fetch.Invalidate(ctx, tags...); err != nil {
		c.api.logger.Warn("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

func (c *CachedClient) ListLeads(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error) {
	return cache.Fetch(ctx, c.fetch, "leads:"+filter.PipelineID, []string{cache.TagLead},
		func(ctx context.Context) ([]entity.Lead, error) {
			return c.api.ListLeads(ctx, filter)
		})
}

func (c *CachedClient) GetLead(ctx context.Context, id string) (*entity.Lead, error) {
	return cache.Fetch(ctx, c.fetch, "lead:"+id, []string{cache.TagLead},
		func(ctx context.Context) (*entity.Lead, error) {
			return c.api.GetLead(ctx, id)
		})
}

func (c *CachedClient) CreateLead(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	created, err := c.api.CreateLead(ctx, lead)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, cache.TagLead)
	return created, nil
}

func (c *CachedClient) UpdateLead(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	updated, err := c.api.UpdateLead(ctx, lead)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, cache.TagLead)
	return updated, nil
}

func (c *CachedClient) UpdateLeadStage(ctx context.Context, update entity.LeadStageUpdate) error {
	if err := c.api.UpdateLeadStage(ctx, update); err != nil {
		return err
	}
	c.invalidate(ctx, cache.TagLead)
	return nil
}

func (c *CachedClient) DeleteLead(ctx context.Context, id string) error {
	if err := c.api.DeleteLead(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, cache.TagLead)
	return nil
}

func (c *CachedClient) ListStages(ctx context.Context, filter entity.StageFilter) ([]entity.Stage, error) {
	key := "stages:" + filter.StageType + ":" + filter.PipelineID
	return cache.Fetch(ctx, c.fetch, key, []string{cache.TagLeadStage},
		func(ctx context.Context) ([]entity.Stage, error) {
			return c.api.ListStages(ctx, filter)
		})
}

func (c *CachedClient) CreateStage(ctx context.Context, stage *entity.Stage) (*entity.Stage, error) {
	created, err := c.api.CreateStage(ctx, stage)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, cache.TagLeadStage)
	return created, nil
}

func (c *CachedClient) UpdateStage(ctx context.Context, stage *entity.Stage) (*entity.Stage, error) {
	updated, err := c.api.UpdateStage(ctx, stage)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, cache.TagLeadStage)
	return updated, nil
}

// DeleteStage also drops cached leads, which may now point at a missing stage.
func (c *CachedClient) DeleteStage(ctx context.Context, id string) error {
	if err := c.api.DeleteStage(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, cache.TagLeadStage, cache.TagLead)
	return nil
}

func (c *CachedClient) ListPipelines(ctx context.Context) ([]entity.Pipeline, error) {
	return cache.Fetch(ctx, c.fetch, "pipelines", []string{cache.TagPipeline}, c.api.ListPipelines)
}

var (
	_ entity.LeadRepositoryInterface  = (*CachedClient)(nil)
	_ entity.StageRepositoryInterface = (*CachedClient)(nil)
	_ entity.LeadRepositoryInterface  = (*Client)(nil)
	_ entity.StageRepositoryInterface = (*Client)(nil)
)
