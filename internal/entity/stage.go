package entity

import (
	"cmp"
	"context"
	"slices"
)

const (
	StageTypeLead = "lead"

	// UnknownStageName is shown for leads referencing a stage that is no longer loaded.
	UnknownStageName = "Unknown"
)

type Stage struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PipelineID string `json:"pipeline"`
	StageType  string `json:"stageType"`
	IsDefault  bool   `json:"isDefault"`
	Order      int    `json:"order"`
}

type Pipeline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SortStagesNatural sorts by the numeric order field, ties broken by name.
func SortStagesNatural(stages []Stage) {
	slices.SortStableFunc(stages, func(a, b Stage) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func FindStage(stages []Stage, id string) (Stage, bool) {
	for _, s := range stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// StageName resolves a stage id to its display name, "Unknown" for stale references.
func StageName(stages []Stage, id string) string {
	if s, ok := FindStage(stages, id); ok {
		return s.Name
	}
	return UnknownStageName
}

type StageFilter struct {
	StageType  string
	PipelineID string
}

type StageRepositoryInterface interface {
	ListStages(ctx context.Context, filter StageFilter) ([]Stage, error)
	CreateStage(ctx context.Context, stage *Stage) (*Stage, error)
	UpdateStage(ctx context.Context, stage *Stage) (*Stage, error)
	DeleteStage(ctx context.Context, id string) error
	ListPipelines(ctx context.Context) ([]Pipeline, error)
}
