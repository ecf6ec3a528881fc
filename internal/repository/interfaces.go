package repository

import (
	"pairgen/internal/dto"
	"pairgen/internal/model"
)

// RunRepository defines the interface for run records.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) error

	// Update operations
	Finish(run *model.Run) error

	// Read operations
	GetByID(id string) (*model.Run, error)
	GetLatest() (*model.Run, error)
	GetAll() ([]model.Run, error)
}

// SampleRepository defines the interface for written sample records.
type SampleRepository interface {
	// Create operations
	InsertBatch(samples []model.Sample) error

	// Read operations
	GetAll(filter *dto.SampleFilters) ([]model.Sample, error)
	CountBySplit(runID string) ([]model.SplitCount, error)

	// Delete operations
	DeleteByRun(runID string) error
}
