package sqlite

import (
	"fmt"

	"pairgen/internal/dto"
	"pairgen/internal/model"
)

// SampleRepository implements repository.SampleRepository for SQLite.
type SampleRepository struct {
	db *DB
}

// NewSampleRepository creates a new SQLite sample repository.
func NewSampleRepository(db *DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// InsertBatch adds the samples of one written pair set in a single transaction.
func (r *SampleRepository) InsertBatch(samples []model.Sample) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO samples (run_id, name, split, frame_index, variant, frame_name,
			input_path, target_path, crop_x, crop_y, crop_w, crop_h)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(s.RunID, s.Name, s.Split, s.FrameIndex, s.Variant, s.FrameName,
			s.InputPath, s.TargetPath, s.CropX, s.CropY, s.CropW, s.CropH); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// GetAll retrieves samples based on filter criteria, in write order.
func (r *SampleRepository) GetAll(filter *dto.SampleFilters) ([]model.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, run_id, name, split, frame_index, variant, frame_name,
			input_path, target_path, crop_x, crop_y, crop_w, crop_h
		FROM samples
		WHERE 1=1
	`
	args := []interface{}{}

	if filter != nil {
		if filter.RunID != "" {
			query += " AND run_id = ?"
			args = append(args, filter.RunID)
		}
		if filter.Split != "" {
			query += " AND split = ?"
			args = append(args, filter.Split)
		}
	}

	query += " ORDER BY id"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		var s model.Sample
		if err := rows.Scan(&s.ID, &s.RunID, &s.Name, &s.Split, &s.FrameIndex, &s.Variant, &s.FrameName,
			&s.InputPath, &s.TargetPath, &s.CropX, &s.CropY, &s.CropW, &s.CropH); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// CountBySplit returns the number of samples per split for a run.
func (r *SampleRepository) CountBySplit(runID string) ([]model.SplitCount, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT split, COUNT(*) FROM samples WHERE run_id = ?
		GROUP BY split ORDER BY split DESC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}
	defer rows.Close()

	var counts []model.SplitCount
	for rows.Next() {
		var c model.SplitCount
		if err := rows.Scan(&c.Split, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan split count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DeleteByRun removes all samples of a run.
func (r *SampleRepository) DeleteByRun(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM samples WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}
