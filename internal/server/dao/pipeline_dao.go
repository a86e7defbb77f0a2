package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradepilot/internal/common"
	"tradepilot/internal/server/model"
	"tradepilot/pkg/flow"
)

// RunRecord is the outcome of one run to be folded into the pipeline record.
type RunRecord struct {
	Entry flow.HistoryEntry
	// Status replaces the pipeline status unless the pipeline was paused meanwhile.
	Status    flow.PipelineStatus
	Triggered map[string]time.Time
	NextRun   *time.Time
	// SkipEntry updates counters and state without appending Entry.
	SkipEntry bool
}

type PipelineDao interface {
	Create(ctx context.Context, pipeline *model.Pipeline) error
	Get(ctx context.Context, id string) (*model.Pipeline, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*model.Pipeline, error)
	// ListRunnable returns every pipeline that should have a scheduled job.
	ListRunnable(ctx context.Context) ([]*model.Pipeline, error)
	UpdateStatus(ctx context.Context, id string, status flow.PipelineStatus) error
	SetJob(ctx context.Context, id, jobID string, next *time.Time) error
	RecordRun(ctx context.Context, id string, run RunRecord) (*model.Pipeline, error)
	Delete(ctx context.Context, id string) error
}

type pipelineDAO struct {
	db *gorm.DB
}

func NewPipelineDao(db *gorm.DB) PipelineDao {
	return &pipelineDAO{db: db}
}

func (d *pipelineDAO) Create(ctx context.Context, pipeline *model.Pipeline) error {
	return d.db.WithContext(ctx).Create(pipeline).Error
}

func (d *pipelineDAO) Get(ctx context.Context, id string) (*model.Pipeline, error) {
	var pipeline model.Pipeline
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&pipeline).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.PipelineNotExists)
		}
		return nil, err
	}
	return &pipeline, nil
}

func (d *pipelineDAO) ListByOwner(ctx context.Context, ownerID uint) ([]*model.Pipeline, error) {
	var pipelines []*model.Pipeline
	if err := d.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&pipelines).Error; err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (d *pipelineDAO) ListRunnable(ctx context.Context) ([]*model.Pipeline, error) {
	var pipelines []*model.Pipeline
	err := d.db.WithContext(ctx).
		Where("status IN ?", []flow.PipelineStatus{flow.StatusActive, flow.StatusError}).
		Order("created_at").
		Find(&pipelines).Error
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (d *pipelineDAO) UpdateStatus(ctx context.Context, id string, status flow.PipelineStatus) error {
	res := d.db.WithContext(ctx).Model(&model.Pipeline{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NewErrNo(common.PipelineNotExists)
	}
	return nil
}

func (d *pipelineDAO) SetJob(ctx context.Context, id, jobID string, next *time.Time) error {
	return d.update(ctx, id, func(p *model.Pipeline) {
		meta := p.Metadata.Data()
		meta.JobID = jobID
		meta.NextExecution = next
		p.Metadata = datatypes.NewJSONType(meta)
	})
}

func (d *pipelineDAO) RecordRun(ctx context.Context, id string, run RunRecord) (*model.Pipeline, error) {
	var saved *model.Pipeline
	err := d.update(ctx, id, func(p *model.Pipeline) {
		meta := p.Metadata.Data()
		if !run.SkipEntry {
			meta.ExecutionHistory = append(meta.ExecutionHistory, run.Entry)
		}
		if len(run.Triggered) > 0 && meta.TriggerState == nil {
			meta.TriggerState = make(map[string]time.Time, len(run.Triggered))
		}
		for eventID, at := range run.Triggered {
			meta.TriggerState[eventID] = at
		}
		if run.NextRun != nil {
			meta.NextExecution = run.NextRun
		}
		p.Metadata = datatypes.NewJSONType(meta)

		p.ExecutionCount++
		executed := run.Entry.Timestamp
		p.LastExecuted = &executed
		if p.Status != flow.StatusPaused && run.Status != "" {
			p.Status = run.Status
		}
		saved = p
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (d *pipelineDAO) Delete(ctx context.Context, id string) error {
	res := d.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Pipeline{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NewErrNo(common.PipelineNotExists)
	}
	return nil
}

// update applies fn to the locked row inside a transaction.
func (d *pipelineDAO) update(ctx context.Context, id string, fn func(p *model.Pipeline)) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pipeline model.Pipeline
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&pipeline).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewErrNo(common.PipelineNotExists)
			}
			return err
		}
		fn(&pipeline)
		return tx.Save(&pipeline).Error
	})
}
