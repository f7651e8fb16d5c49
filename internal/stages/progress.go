package stages

import (
	"context"
	"slices"
	"time"

	"github.com/morse-fitness/morse-worker/internal/datastore"
)

// StageState is the read view of one stage record.
type StageState struct {
	Stage       string
	Status      string
	Percent     int
	Message     string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Progress is the derived progress of one file.
type Progress struct {
	Overall int
	Stages  []StageState
}

// Progress reads the stage records of a file and derives its overall
// progress. Stages are returned in execution order.
func (t *Tracker) Progress(ctx context.Context, audioFileID string) (Progress, error) {
	records, err := t.rec.StageRecords(ctx, audioFileID)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{Stages: make([]StageState, 0, len(records))}
	percents := make([]int, 0, len(records))
	for _, r := range records {
		s := StageState{
			Stage:       r.Stage,
			Status:      r.Status,
			Percent:     r.ProgressPercent,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		}
		if r.Message != nil {
			s.Message = *r.Message
		}
		p.Stages = append(p.Stages, s)
		percents = append(percents, r.ProgressPercent)
	}

	slices.SortStableFunc(p.Stages, func(a, b StageState) int {
		return order(a.Stage) - order(b.Stage)
	})
	p.Overall = datastore.OverallProgress(percents...)
	return p, nil
}

func order(stage string) int {
	if i := slices.Index(All, stage); i >= 0 {
		return i
	}
	return len(All)
}
