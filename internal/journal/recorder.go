package journal

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Recorder ties one import run to the journal. It satisfies the importer's
// observer contract, whose callbacks cannot return errors; journal write
// failures are logged and the import continues, because losing a journal
// row must never abort a sync.
type Recorder struct {
	db     *DB
	runID  int64
	logger *zap.Logger
}

// NewRecorder begins a run and returns its recorder. Call Finish with the
// run's outcome when the import ends.
func NewRecorder(ctx context.Context, db *DB, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := db.BeginRun(ctx)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db, runID: runID, logger: logger}, nil
}

// RunID returns the journal id of the recorded run.
func (r *Recorder) RunID() int64 { return r.runID }

func (r *Recorder) Phase(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.db.SetPhase(ctx, r.runID, name); err != nil {
		r.logger.Warn("failed to journal phase", zap.String("phase", name), zap.Error(err))
	}
}

func (r *Recorder) EntityCreated(kind, name, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.db.RecordCreation(ctx, r.runID, kind, name, url); err != nil {
		r.logger.Warn("failed to journal creation",
			zap.String("kind", kind), zap.String("name", name), zap.Error(err))
	}
}

// Finish records the run outcome.
func (r *Recorder) Finish(ctx context.Context, runErr error) error {
	return r.db.FinishRun(ctx, r.runID, runErr)
}
