package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/BartekS5/marketload/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stage names the step a run failed in.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageLoad     Stage = "load"
)

// State is the position of a run in Fetched -> Validated -> Loaded -> Done.
// Failed is reachable from any state.
type State string

const (
	StatePending   State = "pending"
	StateFetched   State = "fetched"
	StateValidated State = "validated"
	StateLoaded    State = "loaded"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// RunSummary describes one pipeline invocation.
type RunSummary struct {
	RunID         string    `bson:"run_id" json:"run_id"`
	Source        string    `bson:"source" json:"source"`
	Backend       string    `bson:"backend" json:"backend"`
	Table         string    `bson:"table" json:"table"`
	State         State     `bson:"state" json:"state"`
	FailedStage   Stage     `bson:"failed_stage,omitempty" json:"failed_stage,omitempty"`
	Error         string    `bson:"error,omitempty" json:"error,omitempty"`
	DryRun        bool      `bson:"dry_run" json:"dry_run"`
	RowsFetched   int       `bson:"rows_fetched" json:"rows_fetched"`
	RowsValidated int       `bson:"rows_validated" json:"rows_validated"`
	RowCount      int64     `bson:"row_count" json:"row_count"`
	StartedAt     time.Time `bson:"started_at" json:"started_at"`
	FinishedAt    time.Time `bson:"finished_at" json:"finished_at"`
}

func (s *RunSummary) String() string {
	switch s.State {
	case StateDone:
		if s.DryRun {
			return fmt.Sprintf("dry run: %d rows validated for table %s (%s), nothing written", s.RowsValidated, s.Table, s.Backend)
		}
		return fmt.Sprintf("loaded %d rows into table %s (%s), table now holds %d rows", s.RowsValidated, s.Table, s.Backend, s.RowCount)
	case StateFailed:
		return fmt.Sprintf("run failed at %s: %s", s.FailedStage, s.Error)
	default:
		return fmt.Sprintf("run %s", s.State)
	}
}

type Pipeline struct {
	Source    DataSource
	Validator *Validator
	Sink      StorageSink
	Recorder  RunRecorder
	Metrics   *Metrics
	DryRun    bool

	// OpenSink connects the destination when Sink is nil. It is called only
	// once the batch has passed validation, so a rejected batch never opens
	// or creates the destination.
	OpenSink func() (StorageSink, error)
}

// NewEnhancedPipeline creates a pipeline with dry-run support.
// In dry-run mode the sink may be nil; it is never written to.
// A nil sink outside dry-run mode must be paired with OpenSink.
func NewEnhancedPipeline(src DataSource, validator *Validator, sink StorageSink, dryRun bool) *Pipeline {
	return &Pipeline{
		Source:    src,
		Validator: validator,
		Sink:      sink,
		Recorder:  NopRecorder{},
		DryRun:    dryRun,
	}
}

func NewPipeline(src DataSource, validator *Validator, sink StorageSink) *Pipeline {
	return NewEnhancedPipeline(src, validator, sink, false)
}

// Run executes one fetch, validate, load pass. It never retries; the first
// failing stage ends the run with a *StageError. The sink is closed on return.
func (p *Pipeline) Run(ctx context.Context, params models.FetchParams, table string) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Source:    p.Source.Name(),
		Table:     table,
		State:     StatePending,
		DryRun:    p.DryRun,
		StartedAt: time.Now().UTC(),
	}
	sink := p.Sink
	if sink != nil {
		summary.Backend = sink.Backend()
	}
	defer func() {
		if sink != nil {
			sink.Close()
		}
	}()
	defer p.finish(ctx, summary)

	log := logger.WithFields(logrus.Fields{"run_id": summary.RunID, "table": table})
	log.Infof("Starting run. Source: %s, DryRun: %v", summary.Source, p.DryRun)

	// 1. Fetch
	start := time.Now()
	raw, err := p.Source.Fetch(ctx, params)
	p.observe(StageFetch, start)
	if err == nil && raw == nil {
		err = &FetchError{Source: summary.Source, Err: errors.New("source returned no batch")}
	}
	if err != nil {
		return summary, p.fail(summary, StageFetch, err)
	}
	summary.RowsFetched = len(raw.Rows)
	summary.State = StateFetched

	// 2. Validate
	start = time.Now()
	records, err := p.Validator.Validate(raw)
	p.observe(StageValidate, start)
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.ValidationFailures.WithLabelValues(ruleLabel(err)).Inc()
		}
		return summary, p.fail(summary, StageValidate, err)
	}
	summary.RowsValidated = len(records)
	summary.State = StateValidated

	if p.DryRun {
		log.Infof("[DRY RUN] Would load %d records", len(records))
		summary.State = StateDone
		return summary, nil
	}

	// 3. Load
	start = time.Now()
	if sink == nil {
		if p.OpenSink == nil {
			return summary, p.fail(summary, StageLoad, errors.New("no storage sink configured"))
		}
		if sink, err = p.OpenSink(); err != nil {
			sink = nil
			p.observe(StageLoad, start)
			return summary, p.fail(summary, StageLoad, err)
		}
		summary.Backend = sink.Backend()
	}
	count, err := sink.Write(ctx, records, table)
	p.observe(StageLoad, start)
	if err != nil {
		return summary, p.fail(summary, StageLoad, err)
	}
	summary.RowCount = count
	summary.State = StateLoaded
	if p.Metrics != nil {
		p.Metrics.RowsLoaded.Set(float64(count))
	}

	summary.State = StateDone
	log.Info(summary.String())
	return summary, nil
}

func (p *Pipeline) fail(summary *RunSummary, stage Stage, err error) error {
	summary.State = StateFailed
	summary.FailedStage = stage
	summary.Error = err.Error()
	logger.WithFields(logrus.Fields{"run_id": summary.RunID, "stage": stage}).Errorf("Run failed: %v", err)
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) observe(stage Stage, start time.Time) {
	if p.Metrics != nil {
		p.Metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

// finish stamps the summary and hands it to the recorder. Recorder failures
// are logged and do not change the run outcome.
func (p *Pipeline) finish(ctx context.Context, summary *RunSummary) {
	summary.FinishedAt = time.Now().UTC()
	if p.Metrics != nil {
		p.Metrics.Runs.WithLabelValues(string(summary.State)).Inc()
	}
	if p.Recorder == nil {
		return
	}
	if err := p.Recorder.Record(ctx, summary); err != nil {
		logger.Warnf("Could not record run %s: %v", summary.RunID, err)
	}
}
