// Package service implements the ingestion-and-publication pipeline that
// turns an uploaded shapefile archive into a hosted feature layer.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service/archive"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service/normalize"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service/publish"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service/reconcile"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service/shapefile"
)

// IngestRequest is one complete ingestion request. The archive, target and
// sharing level come from the caller; credentials ride in the request
// context, scoped to this invocation.
type IngestRequest struct {
	Archive domain.Archive
	Target  *domain.TargetDescriptor // nil creates a new layer
	Share   domain.SharingLevel
	Title   string
	Tags    []string

	// FieldMapping optionally renames source fields (and drops unmapped
	// ones) before reconciliation. Update requests only; ignored for
	// creates.
	FieldMapping map[string]string

	// Backup snapshots the target item before the destructive update step.
	// Backup failure is a warning, never a rollback. Update requests only.
	Backup bool
}

// PipelineService runs ingestion requests sequentially through the pipeline
// stages. Safe for concurrent use across independent requests: every
// invocation gets its own scratch directory and dataset.
type PipelineService struct {
	publisher   *publish.Publisher
	client      domain.ContentClient
	jobs        domain.JobLogRepository // optional, may be nil
	scratchRoot string
	logger      *slog.Logger
}

// NewPipelineService creates the pipeline. jobs may be nil to disable the
// processing log.
func NewPipelineService(client domain.ContentClient, jobs domain.JobLogRepository, scratchRoot string, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PipelineService{
		publisher:   publish.New(client, logger),
		client:      client,
		jobs:        jobs,
		scratchRoot: scratchRoot,
		logger:      logger,
	}
}

// Run processes one archive end to end and returns the uniform report.
// Every failure short-circuits to the reporter; the scratch extraction is
// released on all exit paths.
func (s *PipelineService) Run(ctx context.Context, req IngestRequest) *domain.Report {
	jobID := uuid.NewString()
	log := s.logger.With("job", jobID, "archive", req.Archive.Name)

	cs, cleanup, err := archive.Extract(req.Archive, s.scratchRoot)
	defer cleanup()
	if err != nil {
		s.stage(ctx, jobID, "validate", "fail", err.Error())
		return reportFromError(err, nil)
	}
	status := "ok"
	if cs.Degraded {
		status = "warn"
	}
	s.stage(ctx, jobID, "validate", status, fmt.Sprintf("components for %q extracted (degraded=%t)", cs.BaseName, cs.Degraded))

	ds, err := shapefile.Read(cs)
	if err != nil {
		s.stage(ctx, jobID, "read", "fail", err.Error())
		return reportFromError(err, nil)
	}
	s.stage(ctx, jobID, "read", "ok", fmt.Sprintf("%d records, %d fields, %s geometry", len(ds.Records), len(ds.FieldNames), ds.Family))

	ds.CRSCode, err = normalize.DetectCRS(cs)
	if err != nil {
		// A scratch read failure is ours, not the archive's.
		wrapped := fmt.Errorf("read projection component: %w", err)
		s.stage(ctx, jobID, "normalize", "fail", wrapped.Error())
		return reportFromError(wrapped, nil)
	}
	if err := normalize.ToWGS84(ds); err != nil {
		s.stage(ctx, jobID, "normalize", "fail", err.Error())
		return reportFromError(err, nil)
	}
	s.stage(ctx, jobID, "normalize", "ok", "dataset in EPSG:4326")

	if req.Target != nil && len(req.FieldMapping) > 0 {
		reconcile.ApplyFieldMapping(ds, req.FieldMapping)
		s.stage(ctx, jobID, "map_fields", "ok", fmt.Sprintf("%d fields after mapping", len(ds.FieldNames)))
	}

	var outcome *domain.PublicationOutcome
	if req.Target == nil {
		outcome = s.runCreate(ctx, ds, req)
	} else {
		outcome = s.runUpdate(ctx, jobID, ds, req)
	}
	if outcome.Kind == domain.OutcomeFailed {
		s.stage(ctx, jobID, "publish", "fail", outcome.Err.Error())
		return reportFromError(outcome.Err, outcome.Warnings)
	}
	s.stage(ctx, jobID, "publish", "ok", fmt.Sprintf("%s via %s: %s", outcome.Kind, outcome.Strategy, outcome.ServiceURL))

	// Sharing is a final, independent step: its failure never rolls back
	// the publication — the layer exists and is usable.
	if err := s.publisher.Share(ctx, outcome.ItemID, req.Share); err != nil {
		log.Warn("sharing update failed", "level", string(req.Share), "error", err)
		s.stage(ctx, jobID, "share", "warn", err.Error())
		outcome.Warnings = append(outcome.Warnings, err.Error())
	} else if req.Share != "" && req.Share != domain.SharingPrivate {
		s.stage(ctx, jobID, "share", "ok", string(req.Share))
	}

	return reportFromOutcome(outcome)
}

func (s *PipelineService) runCreate(ctx context.Context, ds *domain.FeatureDataset, req IngestRequest) *domain.PublicationOutcome {
	// Derive the flat-table representation up front; the native geometry
	// stays intact and the strategy machine picks the transport.
	normalize.AugmentWKT(ds)

	title := req.Title
	if title == "" {
		title = ds.Name
	}
	// Unique item title so repeated uploads never collide in the portal.
	title = fmt.Sprintf("%s_%s", title, time.Now().Format("20060102_150405"))

	return s.publisher.Create(ctx, ds, publish.CreateRequest{Title: title, Tags: req.Tags})
}

func (s *PipelineService) runUpdate(ctx context.Context, jobID string, ds *domain.FeatureDataset, req IngestRequest) *domain.PublicationOutcome {
	target := *req.Target

	var warnings []string
	if req.Backup && target.ItemID != "" {
		title := fmt.Sprintf("%s_backup_%s", ds.Name, time.Now().Format("20060102_150405"))
		if backupID, err := s.client.Backup(ctx, target.ItemID, title); err != nil {
			warn := "pre-update backup failed: " + err.Error()
			s.stage(ctx, jobID, "backup", "warn", warn)
			warnings = append(warnings, warn)
		} else {
			s.stage(ctx, jobID, "backup", "ok", "backup item "+backupID)
		}
	}

	schema, err := s.client.Schema(ctx, target)
	if err != nil {
		s.stage(ctx, jobID, "reconcile", "fail", err.Error())
		return &domain.PublicationOutcome{Kind: domain.OutcomeFailed, Err: err, Warnings: warnings}
	}

	res := reconcile.Reconcile(ds, schema)
	if !res.OK() {
		if target.Scoped() {
			// An append requires an exact schema match; never reshape
			// the dataset to force one.
			s.stage(ctx, jobID, "reconcile", "fail", res.Err().Error())
			return &domain.PublicationOutcome{Kind: domain.OutcomeFailed, Err: res.Err(), Warnings: warnings}
		}
		// Overwrite replaces the schema, so reconciliation is advisory.
		warn := "schema differs from target (advisory for overwrite): " + res.Err().Error()
		s.stage(ctx, jobID, "reconcile", "warn", warn)
		warnings = append(warnings, warn)
	} else {
		s.stage(ctx, jobID, "reconcile", "ok", "schema matches target")
	}

	outcome := s.publisher.Update(ctx, ds, target)
	outcome.Warnings = append(outcome.Warnings, warnings...)
	return outcome
}

// stage records one stage transition in the log and the optional
// processing-log repository.
func (s *PipelineService) stage(ctx context.Context, jobID, stage, status, detail string) {
	switch status {
	case "fail":
		s.logger.Error("pipeline stage", "job", jobID, "stage", stage, "detail", detail)
	case "warn":
		s.logger.Warn("pipeline stage", "job", jobID, "stage", stage, "detail", detail)
	default:
		s.logger.Info("pipeline stage", "job", jobID, "stage", stage, "detail", detail)
	}
	if s.jobs != nil {
		_ = s.jobs.Insert(ctx, &domain.JobEvent{JobID: jobID, Stage: stage, Status: status, Detail: detail})
	}
}
