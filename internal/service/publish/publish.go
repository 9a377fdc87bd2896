// Package publish selects among publication strategies with cascading
// fallbacks, as an explicit state machine rather than nested error handlers.
package publish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// createChain is the ordered strategy list for creating a new layer:
// direct spatial publish, then the WKT-augmented flat table, then the
// minimal-feature fallback that guarantees some valid layer rather than
// none.
var createChain = []domain.Strategy{
	domain.StrategyDirect,
	domain.StrategyCSV,
	domain.StrategyMinimal,
}

// Publisher runs the create and update strategy machines against the
// content store.
type Publisher struct {
	client domain.ContentClient
	logger *slog.Logger
}

// New creates a Publisher. A nil logger discards strategy transitions.
func New(client domain.ContentClient, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{client: client, logger: logger}
}

// CreateRequest carries the item metadata for a new layer.
type CreateRequest struct {
	Title string
	Tags  []string
}

// Create walks the create-new strategy chain. The machine advances to the
// next strategy only on a recoverable failure class (transport payload
// type-mismatch, serialization error); authorization and quota denials are
// terminal in any state — a different data transport cannot fix an
// authorization problem.
func (p *Publisher) Create(ctx context.Context, ds *domain.FeatureDataset, req CreateRequest) *domain.PublicationOutcome {
	var lastErr error
	for _, strategy := range createChain {
		info, err := p.attempt(ctx, strategy, ds, req)
		if err == nil {
			p.logger.Info("layer published", "strategy", string(strategy), "item", info.ItemID)
			return &domain.PublicationOutcome{
				Kind:       domain.OutcomePublished,
				ItemID:     info.ItemID,
				ServiceURL: info.ServiceURL,
				LayerID:    info.LayerID,
				Strategy:   strategy,
			}
		}
		if !domain.Recoverable(err) {
			p.logger.Error("strategy failed terminally", "strategy", string(strategy), "error", err)
			return failed(classify(strategy, err))
		}
		p.logger.Warn("strategy failed, trying next", "strategy", string(strategy), "error", err)
		lastErr = err
	}
	last := createChain[len(createChain)-1]
	return failed(domain.ErrPublication(last, "all strategies exhausted, last error: %v", lastErr))
}

func (p *Publisher) attempt(ctx context.Context, strategy domain.Strategy, ds *domain.FeatureDataset, req CreateRequest) (*domain.ServiceInfo, error) {
	switch strategy {
	case domain.StrategyDirect:
		return p.client.Publish(ctx, domain.PublishRequest{Title: req.Title, Tags: req.Tags, Dataset: ds})
	case domain.StrategyCSV:
		return p.client.PublishTable(ctx, domain.PublishRequest{Title: req.Title, Tags: req.Tags, Dataset: ds})
	case domain.StrategyMinimal:
		return p.client.Publish(ctx, domain.PublishRequest{Title: req.Title, Tags: req.Tags, Dataset: minimalDataset(ds)})
	default:
		return nil, domain.ErrPublication(strategy, "unknown strategy")
	}
}

// Update applies the update-existing machine. The caller-supplied target
// granularity is the sole determinant: a sublayer target does a scoped
// truncate+append, a whole-service target does an overwrite. A failure
// between truncate and append leaves the sublayer empty and is surfaced as
// the distinct PartialUpdate kind — neither the old nor the new state holds.
func (p *Publisher) Update(ctx context.Context, ds *domain.FeatureDataset, target domain.TargetDescriptor) *domain.PublicationOutcome {
	if target.Scoped() {
		sub := target.SublayerIndex()
		if err := p.client.Truncate(ctx, target, sub); err != nil {
			p.logger.Error("truncate failed", "sublayer", sub, "error", err)
			return failed(classify(domain.StrategyTruncateAppend, err))
		}
		if err := p.client.Append(ctx, target, sub, ds); err != nil {
			p.logger.Error("append failed after truncate, sublayer requires manual recovery",
				"sublayer", sub, "error", err)
			return failed(&domain.PartialUpdateError{Sublayer: sub, Cause: err})
		}
		return &domain.PublicationOutcome{
			Kind:       domain.OutcomeUpdated,
			ItemID:     target.ItemID,
			ServiceURL: target.ServiceURL,
			LayerID:    sub,
			Strategy:   domain.StrategyTruncateAppend,
		}
	}

	info, err := p.client.Overwrite(ctx, target, ds)
	if err != nil {
		p.logger.Error("overwrite failed", "service", target.ServiceURL, "error", err)
		return failed(classify(domain.StrategyOverwrite, err))
	}
	return &domain.PublicationOutcome{
		Kind:       domain.OutcomeUpdated,
		ItemID:     info.ItemID,
		ServiceURL: info.ServiceURL,
		LayerID:    info.LayerID,
		Strategy:   domain.StrategyOverwrite,
	}
}

// Share applies the sharing level as a final, independent step. Failure is
// returned as a SharingError for the caller to surface as a warning; the
// published layer exists and is usable regardless.
func (p *Publisher) Share(ctx context.Context, itemID string, level domain.SharingLevel) error {
	if level == "" || level == domain.SharingPrivate {
		return nil // private is the item's default visibility
	}
	if err := p.client.Share(ctx, itemID, level); err != nil {
		return &domain.SharingError{Level: level, Message: err.Error()}
	}
	return nil
}

// minimalDataset keeps only geometry plus the synthetic identity field,
// dropping every other attribute.
func minimalDataset(ds *domain.FeatureDataset) *domain.FeatureDataset {
	out := &domain.FeatureDataset{
		Name:       ds.Name,
		Family:     ds.Family,
		CRSCode:    ds.CRSCode,
		FieldNames: []string{domain.SyntheticIDField},
		Records:    make([]domain.Record, 0, len(ds.Records)),
	}
	for i, rec := range ds.Records {
		id := interface{}(int64(i))
		if v, ok := rec.Fields[domain.SyntheticIDField]; ok && v != nil {
			id = v
		}
		out.Records = append(out.Records, domain.Record{
			Geometry: rec.Geometry,
			Fields:   map[string]interface{}{domain.SyntheticIDField: id},
		})
	}
	return out
}

// classify keeps typed remote errors intact and wraps everything else as a
// PublicationError for the given strategy.
func classify(strategy domain.Strategy, err error) error {
	if errors.As(err, new(*domain.AuthorizationError)) || errors.As(err, new(*domain.TransportError)) {
		return err
	}
	return domain.ErrPublication(strategy, "%v", err)
}

func failed(err error) *domain.PublicationOutcome {
	return &domain.PublicationOutcome{Kind: domain.OutcomeFailed, Err: err}
}
