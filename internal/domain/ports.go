package domain

import (
	"context"
	"time"
)

// LayerSchema is the field set and geometry family of a hosted layer, as
// reported by the content store.
type LayerSchema struct {
	Fields   []string
	Geometry GeometryFamily
}

// ServiceInfo identifies a published or updated feature service.
type ServiceInfo struct {
	ItemID     string
	ServiceURL string
	LayerID    int
}

// PublishRequest carries a dataset and its item metadata to the content
// store.
type PublishRequest struct {
	Title   string
	Tags    []string
	Dataset *FeatureDataset
}

// ContentClient is the remote content/catalog collaborator. Implementations
// own their timeouts and transport retries; the pipeline treats any returned
// error as terminal for the current strategy and classifies it via
// Recoverable and KindOf.
type ContentClient interface {
	// Publish creates a new hosted layer from the native dataset.
	Publish(ctx context.Context, req PublishRequest) (*ServiceInfo, error)
	// PublishTable creates a new hosted layer from the WKT-augmented flat
	// table representation of the dataset.
	PublishTable(ctx context.Context, req PublishRequest) (*ServiceInfo, error)
	// Overwrite replaces a whole service's data (and schema) with the dataset.
	Overwrite(ctx context.Context, target TargetDescriptor, ds *FeatureDataset) (*ServiceInfo, error)
	// Truncate removes every record from one sublayer, leaving siblings alone.
	Truncate(ctx context.Context, target TargetDescriptor, sublayer int) error
	// Append inserts the dataset's records into one sublayer.
	Append(ctx context.Context, target TargetDescriptor, sublayer int, ds *FeatureDataset) error
	// Schema fetches the field names and geometry type of the target.
	Schema(ctx context.Context, target TargetDescriptor) (*LayerSchema, error)
	// Share sets the sharing level of a published item.
	Share(ctx context.Context, itemID string, level SharingLevel) error
	// Backup snapshots an item before a destructive update, returning the
	// backup item's ID.
	Backup(ctx context.Context, itemID, title string) (string, error)
}

// JobEvent is one stage transition or outcome in the processing log.
type JobEvent struct {
	ID        int64
	JobID     string
	Stage     string
	Status    string // "ok", "warn", "fail"
	Detail    string
	CreatedAt time.Time
}

// JobLogRepository persists the processing log. Optional collaborator —
// a nil repository disables persistence without changing pipeline behavior.
type JobLogRepository interface {
	Insert(ctx context.Context, ev *JobEvent) error
	ListRecent(ctx context.Context, limit int) ([]JobEvent, error)
	ListForJob(ctx context.Context, jobID string) ([]JobEvent, error)
}
