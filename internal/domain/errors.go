// Package domain defines core types, ports, and errors for the layer
// publication pipeline.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a pipeline failure for the outcome report.
type ErrorKind string

const (
	KindMissingComponent    ErrorKind = "missing_component"
	KindUnreadableShapefile ErrorKind = "unreadable_shapefile"
	KindEmptyDataset        ErrorKind = "empty_dataset"
	KindMissingCRS          ErrorKind = "missing_crs"
	KindReprojectionFailed  ErrorKind = "reprojection_failed"
	KindSchemaMismatch      ErrorKind = "schema_mismatch"
	KindPartialUpdate       ErrorKind = "partial_update"
	KindPublicationFailed   ErrorKind = "publication_failed"
	KindSharingUpdateFailed ErrorKind = "sharing_update_failed"
	KindAuthorizationDenied ErrorKind = "authorization_denied"
	KindInternal            ErrorKind = "internal"
)

// MissingComponentError indicates a required shapefile component is absent
// from the uploaded archive.
type MissingComponentError struct {
	Component string // extension without the dot, e.g. "shx"
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("archive is missing required shapefile component .%s", e.Component)
}

// UnreadableShapefileError indicates a structural problem in the shapefile
// itself. Never retried — a corrupt file does not become readable by
// reprocessing.
type UnreadableShapefileError struct {
	Reason string
}

func (e *UnreadableShapefileError) Error() string {
	return "shapefile is unreadable: " + e.Reason
}

// EmptyDatasetError indicates a structurally valid shapefile with zero records.
type EmptyDatasetError struct{}

func (e *EmptyDatasetError) Error() string { return "shapefile contains no features" }

// MissingCRSError indicates the dataset declares no coordinate reference
// system. The pipeline never assumes WGS84 for an unknown source CRS.
type MissingCRSError struct{}

func (e *MissingCRSError) Error() string {
	return "dataset has no coordinate reference system (.prj missing or empty)"
}

// ReprojectionError indicates the source CRS could not be transformed to WGS84.
type ReprojectionError struct {
	Reason string
}

func (e *ReprojectionError) Error() string { return "reprojection to WGS84 failed: " + e.Reason }

// DiscrepancyKind identifies one class of schema difference.
type DiscrepancyKind string

const (
	DiscrepancyExtraField       DiscrepancyKind = "extra_field"   // present in source, absent on target
	DiscrepancyMissingField     DiscrepancyKind = "missing_field" // present on target, absent in source
	DiscrepancyGeometryConflict DiscrepancyKind = "geometry_conflict"
)

// Discrepancy is one schema difference between a dataset and a target layer.
type Discrepancy struct {
	Kind   DiscrepancyKind
	Field  string // field name, empty for geometry conflicts
	Detail string // human-readable, e.g. "source polygon vs target point"
}

func (d Discrepancy) String() string {
	switch d.Kind {
	case DiscrepancyExtraField:
		return "extra field " + d.Field
	case DiscrepancyMissingField:
		return "missing field " + d.Field
	case DiscrepancyGeometryConflict:
		return "geometry type conflict: " + d.Detail
	default:
		return d.Detail
	}
}

// SchemaMismatchError blocks a scoped append when the dataset and target
// schemas differ. For whole-service overwrites it is advisory only.
type SchemaMismatchError struct {
	Discrepancies []Discrepancy
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, len(e.Discrepancies))
	for i, d := range e.Discrepancies {
		parts[i] = d.String()
	}
	return fmt.Sprintf("schema mismatch (%d): %s", len(e.Discrepancies), strings.Join(parts, "; "))
}

// PartialUpdateError indicates a scoped update failed between the truncate
// and append steps, leaving the target sublayer empty. The remote state is
// inconsistent and requires manual recovery.
type PartialUpdateError struct {
	Sublayer int
	Cause    error
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("sublayer %d was truncated but the append failed, records lost: %v", e.Sublayer, e.Cause)
}

func (e *PartialUpdateError) Unwrap() error { return e.Cause }

// TransportError is a recoverable publication failure: the portal rejected
// the payload encoding (type mismatch, serialization problem). The strategy
// selector advances to the next transport on this class only.
type TransportError struct {
	Message string
}

func (e *TransportError) Error() string { return e.Message }

// AuthorizationError indicates an authentication rejection or a
// quota/permission denial. Always terminal — retrying a different data
// transport cannot fix an authorization problem.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// PublicationError indicates a strategy (or the whole chain) failed for a
// reason that does not warrant another transport.
type PublicationError struct {
	Strategy Strategy
	Message  string
}

func (e *PublicationError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("publication failed (strategy %s): %s", e.Strategy, e.Message)
	}
	return "publication failed: " + e.Message
}

// SharingError indicates the post-publication sharing-level change failed.
// The published layer exists and is usable; this is surfaced as a warning.
type SharingError struct {
	Level   SharingLevel
	Message string
}

func (e *SharingError) Error() string {
	return fmt.Sprintf("sharing update to %q failed: %s", e.Level, e.Message)
}

// ErrMissingComponent creates a MissingComponentError for the named extension.
func ErrMissingComponent(component string) *MissingComponentError {
	return &MissingComponentError{Component: component}
}

// ErrUnreadable creates an UnreadableShapefileError with a formatted reason.
func ErrUnreadable(format string, args ...interface{}) *UnreadableShapefileError {
	return &UnreadableShapefileError{Reason: fmt.Sprintf(format, args...)}
}

// ErrReprojection creates a ReprojectionError with a formatted reason.
func ErrReprojection(format string, args ...interface{}) *ReprojectionError {
	return &ReprojectionError{Reason: fmt.Sprintf(format, args...)}
}

// ErrTransport creates a recoverable TransportError.
func ErrTransport(format string, args ...interface{}) *TransportError {
	return &TransportError{Message: fmt.Sprintf(format, args...)}
}

// ErrAuthorization creates a terminal AuthorizationError.
func ErrAuthorization(format string, args ...interface{}) *AuthorizationError {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// ErrPublication creates a PublicationError for the given strategy.
func ErrPublication(strategy Strategy, format string, args ...interface{}) *PublicationError {
	return &PublicationError{Strategy: strategy, Message: fmt.Sprintf(format, args...)}
}

// KindOf maps any pipeline error to its reporting kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.As(err, new(*MissingComponentError)):
		return KindMissingComponent
	case errors.As(err, new(*UnreadableShapefileError)):
		return KindUnreadableShapefile
	case errors.As(err, new(*EmptyDatasetError)):
		return KindEmptyDataset
	case errors.As(err, new(*MissingCRSError)):
		return KindMissingCRS
	case errors.As(err, new(*ReprojectionError)):
		return KindReprojectionFailed
	case errors.As(err, new(*SchemaMismatchError)):
		return KindSchemaMismatch
	case errors.As(err, new(*PartialUpdateError)):
		return KindPartialUpdate
	case errors.As(err, new(*AuthorizationError)):
		return KindAuthorizationDenied
	case errors.As(err, new(*SharingError)):
		return KindSharingUpdateFailed
	case errors.As(err, new(*PublicationError)), errors.As(err, new(*TransportError)):
		return KindPublicationFailed
	default:
		return KindInternal
	}
}

// Recoverable reports whether a publication failure may be retried with the
// next transport strategy.
func Recoverable(err error) bool {
	return errors.As(err, new(*TransportError))
}
