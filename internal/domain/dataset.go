package domain

import (
	"strings"

	"github.com/paulmach/orb"
)

// GeometryFamily is the coarse geometry classification shared by every
// record in a dataset and declared by every hosted layer.
type GeometryFamily string

const (
	GeometryPoint   GeometryFamily = "point"
	GeometryLine    GeometryFamily = "line"
	GeometryPolygon GeometryFamily = "polygon"
)

// FamilyOf classifies an orb geometry into its family.
func FamilyOf(g orb.Geometry) (GeometryFamily, bool) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return GeometryPoint, true
	case orb.LineString, orb.MultiLineString:
		return GeometryLine, true
	case orb.Polygon, orb.MultiPolygon:
		return GeometryPolygon, true
	default:
		return "", false
	}
}

// EPSG codes the pipeline cares about by name.
const (
	EPSGWGS84       = 4326
	EPSGWebMercator = 3857
)

// SyntheticIDField is the attribute synthesized when the archive carries no
// usable attribute table, so no record ever has an empty attribute set.
const SyntheticIDField = "id"

// WKTField is the transport-only column holding the well-known-text form of
// each geometry for flat-table publication. It coexists with the native
// geometry and is excluded from schema reconciliation.
const WKTField = "wkt_geometry"

// Record is one feature: a geometry plus its attribute values.
type Record struct {
	Geometry orb.Geometry
	Fields   map[string]interface{}
}

// FeatureDataset is the typed tabular-with-geometry structure produced by
// the reader and mutated in place by the normalizer and reconciler. One
// dataset per ingestion request; never shared across invocations.
type FeatureDataset struct {
	Name       string
	Family     GeometryFamily
	CRSCode    int      // EPSG code, 0 when the source declared none
	FieldNames []string // ordered; identical across all records
	Records    []Record
}

// HasField reports whether the dataset carries the named field,
// case-insensitively.
func (d *FeatureDataset) HasField(name string) bool {
	for _, f := range d.FieldNames {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// AttributeFields returns the field names that describe real data: every
// field except the transport-only WKT column.
func (d *FeatureDataset) AttributeFields() []string {
	out := make([]string, 0, len(d.FieldNames))
	for _, f := range d.FieldNames {
		if strings.EqualFold(f, WKTField) {
			continue
		}
		out = append(out, f)
	}
	return out
}
