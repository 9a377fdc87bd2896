// Package reconcile compares a dataset's schema against an existing remote
// layer and decides whether an in-place update can proceed.
package reconcile

import (
	"sort"
	"strings"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// serverManaged are target fields owned by the content store; their absence
// from the source is never a discrepancy.
var serverManaged = map[string]bool{
	"objectid": true,
	"globalid": true,
}

// Result is the reconciliation decision: pass/fail plus every discrepancy
// found. Consumed only by the publication strategy selector.
type Result struct {
	Discrepancies []domain.Discrepancy
}

// OK reports whether an in-place append may proceed.
func (r *Result) OK() bool { return len(r.Discrepancies) == 0 }

// Err wraps the discrepancies in a SchemaMismatchError, or nil when clean.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return &domain.SchemaMismatchError{Discrepancies: r.Discrepancies}
}

// Reconcile compares field sets (names case-insensitive, order irrelevant)
// and geometry families. Any mismatch is reported; the dataset is never
// reshaped automatically — guessing an unrequested alignment risks silent
// data corruption.
func Reconcile(ds *domain.FeatureDataset, target *domain.LayerSchema) *Result {
	res := &Result{}

	source := map[string]string{} // lower -> original
	for _, f := range ds.AttributeFields() {
		source[strings.ToLower(f)] = f
	}
	targetSet := map[string]string{}
	for _, f := range target.Fields {
		if serverManaged[strings.ToLower(f)] {
			continue
		}
		targetSet[strings.ToLower(f)] = f
	}

	for _, key := range sortedKeys(source) {
		if _, ok := targetSet[key]; !ok {
			res.Discrepancies = append(res.Discrepancies, domain.Discrepancy{
				Kind:  domain.DiscrepancyExtraField,
				Field: source[key],
			})
		}
	}
	for _, key := range sortedKeys(targetSet) {
		if _, ok := source[key]; !ok {
			res.Discrepancies = append(res.Discrepancies, domain.Discrepancy{
				Kind:  domain.DiscrepancyMissingField,
				Field: targetSet[key],
			})
		}
	}

	if target.Geometry != "" && ds.Family != target.Geometry {
		res.Discrepancies = append(res.Discrepancies, domain.Discrepancy{
			Kind:   domain.DiscrepancyGeometryConflict,
			Detail: "source " + string(ds.Family) + " vs target " + string(target.Geometry),
		})
	}

	return res
}

// ApplyFieldMapping renames source fields per the caller-supplied mapping
// and drops every unmapped attribute, keeping geometry. An explicit mapping
// is the only sanctioned way to reshape a dataset before reconciliation.
func ApplyFieldMapping(ds *domain.FeatureDataset, mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}

	renamed := make([]string, 0, len(mapping))
	for _, f := range ds.FieldNames {
		if to, ok := mapping[f]; ok {
			renamed = append(renamed, to)
		}
	}

	for i := range ds.Records {
		next := make(map[string]interface{}, len(renamed))
		for from, to := range mapping {
			if v, ok := ds.Records[i].Fields[from]; ok {
				next[to] = v
			}
		}
		ds.Records[i].Fields = next
	}
	ds.FieldNames = renamed
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
