package domain

// TargetDescriptor identifies the destination of an update: a whole remote
// feature service, or one sublayer within it. A nil descriptor means
// "create a new layer". Supplied by the caller and read-only to the
// pipeline; the descriptor's granularity is the sole determinant of the
// update strategy (overwrite vs. scoped truncate+append) — no preference is
// inferred.
type TargetDescriptor struct {
	ItemID     string // portal item ID of the feature service
	ServiceURL string // feature service endpoint
	Sublayer   *int   // nil targets the whole service
}

// Scoped reports whether the descriptor names a single sublayer.
func (t *TargetDescriptor) Scoped() bool {
	return t != nil && t.Sublayer != nil
}

// SublayerIndex returns the targeted sublayer, defaulting to 0 for
// whole-service targets that still need a layer endpoint.
func (t *TargetDescriptor) SublayerIndex() int {
	if t != nil && t.Sublayer != nil {
		return *t.Sublayer
	}
	return 0
}
