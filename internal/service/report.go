package service

import "github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"

// reportFromOutcome maps a successful publication outcome into the uniform
// record handed to the presentation layer. Pure transformation, no side
// effects.
func reportFromOutcome(out *domain.PublicationOutcome) *domain.Report {
	layerID := out.LayerID
	return &domain.Report{
		Success:      true,
		ItemID:       out.ItemID,
		ServiceURL:   out.ServiceURL,
		LayerID:      &layerID,
		StrategyUsed: out.Strategy,
		Warnings:     out.Warnings,
	}
}

// reportFromError maps any stage failure into the uniform record, carrying
// the error classification and its human-readable detail.
func reportFromError(err error, warnings []string) *domain.Report {
	return &domain.Report{
		Success:   false,
		ErrorKind: domain.KindOf(err),
		Detail:    err.Error(),
		Warnings:  warnings,
	}
}
