package api

import (
	"net/http"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// httpStatusForKind maps a pipeline failure class to an HTTP status code.
// Structural input problems are the client's fault; authorization denials
// from the portal surface as 403; everything downstream is a server-side
// publication failure.
func httpStatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindMissingComponent,
		domain.KindUnreadableShapefile,
		domain.KindEmptyDataset,
		domain.KindMissingCRS,
		domain.KindSchemaMismatch:
		return http.StatusUnprocessableEntity
	case domain.KindReprojectionFailed:
		return http.StatusUnprocessableEntity
	case domain.KindAuthorizationDenied:
		return http.StatusForbidden
	case domain.KindPartialUpdate:
		return http.StatusConflict
	case domain.KindPublicationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
