package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camview/internal/streams"
)

// mapStreamError converts registry errors into HTTP problem responses.
func (s *Server) mapStreamError(err error) error {
	if errors.Is(err, streams.ErrDeviceIDRequired) {
		return huma.Error400BadRequest(err.Error())
	}
	if errors.Is(err, streams.ErrCleanupInProgress) {
		return huma.Error503ServiceUnavailable("players are being cleaned up, retry later")
	}

	var se *streams.StreamError
	if !errors.As(err, &se) {
		s.logger.Error("Unexpected stream error", "error", err)
		return huma.Error500InternalServerError("internal server error")
	}

	var details []error
	details = append(details, &huma.ErrorDetail{Location: "kind", Value: string(se.Kind)})
	if se.Remediation != "" {
		details = append(details, &huma.ErrorDetail{Location: "remediation", Value: se.Remediation})
	}

	switch se.Kind {
	case streams.KindBinaryNotFound, streams.KindScriptNotFound, streams.KindPermissionFixFailed:
		return huma.NewError(http.StatusFailedDependency, se.Message, details...)
	default:
		return huma.NewError(http.StatusInternalServerError, se.Message, details...)
	}
}
