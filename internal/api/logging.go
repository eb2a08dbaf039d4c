package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camview/internal/api/models"
	"github.com/smazurov/camview/internal/logging"
)

// registerLoggingRoutes registers runtime log level control
func (s *Server) registerLoggingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logging/{module}",
		Summary:     "Set Log Level",
		Description: "Change a module's log level until the next restart, e.g. streams or player",
		Tags:        []string{"system"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LogLevelRequest) (*models.LogLevelResponse, error) {
		if !logging.SetLevel(input.Module, input.Body.Level) {
			return nil, huma.Error400BadRequest("unknown log level " + input.Body.Level)
		}
		s.logger.Info("Log level changed", "target", input.Module, "level", input.Body.Level)
		return &models.LogLevelResponse{
			Body: models.LogLevelData{Module: input.Module, Level: input.Body.Level},
		}, nil
	})
}
