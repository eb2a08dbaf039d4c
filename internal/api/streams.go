package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camview/internal/api/models"
	"github.com/smazurov/camview/internal/lifecycle"
	"github.com/smazurov/camview/internal/streams"
)

// registerStreamRoutes registers all player control endpoints
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Players",
		Description: "List every tracked player process",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		list := s.registry.List()
		data := make([]models.StreamData, len(list))
		for i, sp := range list {
			data[i] = s.streamData(sp)
		}
		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams:    data,
				Count:      len(data),
				CleaningUp: s.registry.CleaningUp(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{device_id}",
		Summary:     "Get Player",
		Description: "Get the player state of one device. Untracked devices report idle, or failed with the last failure.",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.DeviceIDInput) (*models.StreamResponse, error) {
		sp, ok := s.registry.Get(input.DeviceID)
		if !ok {
			sp = streams.StreamProcess{DeviceID: input.DeviceID, State: s.registry.State(input.DeviceID)}
		}
		return &models.StreamResponse{Body: s.streamData(sp)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{device_id}/start",
		Summary:     "Start Player",
		Description: "Launch a player for the device, replacing any running one. The URL and label default to the catalog entry.",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 404, 424, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StreamStartRequest) (*models.StreamResponse, error) {
		streamURL, label := input.Body.URL, input.Body.Label
		if streamURL == "" || label == "" {
			dev, err := s.lookupDevice(input.DeviceID)
			if err != nil && streamURL == "" {
				return nil, err
			}
			if streamURL == "" {
				streamURL = dev.URL
			}
			if label == "" {
				label = dev.Label
			}
		}

		sp, err := s.registry.Start(ctx, input.DeviceID, streamURL, label)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamResponse{Body: s.streamData(sp)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-stream",
		Method:        http.MethodPost,
		Path:          "/api/streams/{device_id}/stop",
		Summary:       "Stop Player",
		Description:   "Terminate the device's player. Stopping an idle device succeeds.",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.DeviceIDInput) (*struct{}, error) {
		s.registry.Stop(ctx, input.DeviceID)
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "cleanup-streams",
		Method:        http.MethodPost,
		Path:          "/api/streams/cleanup",
		Summary:       "Clean Up Players",
		Description:   "Stop every player and sweep for untracked ones",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		timeout := s.options.CleanupTimeout
		if timeout <= 0 {
			timeout = lifecycle.DefaultTimeout
		}
		// A dropped client must not abandon the cleanup halfway
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		s.registry.Cleanup(cctx)
		return &struct{}{}, nil
	})
}

func (s *Server) streamData(sp streams.StreamProcess) models.StreamData {
	data := models.StreamData{
		DeviceID: sp.DeviceID,
		Label:    sp.Label,
		State:    string(sp.State),
		PID:      sp.PID,
	}
	if sp.URL != "" {
		data.URL = streams.RedactURL(sp.URL)
	}
	if !sp.StartTime.IsZero() {
		start := sp.StartTime
		data.StartTime = &start
		data.Uptime = time.Since(start).Truncate(time.Second).String()
	}
	if se := s.registry.LastFailure(sp.DeviceID); se != nil {
		data.LastError = &models.FailureData{
			Kind:        string(se.Kind),
			Message:     se.Message,
			ExitCode:    se.ExitCode,
			Remediation: se.Remediation,
		}
	}
	return data
}
