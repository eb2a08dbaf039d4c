package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camview/internal/api/models"
	"github.com/smazurov/camview/internal/devices"
	"github.com/smazurov/camview/internal/streams"
)

// registerDeviceRoutes registers the device catalog endpoints
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List catalog devices with their player state",
		Tags:        []string{"devices"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		var list []devices.Device
		if s.catalog != nil {
			list = s.catalog.List()
		}

		data := make([]models.DeviceData, len(list))
		for i, d := range list {
			data[i] = models.DeviceData{
				ID:    d.ID,
				Label: d.Label,
				URL:   streams.RedactURL(d.URL),
				State: string(s.registry.State(d.ID)),
			}
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: data, Count: len(data)},
		}, nil
	})
}

// lookupDevice returns the catalog entry for id, or a 404.
func (s *Server) lookupDevice(id string) (devices.Device, error) {
	if s.catalog == nil {
		return devices.Device{}, huma.Error404NotFound("unknown device " + id + ", no url given and no device catalog")
	}
	dev, err := s.catalog.Get(id)
	if errors.Is(err, devices.ErrNotFound) {
		return devices.Device{}, huma.Error404NotFound("unknown device " + id)
	}
	if err != nil {
		return devices.Device{}, huma.Error500InternalServerError("device catalog lookup failed", err)
	}
	return dev, nil
}
