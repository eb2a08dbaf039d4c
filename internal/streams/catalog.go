package streams

import (
	"context"

	"github.com/smazurov/camview/internal/devices"
)

// ApplyCatalog brings tracked players in line with a catalog reload: devices
// that were removed are stopped and devices whose definition changed are
// restarted with the new URL. Idle devices are left alone.
func (r *Registry) ApplyCatalog(ctx context.Context, diff devices.Diff) {
	for _, d := range diff.Removed {
		if _, tracked := r.Get(d.ID); !tracked {
			continue
		}
		r.logger.Info("Device removed from catalog, stopping player", "device_id", d.ID)
		r.Stop(ctx, d.ID)
	}

	for _, d := range diff.Changed {
		if _, tracked := r.Get(d.ID); !tracked {
			continue
		}
		r.logger.Info("Device changed in catalog, restarting player", "device_id", d.ID, "url", RedactURL(d.URL))
		if _, err := r.Start(ctx, d.ID, d.URL, d.Label); err != nil {
			r.logger.Warn("Failed to restart player", "device_id", d.ID, "error", err)
		}
	}
}
