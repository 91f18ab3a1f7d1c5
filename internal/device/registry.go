package device

import (
	"context"
	"time"

	"github.com/nerrad567/cecbridge/internal/cec"
)

// upsertTimeout bounds how long a sighting write may hold the engine's
// worker goroutine. DeviceSeen fires during bus scans on that goroutine.
const upsertTimeout = 2 * time.Second

// Logger is the minimal logging interface the registry needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Registry persists bus device sightings. It implements cec.DeviceObserver
// so the engine can report devices discovered during connect scans.
type Registry struct {
	repo   Repository
	logger Logger
}

// NewRegistry creates a registry over the given repository.
// The logger may be nil.
func NewRegistry(repo Repository, logger Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

// DeviceSeen records a device sighting from a bus scan.
// Write failures are logged and dropped; a broken registry must not
// stall command dispatch.
func (r *Registry) DeviceSeen(info cec.DeviceInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
	defer cancel()

	rec := Record{
		Logical:  int(info.Logical),
		Physical: info.Physical.String(),
		OSDName:  info.OSDName,
		Vendor:   info.Vendor,
		Power:    info.Power.String(),
	}

	if err := r.repo.Upsert(ctx, rec); err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to record device sighting",
				"logical", rec.Logical, "error", err)
		}
		return
	}
	if r.logger != nil {
		r.logger.Debug("recorded device sighting",
			"logical", rec.Logical, "physical", rec.Physical, "name", rec.OSDName)
	}
}

// List returns all recorded sightings.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	return r.repo.List(ctx)
}

var _ cec.DeviceObserver = (*Registry)(nil)
