package formbot

import (
	"context"
	"time"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/doctor"
)

// StorageAccess lets the doctor open the configured store without knowing
// which driver backs it.
type StorageAccess struct {
	Probe     doctor.StorageProbe
	IsCorrupt func(error) bool
	Recover   func() (string, error)
}

// DoctorService runs health checks on the formbot setup.
type DoctorService struct {
	config   *config.Config
	storage  StorageAccess
	identify doctor.Identify
	now      func() time.Time
}

// NewDoctorService creates a new DoctorService. identify may be nil.
func NewDoctorService(cfg *config.Config, storage StorageAccess, identify doctor.Identify) *DoctorService {
	return &DoctorService{
		config:   cfg,
		storage:  storage,
		identify: identify,
		now:      time.Now,
	}
}

// RunChecks executes all doctor checks and returns results.
func (d *DoctorService) RunChecks(ctx context.Context, configPath string, autofix bool) []doctor.Result {
	checks := []doctor.Check{
		doctor.NewConfigCheck(d.config, configPath),
		doctor.NewDataDirCheck(d.config.DataDir, autofix),
		doctor.NewStorageCheck(d.config.Database.Driver, d.storage.Probe, d.storage.IsCorrupt, d.storage.Recover, autofix),
		doctor.NewSlackCheck(d.config.Slack.BotToken, d.config.Slack.SigningSecret, d.identify),
	}

	// A bad timezone already fails the configuration check.
	if loc, err := d.config.Location(); err == nil {
		checks = append(checks, doctor.NewScheduleCheck(config.CronParser, loc, d.now,
			doctor.ScheduleEntry{Name: "reminders", Spec: d.config.Schedule.Reminders},
			doctor.ScheduleEntry{Name: "sweep", Spec: d.config.Schedule.Sweep},
		))
	}

	return doctor.RunAll(ctx, checks)
}
