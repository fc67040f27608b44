package doctor

import (
	"context"

	"github.com/colonyops/formbot/internal/core/config"
)

// ConfigCheck runs the deep configuration validation and surfaces its
// warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

// NewConfigCheck creates a new configuration check for the file at path.
func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	label := c.path
	if label == "" {
		label = "defaults"
	}

	if err := c.cfg.ValidateDeep(c.path); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  label,
		Status: StatusPass,
	})

	for _, w := range c.cfg.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += ": " + w.Item
		}
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}
