package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirCheck verifies that the data directory exists and is writable.
type DataDirCheck struct {
	dir     string
	autofix bool
}

// NewDataDirCheck creates a new data directory check. With autofix a missing
// directory is created.
func NewDataDirCheck(dir string, autofix bool) *DataDirCheck {
	return &DataDirCheck{dir: dir, autofix: autofix}
}

func (c *DataDirCheck) Name() string {
	return "Data Directory"
}

func (c *DataDirCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.dir)
	switch {
	case os.IsNotExist(err):
		if c.autofix {
			if mkErr := os.MkdirAll(c.dir, 0o755); mkErr != nil {
				result.Items = append(result.Items, CheckItem{
					Label:  c.dir,
					Status: StatusFail,
					Detail: fmt.Sprintf("create failed: %v", mkErr),
				})
				return result
			}
			result.Items = append(result.Items, CheckItem{
				Label:  c.dir,
				Status: StatusPass,
				Detail: "created",
			})
			return result
		}
		result.Items = append(result.Items, CheckItem{
			Label:   c.dir,
			Status:  StatusWarn,
			Detail:  "directory does not exist",
			Fixable: true,
		})
		return result
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: fmt.Sprintf("inaccessible: %v", err),
		})
		return result
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: "path is not a directory",
		})
		return result
	}

	probe, err := os.CreateTemp(c.dir, ".doctor-*")
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.dir,
			Status: StatusFail,
			Detail: fmt.Sprintf("not writable: %v", err),
		})
		return result
	}
	_ = probe.Close()
	_ = os.Remove(filepath.Clean(probe.Name()))

	result.Items = append(result.Items, CheckItem{
		Label:  c.dir,
		Status: StatusPass,
	})
	return result
}
