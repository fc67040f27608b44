package doctor

import (
	"context"
	"fmt"
)

// StorageProbe opens the configured store and reports how many forms and
// channels it holds.
type StorageProbe func(ctx context.Context) (forms, channels int, err error)

// StorageCheck verifies that the form store can be opened and read.
type StorageCheck struct {
	driver    string
	probe     StorageProbe
	isCorrupt func(error) bool
	recoverFn func() (string, error)
	autofix   bool
}

// NewStorageCheck creates a new storage check. When the probe fails with an
// error isCorrupt accepts, the item is fixable; with autofix, recoverFn moves
// the damaged store aside and the probe is retried.
func NewStorageCheck(driver string, probe StorageProbe, isCorrupt func(error) bool, recoverFn func() (string, error), autofix bool) *StorageCheck {
	return &StorageCheck{
		driver:    driver,
		probe:     probe,
		isCorrupt: isCorrupt,
		recoverFn: recoverFn,
		autofix:   autofix,
	}
}

func (c *StorageCheck) Name() string {
	return "Storage"
}

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	forms, channels, err := c.probe(ctx)
	if err == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.driver,
			Status: StatusPass,
			Detail: fmt.Sprintf("%d forms, %d channels", forms, channels),
		})
		return result
	}

	corrupt := c.isCorrupt != nil && c.isCorrupt(err) && c.recoverFn != nil
	if !corrupt {
		result.Items = append(result.Items, CheckItem{
			Label:  c.driver,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	if !c.autofix {
		result.Items = append(result.Items, CheckItem{
			Label:   c.driver,
			Status:  StatusFail,
			Detail:  "store is corrupted",
			Fixable: true,
		})
		return result
	}

	backup, recErr := c.recoverFn()
	if recErr != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.driver,
			Status: StatusFail,
			Detail: fmt.Sprintf("recovery failed: %v", recErr),
		})
		return result
	}

	if _, _, err := c.probe(ctx); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.driver,
			Status: StatusFail,
			Detail: fmt.Sprintf("still failing after recovery: %v", err),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  c.driver,
		Status: StatusWarn,
		Detail: "recovered with an empty store, backup at " + backup,
	})
	return result
}
