package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleEntry is a named cron expression.
type ScheduleEntry struct {
	Name string
	Spec string
}

// ScheduleCheck parses each schedule and reports its next run.
type ScheduleCheck struct {
	parser  cron.Parser
	entries []ScheduleEntry
	loc     *time.Location
	now     func() time.Time
}

// NewScheduleCheck creates a new schedule check.
func NewScheduleCheck(parser cron.Parser, loc *time.Location, now func() time.Time, entries ...ScheduleEntry) *ScheduleCheck {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleCheck{parser: parser, entries: entries, loc: loc, now: now}
}

func (c *ScheduleCheck) Name() string {
	return "Schedule"
}

func (c *ScheduleCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	for _, e := range c.entries {
		sched, err := c.parser.Parse(e.Spec)
		if err != nil {
			result.Items = append(result.Items, CheckItem{
				Label:  e.Name,
				Status: StatusFail,
				Detail: fmt.Sprintf("invalid expression %q: %v", e.Spec, err),
			})
			continue
		}

		next := sched.Next(c.now().In(c.loc))
		result.Items = append(result.Items, CheckItem{
			Label:  e.Name,
			Status: StatusPass,
			Detail: fmt.Sprintf("%s, next run %s", e.Spec, next.Format("2006-01-02 15:04 MST")),
		})
	}

	return result
}
