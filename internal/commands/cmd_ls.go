package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/styles"
	"github.com/colonyops/formbot/internal/formbot"
	"github.com/colonyops/formbot/pkg/iojson"
)

type LsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	channel    string
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List stored forms",
		UsageText: "formbot ls [--json] [--channel ID]",
		Description: `Displays a table of all forms sorted by deadline, with the days left
and the reminders already sent.

Use --json for one JSON object per line.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.StringFlag{
				Name:        "channel",
				Usage:       "only forms announced in this channel",
				Destination: &cmd.channel,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	b, err := openBot(cmd.flags.Config)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	all, err := b.app.Forms.List(ctx)
	if err != nil {
		return fmt.Errorf("list forms: %w", err)
	}

	var forms []form.Form
	for _, f := range all {
		if cmd.channel == "" || f.Channel == cmd.channel {
			forms = append(forms, f)
		}
	}
	formbot.SortByDeadline(forms)

	today := form.DateOf(b.app.Scheduler.Now())
	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, f := range forms {
			if err := iojson.WriteLine(out, newFormInfo(f, today)); err != nil {
				return fmt.Errorf("encode form: %w", err)
			}
		}
		return nil
	}

	if len(forms) == 0 {
		fmt.Fprintf(os.Stderr, "No forms found\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tDEADLINE\tDAYS\tSTATUS\tCHANNEL\tREMINDERS")
	for _, f := range forms {
		info := newFormInfo(f, today)
		days := styles.DaysLeftStyle(info.DaysLeft).Render(fmt.Sprintf("%d", info.DaysLeft))
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Title, f.Deadline, days, f.Status, f.Channel, remindersColumn(info.Reminders))
	}
	return w.Flush()
}

// formInfo is the JSON output format for formbot ls --json.
type formInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Deadline    string    `json:"deadline"`
	DaysLeft    int       `json:"days_left"`
	Status      string    `json:"status"`
	Channel     string    `json:"channel"`
	AddedBy     string    `json:"added_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Reminders   []string  `json:"reminders"`
}

func newFormInfo(f form.Form, today form.Date) formInfo {
	info := formInfo{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Deadline:    f.Deadline.String(),
		DaysLeft:    form.DaysBetween(today, f.Deadline),
		Status:      string(f.Status),
		Channel:     f.Channel,
		AddedBy:     f.AddedBy,
		CreatedAt:   f.CreatedAt,
		Reminders:   []string{},
	}
	for _, r := range f.Reminders {
		info.Reminders = append(info.Reminders, string(r.Kind))
	}
	return info
}

func remindersColumn(kinds []string) string {
	if len(kinds) == 0 {
		return "-"
	}
	return strings.Join(kinds, ",")
}
