package commands

import "github.com/urfave/cli/v3"

// RegisterAll adds every formbot command to app.
func RegisterAll(app *cli.Command, flags *Flags) *cli.Command {
	app = NewServeCmd(flags).Register(app)
	app = NewLsCmd(flags).Register(app)
	app = NewTickCmd(flags).Register(app)
	app = NewRmCmd(flags).Register(app)
	app = NewImportCmd(flags).Register(app)
	app = NewDoctorCmd(flags).Register(app)
	app = NewConfigValidateCmd(flags).Register(app)
	return app
}
