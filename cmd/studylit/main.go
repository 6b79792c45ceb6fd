package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	_ "github.com/joho/godotenv/autoload"

	"github.com/julianstephens/studylit/internal/cli"
	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" default:"${config_path}"`
	Debug   bool   `help:"Log debug output to stderr."`

	Init    cli.InitCmd    `cmd:"" help:"Initialize studylit storage."`
	Run     cli.RunCmd     `cmd:"" help:"Run in the foreground so reminders fire."`
	Note    cli.NoteCmd    `cmd:"" help:"Manage notes."`
	Remind  cli.RemindCmd  `cmd:"" help:"Manage reminders."`
	Session cli.SessionCmd `cmd:"" help:"Record study sessions."`
	Quiz    cli.QuizCmd    `cmd:"" help:"Generate and record quizzes."`
	Stats   cli.StatsCmd   `cmd:"" help:"Show XP, level, streak and badges."`
	Doctor  cli.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Backup  cli.BackupCmd  `cmd:"" help:"Manage data backups."`
	Notify  cli.NotifyCmd  `cmd:"" hidden:"" help:"Send a notification through the tray app."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Study notes, reminders, timers and progress tracking"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": constants.DefaultConfigPath,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		apperr.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, DataDir: cfg.DataDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	appCtx := cli.NewContext(context.Background(), cfg, CLI.Config)
	err = ctx.Run(appCtx)
	if cerr := appCtx.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		apperr.Fatal(err)
	}
}
