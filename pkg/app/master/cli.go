package app

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/keytap/keytap/pkg/app"
	"github.com/keytap/keytap/pkg/app/master/command"
	"github.com/keytap/keytap/pkg/app/master/command/probe"
	"github.com/keytap/keytap/pkg/app/master/command/run"
	"github.com/keytap/keytap/pkg/app/master/command/version"
	"github.com/keytap/keytap/pkg/system"
	v "github.com/keytap/keytap/pkg/version"
)

// Keytap app CLI constants
const (
	AppName  = command.AppName
	AppUsage = "global hotkeys and key event monitoring through a supervised agent"
)

func registerCommands() {
	//registering commands explicitly instead of relying on init()
	//also get to control the order of the commands in the interactive prompt

	run.RegisterCommand()
	probe.RegisterCommand()
	version.RegisterCommand()
}

func newCLI() *cli.App {
	registerCommands()

	cliApp := cli.NewApp()
	cliApp.Version = v.Current()
	cliApp.Name = AppName
	cliApp.Usage = AppUsage
	cliApp.CommandNotFound = func(ctx *cli.Context, name string) {
		fmt.Printf("unknown command - %v \n\n", name)
		cli.ShowAppHelp(ctx)
	}

	cliApp.Flags = command.GlobalFlags()

	cliApp.Before = func(ctx *cli.Context) error {
		if ctx.Bool(command.FlagNoColor) {
			app.NoColor()
		}

		if ctx.Bool(command.FlagDebug) {
			log.SetLevel(log.DebugLevel)
		} else {
			if ctx.Bool(command.FlagVerbose) {
				log.SetLevel(log.InfoLevel)
			} else {
				logLevel := log.WarnLevel
				logLevelName := ctx.String(command.FlagLogLevel)
				switch logLevelName {
				case "trace":
					logLevel = log.TraceLevel
				case "debug":
					logLevel = log.DebugLevel
				case "info":
					logLevel = log.InfoLevel
				case "warn":
					logLevel = log.WarnLevel
				case "error":
					logLevel = log.ErrorLevel
				case "fatal":
					logLevel = log.FatalLevel
				case "panic":
					logLevel = log.PanicLevel
				default:
					log.Fatalf("unknown log-level %q", logLevelName)
				}

				log.SetLevel(logLevel)
			}
		}

		if path := ctx.String(command.FlagLog); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			log.SetOutput(f)
		}

		logFormat := ctx.String(command.FlagLogFormat)
		switch logFormat {
		case "text":
			log.SetFormatter(&log.TextFormatter{DisableColors: true})
		case "json":
			log.SetFormatter(new(log.JSONFormatter))
		default:
			log.Fatalf("unknown log-format %q", logFormat)
		}

		log.Debugf("sysinfo => %#v", system.GetSystemInfo())

		return nil
	}

	cliApp.Action = func(ctx *cli.Context) error {
		ia := command.NewInteractiveApp(cliApp)
		ia.Run()
		return nil
	}

	cliApp.Commands = command.GetCommands()
	return cliApp
}
