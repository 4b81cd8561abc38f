package run

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Run command flag names
const (
	FlagHotkey   = "hotkey"
	FlagBindings = "bindings"
	FlagMonitor  = "monitor"
	FlagAllKeys  = "all-keys"
	FlagKeys     = "keys"
	FlagEvlog    = "evlog"
	FlagDuration = "duration"
)

// Run command flag usage info
const (
	FlagHotkeyUsage   = "register a hotkey using a combination spec like 'ctrl+shift+k' (can be used multiple times)"
	FlagBindingsUsage = "YAML file with hotkey bindings and monitoring options"
	FlagMonitorUsage  = "monitor key events (all keys unless --keys selects a subset)"
	FlagAllKeysUsage  = "monitor all keys (implies --monitor)"
	FlagKeysUsage     = "key name to monitor (implies --monitor, can be used multiple times)"
	FlagEvlogUsage    = "write session events to the given journal file"
	FlagDurationUsage = "stop the session after the given number of seconds (0 means run until interrupted)"
)

var Flags = map[string]cli.Flag{
	FlagHotkey: &cli.StringSliceFlag{
		Name:    FlagHotkey,
		Value:   cli.NewStringSlice(),
		Usage:   FlagHotkeyUsage,
		EnvVars: []string{"KEYTAP_HOTKEY"},
	},
	FlagBindings: &cli.StringFlag{
		Name:    FlagBindings,
		Value:   "",
		Usage:   FlagBindingsUsage,
		EnvVars: []string{"KEYTAP_BINDINGS"},
	},
	FlagMonitor: &cli.BoolFlag{
		Name:    FlagMonitor,
		Usage:   FlagMonitorUsage,
		EnvVars: []string{"KEYTAP_MONITOR"},
	},
	FlagAllKeys: &cli.BoolFlag{
		Name:    FlagAllKeys,
		Usage:   FlagAllKeysUsage,
		EnvVars: []string{"KEYTAP_ALL_KEYS"},
	},
	FlagKeys: &cli.StringSliceFlag{
		Name:    FlagKeys,
		Value:   cli.NewStringSlice(),
		Usage:   FlagKeysUsage,
		EnvVars: []string{"KEYTAP_KEYS"},
	},
	FlagEvlog: &cli.StringFlag{
		Name:    FlagEvlog,
		Value:   "",
		Usage:   FlagEvlogUsage,
		EnvVars: []string{"KEYTAP_EVLOG"},
	},
	FlagDuration: &cli.IntFlag{
		Name:    FlagDuration,
		Value:   0,
		Usage:   FlagDurationUsage,
		EnvVars: []string{"KEYTAP_DURATION"},
	},
}

func cflag(name string) cli.Flag {
	cf, ok := Flags[name]
	if !ok {
		log.Fatalf("run.cflag: unknown flag='%s'", name)
	}

	return cf
}
