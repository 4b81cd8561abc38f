package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keytap/keytap/pkg/command"
	"github.com/keytap/keytap/pkg/util/errutil"
	"github.com/keytap/keytap/pkg/version"
)

// Command is the common command report data
type Command struct {
	reportLocation string
	Version        string        `json:"version"`
	Type           command.Type  `json:"type"`
	State          command.State `json:"state"`
	Error          string        `json:"error,omitempty"`
}

// SystemMetadata provides basic system metadata
type SystemMetadata struct {
	Type    string `json:"type"`
	Release string `json:"release"`
	OS      string `json:"os"`
}

// AgentMetadata describes the agent subprocess a session ran
type AgentMetadata struct {
	Cmd           []string `json:"cmd"`
	Pid           int      `json:"pid,omitempty"`
	ExitCode      int      `json:"exit_code"`
	ExitRequested bool     `json:"exit_requested"`
	Starts        uint64   `json:"starts,omitempty"`
}

// HotkeyMetadata is the final view of one hotkey registration
type HotkeyMetadata struct {
	ID        string   `json:"id"`
	Keys      []string `json:"keys"`
	Modifiers []string `json:"modifiers,omitempty"`
	State     string   `json:"state"`
	Triggers  uint64   `json:"triggers"`
}

// RunCommand is the 'run' command report data
type RunCommand struct {
	Command
	System               SystemMetadata    `json:"system"`
	StartTime            string            `json:"start_time"`
	EndTime              string            `json:"end_time"`
	Duration             string            `json:"duration"`
	Agent                AgentMetadata     `json:"agent"`
	Hotkeys              []HotkeyMetadata  `json:"hotkeys,omitempty"`
	Monitoring           bool              `json:"monitoring"`
	EventCounts          map[string]uint64 `json:"event_counts,omitempty"`
	DecodeErrors         uint64            `json:"decode_errors,omitempty"`
	DroppedNotifications uint64            `json:"dropped_notifications,omitempty"`
	EventLogLocation     string            `json:"event_log_location,omitempty"`
}

// ProbeCommand is the 'probe' command report data
type ProbeCommand struct {
	Command
	System     SystemMetadata `json:"system"`
	AgentCmd   []string       `json:"agent_cmd"`
	Capability bool           `json:"capability"`
	Pid        int            `json:"pid,omitempty"`
	ExitCode   int            `json:"exit_code,omitempty"`
	ProbeTime  string         `json:"probe_time"`
	AgentBuild *version.BOM   `json:"agent_build,omitempty"`
}

// NewRunCommand creates a new 'run' command report
func NewRunCommand(reportLocation string) *RunCommand {
	return &RunCommand{
		Command: Command{
			reportLocation: reportLocation,
			Version:        version.Current(),
			Type:           command.Run,
			State:          command.StateUnknown,
		},
	}
}

// NewProbeCommand creates a new 'probe' command report
func NewProbeCommand(reportLocation string) *ProbeCommand {
	return &ProbeCommand{
		Command: Command{
			reportLocation: reportLocation,
			Version:        version.Current(),
			Type:           command.Probe,
			State:          command.StateUnknown,
		},
	}
}

func (p *Command) ReportLocation() string {
	return p.reportLocation
}

func (p *Command) saveInfo(info interface{}) bool {
	if p.reportLocation != "" {
		dirName := filepath.Dir(p.reportLocation)
		baseName := filepath.Base(p.reportLocation)

		if baseName == "." {
			fmt.Printf("no command report location: %v\n", p.reportLocation)
			return false
		}

		if dirName != "." {
			_, err := os.Stat(dirName)
			if os.IsNotExist(err) {
				os.MkdirAll(dirName, 0777)
				_, err = os.Stat(dirName)
				errutil.FailOn(err)
			}
		}

		var reportData bytes.Buffer
		encoder := json.NewEncoder(&reportData)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		err := encoder.Encode(info)
		errutil.FailOn(err)

		err = os.WriteFile(p.reportLocation, reportData.Bytes(), 0644)
		errutil.FailOn(err)
		return true
	}

	return false
}

// Save saves the report data to the configured location
func (p *Command) Save() bool {
	return p.saveInfo(p)
}

// Save saves the Run command report data to the configured location
func (p *RunCommand) Save() bool {
	return p.saveInfo(p)
}

// Save saves the Probe command report data to the configured location
func (p *ProbeCommand) Save() bool {
	return p.saveInfo(p)
}
