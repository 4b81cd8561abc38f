package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/keytap/keytap/pkg/util/errutil"
	"github.com/keytap/keytap/pkg/util/jsonutil"
)

// Console output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

type ExecutionContext struct {
	Out             *Output
	cleanupHandlers []func()
}

func (ref *ExecutionContext) Exit(exitCode int) {
	ref.doCleanup()
	os.Exit(exitCode)
}

func (ref *ExecutionContext) AddCleanupHandler(handler func()) {
	if handler != nil {
		ref.cleanupHandlers = append(ref.cleanupHandlers, handler)
	}
}

func (ref *ExecutionContext) doCleanup() {
	if len(ref.cleanupHandlers) == 0 {
		return
	}

	//call cleanup handlers in reverse order
	for i := len(ref.cleanupHandlers) - 1; i >= 0; i-- {
		cleanup := ref.cleanupHandlers[i]
		if cleanup != nil {
			cleanup()
		}
	}
}

func (ref *ExecutionContext) FailOn(err error) {
	if err != nil {
		ref.doCleanup()
	}

	errutil.FailOn(err)
}

func NewExecutionContext(
	cmdName string,
	quiet bool,
	outputFormat string) *ExecutionContext {
	ref := &ExecutionContext{
		Out: NewOutput(cmdName, quiet, outputFormat),
	}

	return ref
}

type Output struct {
	CmdName      string
	Quiet        bool
	OutputFormat string
}

func NewOutput(cmdName string, quiet bool, outputFormat string) *Output {
	ref := &Output{
		CmdName:      cmdName,
		Quiet:        quiet,
		OutputFormat: outputFormat,
	}

	return ref
}

func NoColor() {
	color.NoColor = true
}

type OutVars map[string]interface{}

// Error prints even in quiet mode
func (ref *Output) Error(errType string, data string) {
	if ref.OutputFormat == OutputFormatJSON {
		fmt.Printf("%s", jsonutil.ToString(OutVars{
			"cmd":     ref.CmdName,
			"error":   errType,
			"message": data,
		}))
		return
	}

	color.Set(color.FgHiRed)
	defer color.Unset()

	fmt.Printf("cmd=%s error=%s message='%s'\n", ref.CmdName, errType, data)
}

func (ref *Output) State(state string, params ...OutVars) {
	if ref.Quiet {
		return
	}

	if ref.OutputFormat == OutputFormatJSON {
		kvSet := OutVars{
			"cmd":   ref.CmdName,
			"state": state,
		}
		if len(params) > 0 {
			for k, v := range params[0] {
				kvSet[k] = v
			}
		}

		fmt.Printf("%s", jsonutil.ToString(kvSet))
		return
	}

	var exitInfo string
	var info string
	var sep string

	if len(params) > 0 {
		var minCount int
		kvSet := params[0]
		if exitCode, ok := kvSet["exit.code"]; ok {
			minCount = 1
			exitInfo = fmt.Sprintf(" code=%d", exitCode)
		}

		if len(kvSet) > minCount {
			var builder strings.Builder
			sep = " "

			for k, v := range kvSet {
				if k == "exit.code" {
					continue
				}

				builder.WriteString(k)
				builder.WriteString("=")
				builder.WriteString(fmt.Sprintf("%v", v))
				builder.WriteString(" ")
			}

			info = builder.String()
		}
	}

	if state == "exited" {
		color.Set(color.FgHiRed, color.Bold)
	} else {
		color.Set(color.FgCyan, color.Bold)
	}
	defer color.Unset()

	fmt.Printf("cmd=%s state=%s%s%s%s\n", ref.CmdName, state, exitInfo, sep, info)
}

var (
	itcolor = color.New(color.FgMagenta, color.Bold).SprintFunc()
	kcolor  = color.New(color.FgHiGreen, color.Bold).SprintFunc()
	vcolor  = color.New(color.FgHiBlue).SprintfFunc()
)

func (ref *Output) Info(infoType string, params ...OutVars) {
	if ref.Quiet {
		return
	}

	if ref.OutputFormat == OutputFormatJSON {
		kvSet := OutVars{
			"cmd":  ref.CmdName,
			"info": infoType,
		}
		if len(params) > 0 {
			for k, v := range params[0] {
				kvSet[k] = v
			}
		}

		fmt.Printf("%s", jsonutil.ToString(kvSet))
		return
	}

	var data string
	var sep string

	if len(params) > 0 {
		kvSet := params[0]
		if len(kvSet) > 0 {
			var builder strings.Builder
			sep = " "

			for k, v := range kvSet {
				builder.WriteString(kcolor(k))
				builder.WriteString("=")
				builder.WriteString(fmt.Sprintf("'%s'", vcolor("%v", v)))
				builder.WriteString(" ")
			}

			data = builder.String()
		}
	}

	fmt.Printf("cmd=%s info=%s%s%s\n", ref.CmdName, itcolor(infoType), sep, data)
}
