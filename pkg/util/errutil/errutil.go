package errutil

import (
	"fmt"
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/version"
)

// FailOn logs the error information (terminates the application)
func FailOn(err error) {
	if err != nil {
		stackData := debug.Stack()
		log.WithError(err).WithFields(log.Fields{
			"version": version.Current(),
			"stack":   string(stackData),
		}).Fatal("keytap: failure")
	}
}

// FailOnWithInfo logs the error information with additional context info (terminates the application)
func FailOnWithInfo(err error, info map[string]string) {
	if err != nil {
		showInfo(info)

		stackData := debug.Stack()
		log.WithError(err).WithFields(log.Fields{
			"version": version.Current(),
			"stack":   string(stackData),
		}).Fatal("keytap: failure")
	}
}

// WarnOn logs the error information as a warning
func WarnOn(err error) {
	if err != nil {
		stackData := debug.Stack()
		log.WithError(err).WithFields(log.Fields{
			"version": version.Current(),
			"stack":   string(stackData),
		}).Warn("keytap: warning")
	}
}

// FailWhen logs the given message if the condition is true (terminates the application)
func FailWhen(cond bool, msg string) {
	if cond {
		stackData := debug.Stack()
		log.WithFields(log.Fields{
			"version": version.Current(),
			"error":   msg,
			"stack":   string(stackData),
		}).Fatal("keytap: failure")
	}
}

func showInfo(info map[string]string) {
	if len(info) > 0 {
		fmt.Println("Error Context Info:")
		for k, v := range info {
			fmt.Printf("'%s': '%s'\n", k, v)
		}
	}
}

// exec.Command().Run() and its derivatives sometimes return
// "wait: no child processes" or "waitid: no child processes"
// even for successful runs. It's a race condition between the
// Start() + Wait() calls and the actual underlying command
// execution. The shorter the execution time, the higher are
// the chances to get this error.
func IsNoChildProcesses(err error) bool {
	if err == nil {
		return false
	}

	return strings.HasSuffix(err.Error(), ": no child processes")
}
