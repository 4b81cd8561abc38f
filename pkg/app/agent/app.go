package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/app/agent/tap"
	"github.com/keytap/keytap/pkg/ipc/channel"
	"github.com/keytap/keytap/pkg/ipc/event"
	"github.com/keytap/keytap/pkg/util/errutil"
	"github.com/keytap/keytap/pkg/version"
)

// CapabilityExitCode is the agent exit code for a failed capability
// check. The supervisor surfaces it verbatim, no protocol meaning is
// attached to the number itself.
const CapabilityExitCode = 2

const (
	// Flags

	getAppBomFlagUsage   = "get agent application BOM"
	getAppBomFlagDefault = false

	enableDebugFlagUsage   = "enable debug logging"
	enableDebugFlagDefault = false

	logLevelFlagUsage   = "set the logging level ('debug', 'info', 'warn', 'error', 'fatal', 'panic')"
	logLevelFlagDefault = "info"

	logFormatFlagUsage   = "set the logging format ('text', or 'json')"
	logFormatFlagDefault = "text"

	logFileFlagUsage   = "enable logging redirection to a file (stderr by default; stdout always carries the event protocol)"
	logFileFlagDefault = ""

	tapBackendFlagUsage   = "set the tap backend ('sim' for the synthetic stream; or 'hook' for the global OS input hook)"
	tapBackendFlagDefault = tap.BackendSim

	simSeedFlagUsage   = "seed for the sim tap backend's synthetic stream"
	simSeedFlagDefault = 1

	simRateFlagUsage   = "tick interval for the sim tap backend's synthetic stream"
	simRateFlagDefault = tap.DefaultSimRate
)

var (
	getAppBom   *bool          = flag.Bool("appbom", getAppBomFlagDefault, getAppBomFlagUsage)
	enableDebug *bool          = flag.Bool("debug", enableDebugFlagDefault, enableDebugFlagUsage)
	logLevel    *string        = flag.String("log-level", logLevelFlagDefault, logLevelFlagUsage)
	logFormat   *string        = flag.String("log-format", logFormatFlagDefault, logFormatFlagUsage)
	logFile     *string        = flag.String("log-file", logFileFlagDefault, logFileFlagUsage)
	tapBackend  *string        = flag.String("tap", tapBackendFlagDefault, tapBackendFlagUsage)
	simSeed     *int64         = flag.Int64("sim-seed", simSeedFlagDefault, simSeedFlagUsage)
	simRate     *time.Duration = flag.Duration("sim-rate", simRateFlagDefault, simRateFlagUsage)

	errUnknownBackend = errors.New("unknown tap backend")
)

func init() {
	flag.BoolVar(getAppBom, "b", getAppBomFlagDefault, getAppBomFlagUsage)
	flag.BoolVar(enableDebug, "d", enableDebugFlagDefault, enableDebugFlagUsage)
	flag.StringVar(logLevel, "l", logLevelFlagDefault, logLevelFlagUsage)
	flag.StringVar(logFormat, "f", logFormatFlagDefault, logFormatFlagUsage)
	flag.StringVar(logFile, "o", logFileFlagDefault, logFileFlagUsage)
	flag.StringVar(tapBackend, "t", tapBackendFlagDefault, tapBackendFlagUsage)
}

// Run starts the agent app
func Run() {
	flag.Parse()

	if *getAppBom {
		dumpAppBom()
		return
	}

	errutil.FailOn(configureLogger(*enableDebug, *logLevel, *logFormat, *logFile))

	log.Infof("agent: ver=%v", version.Current())
	log.Debugf("agent: args => %#v", os.Args)

	src, err := newTapSource(*tapBackend, *simSeed, *simRate)
	errutil.FailOn(err)

	if err := src.Open(); err != nil {
		reportCapabilityFailure(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	startSystemSignalsMonitor(func() {
		log.Debug("agent: canceling serve loop on signal")
		cancel()
	})

	server := NewServer(src, os.Stdin, os.Stdout)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("agent: serve loop finished with error")
		os.Exit(1)
	}

	log.Info("agent: exiting...")
}

func newTapSource(backend string, seed int64, rate time.Duration) (tap.Source, error) {
	switch backend {
	case tap.BackendSim:
		return tap.NewSim(tap.SimConfig{Seed: seed, Rate: rate}), nil
	case tap.BackendHook:
		return tap.NewHook(), nil
	}

	return nil, fmt.Errorf("%w: %q", errUnknownBackend, backend)
}

// reportCapabilityFailure tells the supervisor why this agent cannot
// serve. The error event is the only protocol output, the readiness
// ping is deliberately never answered.
func reportCapabilityFailure(err error) {
	out := channel.NewLineWriter(os.Stdout)

	raw, encErr := event.Encode(&event.Error{
		Message: fmt.Sprintf("capability check failed: %v", err),
	})
	if encErr == nil {
		if writeErr := out.WriteLine(raw); writeErr != nil {
			log.WithError(writeErr).Debug("agent: capability failure report write failed")
		}
	}

	log.WithError(err).Error("agent: input tap capability unavailable")
	os.Exit(CapabilityExitCode)
}

func dumpAppBom() {
	info := version.CurrentBOM()
	if info == nil {
		return
	}

	var out bytes.Buffer
	encoder := json.NewEncoder(&out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent(" ", " ")
	_ = encoder.Encode(info)
	fmt.Printf("%s\n", out.String())
}
