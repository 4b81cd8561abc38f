package agent

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

func configureLogger(enableDebug bool, levelName string, format string, file string) error {
	//stdout carries the event protocol, logs stay on stderr unless
	//redirected to a file
	log.SetOutput(os.Stderr)

	if file != "" {
		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}

		log.SetOutput(f)
	}

	if enableDebug {
		log.SetLevel(log.DebugLevel)
	} else {
		logLevel := log.InfoLevel
		switch levelName {
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
			return fmt.Errorf("unknown log-level %q", levelName)
		}

		log.SetLevel(logLevel)
	}

	switch format {
	case "text":
		log.SetFormatter(&log.TextFormatter{DisableColors: true})
	case "json":
		log.SetFormatter(new(log.JSONFormatter))
	default:
		return fmt.Errorf("unknown log-format %q", format)
	}

	return nil
}
