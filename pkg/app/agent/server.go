package agent

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/app/agent/tap"
	"github.com/keytap/keytap/pkg/ipc/channel"
	"github.com/keytap/keytap/pkg/ipc/command"
	"github.com/keytap/keytap/pkg/ipc/event"
)

// Server drives one agent session: commands in, replies and tap
// events out, every outgoing line through one serialized writer.
type Server struct {
	logger *log.Entry
	src    tap.Source
	in     io.Reader
	out    *channel.LineWriter
}

// NewServer creates a session server around an opened tap source
func NewServer(src tap.Source, in io.Reader, out io.Writer) *Server {
	return &Server{
		logger: log.WithField("component", "agent.server"),
		src:    src,
		in:     in,
		out:    channel.NewLineWriter(out),
	}
}

// Run serves until the command input is exhausted or the context is
// canceled. The tap source is closed and its stream drained before Run
// returns. An exhausted command input is the supervisor's way of
// requesting shutdown and is not an error.
func (ref *Server) Run(ctx context.Context) error {
	pumpDone := make(chan struct{})
	go ref.pump(pumpDone)

	cmdDone := make(chan error, 1)
	go func() {
		cmdDone <- ref.commandLoop()
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-cmdDone:
	}

	if closeErr := ref.src.Close(); closeErr != nil {
		ref.logger.WithError(closeErr).Debug("tap source close")
	}

	<-pumpDone
	return err
}

func (ref *Server) commandLoop() error {
	logger := ref.logger.WithField("op", "commandLoop")

	asm := channel.NewLineAssembler(ref.handleCommandLine)
	if _, err := io.Copy(asm, ref.in); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}

	logger.Debug("command input closed")
	return nil
}

func (ref *Server) handleCommandLine(line []byte) {
	logger := ref.logger.WithField("op", "handleCommandLine")

	msg, err := command.Decode(line)
	if err != nil {
		logger.WithError(err).Warn("bad command line")
		ref.writeEvent(&event.Error{Message: fmt.Sprintf("bad command: %v", err)})
		return
	}

	switch m := msg.(type) {
	case *command.Ping:
		ref.writeEvent(&event.Pong{})
	case *command.RegisterHotkey:
		ref.ack(m.ID, ref.src.RegisterHotkey(m.ID, m.Keys, m.Modifiers))
	case *command.UnregisterHotkey:
		ref.ack(m.ID, ref.src.UnregisterHotkey(m.ID))
	case *command.StartMonitoring:
		err := ref.src.SetMonitoring(tap.MonitorSpec{
			Enabled: true,
			AllKeys: m.Options.AllKeys,
			Keys:    m.Options.Keys,
		})
		if err != nil {
			ref.writeEvent(&event.Error{Message: fmt.Sprintf("start-monitoring: %v", err)})
		}
	case *command.StopMonitoring:
		if err := ref.src.SetMonitoring(tap.MonitorSpec{}); err != nil {
			ref.writeEvent(&event.Error{Message: fmt.Sprintf("stop-monitoring: %v", err)})
		}
	}
}

// ack reports a hotkey command result correlated by registration id.
// Monitoring successes go unacknowledged, only hotkey commands carry a
// correlation id on the wire.
func (ref *Server) ack(id string, err error) {
	if err != nil {
		ref.writeEvent(&event.Error{
			Message: err.Error(),
			Data:    &event.CorrelationData{ID: id},
		})
		return
	}

	ref.writeEvent(&event.Success{Data: event.CorrelationData{ID: id}})
}

// pump forwards the tap stream to the event output, clamping
// timestamps so they never decrease within the session
func (ref *Server) pump(done chan struct{}) {
	defer close(done)

	logger := ref.logger.WithField("op", "pump")

	var lastTS float64
	clamp := func(ts float64) float64 {
		if ts < lastTS {
			return lastTS
		}

		lastTS = ts
		return ts
	}

	for evt := range ref.src.Events() {
		switch evt.Type {
		case tap.TriggerEvent:
			ref.writeEvent(&event.HotkeyTriggered{
				ID:        evt.HotkeyID,
				Timestamp: clamp(evt.Timestamp),
			})
		case tap.KeyDownEvent, tap.KeyUpEvent:
			info := event.KeyInfo{
				KeyCode:   evt.KeyCode,
				Key:       evt.Key,
				Modifiers: evt.Modifiers,
				Timestamp: clamp(evt.Timestamp),
			}

			if evt.Type == tap.KeyDownEvent {
				ref.writeEvent(&event.KeyDown{KeyInfo: info})
			} else {
				ref.writeEvent(&event.KeyUp{KeyInfo: info})
			}
		default:
			logger.WithField("type", evt.Type).Debug("unknown tap event type")
		}
	}

	logger.Debug("tap stream closed")
}

func (ref *Server) writeEvent(msg event.Message) {
	raw, err := event.Encode(msg)
	if err != nil {
		ref.logger.WithError(err).WithField("event", msg.GetName()).Debug("event encode failed")
		return
	}

	if err := ref.out.WriteLine(raw); err != nil {
		ref.logger.WithError(err).WithField("event", msg.GetName()).Debug("event write failed")
	}
}
