package testutil

import (
	"testing"
	"time"

	"github.com/keytap/keytap/pkg/ipc/command"
	agentstub "github.com/keytap/keytap/pkg/test/stub/agent"
)

const waitTimeout = 5 * time.Second

// WaitSessionOrFail returns the n-th fake agent session, waiting for
// the supervisor to spawn it
func WaitSessionOrFail(t *testing.T, spawner *agentstub.Spawner, n int) *agentstub.Session {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if s := spawner.Session(n); s != nil {
			return s
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for agent session %d", n)
	return nil
}

// WaitCommandOrFail returns the next command the session received and
// fails the test if it is not the expected kind
func WaitCommandOrFail(t *testing.T, s *agentstub.Session, want command.MessageName) command.Message {
	t.Helper()

	select {
	case msg, ok := <-s.Commands():
		if !ok {
			t.Fatalf("agent session closed while waiting for %s command", want)
			return nil
		}

		if msg.GetName() != want {
			t.Fatalf("unexpected command: got %s, want %s", msg.GetName(), want)
		}

		return msg
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s command", want)
		return nil
	}
}

// ExpectNoCommand fails the test if the session receives any command
// within the probe window
func ExpectNoCommand(t *testing.T, s *agentstub.Session, window time.Duration) {
	t.Helper()

	select {
	case msg := <-s.Commands():
		t.Fatalf("unexpected command: %s", msg.GetName())
	case <-time.After(window):
	}
}
