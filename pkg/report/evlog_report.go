package report

// DefaultEvlogFileName is the default session event journal file name
const DefaultEvlogFileName = "keytap-events.ndjson"

// Session event kinds
const (
	SEKindReady   = "ready"   //agent became ready
	SEKindExit    = "exit"    //agent exited
	SEKindTrigger = "hotkey"  //registered hotkey fired
	SEKindKeyDown = "keydown" //raw key press
	SEKindKeyUp   = "keyup"   //raw key release
	SEKindError   = "error"   //agent or protocol error
)

// SessionKeyData carries the key fields for keydown/keyup events
type SessionKeyData struct {
	Code      int      `json:"code"`
	Name      string   `json:"name,omitempty"`
	Modifiers []string `json:"mods,omitempty"`
}

// SessionExitData carries the agent exit fields for exit events
type SessionExitData struct {
	Code      int  `json:"code"`
	Requested bool `json:"req"`
}

// SessionEvent is one session journal record. Timestamp and SeqNumber
// are assigned when the event is published; EventTime is the wire
// timestamp of the agent event the record was translated from.
type SessionEvent struct {
	Timestamp int64            `json:"ts"`
	SeqNumber uint64           `json:"sn"`
	Kind      string           `json:"k"`
	HotkeyID  string           `json:"id,omitempty"`
	EventTime float64          `json:"et,omitempty"`
	Message   string           `json:"msg,omitempty"`
	Pid       int              `json:"pid,omitempty"`
	Key       *SessionKeyData  `json:"key,omitempty"`
	Exit      *SessionExitData `json:"exit,omitempty"`
}
