package protocol

import "encoding/json"

// Version covers the engine link messages and the binary poll frame tag table.
const Version = "2.0"

// Engine link message types.
const (
	TypeHello        = "HELLO"
	TypeWelcome      = "WELCOME"
	TypeFrame        = "FRAME"
	TypeScript       = "SCRIPT"
	TypeScriptResult = "SCRIPT_RESULT"
	TypeError        = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
