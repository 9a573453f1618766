package protocol

// Common carries the fields every /olympus response includes.
// Time is a decimal string of epoch milliseconds.
type Common struct {
	Time        string `json:"time"`
	SessionHash string `json:"sessionHash"`
	Load        int    `json:"load"`
	FrameRate   int    `json:"frameRate"`
}

type PutResponse struct {
	CommandHash string `json:"commandHash,omitempty"`
	Common
}

type CommandStatusResponse struct {
	CommandExecuted bool `json:"commandExecuted"`
	Common
}

type LogsResponse struct {
	Logs map[string]string `json:"logs"`
	Common
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Exception bool   `json:"exception,omitempty"`
}
