package protocol

import (
	"encoding/json"

	"simbridge.dev/internal/sim/entity"
)

// HELLO (host -> bridge)
type HelloMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	HostName        string      `json:"host_name,omitempty"`
	MaxQueue        int         `json:"max_queue,omitempty"`
	Mission         MissionInfo `json:"mission"`
}

type MissionInfo struct {
	Name        string          `json:"name"`
	Theatre     string          `json:"theatre"`
	DateAndTime string          `json:"date_and_time,omitempty"`
	Airbases    json.RawMessage `json:"airbases,omitempty"`
	Bullseyes   json.RawMessage `json:"bullseyes,omitempty"`
}

// WELCOME (bridge -> host)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionHash     string `json:"session_hash"`
	MaxQueue        int    `json:"max_queue"`
}

// FRAME (host -> bridge): one per simulation frame.
type FrameMsg struct {
	Type           string          `json:"type"`
	Time           int64           `json:"time"`
	Units          []entity.Update `json:"units,omitempty"`
	Weapons        []entity.Update `json:"weapons,omitempty"`
	RemovedUnits   []uint32        `json:"removed_units,omitempty"`
	RemovedWeapons []uint32        `json:"removed_weapons,omitempty"`
}

// SCRIPT (bridge -> host): one executed command.
type ScriptMsg struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Script string `json:"script"`
}

// SCRIPT_RESULT (host -> bridge)
type ScriptResultMsg struct {
	Type  string `json:"type"`
	Seq   uint64 `json:"seq"`
	Error string `json:"error,omitempty"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
