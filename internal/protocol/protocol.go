// Package protocol defines the JSON frames exchanged over the terminal
// WebSocket between the console and the agent service.
//
// Client → server:
//
//	{"type":"command","command":"whoami","host":"wincvex-dc"}
//
// Server → client:
//
//	{"type":"line","text":"..."}
//	{"type":"status","text":"..."}
//	{"type":"error","text":"..."}
//
// Decoding on the client never fails: anything that is not a well-formed
// line/status/error frame is surfaced as a line carrying the raw payload.
package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// Type is the discriminant of an Envelope.
type Type string

const (
	TypeLine    Type = "line"
	TypeStatus  Type = "status"
	TypeError   Type = "error"
	TypeCommand Type = "command"
)

// Envelope is a single frame on the wire.
type Envelope struct {
	Type    Type   `json:"type"`
	Text    string `json:"text,omitempty"`
	Command string `json:"command,omitempty"`
	Host    string `json:"host,omitempty"`
}

// commandFrame is the exact client → server shape. Both fields are always
// present, even when empty.
type commandFrame struct {
	Type    Type   `json:"type"`
	Command string `json:"command"`
	Host    string `json:"host"`
}

// textFrame is the exact server → client shape.
type textFrame struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

// ErrNotCommand is returned by DecodeCommand for frames that are not commands.
var ErrNotCommand = errors.New("not a command frame")

// Line returns a line envelope.
func Line(text string) Envelope { return Envelope{Type: TypeLine, Text: text} }

// Status returns a status envelope.
func Status(text string) Envelope { return Envelope{Type: TypeStatus, Text: text} }

// Error returns an error envelope.
func Error(text string) Envelope { return Envelope{Type: TypeError, Text: text} }

// Command returns a command envelope targeting host.
func Command(command, host string) Envelope {
	return Envelope{Type: TypeCommand, Command: command, Host: host}
}

// EncodeCommand serializes a command frame.
func EncodeCommand(command, host string) ([]byte, error) {
	return json.Marshal(commandFrame{Type: TypeCommand, Command: command, Host: host})
}

// Encode serializes env using the shape required by its type. Command
// envelopes use the command shape; everything else uses {type,text}.
func Encode(env Envelope) ([]byte, error) {
	switch env.Type {
	case TypeCommand:
		return EncodeCommand(env.Command, env.Host)
	case TypeLine, TypeStatus, TypeError:
		return json.Marshal(textFrame{Type: env.Type, Text: env.Text})
	default:
		return nil, errors.New("unknown envelope type: " + string(env.Type))
	}
}

// Decode maps an inbound server payload to an envelope. Malformed JSON,
// non-object payloads, missing text and unknown types all degrade to a line
// envelope holding the raw payload.
func Decode(payload []byte) Envelope {
	var frame struct {
		Type *Type   `json:"type"`
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil || frame.Type == nil {
		return Line(string(payload))
	}
	text := ""
	if frame.Text != nil {
		text = *frame.Text
	}
	switch *frame.Type {
	case TypeLine, TypeStatus, TypeError:
		return Envelope{Type: *frame.Type, Text: text}
	default:
		return Line(string(payload))
	}
}

// DecodeCommand parses a client frame on the server side. The returned
// command is trimmed of surrounding whitespace.
func DecodeCommand(payload []byte) (Envelope, error) {
	var frame commandFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Envelope{}, err
	}
	if frame.Type != TypeCommand {
		return Envelope{}, ErrNotCommand
	}
	return Command(strings.TrimSpace(frame.Command), frame.Host), nil
}
