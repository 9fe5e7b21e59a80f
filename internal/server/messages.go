package server

import (
	"encoding/json"
	"fmt"

	"github.com/acheong08/pyextras/pkg/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server
	TypeCheck MessageType = "check" // Client sends pyproject.toml to check
	TypePing  MessageType = "ping"  // Keep-alive

	// Server -> Client
	TypeGraph    MessageType = "graph"    // Extras graph data
	TypeProgress MessageType = "progress" // Progress updates
	TypeLog      MessageType = "log"      // Log messages for terminal
	TypeFinding  MessageType = "finding"  // A single finding, streamed as rules run
	TypeReport   MessageType = "report"   // Final report
	TypeComplete MessageType = "complete" // Check complete
	TypeError    MessageType = "error"    // Error message
	TypePong     MessageType = "pong"
)

// Message is the base WebSocket message structure
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CheckPayload sent by client to start a check
type CheckPayload struct {
	Pyproject string `json:"pyproject"`       // Raw pyproject.toml content
	Lock      string `json:"lock,omitempty"`  // Raw uv.lock content, optional
	Index     bool   `json:"index,omitempty"` // Look up external requirements on the index
}

// GraphNode is one extra in the graph payload
type GraphNode struct {
	Name         string   `json:"name"`
	Declared     string   `json:"declared"`
	Requirements []string `json:"requirements"`
	Includes     []string `json:"includes,omitempty"`
	Defined      bool     `json:"defined"`
}

// GraphPayload contains the extras graph for visualization
type GraphPayload struct {
	Project string        `json:"project"`
	Nodes   []GraphNode   `json:"nodes"`
	Edges   []models.Edge `json:"edges"`
	Cycles  [][]string    `json:"cycles,omitempty"`
}

// ProgressPayload for progress bar updates
type ProgressPayload struct {
	Percent int    `json:"percent"` // 0-100
	Stage   string `json:"stage"`   // "parse", "graph", "rules", "index", "report"
	Message string `json:"message"` // Human-readable status
}

// LogPayload for terminal output
type LogPayload struct {
	Message string `json:"message"`         // Log message
	Level   string `json:"level,omitempty"` // "info", "success", "warning", "error"
}

// CompletePayload sent when the check is done
type CompletePayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Helper functions to create messages

func NewGraphMessage(payload GraphPayload) Message {
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeGraph, Payload: payloadBytes}
}

func NewProgressMessage(percent int, stage, message string) Message {
	payload := ProgressPayload{
		Percent: percent,
		Stage:   stage,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeProgress, Payload: payloadBytes}
}

func NewLogMessage(message, level string) Message {
	payload := LogPayload{
		Message: message,
		Level:   level,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeLog, Payload: payloadBytes}
}

func NewFindingMessage(f models.Finding) Message {
	payloadBytes, _ := json.Marshal(f)
	return Message{Type: TypeFinding, Payload: payloadBytes}
}

func NewReportMessage(report *models.Report) Message {
	payloadBytes, _ := json.Marshal(report)
	return Message{Type: TypeReport, Payload: payloadBytes}
}

func NewCompleteMessage(success bool, message string) Message {
	payload := CompletePayload{
		Success: success,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeComplete, Payload: payloadBytes}
}

func NewErrorMessage(message string, err error) Message {
	errMsg := message
	if err != nil {
		errMsg = fmt.Sprintf("%s: %v", message, err)
	}
	payload := ErrorPayload{Message: errMsg}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeError, Payload: payloadBytes}
}

// ParseCheckPayload extracts the check payload from a message
func ParseCheckPayload(msg Message) (*CheckPayload, error) {
	var payload CheckPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse check payload: %w", err)
	}
	if payload.Pyproject == "" {
		return nil, fmt.Errorf("check payload has no pyproject content")
	}
	return &payload, nil
}
