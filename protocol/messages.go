// Package protocol implements the six-variant line-delimited JSON message
// protocol exchanged between the harness and the agent subprocess.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type is the discriminator carried by every message's "type" field.
type Type string

const (
	TypeTaskStart   Type = "task_start"
	TypeToolCall    Type = "tool_call"
	TypeToolResult  Type = "tool_result"
	TypeFinalOutput Type = "final_output"
	TypeLog         Type = "log"
	TypeTaskError   Type = "task_error"
)

// Message is the sum type over the six protocol variants. Exactly one of the
// typed fields is populated, matching the Type discriminator.
type Message struct {
	Type Type

	TaskStart   *TaskStart
	ToolCall    *ToolCall
	ToolResult  *ToolResult
	FinalOutput *FinalOutput
	Log         *Log
	TaskError   *TaskError
}

// TaskStart is sent harness->agent exactly once per case, first.
type TaskStart struct {
	TaskID string         `json:"task_id"`
	Input  map[string]any `json:"input"`
}

// ToolCall is sent agent->harness.
type ToolCall struct {
	Name   string         `json:"name"`
	CallID string         `json:"call_id"`
	Args   map[string]any `json:"args"`
}

// ToolResult is sent harness->agent exactly once per ToolCall received.
type ToolResult struct {
	CallID string         `json:"call_id"`
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// FinalOutput is sent agent->harness and terminates the case successfully.
type FinalOutput struct {
	Output map[string]any `json:"output"`
	Usage  *Usage         `json:"usage,omitempty"`
}

// Usage carries the agent's self-reported token/cost/step counters for the
// case, per the optional counters named in CaseResult's data model. Every
// field is independently optional; an agent that reports none of them simply
// omits "usage" entirely.
type Usage struct {
	TokensIn  *int64   `json:"tokens_in,omitempty"`
	TokensOut *int64   `json:"tokens_out,omitempty"`
	CostUSD   *float64 `json:"cost_usd,omitempty"`
	Steps     *int64   `json:"steps,omitempty"`
}

// Log is sent agent->harness and is purely advisory.
type Log struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// TaskError is sent agent->harness and terminates the case with a failure.
type TaskError struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// wireEnvelope is the on-the-wire shape used for both decode (to spot unknown
// fields per variant) and encode.
type wireEnvelope struct {
	Type Type `json:"type"`

	TaskID string         `json:"task_id,omitempty"`
	Input  map[string]any `json:"input,omitempty"`

	Name   string         `json:"name,omitempty"`
	CallID string         `json:"call_id,omitempty"`
	Args   map[string]any `json:"args,omitempty"`

	OK     *bool          `json:"ok,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`

	Output map[string]any `json:"output,omitempty"`
	Usage  *Usage         `json:"usage,omitempty"`

	Level   string         `json:"level,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// allowedFields enumerates, per variant, which wire keys are legal. Any key
// present in the raw JSON object outside "type" plus this set fails decoding
// with a strict-schema parse error, matching the "unknown fields fail" rule.
var allowedFields = map[Type]map[string]struct{}{
	TypeTaskStart:   {"type": {}, "task_id": {}, "input": {}},
	TypeToolCall:    {"type": {}, "name": {}, "call_id": {}, "args": {}},
	TypeToolResult:  {"type": {}, "call_id": {}, "ok": {}, "result": {}, "error": {}},
	TypeFinalOutput: {"type": {}, "output": {}, "usage": {}},
	TypeLog:         {"type": {}, "level": {}, "message": {}, "data": {}},
	TypeTaskError:   {"type": {}, "message": {}, "data": {}},
}

// ParseError reports a strict-schema violation: unknown type, missing
// required field, or an extra field not part of the variant's shape.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

// Decode parses a single already-unmarshaled JSON object (as produced by
// json.Unmarshal into map[string]any) into a Message, enforcing the strict
// per-variant schema described in the protocol codec component.
func Decode(raw map[string]any) (Message, error) {
	rawType, ok := raw["type"].(string)
	if !ok || rawType == "" {
		return Message{}, &ParseError{Reason: "message missing \"type\" field"}
	}
	typ := Type(rawType)
	allowed, known := allowedFields[typ]
	if !known {
		return Message{}, &ParseError{Reason: fmt.Sprintf("unknown message type %q", rawType)}
	}
	for k := range raw {
		if _, ok := allowed[k]; !ok {
			return Message{}, &ParseError{Reason: fmt.Sprintf("unknown field %q for message type %q", k, rawType)}
		}
	}

	// Round-trip through the envelope to get typed field access with the
	// same json tags used for decode and encode.
	b, err := json.Marshal(raw)
	if err != nil {
		return Message{}, &ParseError{Reason: "internal remarshal failure: " + err.Error()}
	}
	var env wireEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, &ParseError{Reason: "internal decode failure: " + err.Error()}
	}

	switch typ {
	case TypeTaskStart:
		if env.TaskID == "" {
			return Message{}, &ParseError{Reason: "task_start missing required field \"task_id\""}
		}
		return Message{Type: typ, TaskStart: &TaskStart{TaskID: env.TaskID, Input: env.Input}}, nil
	case TypeToolCall:
		if env.Name == "" || env.CallID == "" {
			return Message{}, &ParseError{Reason: "tool_call missing required field \"name\" or \"call_id\""}
		}
		return Message{Type: typ, ToolCall: &ToolCall{Name: env.Name, CallID: env.CallID, Args: env.Args}}, nil
	case TypeToolResult:
		if env.CallID == "" || env.OK == nil {
			return Message{}, &ParseError{Reason: "tool_result missing required field \"call_id\" or \"ok\""}
		}
		return Message{Type: typ, ToolResult: &ToolResult{CallID: env.CallID, OK: *env.OK, Result: env.Result, Error: env.Error}}, nil
	case TypeFinalOutput:
		if env.Output == nil {
			return Message{}, &ParseError{Reason: "final_output missing required field \"output\""}
		}
		return Message{Type: typ, FinalOutput: &FinalOutput{Output: env.Output, Usage: env.Usage}}, nil
	case TypeLog:
		if env.Level == "" || env.Message == "" {
			return Message{}, &ParseError{Reason: "log missing required field \"level\" or \"message\""}
		}
		return Message{Type: typ, Log: &Log{Level: env.Level, Message: env.Message, Data: env.Data}}, nil
	case TypeTaskError:
		if env.Message == "" {
			return Message{}, &ParseError{Reason: "task_error missing required field \"message\""}
		}
		return Message{Type: typ, TaskError: &TaskError{Message: env.Message, Data: env.Data}}, nil
	}
	return Message{}, &ParseError{Reason: fmt.Sprintf("unhandled message type %q", rawType)}
}

// Encode renders a Message as compact, single-line JSON with no embedded
// newlines, suitable for appending a trailing "\n" and writing to the
// agent's standard input.
func Encode(m Message) ([]byte, error) {
	env := wireEnvelope{Type: m.Type}
	switch m.Type {
	case TypeTaskStart:
		env.TaskID = m.TaskStart.TaskID
		env.Input = m.TaskStart.Input
	case TypeToolCall:
		env.Name = m.ToolCall.Name
		env.CallID = m.ToolCall.CallID
		env.Args = m.ToolCall.Args
	case TypeToolResult:
		ok := m.ToolResult.OK
		env.OK = &ok
		env.CallID = m.ToolResult.CallID
		env.Result = m.ToolResult.Result
		env.Error = m.ToolResult.Error
	case TypeFinalOutput:
		env.Output = m.FinalOutput.Output
		env.Usage = m.FinalOutput.Usage
	case TypeLog:
		env.Level = m.Log.Level
		env.Message = m.Log.Message
		env.Data = m.Log.Data
	case TypeTaskError:
		env.Message = m.TaskError.Message
		env.Data = m.TaskError.Data
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("cannot encode unknown message type %q", m.Type)}
	}
	return json.Marshal(env)
}

// NewTaskStart constructs a task_start message.
func NewTaskStart(taskID string, input map[string]any) Message {
	return Message{Type: TypeTaskStart, TaskStart: &TaskStart{TaskID: taskID, Input: input}}
}

// NewToolResult constructs a tool_result message.
func NewToolResult(callID string, ok bool, result map[string]any, errMsg string) Message {
	return Message{Type: TypeToolResult, ToolResult: &ToolResult{CallID: callID, OK: ok, Result: result, Error: errMsg}}
}
