// Package ipc implements the control socket of a running compositor.
// Requests and responses are protobuf Struct messages framed by a 4 byte
// big endian length.
package ipc

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Message types carried in the "type" field
const (
	TypeStatus           = "status"
	TypeStatusResponse   = "status_response"
	TypeTerminate        = "terminate"
	TypeOK               = "ok"
	TypeScreenshot       = "screenshot"
	TypeScreenshotResult = "screenshot_response"
	TypeError            = "error"
)

// OutputStatus describes one output of the running compositor
type OutputStatus struct {
	Name    string
	Width   int
	Height  int
	Refresh int
	Scale   float64
	X       int
	Y       int
}

// InputStatus describes one input device
type InputStatus struct {
	Name string
	Type string
}

// Status is the answer to a status request
type Status struct {
	Running bool
	Socket  string
	Backend string
	Clients int
	Globals []string
	Outputs []OutputStatus
	Inputs  []InputStatus
	CursorX float64
	CursorY float64
}

// Screenshot is one rendered output frame encoded as PNG
type Screenshot struct {
	Output string
	Width  int
	Height int
	PNG    []byte
}

func newMessage(typ string, fields map[string]any) (*structpb.Struct, error) {
	m := map[string]any{"type": typ}
	for k, v := range fields {
		m[k] = v
	}
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s message: %w", typ, err)
	}
	return msg, nil
}

// MessageType returns the type field of msg, or "" when missing
func MessageType(msg *structpb.Struct) string {
	if msg == nil {
		return ""
	}
	return msg.GetFields()["type"].GetStringValue()
}

// NewStatusMessage creates a new status query message
func NewStatusMessage() (*structpb.Struct, error) {
	return newMessage(TypeStatus, nil)
}

// NewTerminateMessage asks the compositor to stop
func NewTerminateMessage() (*structpb.Struct, error) {
	return newMessage(TypeTerminate, nil)
}

// NewScreenshotMessage requests the last frame of output, or of the first
// output when empty
func NewScreenshotMessage(output string) (*structpb.Struct, error) {
	return newMessage(TypeScreenshot, map[string]any{"output": output})
}

// NewOKMessage acknowledges a command
func NewOKMessage() (*structpb.Struct, error) {
	return newMessage(TypeOK, nil)
}

// NewErrorMessage creates a new error message
func NewErrorMessage(errMsg string) (*structpb.Struct, error) {
	return newMessage(TypeError, map[string]any{"error": errMsg})
}

// GetError extracts the error text of an error message
func GetError(msg *structpb.Struct) (string, error) {
	if MessageType(msg) != TypeError {
		return "", fmt.Errorf("message is not an error response")
	}
	return msg.GetFields()["error"].GetStringValue(), nil
}

// GetScreenshotOutput extracts the requested output name
func GetScreenshotOutput(msg *structpb.Struct) (string, error) {
	if MessageType(msg) != TypeScreenshot {
		return "", fmt.Errorf("message is not a screenshot request")
	}
	return msg.GetFields()["output"].GetStringValue(), nil
}

// NewStatusResponseMessage encodes s
func NewStatusResponseMessage(s *Status) (*structpb.Struct, error) {
	outputs := make([]any, 0, len(s.Outputs))
	for _, o := range s.Outputs {
		outputs = append(outputs, map[string]any{
			"name":    o.Name,
			"width":   o.Width,
			"height":  o.Height,
			"refresh": o.Refresh,
			"scale":   o.Scale,
			"x":       o.X,
			"y":       o.Y,
		})
	}
	inputs := make([]any, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		inputs = append(inputs, map[string]any{"name": in.Name, "type": in.Type})
	}
	globals := make([]any, 0, len(s.Globals))
	for _, g := range s.Globals {
		globals = append(globals, g)
	}

	return newMessage(TypeStatusResponse, map[string]any{
		"running":  s.Running,
		"socket":   s.Socket,
		"backend":  s.Backend,
		"clients":  s.Clients,
		"globals":  globals,
		"outputs":  outputs,
		"inputs":   inputs,
		"cursor_x": s.CursorX,
		"cursor_y": s.CursorY,
	})
}

// GetStatus decodes a status response
func GetStatus(msg *structpb.Struct) (*Status, error) {
	if MessageType(msg) != TypeStatusResponse {
		return nil, fmt.Errorf("message is not a status response")
	}
	f := msg.GetFields()
	s := &Status{
		Running: f["running"].GetBoolValue(),
		Socket:  f["socket"].GetStringValue(),
		Backend: f["backend"].GetStringValue(),
		Clients: int(f["clients"].GetNumberValue()),
		CursorX: f["cursor_x"].GetNumberValue(),
		CursorY: f["cursor_y"].GetNumberValue(),
	}
	for _, v := range f["globals"].GetListValue().GetValues() {
		s.Globals = append(s.Globals, v.GetStringValue())
	}
	for _, v := range f["outputs"].GetListValue().GetValues() {
		o := v.GetStructValue().GetFields()
		s.Outputs = append(s.Outputs, OutputStatus{
			Name:    o["name"].GetStringValue(),
			Width:   int(o["width"].GetNumberValue()),
			Height:  int(o["height"].GetNumberValue()),
			Refresh: int(o["refresh"].GetNumberValue()),
			Scale:   o["scale"].GetNumberValue(),
			X:       int(o["x"].GetNumberValue()),
			Y:       int(o["y"].GetNumberValue()),
		})
	}
	for _, v := range f["inputs"].GetListValue().GetValues() {
		in := v.GetStructValue().GetFields()
		s.Inputs = append(s.Inputs, InputStatus{
			Name: in["name"].GetStringValue(),
			Type: in["type"].GetStringValue(),
		})
	}
	return s, nil
}

// NewScreenshotResponseMessage encodes shot; structpb has no bytes kind so
// the PNG travels as base64
func NewScreenshotResponseMessage(shot *Screenshot) (*structpb.Struct, error) {
	return newMessage(TypeScreenshotResult, map[string]any{
		"output": shot.Output,
		"width":  shot.Width,
		"height": shot.Height,
		"png":    base64.StdEncoding.EncodeToString(shot.PNG),
	})
}

// GetScreenshot decodes a screenshot response
func GetScreenshot(msg *structpb.Struct) (*Screenshot, error) {
	if MessageType(msg) != TypeScreenshotResult {
		return nil, fmt.Errorf("message is not a screenshot response")
	}
	f := msg.GetFields()
	data, err := base64.StdEncoding.DecodeString(f["png"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("invalid screenshot payload: %w", err)
	}
	return &Screenshot{
		Output: f["output"].GetStringValue(),
		Width:  int(f["width"].GetNumberValue()),
		Height: int(f["height"].GetNumberValue()),
		PNG:    data,
	}, nil
}
