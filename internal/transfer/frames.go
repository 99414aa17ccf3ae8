package transfer

import (
	"encoding/json"
	"fmt"
)

// Frame types carried as JSON text over the data channel. Binary frames are
// raw chunk bytes and belong to the most recent unfinished metadata frame.
const (
	FrameMetadata  = "metadata"
	FrameText      = "text"
	FrameControl   = "control"
	FrameHeartbeat = "heartbeat"
)

// ControlAction is an out-of-band signal within an active session.
type ControlAction string

const (
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
	ActionCancel ControlAction = "cancel"
)

// Frame is the single JSON shape for all text frames; which fields are
// meaningful depends on Type. The layout is fixed wire format shared with
// web clients, so field names are part of the protocol.
type Frame struct {
	Type    string        `json:"type"`
	Name    string        `json:"name,omitempty"`
	Size    int64         `json:"size,omitempty"`
	Content string        `json:"content,omitempty"`
	Action  ControlAction `json:"action,omitempty"`
}

func MetadataFrame(name string, size int64) Frame {
	return Frame{Type: FrameMetadata, Name: name, Size: size}
}

func TextFrame(content string) Frame {
	return Frame{Type: FrameText, Content: content}
}

func ControlFrame(action ControlAction) Frame {
	return Frame{Type: FrameControl, Action: action}
}

func HeartbeatFrame() Frame {
	return Frame{Type: FrameHeartbeat}
}

// Encode serializes the frame for SendText.
func (f Frame) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return string(data), nil
}

// DecodeFrame parses a text frame received from the peer.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
