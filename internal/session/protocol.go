package session

import "encoding/json"

// resizeMsg is the control frame that asks the remote PTY to resize. It
// travels as a text frame; terminal I/O travels as binary frames, so the
// two never collide.
type resizeMsg struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

const resizeType = "resize"

// EncodeResize returns the resize control payload for cols x rows.
func EncodeResize(cols, rows int) ([]byte, error) {
	return json.Marshal(resizeMsg{Type: resizeType, Cols: clampU16(cols), Rows: clampU16(rows)})
}

// DecodeResize parses a resize control payload. ok is false when p is not
// a resize frame.
func DecodeResize(p []byte) (cols, rows int, ok bool) {
	var msg resizeMsg
	if err := json.Unmarshal(p, &msg); err != nil || msg.Type != resizeType {
		return 0, 0, false
	}
	return int(msg.Cols), int(msg.Rows), true
}

func clampU16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xffff:
		return 0xffff
	default:
		return uint16(v)
	}
}
