package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type ids of the wire format.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// ErrMalformedFrame marks a frame that cannot be decoded. The connection
// handler drops the frame and keeps the socket open.
var ErrMalformedFrame = errors.New("ocpp: malformed frame")

// Frame is a parsed wire message. Action is empty for CALLRESULT frames.
type Frame struct {
	MessageType int
	UniqueID    string
	Action      string
	Payload     json.RawMessage
}

// Parse decodes a raw JSON array frame. CALL frames are
// [2, uniqueId, action, payload]; CALLRESULT frames are [3, uniqueId, payload].
func Parse(data []byte) (*Frame, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if len(array) < 3 {
		return nil, fmt.Errorf("%w: arity %d", ErrMalformedFrame, len(array))
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, fmt.Errorf("%w: message type: %v", ErrMalformedFrame, err)
	}

	frame := &Frame{MessageType: msgType}
	if err := json.Unmarshal(array[1], &frame.UniqueID); err != nil {
		return nil, fmt.Errorf("%w: unique id: %v", ErrMalformedFrame, err)
	}

	switch msgType {
	case MessageTypeCall:
		if len(array) < 4 {
			return nil, fmt.Errorf("%w: incomplete CALL", ErrMalformedFrame)
		}
		if err := json.Unmarshal(array[2], &frame.Action); err != nil {
			return nil, fmt.Errorf("%w: action: %v", ErrMalformedFrame, err)
		}
		frame.Payload = array[3]
	case MessageTypeCallResult:
		frame.Payload = array[2]
	default:
		return nil, fmt.Errorf("%w: unknown message type %d", ErrMalformedFrame, msgType)
	}

	return frame, nil
}

// BuildCall encodes a backend-to-charge-point CALL frame.
func BuildCall(uniqueID, action string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCall, uniqueID, action, json.RawMessage(body)}
	return json.Marshal(frame)
}

// BuildCallResult encodes a CALLRESULT reply.
func BuildCallResult(uniqueID string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCallResult, uniqueID, json.RawMessage(body)}
	return json.Marshal(frame)
}

// BuildCallError encodes a CALLERROR reply.
func BuildCallError(uniqueID, code, description string) ([]byte, error) {
	frame := []interface{}{MessageTypeCallError, uniqueID, code, description, map[string]string{}}
	return json.Marshal(frame)
}

// Decode unmarshals a payload into a typed request struct.
func Decode[T any](payload json.RawMessage) (T, error) {
	var target T
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}
