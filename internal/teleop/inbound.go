package teleop

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/subsea-teleop/internal/joystick"
)

// InboundKind classifies a line or datagram received from an input bridge.
type InboundKind string

const (
	KindFrame       InboundKind = "joy"
	KindDepth       InboundKind = "depth"
	KindOrientation InboundKind = "imu"
	KindStatus      InboundKind = "status"
	KindUnknown     InboundKind = "unknown"
)

// ErrUnknownMessage is returned for payloads that are not a JSON object with
// a recognised type.
var ErrUnknownMessage = errors.New("unknown inbound message")

// inboundMessage is the JSON envelope shared by the serial and UDP
// transports, for example
//
//	{"type":"joy","buttons":[0,1,...],"axes":[0.0,...]}
//	{"type":"depth","depth":1.25}
//	{"type":"imu","roll":0.5,"pitch":-1.0,"yaw":172.3}
type inboundMessage struct {
	Type    InboundKind `json:"type"`
	Buttons []int       `json:"buttons,omitempty"`
	Axes    []float64   `json:"axes,omitempty"`
	Depth   *float64    `json:"depth,omitempty"`
	Roll    *float64    `json:"roll,omitempty"`
	Pitch   *float64    `json:"pitch,omitempty"`
	Yaw     *float64    `json:"yaw,omitempty"`
}

// Dispatch decodes one inbound payload and submits it to sink. Status
// messages are recognised but not submitted; the caller may keep them.
func Dispatch(payload []byte, sink InputSink) (InboundKind, error) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return KindUnknown, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}

	switch msg.Type {
	case KindFrame:
		f := joystick.Frame{Buttons: msg.Buttons, Axes: msg.Axes}
		if err := f.Validate(); err != nil {
			return KindFrame, err
		}
		sink.SubmitFrame(f)
	case KindDepth:
		if msg.Depth == nil || !isFinite(*msg.Depth) {
			return KindDepth, fmt.Errorf("depth message without a finite depth")
		}
		sink.SubmitDepth(*msg.Depth)
	case KindOrientation:
		if msg.Yaw == nil {
			return KindOrientation, fmt.Errorf("imu message without yaw")
		}
		o := Orientation{Yaw: *msg.Yaw}
		if msg.Roll != nil {
			o.Roll = *msg.Roll
		}
		if msg.Pitch != nil {
			o.Pitch = *msg.Pitch
		}
		if !isFinite(o.Roll) || !isFinite(o.Pitch) || !isFinite(o.Yaw) {
			return KindOrientation, fmt.Errorf("imu message with non-finite angle")
		}
		sink.SubmitOrientation(o)
	case KindStatus:
	default:
		return KindUnknown, fmt.Errorf("%w: type %q", ErrUnknownMessage, msg.Type)
	}
	return msg.Type, nil
}

// EncodeFrame renders f in the inbound wire format.
func EncodeFrame(f joystick.Frame) ([]byte, error) {
	return json.Marshal(inboundMessage{Type: KindFrame, Buttons: f.Buttons, Axes: f.Axes})
}

// EncodeDepth renders a depth reading in the inbound wire format.
func EncodeDepth(depth float64) ([]byte, error) {
	return json.Marshal(inboundMessage{Type: KindDepth, Depth: &depth})
}

// EncodeOrientation renders an attitude reading in the inbound wire format.
func EncodeOrientation(o Orientation) ([]byte, error) {
	return json.Marshal(inboundMessage{Type: KindOrientation, Roll: &o.Roll, Pitch: &o.Pitch, Yaw: &o.Yaw})
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
