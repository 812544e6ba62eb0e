package button_events

import (
	"context"
	"errors"
)

type ButtonEvent int

const (
	Unknown ButtonEvent = iota
	Center
	CenterSound
	Plus
	Minus
)

func (e ButtonEvent) String() string {
	switch e {
	case Center:
		return "center"
	case CenterSound:
		return "center_sound"
	case Plus:
		return "plus"
	case Minus:
		return "minus"
	default:
		return "unknown"
	}
}

const (
	// ReportLength is the size of a raw report: report id, button id, reserved.
	ReportLength = 3

	IdleButtonID byte = 0
)

var buttonMapping = map[byte]ButtonEvent{
	140: Center,
	141: CenterSound,
	143: Plus,
	139: Minus,
}

// EventFor maps a hardware button id to its event.
func EventFor(buttonID byte) ButtonEvent {
	event, ok := buttonMapping[buttonID]
	if !ok {
		return Unknown
	}

	return event
}

var ErrHandlerPanic = errors.New("button handler panicked")

// Handler runs on a dispatcher worker. ctx is cancelled when the dispatcher closes.
type Handler func(ctx context.Context, event ButtonEvent) error

type HandlerID uint64

type Interface interface {
	RegisterCallback(event ButtonEvent, handler Handler) HandlerID
	UnregisterCallback(event ButtonEvent, id HandlerID) bool
	OnReport(report []byte)
	Close()
}
