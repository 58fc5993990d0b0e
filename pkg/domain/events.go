package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventDecode      EventType = "decode"
	EventDispose     EventType = "dispose"
	EventDiscard     EventType = "discard"
)

// DecodeSource tells where the pixels of a decode came from.
type DecodeSource string

const (
	SourceModel DecodeSource = "model" // forward pass through the decoder
	SourceCache DecodeSource = "cache" // frame cache hit
	SourceBlank DecodeSource = "blank" // model not ready, all-zero grid
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// StateEvent reports a load lifecycle transition.
type StateEvent struct {
	EventBase
	From LoadState `json:"from"`
	To   LoadState `json:"to"`
	Err  error     `json:"-"`
}

// DecodeEvent reports a finished decode.
type DecodeEvent struct {
	EventBase
	Latent   LatentVector  `json:"latent"`
	Source   DecodeSource  `json:"source"`
	Duration time.Duration `json:"duration"`
}

// BufferEvent reports a pixel buffer leaving the ledger, either disposed after
// being superseded or discarded because a newer request already won.
type BufferEvent struct {
	EventBase
	Seq    uint64       `json:"seq"`
	Latent LatentVector `json:"latent"`
}

// LifecycleHooks defines callbacks for controller observability.
// Hooks run synchronously on the goroutine that caused the event and must not
// call back into the controller.
type LifecycleHooks struct {
	OnStateChange func(context.Context, *StateEvent)
	OnDecode      func(context.Context, *DecodeEvent)
	OnDispose     func(context.Context, *BufferEvent)
	OnDiscard     func(context.Context, *BufferEvent)
}

// NewEventBase stamps an event of the given type with the current time.
func NewEventBase(t EventType) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t}
}

// ChainHooks returns hooks that invoke each of the given hooks in order.
func ChainHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *StateEvent) {
			for _, h := range all {
				if h.OnStateChange != nil {
					h.OnStateChange(ctx, e)
				}
			}
		},
		OnDecode: func(ctx context.Context, e *DecodeEvent) {
			for _, h := range all {
				if h.OnDecode != nil {
					h.OnDecode(ctx, e)
				}
			}
		},
		OnDispose: func(ctx context.Context, e *BufferEvent) {
			for _, h := range all {
				if h.OnDispose != nil {
					h.OnDispose(ctx, e)
				}
			}
		},
		OnDiscard: func(ctx context.Context, e *BufferEvent) {
			for _, h := range all {
				if h.OnDiscard != nil {
					h.OnDiscard(ctx, e)
				}
			}
		},
	}
}
