package domain

// LoadState is the lifecycle of the decoder model inside the controller.
type LoadState string

const (
	StateUninitialized LoadState = "uninitialized" // Controller constructed, nothing fetched
	StateLoading       LoadState = "loading"       // Artifact fetch/parse in progress
	StateReady         LoadState = "ready"         // Decoder loaded, interactions decode
	StateFailed        LoadState = "failed"        // Load failed; interactions are inert
)

// Terminal reports whether no further transition can leave the state.
func (s LoadState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// There is no path back to Loading: a model is loaded at most once.
func (s LoadState) CanTransition(next LoadState) bool {
	switch s {
	case StateUninitialized:
		return next == StateLoading
	case StateLoading:
		return next == StateReady || next == StateFailed
	}
	return false
}

// Status is a LoadState together with the failure that caused StateFailed.
type Status struct {
	State LoadState `json:"state"`

	// Reason is the failure kind when State is StateFailed.
	Reason LoadErrorKind `json:"reason,omitempty"`

	// Err is the underlying failure when State is StateFailed.
	Err error `json:"-"`
}

// Ready reports whether decodes are served by the model.
func (s Status) Ready() bool {
	return s.State == StateReady
}

// Snapshot is what a view can observe of the controller at one instant.
type Snapshot struct {
	Status Status       `json:"status"`
	Latent LatentVector `json:"latent"`
	Seq    uint64       `json:"seq"`
	Shape  Shape        `json:"shape"`
}
