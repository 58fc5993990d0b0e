package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// State is set when the load state changed.
	State *LoadState `json:"state,omitempty"`

	// Reason is set when a failure reason appeared.
	Reason *LoadErrorKind `json:"reason,omitempty"`

	// Latent is set when the current latent coordinate moved.
	Latent *LatentVector `json:"latent,omitempty"`

	// Seq is set when a newer frame became current.
	Seq *uint64 `json:"seq,omitempty"`

	// Shape is set when the output grid changed (blank grid -> model grid).
	Shape *Shape `json:"shape,omitempty"`
}

// Empty reports whether the diff carries no change.
func (d *SnapshotDiff) Empty() bool {
	return d == nil || (d.State == nil && d.Reason == nil && d.Latent == nil && d.Seq == nil && d.Shape == nil)
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}
	d := &SnapshotDiff{}
	if oldSnap == nil {
		state, latent, seq, shape := newSnap.Status.State, newSnap.Latent, newSnap.Seq, newSnap.Shape
		d.State, d.Latent, d.Seq, d.Shape = &state, &latent, &seq, &shape
		if newSnap.Status.Reason != "" {
			reason := newSnap.Status.Reason
			d.Reason = &reason
		}
		return d
	}

	if oldSnap.Status.State != newSnap.Status.State {
		state := newSnap.Status.State
		d.State = &state
	}
	if oldSnap.Status.Reason != newSnap.Status.Reason && newSnap.Status.Reason != "" {
		reason := newSnap.Status.Reason
		d.Reason = &reason
	}
	if oldSnap.Latent != newSnap.Latent {
		latent := newSnap.Latent
		d.Latent = &latent
	}
	if oldSnap.Seq != newSnap.Seq {
		seq := newSnap.Seq
		d.Seq = &seq
	}
	if oldSnap.Shape != newSnap.Shape {
		shape := newSnap.Shape
		d.Shape = &shape
	}

	if d.Empty() {
		return nil
	}
	return d
}
