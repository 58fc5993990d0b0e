package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	ready := StateReady
	failed := StateFailed
	notFound := LoadNotFound
	seq3 := uint64(3)
	moved := LatentVector{X: 1, Y: 2}
	grid := DefaultShape

	tests := []struct {
		name     string
		old      *Snapshot
		new      *Snapshot
		wantDiff *SnapshotDiff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &Snapshot{
				Status: Status{State: StateReady},
				Latent: moved,
				Seq:    3,
				Shape:  grid,
			},
			wantDiff: &SnapshotDiff{State: &ready, Latent: &moved, Seq: &seq3, Shape: &grid},
		},
		{
			name:     "No Changes",
			old:      &Snapshot{Status: Status{State: StateReady}, Seq: 3, Shape: grid},
			new:      &Snapshot{Status: Status{State: StateReady}, Seq: 3, Shape: grid},
			wantDiff: nil,
		},
		{
			name:     "Load Failure",
			old:      &Snapshot{Status: Status{State: StateLoading}, Shape: grid},
			new:      &Snapshot{Status: Status{State: StateFailed, Reason: LoadNotFound}, Shape: grid},
			wantDiff: &SnapshotDiff{State: &failed, Reason: &notFound},
		},
		{
			name:     "New Frame",
			old:      &Snapshot{Status: Status{State: StateReady}, Seq: 2, Shape: grid},
			new:      &Snapshot{Status: Status{State: StateReady}, Seq: 3, Latent: moved, Shape: grid},
			wantDiff: &SnapshotDiff{Latent: &moved, Seq: &seq3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.wantDiff) {
				gotJSON, _ := json.Marshal(got)
				wantJSON, _ := json.Marshal(tt.wantDiff)
				t.Errorf("Diff() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestDiff_JSONOmitsUnchanged(t *testing.T) {
	d := Diff(
		&Snapshot{Status: Status{State: StateReady}, Seq: 1},
		&Snapshot{Status: Status{State: StateReady}, Seq: 2},
	)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"seq":2`) {
		t.Errorf("expected seq in %s", b)
	}
	if strings.Contains(string(b), "state") || strings.Contains(string(b), "latent") {
		t.Errorf("unchanged fields leaked into %s", b)
	}
}
