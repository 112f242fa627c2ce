package domain

import (
	"testing"
)

func TestNewPriority(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    Priority
		wantErr bool
	}{
		{name: "valid P0", value: "P0", want: PriorityP0},
		{name: "valid P1", value: "P1", want: PriorityP1},
		{name: "valid P2", value: "P2", want: PriorityP2},
		{name: "invalid P3", value: "P3", wantErr: true},
		{name: "invalid lowercase", value: "p0", wantErr: true},
		{name: "invalid empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPriority(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPriority() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("NewPriority() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriority_Rank(t *testing.T) {
	if !(PriorityP0.Rank() < PriorityP1.Rank() && PriorityP1.Rank() < PriorityP2.Rank()) {
		t.Error("priority ranks must order P0 < P1 < P2")
	}
	if !PriorityP0.IsHigherThan(PriorityP2) {
		t.Error("P0 should be higher than P2")
	}
}

func TestNewEstimate(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantPoints int
		wantErr    bool
	}{
		{name: "small", value: "S", wantPoints: 1},
		{name: "medium", value: "M", wantPoints: 2},
		{name: "large", value: "L", wantPoints: 4},
		{name: "invalid XL", value: "XL", wantErr: true},
		{name: "invalid lowercase", value: "s", wantErr: true},
		{name: "invalid empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEstimate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEstimate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Points() != tt.wantPoints {
				t.Errorf("Points() = %d, want %d", got.Points(), tt.wantPoints)
			}
		})
	}
}

func TestReleaseTarget_Rank(t *testing.T) {
	order := []ReleaseTarget{ReleaseMVP, ReleaseV1, ReleaseFull, ReleaseLater}
	for i := 1; i < len(order); i++ {
		if !(order[i-1].Rank() < order[i].Rank()) {
			t.Errorf("release rank order broken at %s >= %s", order[i-1], order[i])
		}
	}
	if _, err := NewReleaseTarget("V2"); err == nil {
		t.Error("NewReleaseTarget(V2) expected error")
	}
	if _, err := NewReleaseTarget("MVP"); err != nil {
		t.Errorf("NewReleaseTarget(MVP) unexpected error: %v", err)
	}
}
