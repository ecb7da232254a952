package protocol

import (
	"errors"
	"math"
	"testing"
)

func TestAddSize(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		parts   []int
		want    int
		wantErr error
	}{
		{name: "empty", total: 5, want: 5},
		{name: "sum", total: 1, parts: []int{2, 3}, want: 6},
		{name: "at_max", total: math.MaxInt - 1, parts: []int{1}, want: math.MaxInt},
		{name: "overflow", total: math.MaxInt, parts: []int{1}, wantErr: ErrSizeOverflow},
		{name: "overflow_later_part", total: 0, parts: []int{math.MaxInt, 0, 1}, wantErr: ErrSizeOverflow},
		{name: "negative_part", total: 10, parts: []int{-1}, wantErr: ErrSizeOverflow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := addSize(tc.total, tc.parts...)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("addSize() error = %v, want %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Errorf("addSize() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMessageLimitsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   MessageLimits
		want MessageLimits
	}{
		{
			name: "zero_uses_defaults",
			in:   MessageLimits{},
			want: DefaultMessageLimits(),
		},
		{
			name: "clamped_to_hard_max",
			in:   MessageLimits{InitialSize: 1, GrowthStep: 1, ChunkSize: 1, MaxSize: HardMaxMessageSize + 1},
			want: MessageLimits{InitialSize: 1, GrowthStep: 1, ChunkSize: 1, MaxSize: HardMaxMessageSize},
		},
		{
			name: "initial_above_max",
			in:   MessageLimits{InitialSize: 4096, MaxSize: 2048},
			want: MessageLimits{InitialSize: 2048, GrowthStep: DefaultGrowthStep, ChunkSize: DefaultChunkSize, MaxSize: 2048},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.normalize(); got != tc.want {
				t.Errorf("normalize() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
