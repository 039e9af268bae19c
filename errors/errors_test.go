package errors_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/wasm-codegen/errors"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *errors.Error
		want []string // substrings that must appear
	}{
		{
			name: "unsupported op",
			err:  errors.Unsupported(errors.PhaseTranslate, "call_indirect"),
			want: []string{"[translate]", "unsupported", "call_indirect"},
		},
		{
			name: "contract violation",
			err:  errors.Contract(errors.PhaseHost, "type count changed from %d to %d", 3, 4),
			want: []string{"[host]", "contract_violation", "type count changed from 3 to 4"},
		},
		{
			name: "out of bounds",
			err:  errors.OutOfBounds(errors.PhaseValidate, "type", 9, 4),
			want: []string{"[validate]", "out_of_bounds", "type index 9", "length 4"},
		},
		{
			name: "cause chain",
			err:  errors.IO(errors.PhaseCache, "open store", stderrors.New("disk full")),
			want: []string{"[cache]", "io", "open store", "caused by: disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("error %q missing %q", got, w)
				}
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := errors.Unsupported(errors.PhaseTranslate, "memory.grow")

	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseTranslate, Kind: errors.KindUnsupported}) {
		t.Error("expected Is to match on phase+kind")
	}
	if stderrors.Is(err, &errors.Error{Phase: errors.PhaseCodegen, Kind: errors.KindUnsupported}) {
		t.Error("expected Is to reject different phase")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := errors.InvalidData(errors.PhaseTranslate, "truncated body", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected unwrap chain to reach cause")
	}
}

func TestBuilder(t *testing.T) {
	err := errors.New(errors.PhaseCodegen, errors.KindOverflow).
		Op("frame").
		Value(1 << 20).
		Detail("frame size %d exceeds %d", 1<<20, 1<<16).
		Build()

	if err.Phase != errors.PhaseCodegen || err.Kind != errors.KindOverflow {
		t.Fatalf("unexpected phase/kind: %v/%v", err.Phase, err.Kind)
	}
	if err.Op != "frame" {
		t.Errorf("op = %q", err.Op)
	}
	if !strings.Contains(err.Detail, "1048576") {
		t.Errorf("detail = %q", err.Detail)
	}
}
