package rowerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{name: "nil", err: nil, fatal: false},
		{name: "structural", err: Structural(3, 2), fatal: true},
		{name: "missing field", err: MissingField("evidence_code"), fatal: true},
		{name: "unresolvable", err: Unresolvable("gene", "---"), fatal: false},
		{name: "conflict", err: Conflict("symbol", "ACT1", "ACT2"), fatal: false},
		{name: "wrapped unresolvable", err: fmt.Errorf("row: %w", Unresolvable("gene", "")), fatal: false},
		{name: "foreign error", err: errors.New("connection reset"), fatal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Structural(8, 5)
	assert.Equal(t, "structural_input: expected at least 8 fields, got 5", err.Error())

	stamped := AtLine(err, "complementation", 12)
	assert.Equal(t, "structural_input at source 'complementation', line 12: expected at least 8 fields, got 5", stamped.Error())
}

func TestAtLine_KeepsExistingLocation(t *testing.T) {
	err := &Error{Kind: KindUnresolvable, Source: "a", Line: 3, Message: "x"}
	AtLine(err, "b", 9)

	assert.Equal(t, "a", err.Source)
	assert.Equal(t, 3, err.Line)
}

func TestJoin(t *testing.T) {
	t.Run("all nil", func(t *testing.T) {
		assert.NoError(t, Join(nil, nil))
	})

	t.Run("fatal wins", func(t *testing.T) {
		fatal := MissingField("evidence_code")
		err := Join(Unresolvable("gene", "x"), fatal)
		assert.Same(t, fatal, err)
	})

	t.Run("recoverable errors stay recoverable", func(t *testing.T) {
		err := Join(Unresolvable("gene", "x"), Unresolvable("homologue", "y"))
		require.Error(t, err)
		assert.False(t, IsFatal(err))
		assert.Equal(t, KindUnresolvable, KindOf(err))
	})
}
