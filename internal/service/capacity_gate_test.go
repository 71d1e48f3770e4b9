package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilingUsesRequiredJurors(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 7, f.gate.Ceiling(&model.Case{RequiredJurors: 7}))
	assert.Equal(t, 6, f.gate.Ceiling(&model.Case{RequiredJurors: 6}))
	assert.Equal(t, 7, f.gate.Ceiling(&model.Case{RequiredJurors: 12}))
	assert.Equal(t, 7, f.gate.Ceiling(&model.Case{}))
}

func TestCanApproveBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.approved(t, "2026-03-10", "10:00")
	f.seatJurors(t, c.ID, 5)

	one, err := f.gate.CanApprove(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, one.Allowed)
	assert.Equal(t, 2, one.SlotsRemaining)

	three, err := f.gate.CanApproveBatch(ctx, c.ID, 3)
	require.NoError(t, err)
	assert.False(t, three.Allowed)
	assert.Equal(t, 2, three.SlotsRemaining)
	assert.Equal(t, 5, three.Approved)
	assert.Equal(t, 7, three.Ceiling)

	_, err = f.gate.CanApproveBatch(ctx, c.ID, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.gate.CanApprove(ctx, 424242)
	assert.True(t, apperr.HasCode(err, apperr.CodeCaseNotFound))
}

func TestCanSubmitForTrial(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		seated  int
		allowed bool
	}{
		{seated: 0, allowed: false},
		{seated: 4, allowed: false},
		{seated: 5, allowed: true},
		{seated: 7, allowed: true},
	} {
		f := newFixture(t)
		c := f.approved(t, "2026-03-10", "10:00")
		f.seatJurors(t, c.ID, tt.seated)

		d, err := f.gate.CanSubmitForTrial(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.allowed, d.Allowed, "seated=%d", tt.seated)
		assert.Equal(t, tt.seated, d.Approved)
		if !tt.allowed {
			assert.Equal(t, apperr.CodeInsufficientJurors, d.Code)
			assert.NotEmpty(t, d.Reason)
		}
	}
}
