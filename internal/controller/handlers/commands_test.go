package handlers

import (
	"context"
	"testing"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLister struct {
	byAttorney map[int64][]*model.Case
	byJuror    map[int64][]*model.Case
}

func (s stubLister) ListForAttorney(_ context.Context, attorneyID int64) ([]*model.Case, error) {
	return s.byAttorney[attorneyID], nil
}

func (s stubLister) ListForJuror(_ context.Context, jurorID int64) ([]*model.Case, error) {
	return s.byJuror[jurorID], nil
}

func TestCasesForPicksListByRole(t *testing.T) {
	own := &model.Case{ID: 1, Title: "Own"}
	seated := &model.Case{ID: 2, Title: "Seated"}
	h := NewHandlers(nil, stubLister{
		byAttorney: map[int64][]*model.Case{10: {own}},
		byJuror:    map[int64][]*model.Case{20: {seated}},
	}, zap.NewNop())
	ctx := context.Background()

	cases, err := h.casesFor(ctx, &model.User{ID: 10, UserType: model.UserTypeAttorney})
	require.NoError(t, err)
	assert.Equal(t, []*model.Case{own}, cases)

	cases, err = h.casesFor(ctx, &model.User{ID: 20, UserType: model.UserTypeJuror})
	require.NoError(t, err)
	assert.Equal(t, []*model.Case{seated}, cases)

	_, err = h.casesFor(ctx, &model.User{ID: 30, UserType: model.UserTypeAdmin})
	assert.ErrorIs(t, err, errNoCaseList)
}
