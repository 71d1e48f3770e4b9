package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/config"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
)

type CapacityDecision struct {
	Allowed        bool `json:"allowed"`
	SlotsRemaining int  `json:"slotsRemaining"`
	Approved       int  `json:"approved"`
	Ceiling        int  `json:"ceiling"`
}

type SubmitDecision struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Code     string `json:"-"`
	Approved int    `json:"approved"`
}

// CapacityGate enforces juror headcount. It only reads; callers mutate.
type CapacityGate struct {
	cases        CaseStore
	applications ApplicationStore
	policy       config.Policy
}

func NewCapacityGate(cases CaseStore, applications ApplicationStore, policy config.Policy) *CapacityGate {
	return &CapacityGate{cases: cases, applications: applications, policy: policy}
}

// Ceiling is the case's juror cap: its required count bounded by the hard cap.
func (g *CapacityGate) Ceiling(c *model.Case) int {
	ceiling := g.policy.JurorCeiling
	if c.RequiredJurors > 0 && c.RequiredJurors < ceiling {
		ceiling = c.RequiredJurors
	}
	return ceiling
}

func (g *CapacityGate) CanApprove(ctx context.Context, caseID int64) (*CapacityDecision, error) {
	return g.CanApproveBatch(ctx, caseID, 1)
}

// CanApproveBatch allows n more approvals only if all of them fit.
func (g *CapacityGate) CanApproveBatch(ctx context.Context, caseID int64, n int) (*CapacityDecision, error) {
	if n <= 0 {
		return nil, apperr.Validation("batch size must be positive")
	}

	c, approved, err := g.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	ceiling := g.Ceiling(c)
	remaining := ceiling - approved
	if remaining < 0 {
		remaining = 0
	}

	return &CapacityDecision{
		Allowed:        approved+n <= ceiling,
		SlotsRemaining: remaining,
		Approved:       approved,
		Ceiling:        ceiling,
	}, nil
}

// CanSubmitForTrial requires the approved count within [floor, ceiling].
func (g *CapacityGate) CanSubmitForTrial(ctx context.Context, caseID int64) (*SubmitDecision, error) {
	_, approved, err := g.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	d := &SubmitDecision{Allowed: true, Approved: approved}
	switch {
	case approved < g.policy.JurorFloor:
		d.Allowed = false
		d.Code = apperr.CodeInsufficientJurors
		d.Reason = fmt.Sprintf("at least %d approved jurors are required, have %d", g.policy.JurorFloor, approved)
	case approved > g.policy.JurorCeiling:
		d.Allowed = false
		d.Code = apperr.CodeCapacityExceeded
		d.Reason = fmt.Sprintf("at most %d approved jurors are allowed, have %d", g.policy.JurorCeiling, approved)
	}
	return d, nil
}

func (g *CapacityGate) load(ctx context.Context, caseID int64) (*model.Case, int, error) {
	c, err := g.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, 0, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, 0, apperr.NotFound(apperr.CodeCaseNotFound, "case %d not found", caseID)
	}

	approved, err := g.applications.CountApproved(ctx, caseID)
	if err != nil {
		return nil, 0, fmt.Errorf("count approved applications: %w", err)
	}
	return c, approved, nil
}
