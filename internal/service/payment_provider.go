package service

import (
	"context"
	"time"
)

// PaymentProvider confirms whether money actually moved for a session.
type PaymentProvider interface {
	VerifyTransaction(ctx context.Context, sessionID string) (bool, error)
}

// SimulatedProvider approves every transaction after a fixed delay. It stands in for a real
// gateway in development and tests.
type SimulatedProvider struct {
	delay   time.Duration
	approve func(sessionID string) bool
}

// NewSimulatedProvider returns a provider that approves everything after delay.
func NewSimulatedProvider(delay time.Duration) *SimulatedProvider {
	return &SimulatedProvider{delay: delay}
}

// WithDecision overrides the approval decision per session.
func (p *SimulatedProvider) WithDecision(approve func(sessionID string) bool) *SimulatedProvider {
	p.approve = approve
	return p
}

// VerifyTransaction waits for the configured delay or for ctx to end, whichever comes first.
func (p *SimulatedProvider) VerifyTransaction(ctx context.Context, sessionID string) (bool, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	if p.approve != nil {
		return p.approve(sessionID), nil
	}
	return true, nil
}
