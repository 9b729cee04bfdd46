package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LevelStatus is the per-level outcome inside one grid invocation.
type LevelStatus string

const (
	LevelExecuted LevelStatus = "EXECUTED"
	LevelSkipped  LevelStatus = "SKIPPED" // trigger or cooldown not satisfied
	LevelFailed   LevelStatus = "FAILED"  // swap attempted and rejected
)

// LevelOutcome records what happened to a single level during one
// invocation. Failures are isolated: one level's outcome never affects
// its siblings.
type LevelOutcome struct {
	Index     int             `json:"index"`
	Side      Side            `json:"side"`
	Status    LevelStatus     `json:"status"`
	Reason    string          `json:"reason,omitempty"` // skip/failure reason
	AmountIn  decimal.Decimal `json:"amount_in,omitempty"`
	AmountOut decimal.Decimal `json:"amount_out,omitempty"`
}

// ExecutionReport summarizes one ExecuteGrid or PerformUpkeep invocation.
// It never silently drops information about failed levels.
type ExecutionReport struct {
	ID       string          `json:"id"`
	At       time.Time       `json:"at"`
	Price    decimal.Decimal `json:"price"`
	Outcomes []LevelOutcome  `json:"outcomes"`
	Executed int             `json:"executed"`
	Failed   int             `json:"failed"`
}

// ExecutionRecord is the persisted form of a single executed level.
type ExecutionRecord struct {
	ID         string
	ReportID   string
	LevelIndex int
	Side       Side
	Price      decimal.Decimal
	AmountIn   decimal.Decimal
	AmountOut  decimal.Decimal
	CreatedAt  time.Time
}
