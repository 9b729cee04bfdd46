package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventConfigApplied       EventType = "CONFIG_APPLIED"
	EventLevelsInitialized   EventType = "LEVELS_INITIALIZED"
	EventLevelExecuted       EventType = "LEVEL_EXECUTED"
	EventDeposit             EventType = "DEPOSIT"
	EventWithdrawal          EventType = "WITHDRAWAL"
	EventEmergencyWithdrawal EventType = "EMERGENCY_WITHDRAWAL"
	EventOwnershipTransfer   EventType = "OWNERSHIP_TRANSFERRED"
	EventPaused              EventType = "PAUSED"
	EventUnpaused            EventType = "UNPAUSED"
	EventLevelAdmin          EventType = "LEVEL_ADMIN"
)

// Event is a state-change notification emitted by the engine.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`

	// LevelExecuted fields, set for EventLevelExecuted only.
	LevelIndex int             `json:"level_index,omitempty"`
	Side       Side            `json:"side,omitempty"`
	AmountIn   decimal.Decimal `json:"amount_in,omitempty"`
	AmountOut  decimal.Decimal `json:"amount_out,omitempty"`

	// Free-form detail, e.g. the new owner or the admin action taken.
	Detail string `json:"detail,omitempty"`
}
