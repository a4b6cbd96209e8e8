package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newRandomID generates a UUID-like unique suffix. No uuid library appears in
// the example pack's go.mod, so this is generated with crypto/rand directly
// (see DESIGN.md for the stdlib justification).
func newRandomID(prefix string) string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("domain: failed to read random bytes: %v", err))
	}
	return prefix + "_" + hex.EncodeToString(b[:])
}

// OrderId uniquely identifies an Order Aggregate across its lifetime.
type OrderId string

func NewOrderId() OrderId        { return OrderId(newRandomID("ord")) }
func OrderIdFromString(s string) OrderId { return OrderId(s) }
func (id OrderId) String() string { return string(id) }

// BrokerId is the broker's own identifier for an order, set exactly once on Accept.
type BrokerId string

func BrokerIdFromString(s string) BrokerId { return BrokerId(s) }
func (id BrokerId) String() string         { return string(id) }

// InstrumentId identifies a tradeable instrument (symbol-level identity).
type InstrumentId string

func InstrumentIdFromString(s string) InstrumentId { return InstrumentId(s) }
func (id InstrumentId) String() string             { return string(id) }

// DecisionId identifies a single Decision within a DecisionPlan.
type DecisionId string

func NewDecisionId() DecisionId            { return DecisionId(newRandomID("dec")) }
func DecisionIdFromString(s string) DecisionId { return DecisionId(s) }
func (id DecisionId) String() string       { return string(id) }

// PlanId identifies a DecisionPlan.
type PlanId string

func NewPlanId() PlanId                { return PlanId(newRandomID("plan")) }
func PlanIdFromString(s string) PlanId { return PlanId(s) }
func (id PlanId) String() string       { return string(id) }

// CycleId identifies a single strategy decision cycle (may span many plans).
type CycleId string

func NewCycleId() CycleId                { return CycleId(newRandomID("cyc")) }
func CycleIdFromString(s string) CycleId { return CycleId(s) }
func (id CycleId) String() string        { return string(id) }
