package event

import "time"

// Type identifies an event kind.
type Type string

// Marker types delimit a partition.
const (
	TypeCycleStart    Type = "cycle_start"
	TypeCycleComplete Type = "cycle_complete"
)

// Timing, outcome, and economy types.
const (
	TypeStepComplete       Type = "cycle_step_complete"
	TypeMatchOutcome       Type = "match_outcome"
	TypeMatchCompleted     Type = "match_completed"
	TypePassiveIncome      Type = "passive_income"
	TypeOperatingCosts     Type = "operating_costs"
	TypeEquipmentPurchased Type = "equipment_purchased"
	TypeFacilityPurchased  Type = "facility_purchased"
	TypeEntityPurchased    Type = "entity_purchased"
	TypeAttributeUpgraded  Type = "attribute_upgraded"
)

// Types lists every known type in a stable order.
var Types = []Type{
	TypeCycleStart,
	TypeCycleComplete,
	TypeStepComplete,
	TypeMatchOutcome,
	TypeMatchCompleted,
	TypePassiveIncome,
	TypeOperatingCosts,
	TypeEquipmentPurchased,
	TypeFacilityPurchased,
	TypeEntityPurchased,
	TypeAttributeUpgraded,
}

// Known reports whether t is one of Types.
func (t Type) Known() bool {
	_, ok := registry[t]
	return ok
}

// IsMarker reports whether t is a partition boundary marker.
func (t Type) IsMarker() bool {
	return t == TypeCycleStart || t == TypeCycleComplete
}

// Event is one immutable row of the cycle log.
//
// ActorID, EntityID and MatchID are optional references; zero means absent.
type Event struct {
	ID          string
	PartitionID int64
	Type        Type
	Sequence    int64
	Timestamp   time.Time
	ActorID     int64
	EntityID    int64
	MatchID     int64
	Payload     Payload
	Metadata    Metadata
}

// Payload is implemented by every event payload struct.
type Payload interface {
	EventType() Type
}

// Result is the explicit outcome tag of one match participant.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// CycleStart opens a partition.
type CycleStart struct {
	TriggerType string `json:"triggerType"`
}

// CycleComplete closes a partition.
type CycleComplete struct {
	TotalSteps int `json:"totalSteps"`
}

// StepComplete records the wall time spent in one cycle step.
type StepComplete struct {
	Step       string `json:"step"`
	StepNumber int    `json:"stepNumber"`
	DurationMs int64  `json:"durationMs"`
}

// MatchOutcome is one participant's view of a finished match.
// OpponentEntityID is required for four-participant matches only.
type MatchOutcome struct {
	Result           Result `json:"result"`
	MatchType        string `json:"matchType"`
	Team             int    `json:"team"`
	OpponentEntityID int64  `json:"opponentEntityId"`
	DamageDealt      int64  `json:"damageDealt"`
	CreditsEarned    int64  `json:"creditsEarned"`
	ReputationEarned int64  `json:"reputationEarned"`
	RepairCost       int64  `json:"repairCost"`
	Destroyed        bool   `json:"destroyed"`
}

// Participant is a MatchOutcome bound to its owner and entity.
type Participant struct {
	ActorID  int64 `json:"actorId"`
	EntityID int64 `json:"entityId"`
	MatchOutcome
}

// MatchCompleted summarizes a whole match in one event. Backfilled legacy
// matches use this form.
type MatchCompleted struct {
	LegacyMatchID int64         `json:"legacyMatchId"`
	MatchType     string        `json:"matchType"`
	Participants  []Participant `json:"participants"`
}

// MaxAmount is the largest monetary amount, damage or duration a payload
// may carry (2^53-1).
const MaxAmount int64 = 1<<53 - 1

// PassiveIncome is income earned outside of matches.
type PassiveIncome struct {
	Merchandising int64 `json:"merchandising"`
	Streaming     int64 `json:"streaming"`
}

// CostItem is one line of an operating cost breakdown.
type CostItem struct {
	Facility string `json:"facility"`
	Cost     int64  `json:"cost"`
}

// OperatingCosts is the upkeep charged to an actor for a cycle.
type OperatingCosts struct {
	TotalCost int64      `json:"totalCost"`
	Breakdown []CostItem `json:"breakdown"`
}

// EquipmentPurchased records a purchase of equipment.
type EquipmentPurchased struct {
	ItemName string `json:"itemName"`
	Cost     int64  `json:"cost"`
}

// FacilityPurchased records a facility purchase or level-up.
type FacilityPurchased struct {
	FacilityType string `json:"facilityType"`
	Level        int    `json:"level"`
	Cost         int64  `json:"cost"`
}

// EntityPurchased records the acquisition of a new competing entity.
type EntityPurchased struct {
	EntityName string `json:"entityName"`
	Cost       int64  `json:"cost"`
}

// AttributeUpgraded records an attribute upgrade on an entity.
type AttributeUpgraded struct {
	Attribute string `json:"attribute"`
	FromLevel int    `json:"fromLevel"`
	ToLevel   int    `json:"toLevel"`
	Cost      int64  `json:"cost"`
}

func (CycleStart) EventType() Type         { return TypeCycleStart }
func (CycleComplete) EventType() Type      { return TypeCycleComplete }
func (StepComplete) EventType() Type       { return TypeStepComplete }
func (MatchOutcome) EventType() Type       { return TypeMatchOutcome }
func (MatchCompleted) EventType() Type     { return TypeMatchCompleted }
func (PassiveIncome) EventType() Type      { return TypePassiveIncome }
func (OperatingCosts) EventType() Type     { return TypeOperatingCosts }
func (EquipmentPurchased) EventType() Type { return TypeEquipmentPurchased }
func (FacilityPurchased) EventType() Type  { return TypeFacilityPurchased }
func (EntityPurchased) EventType() Type    { return TypeEntityPurchased }
func (AttributeUpgraded) EventType() Type  { return TypeAttributeUpgraded }
