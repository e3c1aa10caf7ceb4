// Package aggregate folds the events of one completed partition into a
// snapshot of per-actor and per-entity metrics.
//
// Compute is pure: it reads no storage and depends only on its inputs, so the
// same partition always produces the same snapshot.
package aggregate

import "time"

// Snapshot is the immutable aggregation of one completed partition.
// Every numeric field is an exact integer sum. TotalMatches counts live and
// legacy match ids separately.
type Snapshot struct {
	PartitionID            int64           `json:"partitionId"`
	TriggerType            string          `json:"triggerType"`
	StartTime              time.Time       `json:"startTime"`
	EndTime                time.Time       `json:"endTime"`
	DurationMs             int64           `json:"durationMs"`
	ActorMetrics           []ActorMetrics  `json:"actorMetrics"`
	EntityMetrics          []EntityMetrics `json:"entityMetrics"`
	StepDurations          []StepDuration  `json:"stepDurations"`
	SkippedMatches         []SkippedMatch  `json:"skippedMatches"`
	TotalMatches           int64           `json:"totalMatches"`
	TotalCurrencyMoved     int64           `json:"totalCurrencyMoved"`
	TotalReputationAwarded int64           `json:"totalReputationAwarded"`
	CreatedAt              time.Time       `json:"createdAt"`
}

// ActorMetrics is the economic summary of one actor (stable owner).
type ActorMetrics struct {
	ActorID             int64 `json:"actorId"`
	MatchesPlayed       int64 `json:"matchesPlayed"`
	CreditsEarned       int64 `json:"creditsEarned"`
	ReputationEarned    int64 `json:"reputationEarned"`
	MerchandisingIncome int64 `json:"merchandisingIncome"`
	StreamingIncome     int64 `json:"streamingIncome"`
	TotalIncome         int64 `json:"totalIncome"`
	RepairCosts         int64 `json:"repairCosts"`
	OperatingCosts      int64 `json:"operatingCosts"`
	EquipmentPurchases  int64 `json:"equipmentPurchases"`
	FacilityPurchases   int64 `json:"facilityPurchases"`
	EntityPurchases     int64 `json:"entityPurchases"`
	AttributeUpgrades   int64 `json:"attributeUpgrades"`
	TotalPurchases      int64 `json:"totalPurchases"`
	NetProfit           int64 `json:"netProfit"`
}

// EntityMetrics is the combat summary of one entity.
type EntityMetrics struct {
	EntityID         int64 `json:"entityId"`
	ActorID          int64 `json:"actorId"`
	MatchesPlayed    int64 `json:"matchesPlayed"`
	Wins             int64 `json:"wins"`
	Losses           int64 `json:"losses"`
	Draws            int64 `json:"draws"`
	DamageDealt      int64 `json:"damageDealt"`
	DamageReceived   int64 `json:"damageReceived"`
	CreditsEarned    int64 `json:"creditsEarned"`
	ReputationEarned int64 `json:"reputationEarned"`
	Kills            int64 `json:"kills"`
}

// StepDuration is the timing of one processing step of the cycle.
type StepDuration struct {
	Step           string `json:"step"`
	StepNumber     int    `json:"stepNumber"`
	DurationMs     int64  `json:"durationMs"`
	SequenceNumber int64  `json:"sequenceNumber"`
}

// SkippedMatch is a match left out of the opponent cross-reference.
type SkippedMatch struct {
	MatchID      int64  `json:"matchId"`
	Legacy       bool   `json:"legacy,omitempty"`
	Participants int    `json:"participants"`
	Reason       string `json:"reason"`
}

// Skip reasons.
const (
	ReasonParticipantCount = "unsupported participant count"
	ReasonUnresolved       = "unresolved opponent"
)
