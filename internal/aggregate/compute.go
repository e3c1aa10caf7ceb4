package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/cyclelog/internal/event"
)

// ErrOverflow is returned by Compute when a sum leaves the int64 range.
var ErrOverflow = errors.New("aggregate overflows int64")

// participant is one side of a match, whichever event kind it came from.
type participant struct {
	actorID  int64
	entityID int64
	event.MatchOutcome
}

// matchKey separates live match ids from legacy ones; the two are
// numbered independently and may collide.
type matchKey struct {
	id     int64
	legacy bool
}

type fold struct {
	actors   map[int64]*ActorMetrics
	entities map[int64]*EntityMetrics
	matches  map[matchKey][]participant
	steps    []StepDuration
	currency int64
	rep      int64
	err      error
}

// add accumulates v into *dst, recording the first overflow.
func (f *fold) add(dst *int64, v int64, what string) {
	sum := *dst + v
	if (v > 0 && sum < *dst) || (v < 0 && sum > *dst) {
		if f.err == nil {
			f.err = fmt.Errorf("%s: %w", what, ErrOverflow)
		}
		return
	}
	*dst = sum
}

// Compute aggregates events of partitionID between the start and complete
// markers. Markers inside events are ignored; the remaining events are folded
// in sequence order. Every sum is exact; an error wrapping ErrOverflow is
// returned instead of a wrapped total.
func Compute(partitionID int64, start, complete event.Event, events []event.Event) (Snapshot, error) {
	f := &fold{
		actors:   make(map[int64]*ActorMetrics),
		entities: make(map[int64]*EntityMetrics),
		matches:  make(map[matchKey][]participant),
	}

	ordered := make([]event.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})
	for _, e := range ordered {
		f.apply(e)
	}

	snap := Snapshot{
		PartitionID:    partitionID,
		StartTime:      start.Timestamp,
		EndTime:        complete.Timestamp,
		DurationMs:     complete.Timestamp.Sub(start.Timestamp).Milliseconds(),
		StepDurations:  f.steps,
		SkippedMatches: f.crossReference(),
	}
	if cs, ok := start.Payload.(event.CycleStart); ok {
		snap.TriggerType = cs.TriggerType
	}

	snap.ActorMetrics = make([]ActorMetrics, 0, len(f.actors))
	for _, a := range f.actors {
		for _, v := range []int64{a.EquipmentPurchases, a.FacilityPurchases, a.EntityPurchases, a.AttributeUpgrades} {
			f.add(&a.TotalPurchases, v, "totalPurchases")
		}
		for _, v := range []int64{a.CreditsEarned, a.MerchandisingIncome, a.StreamingIncome} {
			f.add(&a.TotalIncome, v, "totalIncome")
		}
		var spent int64
		for _, v := range []int64{a.RepairCosts, a.OperatingCosts, a.TotalPurchases} {
			f.add(&spent, v, "netProfit")
		}
		a.NetProfit = a.TotalIncome
		f.add(&a.NetProfit, -spent, "netProfit")
		snap.ActorMetrics = append(snap.ActorMetrics, *a)
	}
	if f.err != nil {
		return Snapshot{}, fmt.Errorf("partition %d: %w", partitionID, f.err)
	}
	sort.Slice(snap.ActorMetrics, func(i, j int) bool {
		return snap.ActorMetrics[i].ActorID < snap.ActorMetrics[j].ActorID
	})

	snap.EntityMetrics = make([]EntityMetrics, 0, len(f.entities))
	for _, m := range f.entities {
		snap.EntityMetrics = append(snap.EntityMetrics, *m)
	}
	sort.Slice(snap.EntityMetrics, func(i, j int) bool {
		return snap.EntityMetrics[i].EntityID < snap.EntityMetrics[j].EntityID
	})

	if snap.StepDurations == nil {
		snap.StepDurations = []StepDuration{}
	}
	snap.TotalMatches = int64(len(f.matches))
	snap.TotalCurrencyMoved = f.currency
	snap.TotalReputationAwarded = f.rep
	return snap, nil
}

func (f *fold) actor(id int64) *ActorMetrics {
	a, ok := f.actors[id]
	if !ok {
		a = &ActorMetrics{ActorID: id}
		f.actors[id] = a
	}
	return a
}

func (f *fold) entity(id, actorID int64) *EntityMetrics {
	m, ok := f.entities[id]
	if !ok {
		m = &EntityMetrics{EntityID: id}
		f.entities[id] = m
	}
	if actorID != 0 {
		m.ActorID = actorID
	}
	return m
}

func (f *fold) apply(e event.Event) {
	switch p := e.Payload.(type) {
	case event.MatchOutcome:
		f.outcome(matchKey{id: e.MatchID}, participant{actorID: e.ActorID, entityID: e.EntityID, MatchOutcome: p})
	case event.MatchCompleted:
		key := matchKey{id: e.MatchID, legacy: true}
		if key.id == 0 {
			key.id = p.LegacyMatchID
		}
		for _, mp := range p.Participants {
			f.outcome(key, participant{actorID: mp.ActorID, entityID: mp.EntityID, MatchOutcome: mp.MatchOutcome})
		}
	case event.PassiveIncome:
		a := f.actor(e.ActorID)
		f.add(&a.MerchandisingIncome, p.Merchandising, "merchandisingIncome")
		f.add(&a.StreamingIncome, p.Streaming, "streamingIncome")
		f.add(&f.currency, p.Merchandising, "totalCurrencyMoved")
		f.add(&f.currency, p.Streaming, "totalCurrencyMoved")
	case event.OperatingCosts:
		f.add(&f.actor(e.ActorID).OperatingCosts, p.TotalCost, "operatingCosts")
		f.add(&f.currency, p.TotalCost, "totalCurrencyMoved")
	case event.EquipmentPurchased:
		f.add(&f.actor(e.ActorID).EquipmentPurchases, p.Cost, "equipmentPurchases")
		f.add(&f.currency, p.Cost, "totalCurrencyMoved")
	case event.FacilityPurchased:
		f.add(&f.actor(e.ActorID).FacilityPurchases, p.Cost, "facilityPurchases")
		f.add(&f.currency, p.Cost, "totalCurrencyMoved")
	case event.EntityPurchased:
		f.add(&f.actor(e.ActorID).EntityPurchases, p.Cost, "entityPurchases")
		f.add(&f.currency, p.Cost, "totalCurrencyMoved")
	case event.AttributeUpgraded:
		f.add(&f.actor(e.ActorID).AttributeUpgrades, p.Cost, "attributeUpgrades")
		f.add(&f.currency, p.Cost, "totalCurrencyMoved")
	case event.StepComplete:
		f.steps = append(f.steps, StepDuration{
			Step:           p.Step,
			StepNumber:     p.StepNumber,
			DurationMs:     p.DurationMs,
			SequenceNumber: e.Sequence,
		})
	}
}

func (f *fold) outcome(key matchKey, p participant) {
	a := f.actor(p.actorID)
	a.MatchesPlayed++
	f.add(&a.CreditsEarned, p.CreditsEarned, "creditsEarned")
	f.add(&a.ReputationEarned, p.ReputationEarned, "reputationEarned")
	f.add(&a.RepairCosts, p.RepairCost, "repairCosts")

	m := f.entity(p.entityID, p.actorID)
	m.MatchesPlayed++
	switch p.Result {
	case event.ResultWin:
		m.Wins++
	case event.ResultLoss:
		m.Losses++
	case event.ResultDraw:
		m.Draws++
	}
	f.add(&m.DamageDealt, p.DamageDealt, "damageDealt")
	f.add(&m.CreditsEarned, p.CreditsEarned, "creditsEarned")
	f.add(&m.ReputationEarned, p.ReputationEarned, "reputationEarned")

	f.add(&f.currency, p.CreditsEarned, "totalCurrencyMoved")
	f.add(&f.currency, p.RepairCost, "totalCurrencyMoved")
	f.add(&f.rep, p.ReputationEarned, "totalReputationAwarded")
	f.matches[key] = append(f.matches[key], p)
}

// crossReference credits damage received and kills between the participants
// of each match. Matches whose opponents cannot be resolved are returned as
// skipped, ordered by match id with live matches first.
func (f *fold) crossReference() []SkippedMatch {
	keys := make([]matchKey, 0, len(f.matches))
	for k := range f.matches {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}
		return !keys[i].legacy && keys[j].legacy
	})

	skipped := []SkippedMatch{}
	for _, k := range keys {
		ps := f.matches[k]
		opponents, reason := resolveOpponents(ps)
		if reason != "" {
			skipped = append(skipped, SkippedMatch{MatchID: k.id, Legacy: k.legacy, Participants: len(ps), Reason: reason})
			continue
		}
		for i, p := range ps {
			opp := f.entities[opponents[i]]
			f.add(&opp.DamageReceived, p.DamageDealt, "damageReceived")
			if p.Destroyed {
				opp.Kills++
			}
		}
	}
	return skipped
}

// resolveOpponents returns the opponent entity of every participant, or a
// skip reason.
func resolveOpponents(ps []participant) ([]int64, string) {
	switch len(ps) {
	case 2:
		if ps[0].entityID == ps[1].entityID {
			return nil, ReasonUnresolved
		}
		return []int64{ps[1].entityID, ps[0].entityID}, ""
	case 4:
		present := make(map[int64]bool, len(ps))
		for _, p := range ps {
			present[p.entityID] = true
		}
		opponents := make([]int64, len(ps))
		for i, p := range ps {
			if p.OpponentEntityID == p.entityID || !present[p.OpponentEntityID] {
				return nil, ReasonUnresolved
			}
			opponents[i] = p.OpponentEntityID
		}
		return opponents, ""
	default:
		return nil, ReasonParticipantCount
	}
}
