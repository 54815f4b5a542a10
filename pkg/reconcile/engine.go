// Package reconcile merges raw source observations into the consolidated
// entity state. It resolves conflicting attribute claims through a source
// authority table, guards the entity table against unregistered phantoms,
// folds retired filer codes into their survivors, and derives lifecycle
// events from activity transitions. The engine is pure with respect to
// storage: it consumes prior state and observations and produces a full
// replacement state, leaving persistence to the catalog.
package reconcile

import (
	"context"
	"sort"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/identity"
	"github.com/toriidata/filermap/pkg/logging"
)

// Options configures an Engine. Zero fields get defaults; Discoverer is
// optional and nil disables identifier discovery.
type Options struct {
	Authorities AuthorityProvider
	Guard       *Guard
	Bridge      *Bridge
	Discoverer  *Discoverer
	Logger      *zerolog.Logger
}

// Engine reconciles observation batches against committed entity state.
type Engine struct {
	authorities AuthorityProvider
	guard       *Guard
	bridge      *Bridge
	discoverer  *Discoverer
	logger      *zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	if opts.Authorities == nil {
		opts.Authorities = NewDefaultAuthorities()
	}
	if opts.Guard == nil {
		opts.Guard = NewGuard(nil)
	}
	if opts.Bridge == nil {
		opts.Bridge = NewBridge(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Engine{
		authorities: opts.Authorities,
		guard:       opts.Guard,
		bridge:      opts.Bridge,
		discoverer:  opts.Discoverer,
		logger:      opts.Logger,
	}
}

// workingSet indexes the mutable entity state during one batch.
type workingSet struct {
	entities    map[string]*entity.Entity // by Key()
	byFiler     map[string]string         // filer code -> key
	byCorporate map[string]string
	bySecurity  map[identity.Code]string
}

func newWorkingSet(prior []entity.Entity) *workingSet {
	ws := &workingSet{
		entities:    make(map[string]*entity.Entity, len(prior)),
		byFiler:     map[string]string{},
		byCorporate: map[string]string{},
		bySecurity:  map[identity.Code]string{},
	}
	for i := range prior {
		e := prior[i]
		ws.index(&e)
	}
	return ws
}

func (ws *workingSet) index(e *entity.Entity) {
	key := e.Key()
	ws.entities[key] = e
	if e.FilerCode != "" {
		ws.byFiler[e.FilerCode] = key
	}
	for _, former := range e.FormerFilerCodes {
		if _, taken := ws.byFiler[former]; !taken {
			ws.byFiler[former] = key
		}
	}
	if e.CorporateNumber != "" {
		ws.byCorporate[e.CorporateNumber] = key
	}
	if e.SecurityCode != identity.Absent {
		ws.bySecurity[e.SecurityCode] = key
	}
}

// lookup resolves an observation to an existing entity key, strongest
// identifier first.
func (ws *workingSet) lookup(obs *entity.Observation) (string, bool) {
	if obs.CorporateNumber != "" {
		if key, ok := ws.byCorporate[obs.CorporateNumber]; ok {
			return key, true
		}
	}
	if obs.FilerCode != "" {
		if key, ok := ws.byFiler[obs.FilerCode]; ok {
			return key, true
		}
	}
	if obs.SecurityCode != identity.Absent {
		if key, ok := ws.bySecurity[obs.SecurityCode]; ok {
			return key, true
		}
	}
	return "", false
}

// Reconcile merges one batch of observations into the prior entity state.
func (e *Engine) Reconcile(ctx context.Context, input Input) (*Result, error) {
	result := &Result{}
	ws := newWorkingSet(input.Entities)

	batch := input.Observations
	if len(input.Retried) > 0 {
		batch = make([]entity.Observation, 0, len(input.Observations)+len(input.Retried))
		batch = append(batch, input.Observations...)
		batch = append(batch, input.Retried...)
	}
	grouped, created, err := e.assign(ctx, ws, batch, result)
	if err != nil {
		return nil, err
	}

	for key, group := range grouped {
		target := ws.entities[key]
		changed := e.apply(target, group, result)
		if created[key] {
			result.Stats.Created++
		} else if changed {
			result.Stats.Updated++
		}
		// An identifier upgrade can move the entity to a stronger key.
		if newKey := target.Key(); newKey != key {
			delete(ws.entities, key)
		}
		ws.index(target)
	}

	if input.VenueSnapshot {
		e.applySnapshotAbsence(ws, input.Observations, result)
	}

	for _, ent := range ws.entities {
		result.Entities = append(result.Entities, *ent)
	}
	sort.Slice(result.Entities, func(i, j int) bool {
		return result.Entities[i].Key() < result.Entities[j].Key()
	})
	sortEvents(result.Events)
	return result, nil
}

// assign normalizes, bridges, discovers, and guards each observation, then
// groups the admitted ones by target entity key. New entities are indexed
// immediately so later observations in the same batch find them.
func (e *Engine) assign(ctx context.Context, ws *workingSet, observations []entity.Observation, result *Result) (map[string][]entity.Observation, map[string]bool, error) {
	grouped := map[string][]entity.Observation{}
	created := map[string]bool{}

	for i := range observations {
		obs := observations[i]
		obs.SecurityCode = identity.Normalize(string(obs.SecurityCode))

		var bridgedFrom string
		if obs.FilerCode != "" {
			if surviving, bridged := e.bridge.Resolve(obs.FilerCode); bridged {
				bridgedFrom = obs.FilerCode
				obs.FilerCode = surviving
				result.Stats.Bridged++
			}
		}

		key, found := ws.lookup(&obs)
		if !found && obs.FilerCode == "" && obs.CorporateNumber == "" {
			e.recoverIdentifiers(ctx, ws, &obs, result)
			key, found = ws.lookup(&obs)
		}

		if !found && !e.guard.Admit(&obs) {
			result.Pending = append(result.Pending, obs)
			result.Stats.Quarantined++
			e.logger.Debug().
				Str("security_code", string(obs.SecurityCode)).
				Str("name", obs.DisplayName).
				Msg("Quarantined observation without regulator identifiers")
			continue
		}

		if !found {
			fresh := &entity.Entity{
				CorporateNumber: obs.CorporateNumber,
				FilerCode:       obs.FilerCode,
				SecurityCode:    obs.SecurityCode,
			}
			key = fresh.Key()
			ws.index(fresh)
			created[key] = true
		}

		if bridgedFrom != "" {
			addFormerCode(ws.entities[key], bridgedFrom)
		}
		grouped[key] = append(grouped[key], obs)
	}
	return grouped, created, nil
}

// recoverIdentifiers fills regulator identifiers for a security-code-only
// observation: preferred-share classes inherit from their parent, then the
// discovery scan tries the recent disclosure lists.
func (e *Engine) recoverIdentifiers(ctx context.Context, ws *workingSet, obs *entity.Observation, result *Result) {
	if parent, ok := identity.ParentOf(obs.SecurityCode); ok {
		if key, exists := ws.bySecurity[parent]; exists {
			parentEntity := ws.entities[key]
			obs.FilerCode = parentEntity.FilerCode
			obs.CorporateNumber = parentEntity.CorporateNumber
			result.Stats.InheritedFromParent++
			return
		}
	}

	if e.discoverer == nil || obs.SecurityCode == identity.Absent {
		return
	}
	match, err := e.discoverer.Discover(ctx, obs.SecurityCode, obs.ObservedAt.Time)
	if err != nil {
		return
	}
	obs.FilerCode = match.FilerCode
	obs.CorporateNumber = match.CorporateNumber
	if obs.EvidenceRef == "" {
		obs.EvidenceRef = match.EvidenceDocID
	}
	result.Stats.Discovered++
}

// apply folds one entity's observations into it and records the derived
// lifecycle events. Returns whether anything changed.
func (e *Engine) apply(target *entity.Entity, group []entity.Observation, result *Result) bool {
	accepted := group[:0]
	for i := range group {
		if !target.LastConfirmedAt.IsZero() && group[i].ObservedAt.Before(target.LastConfirmedAt) {
			result.Stats.StaleRejected++
			e.logger.Debug().
				Str("entity", target.Key()).
				Time("observed_at", group[i].ObservedAt.Time).
				Time("last_confirmed_at", target.LastConfirmedAt.Time).
				Msg("Rejected stale observation")
			continue
		}
		accepted = append(accepted, group[i])
	}
	if len(accepted) == 0 {
		return false
	}

	changed := false
	before := *target

	changed = e.applyIdentity(target, accepted, result) || changed
	changed = e.applyFields(target, accepted) || changed
	changed = e.applyActivity(target, accepted, result) || changed
	e.deriveNameEvents(&before, target, accepted, result)

	for i := range accepted {
		if accepted[i].ObservedAt.After(target.LastConfirmedAt) {
			target.LastConfirmedAt = accepted[i].ObservedAt
			changed = true
		}
	}
	target.AssignShard()
	return changed
}

// applyIdentity handles the identifier fields with their change events.
func (e *Engine) applyIdentity(target *entity.Entity, accepted []entity.Observation, result *Result) bool {
	changed := false

	if value, obs := e.resolveString(FieldCorporateNumber, accepted, func(o *entity.Observation) string { return o.CorporateNumber }); value != "" {
		if target.CorporateNumber != "" && target.CorporateNumber != value {
			result.Stats.CorporateNumberChanges++
			e.logger.Warn().
				Str("entity", target.Key()).
				Str("old", target.CorporateNumber).
				Str("new", value).
				Str("evidence", obs.EvidenceRef).
				Msg("Corporate number changed for existing entity")
		}
		if target.CorporateNumber != value {
			target.CorporateNumber = value
			changed = true
		}
	}

	for i := range accepted {
		if accepted[i].FilerCode != "" && target.FilerCode == "" {
			target.FilerCode = accepted[i].FilerCode
			changed = true
		}
	}

	for i := range accepted {
		code := accepted[i].SecurityCode
		if code == identity.Absent || code == target.SecurityCode {
			continue
		}
		if parent, ok := identity.ParentOf(code); ok && parent == target.SecurityCode {
			// A share class observed against its parent does not reassign
			// the parent's code.
			continue
		}
		if target.SecurityCode != identity.Absent {
			result.Events = append(result.Events, entity.LifecycleEvent{
				EntityKey:   target.Key(),
				Kind:        entity.EventCodeChange,
				OccurredAt:  accepted[i].ObservedAt,
				EvidenceRef: accepted[i].EvidenceRef,
				OldValue:    string(target.SecurityCode),
				NewValue:    string(code),
			})
		}
		target.SecurityCode = code
		if parent, ok := identity.ParentOf(code); ok && target.ParentCode == identity.Absent {
			target.ParentCode = parent
		}
		changed = true
	}
	return changed
}

// applyFields resolves the descriptive attributes through the authority
// table.
func (e *Engine) applyFields(target *entity.Entity, accepted []entity.Observation) bool {
	changed := false
	fields := []struct {
		name string
		get  func(*entity.Observation) string
		dst  *string
	}{
		{FieldDisplayName, func(o *entity.Observation) string { return o.DisplayName }, &target.DisplayName},
		{FieldDisplayNameEn, func(o *entity.Observation) string { return o.DisplayNameEn }, &target.DisplayNameEn},
		{FieldSector, func(o *entity.Observation) string { return o.Sector }, &target.Sector},
		{FieldMarketSegment, func(o *entity.Observation) string { return o.MarketSegment }, &target.MarketSegment},
	}
	for _, f := range fields {
		if value, _ := e.resolveString(f.name, accepted, f.get); value != "" && value != *f.dst {
			*f.dst = value
			changed = true
		}
	}
	return changed
}

// resolveString picks the winning value for a field: the candidate from
// the highest-authority source, latest observation winning ties.
func (e *Engine) resolveString(field string, accepted []entity.Observation, get func(*entity.Observation) string) (string, *entity.Observation) {
	var present []entity.SourceKind
	for i := range accepted {
		if get(&accepted[i]) != "" {
			present = append(present, accepted[i].Source)
		}
	}
	if len(present) == 0 {
		return "", nil
	}
	auth := e.authorities.GetAuthority(field, present)
	if auth == nil {
		return "", nil
	}

	var winner *entity.Observation
	for i := range accepted {
		obs := &accepted[i]
		if obs.Source != auth.Source || get(obs) == "" {
			continue
		}
		if winner == nil || obs.ObservedAt.After(winner.ObservedAt) {
			winner = obs
		}
	}
	if winner == nil {
		return "", nil
	}
	return get(winner), winner
}

// applyActivity resolves the active flag and emits the listing lifecycle
// events for the transition.
func (e *Engine) applyActivity(target *entity.Entity, accepted []entity.Observation, result *Result) bool {
	var present []entity.SourceKind
	for i := range accepted {
		if !accepted[i].Active.IsUnknown() {
			present = append(present, accepted[i].Source)
		}
	}
	if len(present) == 0 {
		return false
	}
	auth := e.authorities.GetAuthority(FieldActive, present)
	if auth == nil {
		return false
	}

	var winner *entity.Observation
	for i := range accepted {
		obs := &accepted[i]
		if obs.Source != auth.Source || obs.Active.IsUnknown() {
			continue
		}
		if winner == nil || obs.ObservedAt.After(winner.ObservedAt) {
			winner = obs
		}
	}
	if winner == nil || winner.Active == target.IsActive {
		return false
	}

	prior := target.IsActive
	target.IsActive = winner.Active

	switch {
	case winner.Active.IsTrue() && prior.IsFalse():
		e.emitActivity(target, entity.EventRelisting, winner, result)
	case winner.Active.IsTrue() && prior.IsUnknown():
		kind := entity.EventListing
		if target.EverActive {
			kind = entity.EventRelisting
		}
		e.emitActivity(target, kind, winner, result)
	case winner.Active.IsFalse() && prior.IsTrue():
		e.emitActivity(target, entity.EventDelisting, winner, result)
	}
	if winner.Active.IsTrue() {
		target.EverActive = true
	}
	return true
}

func (e *Engine) emitActivity(target *entity.Entity, kind entity.EventKind, obs *entity.Observation, result *Result) {
	result.Events = append(result.Events, entity.LifecycleEvent{
		EntityKey:   target.Key(),
		Kind:        kind,
		OccurredAt:  obs.ObservedAt,
		EvidenceRef: obs.EvidenceRef,
	})
}

// deriveNameEvents compares display names before and after the batch. A
// brand-new name seeds the timeline with a synthetic initial event so every
// entity's history starts with what it was called.
func (e *Engine) deriveNameEvents(before, after *entity.Entity, accepted []entity.Observation, result *Result) {
	if after.DisplayName == "" || SameName(before.DisplayName, after.DisplayName) {
		return
	}
	if before.DisplayName != "" && NormalizeName(before.DisplayName) == "" {
		return
	}

	occurredAt := after.LastConfirmedAt
	var evidence string
	for i := range accepted {
		if accepted[i].DisplayName == after.DisplayName {
			occurredAt = accepted[i].ObservedAt
			evidence = accepted[i].EvidenceRef
			break
		}
	}
	result.Events = append(result.Events, entity.LifecycleEvent{
		EntityKey:   after.Key(),
		Kind:        entity.EventNameChange,
		OccurredAt:  occurredAt,
		EvidenceRef: evidence,
		OldValue:    before.DisplayName,
		NewValue:    after.DisplayName,
	})
}

// applySnapshotAbsence delists active listed entities missing from a full
// venue snapshot. Entities never confirmed active are left alone; absence
// can only end a listing, not invent one.
func (e *Engine) applySnapshotAbsence(ws *workingSet, observations []entity.Observation, result *Result) {
	present := map[identity.Code]bool{}
	var snapshotAt utc.Time
	for i := range observations {
		obs := &observations[i]
		if obs.Source != entity.SourceVenue {
			continue
		}
		present[identity.Normalize(string(obs.SecurityCode))] = true
		if obs.ObservedAt.After(snapshotAt) {
			snapshotAt = obs.ObservedAt
		}
	}
	if len(present) == 0 {
		return
	}

	for _, ent := range ws.entities {
		if !ent.IsActive.IsTrue() || ent.SecurityCode == identity.Absent || present[ent.SecurityCode] {
			continue
		}
		if ent.LastConfirmedAt.After(snapshotAt) {
			continue
		}
		ent.IsActive = entity.False
		ent.LastConfirmedAt = snapshotAt
		result.Stats.SnapshotDelistings++
		result.Events = append(result.Events, entity.LifecycleEvent{
			EntityKey:  ent.Key(),
			Kind:       entity.EventDelisting,
			OccurredAt: snapshotAt,
		})
		e.logger.Info().
			Str("entity", ent.Key()).
			Str("security_code", string(ent.SecurityCode)).
			Msg("Delisted entity absent from venue snapshot")
	}
}

func addFormerCode(target *entity.Entity, code string) {
	if code == "" || code == target.FilerCode {
		return
	}
	for _, existing := range target.FormerFilerCodes {
		if existing == code {
			return
		}
	}
	target.FormerFilerCodes = append(target.FormerFilerCodes, code)
	sort.Strings(target.FormerFilerCodes)
}

func sortEvents(events []entity.LifecycleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		if events[i].EntityKey != events[j].EntityKey {
			return events[i].EntityKey < events[j].EntityKey
		}
		return events[i].Kind < events[j].Kind
	})
}
