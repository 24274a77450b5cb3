package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lifeline/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Locator is the location capability a coordinator depends on.
type Locator interface {
	GetCurrentSample(ctx context.Context, timeout time.Duration) (*models.LocationSample, error)
	Refresh(ctx context.Context, timeout time.Duration) (*models.LocationSample, error)
	History() []models.LocationSample
}

// Dispatcher sends one payload to one contact over the given channels.
type Dispatcher interface {
	Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload, channels []models.NotificationChannel) []models.ChannelResult
}

// HistoryRecorder persists episode records. Failures never affect the coordinator.
type HistoryRecorder interface {
	SaveEmergency(ctx context.Context, record *models.EmergencyRecord) error
}

type CoordinatorConfig struct {
	LocationTimeout   time.Duration
	LocationFreshness time.Duration
	DirectoryTimeout  time.Duration
	DefaultChannels   []models.NotificationChannel
	AutoResetAfter    time.Duration
	TickInterval      time.Duration
	HistoryTimeout    time.Duration
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		LocationTimeout:   15 * time.Second,
		LocationFreshness: 30 * time.Second,
		DirectoryTimeout:  5 * time.Second,
		DefaultChannels:   []models.NotificationChannel{models.ChannelSMS, models.ChannelCall, models.ChannelPush},
		AutoResetAfter:    10 * time.Minute,
		TickInterval:      time.Second,
		HistoryTimeout:    10 * time.Second,
	}
}

type CoordinatorDeps struct {
	Locator    Locator
	Contacts   ContactLister
	Dispatcher Dispatcher
	Sink       EventSink
	History    HistoryRecorder
	Now        func() time.Time
}

// episode holds everything about one Active period. It survives into
// Cancelled/Resolved for audit and is discarded on reset.
type episode struct {
	id              string
	startedAt       time.Time
	endedAt         *time.Time
	location        *models.LocationSample
	locationFailure *models.LocationFailure
	directoryError  string
	order           []string
	contacts        map[string]models.EmergencyContact
	channels        map[string][]models.NotificationChannel
	results         map[string]*models.ContactNotification
	cancelReason    string
	resolution      string
	resolvedBy      string
	updatedAt       time.Time
}

type dispatchJob struct {
	key      string
	contact  models.EmergencyContact
	channels []models.NotificationChannel
}

// EmergencyCoordinator owns the emergency lifecycle for one principal.
type EmergencyCoordinator struct {
	principal  models.Principal
	locator    Locator
	contacts   ContactLister
	dispatcher Dispatcher
	sink       EventSink
	history    HistoryRecorder
	config     CoordinatorConfig
	now        func() time.Time

	mu           sync.Mutex
	state        models.EmergencyState
	activating   bool
	episode      *episode
	clock        *durationClock
	resetTimer   *time.Timer
	revision     int64
	lastActivity time.Time
}

func NewEmergencyCoordinator(principal models.Principal, deps CoordinatorDeps, config CoordinatorConfig) *EmergencyCoordinator {
	defaults := DefaultCoordinatorConfig()
	if config.LocationTimeout <= 0 {
		config.LocationTimeout = defaults.LocationTimeout
	}
	if config.LocationFreshness <= 0 {
		config.LocationFreshness = defaults.LocationFreshness
	}
	if config.DirectoryTimeout <= 0 {
		config.DirectoryTimeout = defaults.DirectoryTimeout
	}
	if len(config.DefaultChannels) == 0 {
		config.DefaultChannels = defaults.DefaultChannels
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.HistoryTimeout <= 0 {
		config.HistoryTimeout = defaults.HistoryTimeout
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	sink := deps.Sink
	if sink == nil {
		sink = MultiSink(nil)
	}

	return &EmergencyCoordinator{
		principal:    principal,
		locator:      deps.Locator,
		contacts:     deps.Contacts,
		dispatcher:   deps.Dispatcher,
		sink:         sink,
		history:      deps.History,
		config:       config,
		now:          now,
		state:        models.EmergencyStateIdle,
		lastActivity: now(),
	}
}

func (ec *EmergencyCoordinator) Principal() models.Principal {
	return ec.principal
}

// =================== TRANSITIONS ===================

// BeginConfirmation moves Idle to Confirming. A finished episode is reset
// first. In any other state it does nothing.
func (ec *EmergencyCoordinator) BeginConfirmation() models.EmergencyEvent {
	ec.mu.Lock()
	changed, wasReset := false, false
	switch ec.state {
	case models.EmergencyStateIdle:
		ec.state = models.EmergencyStateConfirming
		changed = true
	case models.EmergencyStateCancelled, models.EmergencyStateResolved:
		ec.resetLocked()
		ec.state = models.EmergencyStateConfirming
		changed, wasReset = true, true
	}
	ec.touchLocked()
	snapshot := ec.snapshotLocked()
	ec.mu.Unlock()

	if wasReset {
		ec.emit(models.EventReset, "", models.EmergencyStateIdle, nil)
	}
	if changed {
		ec.emit(models.EventConfirming, "", snapshot.State, nil)
	}
	return snapshot
}

// AbortConfirmation returns Confirming to Idle.
func (ec *EmergencyCoordinator) AbortConfirmation() error {
	ec.mu.Lock()
	if ec.state != models.EmergencyStateConfirming || ec.activating {
		from := ec.state
		ec.mu.Unlock()
		return &InvalidTransitionError{Operation: "abort confirmation", From: from}
	}
	ec.state = models.EmergencyStateIdle
	ec.touchLocked()
	ec.mu.Unlock()

	ec.emit(models.EventConfirmationAborted, "", models.EmergencyStateIdle, nil)
	return nil
}

// Activate turns a confirmed request into an Active emergency. It waits at
// most LocationTimeout for a location and DirectoryTimeout for the contact
// list, then records every contact as pending
// in primary-first order and notifies them concurrently without waiting for
// delivery. Location and directory failures degrade the event but never
// block activation.
func (ec *EmergencyCoordinator) Activate(ctx context.Context) (models.EmergencyEvent, error) {
	ec.mu.Lock()
	if ec.state != models.EmergencyStateConfirming || ec.activating {
		from := ec.state
		ec.mu.Unlock()
		return models.EmergencyEvent{}, &InvalidTransitionError{Operation: "activate", From: from}
	}
	ec.activating = true
	startedAt := ec.now()
	ec.mu.Unlock()

	// The caller going away must not stop an emergency from going out.
	actx := context.WithoutCancel(ctx)

	type contactsResult struct {
		contacts []models.EmergencyContact
		err      error
	}
	dctx, dcancel := context.WithTimeout(actx, ec.config.DirectoryTimeout)
	defer dcancel()
	contactsCh := make(chan contactsResult, 1)
	go func() {
		if ec.contacts == nil {
			contactsCh <- contactsResult{}
			return
		}
		list, err := ec.contacts.List(dctx)
		contactsCh <- contactsResult{contacts: list, err: err}
	}()

	sample, locErr := ec.acquireLocation(actx, startedAt)

	// A lister that ignores its context still cannot hold activation past the deadline.
	var dir contactsResult
	select {
	case dir = <-contactsCh:
	default:
		select {
		case dir = <-contactsCh:
		case <-dctx.Done():
			dir = contactsResult{err: &DirectoryUnavailableError{Cause: dctx.Err()}}
		}
	}

	ep := &episode{
		id:        uuid.New().String(),
		startedAt: startedAt,
		contacts:  make(map[string]models.EmergencyContact),
		channels:  make(map[string][]models.NotificationChannel),
		results:   make(map[string]*models.ContactNotification),
	}
	if locErr != nil {
		ep.locationFailure = locErr.Failure()
	} else {
		ep.location = sample
	}

	var jobs []dispatchJob
	if dir.err != nil {
		ep.directoryError = dir.err.Error()
	} else {
		for i, contact := range OrderContacts(dir.contacts) {
			key := contact.Key()
			if contact.ID.IsZero() {
				key = fmt.Sprintf("unsaved-%d", i)
				logrus.WithFields(logrus.Fields{"user_id": ec.principal.UserID, "contact": contact.Name}).
					Warn("Emergency contact has no id, keyed by position")
			}
			if _, dup := ep.contacts[key]; dup {
				continue
			}
			channels := ec.channelsFor(contact)
			ep.order = append(ep.order, key)
			ep.contacts[key] = contact
			ep.channels[key] = channels
			ep.results[key] = &models.ContactNotification{
				ContactID:   key,
				ContactName: contact.Name,
				IsPrimary:   contact.IsPrimary,
				Status:      models.NotificationPending,
			}
			jobs = append(jobs, dispatchJob{key: key, contact: contact, channels: channels})
		}
	}

	ec.mu.Lock()
	ec.activating = false
	ep.updatedAt = ec.now()
	ec.episode = ep
	ec.state = models.EmergencyStateActive
	ec.stopResetTimerLocked()
	ec.clock = startDurationClock(ec.config.TickInterval, startedAt, ec.now, ec.tickFunc(ep.id))
	ec.touchLocked()
	snapshot := ec.snapshotLocked()
	record := ec.recordLocked()
	payload := ec.payloadLocked(models.PayloadAlert, "")
	ec.mu.Unlock()

	activated := map[string]interface{}{"contacts": len(jobs)}
	if ep.location != nil {
		activated["accuracy_tier"] = string(ep.location.AccuracyTier)
	}
	ec.emit(models.EventActivated, ep.id, snapshot.State, activated)
	if locErr != nil {
		ec.emit(models.EventLocationUnavailable, ep.id, snapshot.State, map[string]interface{}{"reason": string(locErr.Reason)})
	}
	if dir.err != nil {
		ec.emit(models.EventDirectoryUnavailable, ep.id, snapshot.State, map[string]interface{}{"error": dir.err.Error()})
	}
	ec.saveHistory(record)

	for _, job := range jobs {
		go ec.dispatchAlert(actx, ep.id, job, payload)
	}

	return snapshot, nil
}

// Cancel ends an Active emergency as a false alarm and tells every contact
// that was alerted to stand down.
func (ec *EmergencyCoordinator) Cancel(ctx context.Context, reason string) (models.EmergencyEvent, error) {
	return ec.finish(ctx, "cancel", models.EmergencyStateCancelled, func(ep *episode) {
		ep.cancelReason = reason
	})
}

// Resolve ends an Active emergency as handled.
func (ec *EmergencyCoordinator) Resolve(ctx context.Context, resolvedBy, resolution string) (models.EmergencyEvent, error) {
	return ec.finish(ctx, "resolve", models.EmergencyStateResolved, func(ep *episode) {
		ep.resolvedBy = resolvedBy
		ep.resolution = resolution
	})
}

func (ec *EmergencyCoordinator) finish(ctx context.Context, op string, target models.EmergencyState, apply func(*episode)) (models.EmergencyEvent, error) {
	ec.mu.Lock()
	if ec.state != models.EmergencyStateActive || ec.episode == nil {
		from := ec.state
		ec.mu.Unlock()
		return models.EmergencyEvent{}, &InvalidTransitionError{Operation: op, From: from}
	}

	ec.clock.Stop()
	ec.clock = nil

	ep := ec.episode
	endedAt := ec.now()
	ep.endedAt = &endedAt
	ep.updatedAt = endedAt
	apply(ep)
	ec.state = target
	ec.touchLocked()
	ec.scheduleResetLocked(ep.id)

	var standDown []dispatchJob
	if target == models.EmergencyStateCancelled {
		for _, key := range ep.order {
			standDown = append(standDown, dispatchJob{
				key:      key,
				contact:  ep.contacts[key],
				channels: standDownChannels(ep.channels[key]),
			})
		}
	}
	payload := ec.payloadLocked(models.PayloadStandDown, ep.cancelReason)
	snapshot := ec.snapshotLocked()
	record := ec.recordLocked()
	ec.mu.Unlock()

	eventType := models.EventCancelled
	if target == models.EmergencyStateResolved {
		eventType = models.EventResolved
	}
	ec.emit(eventType, ep.id, target, map[string]interface{}{
		"duration_seconds": record.DurationSeconds,
		"outcome":          string(snapshot.DispatchOutcome),
	})
	ec.saveHistory(record)

	sctx := context.WithoutCancel(ctx)
	for _, job := range standDown {
		go ec.dispatchStandDown(sctx, ep.id, job, payload)
	}

	return snapshot, nil
}

// Reset returns a finished emergency to Idle. Idle stays Idle.
func (ec *EmergencyCoordinator) Reset() error {
	ec.mu.Lock()
	switch ec.state {
	case models.EmergencyStateIdle:
		ec.mu.Unlock()
		return nil
	case models.EmergencyStateCancelled, models.EmergencyStateResolved:
		ec.resetLocked()
		ec.touchLocked()
		ec.mu.Unlock()
		ec.emit(models.EventReset, "", models.EmergencyStateIdle, nil)
		return nil
	default:
		from := ec.state
		ec.mu.Unlock()
		return &InvalidTransitionError{Operation: "reset", From: from}
	}
}

// Status returns a copy of the current event. It never fails.
func (ec *EmergencyCoordinator) Status() models.EmergencyEvent {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.snapshotLocked()
}

// State is a cheap accessor for the lifecycle state.
func (ec *EmergencyCoordinator) State() models.EmergencyState {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.state
}

// RefreshLocation asks the device for a new fix. While Active the new
// sample replaces the one on the event.
func (ec *EmergencyCoordinator) RefreshLocation(ctx context.Context) (*models.LocationSample, error) {
	if ec.locator == nil {
		return nil, &LocationUnavailableError{Reason: models.LocationUnavailable}
	}

	sample, err := ec.locator.Refresh(ctx, ec.config.LocationTimeout)
	if err != nil {
		lu := AsLocationUnavailable(err)
		ec.mu.Lock()
		episodeID, state := ec.currentEpisodeIDLocked(), ec.state
		ec.mu.Unlock()
		ec.emit(models.EventLocationUnavailable, episodeID, state, map[string]interface{}{"reason": string(lu.Reason)})
		return nil, lu
	}

	ec.mu.Lock()
	var record *models.EmergencyRecord
	if ec.state == models.EmergencyStateActive && ec.episode != nil {
		s := *sample
		ec.episode.location = &s
		ec.episode.locationFailure = nil
		ec.episode.updatedAt = ec.now()
		record = ec.recordLocked()
	}
	episodeID, state := ec.currentEpisodeIDLocked(), ec.state
	ec.touchLocked()
	ec.mu.Unlock()

	ec.emit(models.EventLocationRefreshed, episodeID, state, map[string]interface{}{
		"accuracy_tier": string(sample.AccuracyTier),
	})
	ec.saveHistory(record)
	return sample, nil
}

func (ec *EmergencyCoordinator) LocationHistory() []models.LocationSample {
	if ec.locator == nil {
		return []models.LocationSample{}
	}
	return ec.locator.History()
}

// IdleSince reports when the coordinator last changed, if it is Idle.
func (ec *EmergencyCoordinator) IdleSince() (time.Time, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.state != models.EmergencyStateIdle || ec.activating {
		return time.Time{}, false
	}
	return ec.lastActivity, true
}

// Close releases the clock and auto reset timer.
func (ec *EmergencyCoordinator) Close() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.clock.Stop()
	ec.clock = nil
	ec.stopResetTimerLocked()
}

// =================== INTERNALS ===================

func (ec *EmergencyCoordinator) acquireLocation(ctx context.Context, at time.Time) (*models.LocationSample, *LocationUnavailableError) {
	if ec.locator == nil {
		return nil, &LocationUnavailableError{Reason: models.LocationUnavailable}
	}
	sample, err := ec.locator.GetCurrentSample(ctx, ec.config.LocationTimeout)
	if err != nil {
		return nil, AsLocationUnavailable(err)
	}
	if sample == nil {
		return nil, &LocationUnavailableError{Reason: models.LocationUnavailable}
	}
	if sample.IsStale(at, ec.config.LocationFreshness) {
		return nil, &LocationUnavailableError{Reason: models.LocationTimeout}
	}
	return sample, nil
}

func (ec *EmergencyCoordinator) dispatchAlert(ctx context.Context, episodeID string, job dispatchJob, payload models.EmergencyPayload) {
	var results []models.ChannelResult
	if ec.dispatcher != nil {
		results = ec.dispatcher.Send(ctx, job.contact, payload, job.channels)
	}
	ec.recordResults(episodeID, job.key, results)
}

func (ec *EmergencyCoordinator) recordResults(episodeID, contactID string, results []models.ChannelResult) {
	ec.mu.Lock()
	ep := ec.episode
	if ep == nil || ep.id != episodeID {
		ec.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"user_id":    ec.principal.UserID,
			"episode_id": episodeID,
			"contact_id": contactID,
		}).Debug("Dropping notification result for a finished episode")
		return
	}

	cn, ok := ep.results[contactID]
	if !ok {
		ec.mu.Unlock()
		return
	}
	now := ec.now()
	cn.Channels = append([]models.ChannelResult(nil), results...)
	cn.CompletedAt = &now
	cn.Status = models.NotificationFailed
	if cn.Succeeded() {
		cn.Status = models.NotificationSucceeded
	}
	ep.updatedAt = now
	state := ec.state

	var record *models.EmergencyRecord
	if state.IsTerminal() || !ec.hasPendingLocked() {
		record = ec.recordLocked()
	}
	ec.mu.Unlock()

	for _, r := range results {
		ec.emit(models.EventNotificationResult, episodeID, state, map[string]interface{}{
			"contact_id": contactID,
			"channel":    string(r.Channel),
			"success":    r.Success,
			"error":      r.Error,
		})
	}
	ec.saveHistory(record)
}

func (ec *EmergencyCoordinator) dispatchStandDown(ctx context.Context, episodeID string, job dispatchJob, payload models.EmergencyPayload) {
	if ec.dispatcher == nil {
		return
	}
	results := ec.dispatcher.Send(ctx, job.contact, payload, job.channels)
	for _, r := range results {
		if !r.Success {
			logrus.WithFields(logrus.Fields{
				"user_id":    ec.principal.UserID,
				"episode_id": episodeID,
				"contact_id": job.key,
				"channel":    r.Channel,
			}).Warnf("Stand-down notification failed: %s", r.Error)
		}
		ec.emit(models.EventStandDownResult, episodeID, models.EmergencyStateCancelled, map[string]interface{}{
			"contact_id": job.key,
			"channel":    string(r.Channel),
			"success":    r.Success,
		})
	}
}

func (ec *EmergencyCoordinator) tickFunc(episodeID string) func(int64) {
	return func(seconds int64) {
		ec.emit(models.EventDurationTick, episodeID, models.EmergencyStateActive, map[string]interface{}{
			"duration_seconds": seconds,
		})
	}
}

func (ec *EmergencyCoordinator) channelsFor(contact models.EmergencyContact) []models.NotificationChannel {
	src := ec.config.DefaultChannels
	if len(contact.NotifyMethods) > 0 {
		src = contact.NotifyMethods
	}
	return append([]models.NotificationChannel(nil), src...)
}

// standDownChannels reuses the alert channels, swapping calls for SMS.
func standDownChannels(channels []models.NotificationChannel) []models.NotificationChannel {
	out := make([]models.NotificationChannel, 0, len(channels))
	for _, ch := range channels {
		if ch == models.ChannelCall {
			ch = models.ChannelSMS
		}
		out = append(out, ch)
	}
	return uniqueChannels(out)
}

func (ec *EmergencyCoordinator) resetLocked() {
	ec.stopResetTimerLocked()
	ec.clock.Stop()
	ec.clock = nil
	ec.episode = nil
	ec.state = models.EmergencyStateIdle
}

func (ec *EmergencyCoordinator) scheduleResetLocked(episodeID string) {
	ec.stopResetTimerLocked()
	if ec.config.AutoResetAfter <= 0 {
		return
	}
	ec.resetTimer = time.AfterFunc(ec.config.AutoResetAfter, func() {
		ec.mu.Lock()
		if !ec.state.IsTerminal() || ec.episode == nil || ec.episode.id != episodeID {
			ec.mu.Unlock()
			return
		}
		ec.resetLocked()
		ec.touchLocked()
		ec.mu.Unlock()
		ec.emit(models.EventReset, episodeID, models.EmergencyStateIdle, map[string]interface{}{"auto": true})
	})
}

func (ec *EmergencyCoordinator) stopResetTimerLocked() {
	if ec.resetTimer != nil {
		ec.resetTimer.Stop()
		ec.resetTimer = nil
	}
}

func (ec *EmergencyCoordinator) touch() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.touchLocked()
}

func (ec *EmergencyCoordinator) touchLocked() {
	ec.lastActivity = ec.now()
}

func (ec *EmergencyCoordinator) currentEpisodeIDLocked() string {
	if ec.episode == nil {
		return ""
	}
	return ec.episode.id
}

func (ec *EmergencyCoordinator) hasPendingLocked() bool {
	for _, cn := range ec.episode.results {
		if cn.Status == models.NotificationPending {
			return true
		}
	}
	return false
}

func (ec *EmergencyCoordinator) payloadLocked(kind models.PayloadKind, reason string) models.EmergencyPayload {
	ep := ec.episode
	payload := models.EmergencyPayload{
		Kind:      kind,
		EpisodeID: ep.id,
		UserID:    ec.principal.UserID,
		UserName:  ec.principal.Name(),
		StartedAt: ep.startedAt,
		Reason:    reason,
	}
	if ep.location != nil {
		loc := *ep.location
		payload.Location = &loc
	} else if ep.locationFailure != nil {
		payload.LocationNA = string(ep.locationFailure.Reason)
	}
	return payload
}

func (ec *EmergencyCoordinator) snapshotLocked() models.EmergencyEvent {
	now := ec.now()
	event := models.EmergencyEvent{
		UserID:              ec.principal.UserID,
		State:               ec.state,
		DispatchOrder:       []string{},
		NotifiedContactIDs:  []string{},
		NotificationResults: map[string]models.ContactNotification{},
		DispatchOutcome:     models.DispatchOutcomeNone,
		UpdatedAt:           ec.lastActivity,
	}

	ep := ec.episode
	if ep == nil {
		return event
	}

	startedAt := ep.startedAt
	event.EpisodeID = ep.id
	event.StartedAt = &startedAt
	if ep.endedAt != nil {
		endedAt := *ep.endedAt
		event.EndedAt = &endedAt
	}
	if ec.state == models.EmergencyStateActive {
		event.DurationSeconds = elapsedSeconds(ep.startedAt, now)
	}
	if ep.location != nil {
		loc := *ep.location
		event.Location = &loc
	}
	if ep.locationFailure != nil {
		failure := *ep.locationFailure
		event.LocationFailure = &failure
	}
	event.DirectoryError = ep.directoryError
	event.DispatchOrder = append(event.DispatchOrder, ep.order...)
	event.NotifiedContactIDs = append(event.NotifiedContactIDs, ep.order...)
	event.NotificationResults = copyResults(ep.results)
	event.DispatchOutcome, event.Summary = dispatchOutcome(ep)
	event.CancelReason = ep.cancelReason
	event.Resolution = ep.resolution
	event.ResolvedBy = ep.resolvedBy
	event.UpdatedAt = ep.updatedAt
	return event
}

func (ec *EmergencyCoordinator) recordLocked() *models.EmergencyRecord {
	ep := ec.episode
	if ep == nil {
		return nil
	}
	ec.revision++

	end := ec.now()
	if ep.endedAt != nil {
		end = *ep.endedAt
	}
	outcome, _ := dispatchOutcome(ep)
	record := &models.EmergencyRecord{
		EpisodeID:           ep.id,
		UserID:              ec.principal.UserID,
		State:               ec.state,
		StartedAt:           ep.startedAt,
		DurationSeconds:     elapsedSeconds(ep.startedAt, end),
		DirectoryError:      ep.directoryError,
		DispatchOrder:       append([]string{}, ep.order...),
		NotificationResults: copyResults(ep.results),
		DispatchOutcome:     outcome,
		CancelReason:        ep.cancelReason,
		Resolution:          ep.resolution,
		ResolvedBy:          ep.resolvedBy,
		Revision:            ec.revision,
		CreatedAt:           ep.startedAt,
		UpdatedAt:           ep.updatedAt,
	}
	if ep.endedAt != nil {
		endedAt := *ep.endedAt
		record.EndedAt = &endedAt
	}
	if ep.location != nil {
		loc := *ep.location
		record.Location = &loc
	}
	if ep.locationFailure != nil {
		failure := *ep.locationFailure
		record.LocationFailure = &failure
	}
	return record
}

func (ec *EmergencyCoordinator) saveHistory(record *models.EmergencyRecord) {
	if ec.history == nil || record == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ec.config.HistoryTimeout)
		defer cancel()
		if err := ec.history.SaveEmergency(ctx, record); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":    record.UserID,
				"episode_id": record.EpisodeID,
			}).Warnf("Failed to record emergency history: %v", err)
		}
	}()
}

func (ec *EmergencyCoordinator) emit(eventType, episodeID string, state models.EmergencyState, data map[string]interface{}) {
	ec.sink.Emit(models.CoordinatorEvent{
		Type:      eventType,
		UserID:    ec.principal.UserID,
		EpisodeID: episodeID,
		State:     state,
		Timestamp: ec.now(),
		Data:      data,
	})
}

func copyResults(results map[string]*models.ContactNotification) map[string]models.ContactNotification {
	out := make(map[string]models.ContactNotification, len(results))
	for k, v := range results {
		cn := *v
		cn.Channels = append([]models.ChannelResult(nil), v.Channels...)
		if v.CompletedAt != nil {
			t := *v.CompletedAt
			cn.CompletedAt = &t
		}
		out[k] = cn
	}
	return out
}

func dispatchOutcome(ep *episode) (models.DispatchOutcome, models.DispatchSummary) {
	summary := models.DispatchSummary{Total: len(ep.order)}
	for _, key := range ep.order {
		switch ep.results[key].Status {
		case models.NotificationPending:
			summary.Pending++
		case models.NotificationSucceeded:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}

	switch {
	case ep.directoryError != "":
		return models.DispatchOutcomeUnavailable, summary
	case summary.Total == 0:
		return models.DispatchOutcomeNoContacts, summary
	case summary.Pending > 0:
		return models.DispatchOutcomeInProgress, summary
	case summary.Succeeded == summary.Total:
		return models.DispatchOutcomeFully, summary
	case summary.Succeeded == 0:
		return models.DispatchOutcomeNotNotified, summary
	default:
		return models.DispatchOutcomePartially, summary
	}
}
