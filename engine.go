package gowizard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/davidroman0O/gowizard/store"
)

// Engine drives navigation through a Sequence.
//
// It holds the current index, decides whether a requested move is legal,
// runs the validators the move requires and emits events describing the
// outcome. Only one command may be validating at a time; any command issued
// meanwhile is rejected with ErrBusy. The engine never holds its lock while a
// validator or a listener runs.
type Engine struct {
	mu deadlock.Mutex

	seq       *Sequence
	sessionID string
	logger    Logger
	runner    *ValidationRunner
	events    *emitter
	board     *store.KVStore

	linear          bool
	strict          bool
	allowDirectJump bool
	softOptional    bool
	initialIndex    int

	middleware []ValidatorMiddleware
	listeners  []Listener

	current   int
	validated map[int]bool
	skipped   map[int]bool
	visited   map[int]bool
	// outcome keeps the last failed validation status of a step until it passes
	outcome map[int]string

	completed bool
	inFlight  bool
	destroyed bool

	// generation changes on Reset and Destroy; a validation that settles
	// under an older generation is discarded
	generation    uint64
	cancelPending context.CancelFunc
}

// State is a point-in-time snapshot of an engine.
type State struct {
	SessionID        string
	CurrentIndex     int
	CurrentStepID    string
	Linear           bool
	Strict           bool
	AllowDirectJump  bool
	OptionalSoftFail bool
	Completed        bool
	Busy             bool
	Destroyed        bool
	Validated        []int
	Skipped          []int
	Visited          []int
}

// WithInitialIndex sets the index the wizard starts on. Out of range values are clamped.
func WithInitialIndex(index int) Option {
	return func(e *Engine) {
		e.initialIndex = index
	}
}

// WithLinear sets linear mode. Linear mode is on by default.
func WithLinear(linear bool) Option {
	return func(e *Engine) {
		e.linear = linear
	}
}

// WithStrictLinear chooses how linear mode treats a jump over several steps.
// Strict (the default) validates every required intermediate step in order.
// Non-strict validates only the departing step and refuses the jump with
// ErrStepLocked when a required intermediate step was never validated.
func WithStrictLinear(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithAllowDirectJump allows or forbids GoTo moves of more than one step.
func WithAllowDirectJump(allow bool) Option {
	return func(e *Engine) {
		e.allowDirectJump = allow
	}
}

// WithOptionalSoftFail lets an optional step whose validator reports false
// be left anyway. The move goes ahead, the step is marked invalid and a
// StepValidationFailed event is still emitted for it. Off by default, in
// which case optional steps block like any other step when they are left.
// Validator errors and panics always block.
func WithOptionalSoftFail(soft bool) Option {
	return func(e *Engine) {
		e.softOptional = soft
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithValidatorMiddleware adds middleware around every validator run
func WithValidatorMiddleware(middleware ...ValidatorMiddleware) Option {
	return func(e *Engine) {
		e.middleware = append(e.middleware, middleware...)
	}
}

// WithListener subscribes listeners before the engine is returned
func WithListener(listeners ...Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, listeners...)
	}
}

// WithStore sets the store used for the status board. Hosts pass their own
// store to share it with registry validators reading form data.
func WithStore(s *store.KVStore) Option {
	return func(e *Engine) {
		e.board = s
	}
}

// WithSessionID overrides the generated session id
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// New creates an engine for seq, which must not be nil.
func New(seq *Sequence, opts ...Option) *Engine {
	e := &Engine{
		seq:             seq,
		sessionID:       uuid.NewString(),
		logger:          NewDefaultLogger(),
		linear:          true,
		strict:          true,
		allowDirectJump: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = NewDefaultLogger()
	}
	if e.board == nil {
		e.board = store.NewKVStore()
	}
	e.initialIndex = max(0, min(e.initialIndex, seq.Last()))
	e.runner = NewValidationRunner(e.logger, e.middleware...)
	e.events = newEmitter(e.logger)
	for _, l := range e.listeners {
		e.events.subscribe(l)
	}

	e.resetStateLocked()
	e.publishLocked()

	e.logger.Debug("Created wizard %s with %d steps (linear=%t, strict=%t, directJump=%t)",
		e.sessionID, seq.Len(), e.linear, e.strict, e.allowDirectJump)
	return e
}

// GoTo moves to target.
// Moving backward never runs a validator. Moving forward in linear mode runs
// the departing step's validator and, in strict mode, the validators of
// every required intermediate step in ascending order, stopping at the first
// failure.
func (e *Engine) GoTo(ctx context.Context, target int) error {
	e.mu.Lock()
	if err := e.availableLocked(); err != nil {
		return e.rejectLocked(err)
	}
	if target < 0 || target >= e.seq.Len() {
		e.mu.Unlock()
		return fmt.Errorf("%w: index %d, sequence has %d steps", ErrOutOfRange, target, e.seq.Len())
	}
	if !e.allowDirectJump && abs(target-e.current) > 1 {
		from := e.current
		e.mu.Unlock()
		return fmt.Errorf("%w: from %d to %d", ErrDirectJumpDisabled, from, target)
	}
	return e.navigateLocked(ctx, target)
}

// GoToID moves to the step with the given id.
func (e *Engine) GoToID(ctx context.Context, id string) error {
	target, err := e.seq.IndexOf(id)
	if err != nil {
		return err
	}
	return e.GoTo(ctx, target)
}

// Next advances by one step. On the last step it validates that step and
// emits Completed; once completed, Next fails with ErrOutOfRange.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()
	if err := e.availableLocked(); err != nil {
		return e.rejectLocked(err)
	}
	if e.completed {
		e.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrOutOfRange, ErrCompleted)
	}
	if e.current < e.seq.Last() {
		return e.navigateLocked(ctx, e.current+1)
	}

	last := e.current
	return e.runLocked(ctx, []int{last}, func() []Event {
		return []Event{e.completeLocked(last, false)}
	})
}

// Previous moves back by one step. It fails with ErrOutOfRange on the first step.
func (e *Engine) Previous() error {
	e.mu.Lock()
	if err := e.availableLocked(); err != nil {
		return e.rejectLocked(err)
	}
	if e.current == 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: already on the first step", ErrOutOfRange)
	}
	return e.navigateLocked(context.Background(), e.current-1)
}

// Skip advances past the current step without running its validator.
// The step is recorded as skipped, not validated. Skipping the last step
// completes the wizard.
func (e *Engine) Skip() error {
	e.mu.Lock()
	if err := e.availableLocked(); err != nil {
		return e.rejectLocked(err)
	}
	if e.completed {
		e.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrOutOfRange, ErrCompleted)
	}

	i := e.current
	step := e.seq.steps[i]
	if !step.Skippable {
		e.mu.Unlock()
		return fmt.Errorf("%w: '%s'", ErrNotSkippable, step.ID)
	}

	e.skipped[i] = true
	var ev Event
	if i == e.seq.Last() {
		ev = e.completeLocked(i, true)
	} else {
		ev = e.moveLocked(i, i+1, true)
	}
	e.logger.Info("Skipped step %s", step.ID)
	e.mu.Unlock()

	e.events.emit(ev)
	return nil
}

// Reset returns the wizard to its initial index and forgets every validated,
// skipped and visited step. A validation in flight is discarded; the command
// waiting on it returns ErrAborted.
func (e *Engine) Reset() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}

	e.abortPendingLocked()
	from := e.current
	e.resetStateLocked()
	e.refreshBoardLocked()

	var events []Event
	if from != e.current {
		events = append(events, e.changedEvent(from, e.current, false))
	}
	e.logger.Info("Reset wizard %s", e.sessionID)
	e.mu.Unlock()

	e.events.emit(events...)
	return nil
}

// Destroy tears the engine down. Every later command fails with
// ErrDestroyed, and a validation in flight is cancelled and its eventual
// result ignored.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	e.destroyed = true
	e.abortPendingLocked()
	e.refreshBoardLocked()
	e.logger.Info("Destroyed wizard %s", e.sessionID)
}

// Subscribe registers a listener and returns a function that removes it.
func (e *Engine) Subscribe(l Listener) func() {
	return e.events.subscribe(l)
}

// SessionID returns the id of this wizard instance.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Sequence returns the sequence the engine walks through.
func (e *Engine) Sequence() *Sequence {
	return e.seq
}

// Store returns the store holding the status board.
func (e *Engine) Store() *store.KVStore {
	return e.board
}

// CurrentIndex returns the current step index.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CurrentStep returns a copy of the current step.
func (e *Engine) CurrentStep() *Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.steps[e.current].clone()
}

// IsCompleted reports whether the wizard reached the Completed state.
func (e *Engine) IsCompleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// IsBusy reports whether a validation is in flight.
func (e *Engine) IsBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// IsValidated reports whether the step at index passed validation in this session.
func (e *Engine) IsValidated(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validated[index]
}

// IsSkipped reports whether the step at index was skipped in this session.
func (e *Engine) IsSkipped(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.skipped[index]
}

// State returns a snapshot of the navigation state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		SessionID:        e.sessionID,
		CurrentIndex:     e.current,
		CurrentStepID:    e.seq.steps[e.current].ID,
		Linear:           e.linear,
		Strict:           e.strict,
		AllowDirectJump:  e.allowDirectJump,
		OptionalSoftFail: e.softOptional,
		Completed:        e.completed,
		Busy:             e.inFlight,
		Destroyed:        e.destroyed,
		Validated:        sortedIndices(e.validated),
		Skipped:          sortedIndices(e.skipped),
		Visited:          sortedIndices(e.visited),
	}
}

// StepKey returns the status board key of a step.
func (e *Engine) StepKey(id string) string {
	return PrefixStep + e.sessionID + ":" + id
}

// WizardKey returns the status board key of the wizard.
func (e *Engine) WizardKey() string {
	return PrefixWizard + e.sessionID
}

// StepStatus returns the board status of a step.
func (e *Engine) StepStatus(id string) (string, error) {
	if _, err := e.seq.IndexOf(id); err != nil {
		return "", err
	}
	status, err := e.board.GetProperty(e.StepKey(id), PropStatus)
	if err != nil {
		return "", err
	}
	s, _ := status.(string)
	return s, nil
}

// StepsWithStatus returns the ids of the steps whose board status is status,
// in sequence order.
func (e *Engine) StepsWithStatus(status string) []string {
	prefix := e.StepKey("")
	var indices []int
	for _, key := range e.board.FindKeysByProperty(PropStatus, status) {
		id, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if i, err := e.seq.IndexOf(id); err == nil {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)

	ids := make([]string, len(indices))
	for n, i := range indices {
		ids[n] = e.seq.steps[i].ID
	}
	return ids
}

// availableLocked checks the engine can accept a command.
func (e *Engine) availableLocked() error {
	if e.destroyed {
		return ErrDestroyed
	}
	if e.inFlight {
		return ErrBusy
	}
	return nil
}

// rejectLocked releases the lock, emits Busy for ErrBusy and returns err.
func (e *Engine) rejectLocked(err error) error {
	var events []Event
	if err == ErrBusy {
		e.logger.Warn("Rejected command on wizard %s: validation in progress", e.sessionID)
		events = append(events, Event{
			Type:      EventBusy,
			SessionID: e.sessionID,
			From:      e.current,
			To:        e.current,
			Index:     e.current,
			StepID:    e.seq.steps[e.current].ID,
			Err:       ErrBusy,
			Time:      time.Now(),
		})
	}
	e.mu.Unlock()

	e.events.emit(events...)
	return err
}

// navigateLocked moves to an in-range target. Called with e.mu held; releases it.
func (e *Engine) navigateLocked(ctx context.Context, target int) error {
	from := e.current
	if target == from {
		e.mu.Unlock()
		return nil
	}

	if target < from {
		ev := e.moveLocked(from, target, false)
		e.mu.Unlock()
		e.events.emit(ev)
		return nil
	}

	plan, err := e.planLocked(from, target)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	return e.runLocked(ctx, plan, func() []Event {
		return []Event{e.moveLocked(from, target, false)}
	})
}

// planLocked lists the indices to validate, in order, for a forward move.
func (e *Engine) planLocked(from, target int) ([]int, error) {
	if !e.linear {
		return nil, nil
	}

	plan := []int{from}
	for i := from + 1; i < target; i++ {
		if e.satisfiedLocked(i) {
			continue
		}
		if !e.strict {
			return nil, fmt.Errorf("%w: step '%s' (index %d) must be validated before reaching index %d",
				ErrStepLocked, e.seq.steps[i].ID, i, target)
		}
		plan = append(plan, i)
	}
	e.logger.Debug("Forward move %d -> %d validates %v", from, target, plan)
	return plan, nil
}

// satisfiedLocked reports whether a linear look-back can pass step i without validating it.
func (e *Engine) satisfiedLocked(i int) bool {
	step := e.seq.steps[i]
	return step.Optional || e.validated[i] || (e.skipped[i] && step.Skippable)
}

// planResult is the outcome of validating a plan.
type planResult struct {
	passed []int
	// soft holds optional steps that reported invalid without blocking
	soft []*ValidationError
	err  *ValidationError
}

// runLocked validates plan and calls commit on success. Called with e.mu
// held; releases it. The lock is dropped while validators run.
func (e *Engine) runLocked(ctx context.Context, plan []int, commit func() []Event) error {
	if len(plan) == 0 {
		events := commit()
		e.mu.Unlock()
		e.events.emit(events...)
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	vctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.inFlight = true
	e.cancelPending = cancel
	gen := e.generation
	e.mu.Unlock()

	res := e.validatePlan(vctx, plan)

	e.mu.Lock()
	if gen != e.generation {
		err := ErrAborted
		if e.destroyed {
			err = ErrDestroyed
		}
		e.mu.Unlock()
		e.logger.Debug("Discarded validation result of wizard %s: %v", e.sessionID, err)
		return err
	}
	e.inFlight = false
	e.cancelPending = nil

	if res.err != nil {
		e.outcome[res.err.Index] = statusOf(res.err.Kind)
		e.refreshBoardLocked()
		ev := e.failureEvent(res.err)
		e.mu.Unlock()

		e.events.emit(ev)
		return res.err
	}

	for _, i := range res.passed {
		e.validated[i] = true
		delete(e.outcome, i)
	}
	var events []Event
	for _, verr := range res.soft {
		e.outcome[verr.Index] = StatusInvalid
		events = append(events, e.failureEvent(verr))
	}
	events = append(events, commit()...)
	e.mu.Unlock()

	e.events.emit(events...)
	return nil
}

// validatePlan runs validators in order and stops at the first blocking failure.
// It reads only immutable sequence data and must be called without the lock.
func (e *Engine) validatePlan(ctx context.Context, plan []int) planResult {
	var res planResult
	for _, i := range plan {
		step := e.seq.steps[i]
		verr := e.runner.validate(ctx, step, i)
		switch {
		case verr == nil:
			res.passed = append(res.passed, i)
		case verr.Kind == KindInvalid && step.Optional && e.softOptional:
			e.logger.Debug("Optional step %s is invalid, continuing", step.ID)
			res.soft = append(res.soft, verr)
		default:
			res.err = verr
			return res
		}
	}
	return res
}

// moveLocked sets the current index and returns the StepChanged event.
func (e *Engine) moveLocked(from, to int, skipped bool) Event {
	e.current = to
	e.visited[to] = true
	e.completed = false
	e.refreshBoardLocked()
	e.logger.Info("Moved from step %s to %s", e.seq.steps[from].ID, e.seq.steps[to].ID)
	return e.changedEvent(from, to, skipped)
}

// completeLocked marks the wizard completed and returns the Completed event.
func (e *Engine) completeLocked(index int, skipped bool) Event {
	e.completed = true
	e.refreshBoardLocked()
	e.logger.Info("Wizard %s completed", e.sessionID)
	return Event{
		Type:      EventCompleted,
		SessionID: e.sessionID,
		From:      index,
		To:        index,
		Index:     index,
		StepID:    e.seq.steps[index].ID,
		Skipped:   skipped,
		Time:      time.Now(),
	}
}

func (e *Engine) changedEvent(from, to int, skipped bool) Event {
	return Event{
		Type:      EventStepChanged,
		SessionID: e.sessionID,
		From:      from,
		To:        to,
		Index:     to,
		StepID:    e.seq.steps[to].ID,
		Skipped:   skipped,
		Time:      time.Now(),
	}
}

func (e *Engine) failureEvent(verr *ValidationError) Event {
	typ := EventStepValidationFailed
	if verr.Kind == KindFailure {
		typ = EventValidationFailure
	}
	return Event{
		Type:      typ,
		SessionID: e.sessionID,
		From:      e.current,
		To:        e.current,
		Index:     verr.Index,
		StepID:    verr.StepID,
		Err:       verr,
		Time:      time.Now(),
	}
}

// abortPendingLocked invalidates any validation in flight.
func (e *Engine) abortPendingLocked() {
	e.generation++
	if e.cancelPending != nil {
		e.cancelPending()
		e.cancelPending = nil
	}
	e.inFlight = false
}

func (e *Engine) resetStateLocked() {
	e.current = e.initialIndex
	e.validated = make(map[int]bool)
	e.skipped = make(map[int]bool)
	e.visited = map[int]bool{e.current: true}
	e.outcome = make(map[int]string)
	e.completed = false
}

// statusLocked computes the board status of step i.
func (e *Engine) statusLocked(i int) string {
	switch {
	case i == e.current && !e.completed:
		return StatusCurrent
	case e.outcome[i] != "":
		return e.outcome[i]
	case e.validated[i]:
		return StatusValidated
	case e.skipped[i]:
		return StatusSkipped
	default:
		return StatusPending
	}
}

func (e *Engine) wizardStatusLocked() string {
	switch {
	case e.destroyed:
		return StatusDestroyed
	case e.completed:
		return StatusCompleted
	default:
		return StatusActive
	}
}

// publishLocked writes the wizard and its steps to the status board.
func (e *Engine) publishLocked() {
	info := WizardInfo{
		SessionID: e.sessionID,
		StepIDs:   e.seq.IDs(),
		Linear:    e.linear,
		CreatedAt: time.Now().Format(time.RFC3339),
	}

	meta := store.NewMetadata()
	meta.AddTag(TagSystem)
	meta.SetProperty(PropStatus, e.wizardStatusLocked())
	meta.SetProperty(PropCurrent, e.seq.steps[e.current].ID)
	if err := e.board.PutWithMetadata(e.WizardKey(), info, meta); err != nil {
		e.logger.Warn("Failed to publish wizard %s: %v", e.sessionID, err)
	}

	for i, step := range e.seq.steps {
		meta := store.NewMetadata()
		for _, tag := range step.Tags {
			meta.AddTag(tag)
		}
		meta.AddTag(TagSystem)
		meta.AddTag(TagStep)
		if step.Optional {
			meta.AddTag(TagOptional)
		}
		if step.Skippable {
			meta.AddTag(TagSkippable)
		}
		meta.Description = step.Description
		if i == e.current && !e.completed {
			meta.AddTag(TagCurrent)
		}
		meta.SetProperty(PropOrder, i)
		meta.SetProperty(PropStatus, e.statusLocked(i))

		if err := e.board.PutWithMetadata(e.StepKey(step.ID), step.toStepInfo(), meta); err != nil {
			e.logger.Warn("Failed to publish step %s: %v", step.ID, err)
		}
	}
}

// refreshBoardLocked updates every status property on the board.
func (e *Engine) refreshBoardLocked() {
	if err := e.board.SetProperty(e.WizardKey(), PropStatus, e.wizardStatusLocked()); err != nil {
		e.logger.Warn("Failed to update wizard %s status: %v", e.sessionID, err)
	}
	_ = e.board.SetProperty(e.WizardKey(), PropCurrent, e.seq.steps[e.current].ID)

	for i, step := range e.seq.steps {
		key := e.StepKey(step.ID)
		if err := e.board.SetProperty(key, PropStatus, e.statusLocked(i)); err != nil {
			e.logger.Warn("Failed to update step %s status: %v", step.ID, err)
			continue
		}
		if i == e.current && !e.completed {
			_ = e.board.AddTag(key, TagCurrent)
		} else {
			_ = e.board.RemoveTag(key, TagCurrent)
		}
	}
}

func statusOf(kind ValidationKind) string {
	if kind == KindFailure {
		return StatusFailed
	}
	return StatusInvalid
}

func sortedIndices(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for i, ok := range set {
		if ok {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
