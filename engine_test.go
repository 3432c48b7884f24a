package gowizard

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearWalkthrough(t *testing.T) {
	b := newCountingValidator(false, true)
	c := newCountingValidator()
	seq := MustSequence(
		NewStep("A", "Account", ""),
		NewStep("B", "Billing", "").WithValidator(b),
		NewStep("C", "Coupon", "").AsSkippable().WithValidator(c),
		NewStep("D", "Done", ""),
	)
	engine, rec := newTestEngine(t, seq)
	ctx := context.Background()

	// A -> B, A has no validator
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 1, engine.CurrentIndex())

	// B fails once
	err := engine.Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepValidationFailed))
	assert.False(t, errors.Is(err, ErrValidationFailure))
	assert.Equal(t, 1, engine.CurrentIndex())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "B", verr.StepID)
	assert.Equal(t, KindInvalid, verr.Kind)

	// B passes the second time
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 2, engine.CurrentIndex())
	assert.Equal(t, 2, b.Calls())

	// C is skipped without running its validator
	require.NoError(t, engine.Skip())
	assert.Equal(t, 3, engine.CurrentIndex())
	assert.Equal(t, 0, c.Calls())
	assert.True(t, engine.IsSkipped(2))
	assert.False(t, engine.IsValidated(2))

	// D completes the wizard
	require.NoError(t, engine.Next(ctx))
	assert.True(t, engine.IsCompleted())
	assert.Equal(t, 3, engine.CurrentIndex())

	assert.Equal(t, []EventType{
		EventStepChanged,
		EventStepValidationFailed,
		EventStepChanged,
		EventStepChanged,
		EventCompleted,
	}, rec.types())

	events := rec.all()
	assert.Equal(t, 0, events[0].From)
	assert.Equal(t, 1, events[0].To)
	assert.Equal(t, 1, events[1].Index)
	assert.Equal(t, "B", events[1].StepID)
	assert.True(t, events[3].Skipped)
	assert.Equal(t, "D", events[4].StepID)
	for _, ev := range events {
		assert.Equal(t, engine.SessionID(), ev.SessionID)
	}

	// Completed is terminal for Next
	err = engine.Next(ctx)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.True(t, errors.Is(err, ErrCompleted))
	assert.Equal(t, 1, rec.count(EventCompleted))
}

func TestNonLinearDirectJump(t *testing.T) {
	validators := []*countingValidator{
		newCountingValidator(false),
		newCountingValidator(false),
		newCountingValidator(false),
		newCountingValidator(false),
	}
	steps := make([]*Step, len(validators))
	for i, v := range validators {
		steps[i] = NewStep(string(rune('a'+i)), "", "").WithValidator(v)
	}
	engine, rec := newTestEngine(t, MustSequence(steps...), WithLinear(false))

	require.NoError(t, engine.GoTo(context.Background(), 3))
	assert.Equal(t, 3, engine.CurrentIndex())

	require.Len(t, rec.all(), 1)
	ev := rec.all()[0]
	assert.Equal(t, EventStepChanged, ev.Type)
	assert.Equal(t, 0, ev.From)
	assert.Equal(t, 3, ev.To)

	for _, v := range validators {
		assert.Equal(t, 0, v.Calls())
	}
}

func TestNonLinearNextDoesNotValidateUntilLastStep(t *testing.T) {
	first := newCountingValidator(false)
	last := newCountingValidator(false, true)
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(first),
		NewStep("b", "", "").WithValidator(last),
	)
	engine, rec := newTestEngine(t, seq, WithLinear(false))
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 0, first.Calls())

	// The last step always gates completion
	assert.True(t, errors.Is(engine.Next(ctx), ErrStepValidationFailed))
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 2, last.Calls())
	assert.Equal(t, 1, rec.count(EventCompleted))
}

func TestBackwardNeverValidates(t *testing.T) {
	v := newCountingValidator()
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(v),
		NewStep("b", "", "").WithValidator(v),
		NewStep("c", "", "").WithValidator(v),
	)
	engine, rec := newTestEngine(t, seq, WithInitialIndex(2))
	ctx := context.Background()

	require.NoError(t, engine.Previous())
	require.NoError(t, engine.GoTo(ctx, 0))
	assert.Equal(t, 0, engine.CurrentIndex())
	assert.Equal(t, 0, v.Calls())
	assert.Equal(t, 2, rec.count(EventStepChanged))

	// Staying put is a no-op
	require.NoError(t, engine.GoTo(ctx, 0))
	assert.Equal(t, 2, rec.count(EventStepChanged))
}

func TestNextRunsDepartingValidatorOnce(t *testing.T) {
	v := newCountingValidator()
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(v),
		NewStep("b", "", ""),
	)
	engine, _ := newTestEngine(t, seq)
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 1, v.Calls())

	// Coming back and leaving again validates again
	require.NoError(t, engine.Previous())
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 2, v.Calls())
}

func TestValidatorErrorIsAFailure(t *testing.T) {
	boom := errors.New("backend unavailable")
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(ValidatorFunc(func(ctx context.Context) (bool, error) {
			return false, boom
		})),
		NewStep("b", "", ""),
	)
	engine, rec := newTestEngine(t, seq)

	err := engine.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailure))
	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, ErrStepValidationFailed))
	assert.Equal(t, 0, engine.CurrentIndex())

	assert.Equal(t, []EventType{EventValidationFailure}, rec.types())
	assert.Equal(t, 0, rec.count(EventStepValidationFailed))
	assert.Equal(t, err, rec.all()[0].Err)
}

func TestValidatorPanicIsAFailure(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(Predicate(func() bool {
			panic("nil form")
		})),
		NewStep("b", "", ""),
	)
	engine, rec := newTestEngine(t, seq)

	err := engine.Next(context.Background())
	assert.True(t, errors.Is(err, ErrValidationFailure))
	assert.True(t, errors.Is(err, ErrValidatorPanic))
	assert.Equal(t, 0, engine.CurrentIndex())
	assert.Equal(t, []EventType{EventValidationFailure}, rec.types())

	// The engine is still usable afterwards
	assert.False(t, engine.IsBusy())
	assert.True(t, errors.Is(engine.Next(context.Background()), ErrValidationFailure))
}

func TestAsyncValidator(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(AsyncFunc(func(ctx context.Context) <-chan AsyncResult {
			ch := make(chan AsyncResult, 1)
			go func() {
				time.Sleep(10 * time.Millisecond)
				ch <- AsyncResult{Valid: true}
			}()
			return ch
		})),
		NewStep("b", "", "").WithValidator(AsyncFunc(func(ctx context.Context) <-chan AsyncResult {
			ch := make(chan AsyncResult)
			close(ch)
			return ch
		})),
	)
	engine, _ := newTestEngine(t, seq)
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 1, engine.CurrentIndex())

	err := engine.Next(ctx)
	assert.True(t, errors.Is(err, ErrValidationFailure))
	assert.True(t, errors.Is(err, ErrValidatorAbandoned))
}

func TestBusyRejectsConcurrentCommands(t *testing.T) {
	gate := newGateValidator()
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(gate),
		NewStep("b", "", ""),
		NewStep("c", "", "").AsSkippable(),
	)
	engine, rec := newTestEngine(t, seq)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- engine.Next(ctx) }()
	<-gate.started

	assert.True(t, engine.IsBusy())
	assert.True(t, errors.Is(engine.Next(ctx), ErrBusy))
	assert.True(t, errors.Is(engine.GoTo(ctx, 2), ErrBusy))
	assert.True(t, errors.Is(engine.Previous(), ErrBusy))
	assert.True(t, errors.Is(engine.Skip(), ErrBusy))
	assert.Equal(t, 0, engine.CurrentIndex())

	gate.release <- true
	require.NoError(t, <-done)

	// Only the first command moved the wizard
	assert.Equal(t, 1, engine.CurrentIndex())
	assert.False(t, engine.IsBusy())
	assert.Equal(t, 4, rec.count(EventBusy))
	assert.Equal(t, 1, rec.count(EventStepChanged))
}

func TestDestroyDiscardsPendingValidation(t *testing.T) {
	gate := newGateValidator()
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(gate),
		NewStep("b", "", ""),
	)
	engine, rec := newTestEngine(t, seq)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- engine.Next(ctx) }()
	<-gate.started

	engine.Destroy()
	gate.release <- true

	assert.True(t, errors.Is(<-done, ErrDestroyed))
	assert.Equal(t, 0, engine.CurrentIndex())
	assert.False(t, engine.IsValidated(0))
	assert.Empty(t, rec.all())

	assert.True(t, errors.Is(engine.Next(ctx), ErrDestroyed))
	assert.True(t, errors.Is(engine.Reset(), ErrDestroyed))
	assert.True(t, engine.State().Destroyed)

	status, err := engine.Store().GetProperty(engine.WizardKey(), PropStatus)
	require.NoError(t, err)
	assert.Equal(t, StatusDestroyed, status)

	// Destroy is idempotent
	engine.Destroy()
}

func TestDestroyCancelsValidatorContext(t *testing.T) {
	started := make(chan struct{})
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(AsyncFunc(func(ctx context.Context) <-chan AsyncResult {
			close(started)
			return make(chan AsyncResult)
		})),
		NewStep("b", "", ""),
	)
	engine, _ := newTestEngine(t, seq)

	done := make(chan error, 1)
	go func() { done <- engine.Next(context.Background()) }()
	<-started

	engine.Destroy()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrDestroyed))
	case <-time.After(2 * time.Second):
		t.Fatal("validation was not cancelled by Destroy")
	}
	assert.Equal(t, 0, engine.CurrentIndex())
}

func TestResetDiscardsPendingValidation(t *testing.T) {
	gate := newGateValidator()
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", "").WithValidator(gate),
		NewStep("c", "", ""),
	)
	engine, rec := newTestEngine(t, seq)
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	assert.True(t, engine.IsValidated(0))

	done := make(chan error, 1)
	go func() { done <- engine.Next(ctx) }()
	<-gate.started

	require.NoError(t, engine.Reset())
	gate.release <- true
	assert.True(t, errors.Is(<-done, ErrAborted))

	state := engine.State()
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Empty(t, state.Validated)
	assert.Equal(t, []int{0}, state.Visited)
	assert.False(t, state.Busy)

	// StepChanged 0->1, then Reset's 1->0
	assert.Equal(t, []EventType{EventStepChanged, EventStepChanged}, rec.types())
	assert.Equal(t, 0, rec.all()[1].To)

	// Fully usable after reset
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 1, engine.CurrentIndex())
}

func TestCompletedOncePerTraversal(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", ""),
	)
	engine, rec := newTestEngine(t, seq)
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.Next(ctx))
	assert.True(t, engine.IsCompleted())
	assert.True(t, errors.Is(engine.Next(ctx), ErrOutOfRange))
	assert.True(t, errors.Is(engine.Skip(), ErrOutOfRange))
	assert.Equal(t, 1, rec.count(EventCompleted))

	// Going back leaves the completed state, a new traversal completes again
	require.NoError(t, engine.Previous())
	assert.False(t, engine.IsCompleted())
	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 2, rec.count(EventCompleted))
}

func TestSingleStepSequence(t *testing.T) {
	v := newCountingValidator(false, true)
	engine, rec := newTestEngine(t, MustSequence(NewStep("only", "", "").WithValidator(v)))
	ctx := context.Background()

	assert.True(t, errors.Is(engine.Previous(), ErrOutOfRange))
	assert.True(t, errors.Is(engine.Next(ctx), ErrStepValidationFailed))
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, []EventType{EventStepValidationFailed, EventCompleted}, rec.types())
}

func TestUsageErrors(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", ""),
	)
	engine, rec := newTestEngine(t, seq)
	ctx := context.Background()

	assert.True(t, errors.Is(engine.GoTo(ctx, 2), ErrOutOfRange))
	assert.True(t, errors.Is(engine.GoTo(ctx, -1), ErrOutOfRange))
	assert.True(t, errors.Is(engine.Previous(), ErrOutOfRange))
	assert.True(t, errors.Is(engine.GoToID(ctx, "missing"), ErrStepNotFound))
	assert.True(t, errors.Is(engine.Skip(), ErrNotSkippable))

	assert.Equal(t, 0, engine.CurrentIndex())
	assert.Empty(t, rec.all())

	require.NoError(t, engine.GoToID(ctx, "b"))
	assert.Equal(t, 1, engine.CurrentIndex())
}

func TestStrictLinearValidatesIntermediateStepsInOrder(t *testing.T) {
	var order []string
	record := func(id string, valid bool) Validator {
		return Predicate(func() bool {
			order = append(order, id)
			return valid
		})
	}
	seq := MustSequence(
		NewStep("a", "", "").WithValidator(record("a", true)),
		NewStep("b", "", "").WithValidator(record("b", true)),
		NewStep("c", "", "").WithValidator(record("c", false)),
		NewStep("d", "", "").WithValidator(record("d", true)),
		NewStep("e", "", ""),
	)
	engine, rec := newTestEngine(t, seq)

	err := engine.GoTo(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepValidationFailed))

	// Fail-fast: d is never checked
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, engine.CurrentIndex())
	// A failed walk does not record the steps that passed
	assert.Empty(t, engine.State().Validated)

	require.Len(t, rec.all(), 1)
	assert.Equal(t, 2, rec.all()[0].Index)
	assert.Equal(t, "c", rec.all()[0].StepID)
}

func TestStrictLinearSkipsSatisfiedSteps(t *testing.T) {
	b := newCountingValidator()
	c := newCountingValidator(false)
	d := newCountingValidator(false)
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", "").WithValidator(b),
		NewStep("c", "", "").AsOptional().WithValidator(c),
		NewStep("d", "", "").AsSkippable().WithValidator(d),
		NewStep("e", "", ""),
		NewStep("f", "", ""),
	)
	engine, _ := newTestEngine(t, seq, WithOptionalSoftFail(true))
	ctx := context.Background()

	// Jumping from a to c validates a and b but leaves optional c alone
	require.NoError(t, engine.GoTo(ctx, 2))
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, 0, c.Calls(), "optional intermediate steps are not validated")
	assert.True(t, engine.IsValidated(1))

	// c is the departing step now: optional, invalid, but not blocking
	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 3, engine.CurrentIndex())
	assert.Equal(t, 1, c.Calls())
	assert.False(t, engine.IsValidated(2))
	status, err := engine.StepStatus("c")
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, status)

	require.NoError(t, engine.Skip())
	assert.Equal(t, 4, engine.CurrentIndex())

	// From the start, b is validated, c optional and d skipped; only a and e run
	require.NoError(t, engine.GoTo(ctx, 0))
	require.NoError(t, engine.GoTo(ctx, 5))
	assert.Equal(t, 5, engine.CurrentIndex())
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, 0, d.Calls())
}

func TestOptionalStepBlocksByDefault(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", "").AsOptional().WithValidator(Predicate(func() bool { return false })),
		NewStep("b", "", ""),
	)
	engine, rec := newTestEngine(t, seq)

	err := engine.Next(context.Background())
	assert.True(t, errors.Is(err, ErrStepValidationFailed))
	assert.Equal(t, 0, engine.CurrentIndex())
	assert.Equal(t, []EventType{EventStepValidationFailed}, rec.types())
	assert.False(t, engine.State().OptionalSoftFail)
}

func TestOptionalSoftFailStillReportsInvalid(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", "").AsOptional().WithValidator(Predicate(func() bool { return false })),
		NewStep("b", "", "").AsOptional().WithValidator(Predicate(func() bool { return false })),
		NewStep("c", "", "").AsOptional().WithValidator(ValidatorFunc(func(context.Context) (bool, error) {
			return false, errors.New("boom")
		})),
	)
	engine, rec := newTestEngine(t, seq, WithOptionalSoftFail(true))
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	assert.Equal(t, 1, engine.CurrentIndex())
	assert.False(t, engine.IsValidated(0))
	assert.Equal(t, []EventType{EventStepValidationFailed, EventStepChanged}, rec.types())

	ev := rec.all()[0]
	assert.Equal(t, 0, ev.Index)
	assert.Equal(t, "a", ev.StepID)
	assert.True(t, errors.Is(ev.Err, ErrStepValidationFailed))

	status, err := engine.StepStatus("a")
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, status)

	// Errors are never softened
	require.NoError(t, engine.Next(ctx))
	err = engine.Next(ctx)
	assert.True(t, errors.Is(err, ErrValidationFailure))
	assert.Equal(t, 2, engine.CurrentIndex())
	assert.False(t, engine.IsCompleted())
	assert.Equal(t, 1, rec.count(EventValidationFailure))
}

func TestNonStrictLinearLocksUnvalidatedSteps(t *testing.T) {
	b := newCountingValidator()
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", "").WithValidator(b),
		NewStep("c", "", ""),
	)
	engine, rec := newTestEngine(t, seq, WithStrictLinear(false))
	ctx := context.Background()

	err := engine.GoTo(ctx, 2)
	assert.True(t, errors.Is(err, ErrStepLocked))
	assert.Equal(t, 0, b.Calls())
	assert.Empty(t, rec.all())

	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.GoTo(ctx, 0))

	// b has been validated once, so the jump is allowed now
	require.NoError(t, engine.GoTo(ctx, 2))
	assert.Equal(t, 2, engine.CurrentIndex())
	assert.Equal(t, 1, b.Calls())
}

func TestDirectJumpDisabled(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", ""),
		NewStep("c", "", ""),
	)
	engine, _ := newTestEngine(t, seq, WithLinear(false), WithAllowDirectJump(false))
	ctx := context.Background()

	assert.True(t, errors.Is(engine.GoTo(ctx, 2), ErrDirectJumpDisabled))
	require.NoError(t, engine.GoTo(ctx, 1))
	require.NoError(t, engine.Next(ctx))
	assert.True(t, errors.Is(engine.GoTo(ctx, 0), ErrDirectJumpDisabled))
	require.NoError(t, engine.Previous())
	assert.Equal(t, 1, engine.CurrentIndex())
}

func TestInitialIndexIsClamped(t *testing.T) {
	seq := MustSequence(NewStep("a", "", ""), NewStep("b", "", ""))

	high := New(seq, WithInitialIndex(10))
	assert.Equal(t, 1, high.CurrentIndex())

	low := New(seq, WithInitialIndex(-3))
	assert.Equal(t, 0, low.CurrentIndex())
}

func TestStatusBoard(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", "").WithValidator(Predicate(func() bool { return false })),
		NewStep("c", "", "").AsOptional().AsSkippable(),
	)
	seq.steps[0].AddTag("intro")
	engine, _ := newTestEngine(t, seq, WithSessionID("session-1"))
	board := engine.Store()

	assert.Equal(t, "step:session-1:a", engine.StepKey("a"))
	assert.Equal(t, "wizard:session-1", engine.WizardKey())

	statusOf := func(id string) string {
		s, err := engine.StepStatus(id)
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, StatusCurrent, statusOf("a"))
	assert.Equal(t, StatusPending, statusOf("b"))

	require.NoError(t, engine.Next(context.Background()))
	assert.Equal(t, StatusValidated, statusOf("a"))
	assert.Equal(t, StatusCurrent, statusOf("b"))

	// A failing current step stays current on the board
	assert.Error(t, engine.Next(context.Background()))
	assert.Equal(t, StatusCurrent, statusOf("b"))
	require.NoError(t, engine.Previous())
	assert.Equal(t, StatusInvalid, statusOf("b"))

	assert.ElementsMatch(t, []string{engine.StepKey("c")}, board.FindKeysByTag(TagOptional))
	assert.ElementsMatch(t, []string{engine.StepKey("a")}, board.FindKeysByTag("intro"))
	assert.Len(t, board.FindKeysByTag(TagStep), 3)

	order, err := board.GetProperty(engine.StepKey("c"), PropOrder)
	require.NoError(t, err)
	assert.Equal(t, 2, order)

	current, err := board.GetProperty(engine.WizardKey(), PropCurrent)
	require.NoError(t, err)
	assert.Equal(t, "a", current)

	_, err = engine.StepStatus("missing")
	assert.True(t, errors.Is(err, ErrStepNotFound))
}

func TestStatusBoardQueries(t *testing.T) {
	seq := MustSequence(
		NewStep("a", "", ""),
		NewStep("b", "", "").AsSkippable(),
		NewStep("c", "", "").WithValidator(Predicate(func() bool { return false })),
		NewStep("d", "", ""),
	)
	engine, _ := newTestEngine(t, seq, WithSessionID("queries"))
	board := engine.Store()
	ctx := context.Background()

	// A second wizard on the same board stays out of the answers
	other := New(seq, WithStore(board), WithSessionID("other"))
	require.NoError(t, other.Next(ctx))

	assert.Equal(t, []string{"b", "c", "d"}, engine.StepsWithStatus(StatusPending))
	assert.Equal(t, []string{other.StepKey("b"), engine.StepKey("a")}, board.FindKeysByTag(TagCurrent))

	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.Skip())
	assert.Error(t, engine.Next(ctx))
	require.NoError(t, engine.GoTo(ctx, 0))

	assert.Equal(t, []string{"a"}, engine.StepsWithStatus(StatusCurrent))
	assert.Equal(t, []string{"b"}, engine.StepsWithStatus(StatusSkipped))
	assert.Equal(t, []string{"c"}, engine.StepsWithStatus(StatusInvalid))
	assert.Equal(t, []string{"d"}, engine.StepsWithStatus(StatusPending))
	assert.Empty(t, engine.StepsWithStatus(StatusValidated))

	tagged, err := board.HasTag(engine.StepKey("c"), TagCurrent)
	require.NoError(t, err)
	assert.False(t, tagged, "the tag follows the current step")
	assert.Contains(t, board.FindKeysByTag(TagCurrent), engine.StepKey("a"))
}

func TestCurrentTagClearedOnCompletion(t *testing.T) {
	seq := MustSequence(NewStep("a", "", ""), NewStep("b", "", ""))
	engine, _ := newTestEngine(t, seq)
	ctx := context.Background()

	require.NoError(t, engine.Next(ctx))
	require.NoError(t, engine.Next(ctx))
	require.True(t, engine.IsCompleted())
	assert.Empty(t, engine.Store().FindKeysByTag(TagCurrent))
	assert.Equal(t, []string{"a", "b"}, engine.StepsWithStatus(StatusValidated))
}

func TestListenerPanicAndUnsubscribe(t *testing.T) {
	seq := MustSequence(NewStep("a", "", ""), NewStep("b", "", ""), NewStep("c", "", ""))
	engine, rec := newTestEngine(t, seq)

	engine.Subscribe(func(Event) { panic("listener bug") })
	extra := &eventRecorder{}
	unsubscribe := engine.Subscribe(extra.listener())

	ctx := context.Background()
	require.NoError(t, engine.Next(ctx))
	unsubscribe()
	unsubscribe()
	require.NoError(t, engine.Next(ctx))

	assert.Equal(t, 2, rec.count(EventStepChanged))
	assert.Equal(t, 1, extra.count(EventStepChanged))
}

func TestCurrentIndexStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		n := 1 + rng.Intn(6)
		steps := make([]*Step, n)
		for i := range steps {
			step := NewStep(string(rune('a'+i)), "", "")
			step.Optional = rng.Intn(4) == 0
			step.Skippable = rng.Intn(3) == 0
			if rng.Intn(2) == 0 {
				step.Validator = Predicate(func() bool { return rng.Intn(3) > 0 })
			}
			steps[i] = step
		}
		engine := New(MustSequence(steps...),
			WithLinear(rng.Intn(2) == 0),
			WithStrictLinear(rng.Intn(2) == 0),
			WithAllowDirectJump(rng.Intn(2) == 0),
		)

		ctx := context.Background()
		for cmd := 0; cmd < 50; cmd++ {
			switch rng.Intn(5) {
			case 0:
				_ = engine.Next(ctx)
			case 1:
				_ = engine.Previous()
			case 2:
				_ = engine.Skip()
			case 3:
				_ = engine.GoTo(ctx, rng.Intn(n+2)-1)
			case 4:
				if rng.Intn(10) == 0 {
					require.NoError(t, engine.Reset())
				}
			}
			idx := engine.CurrentIndex()
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, n)
		}
	}
}
