package hfsm

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHierarchyMachine(t *testing.T) (*Machine[string, string], *Recorder, *TestObserver) {
	t.Helper()
	rec := &Recorder{}
	observer := NewTestObserver()
	def := CreateHierarchyDefinition(t, rec)
	def.AddObserver(observer)
	m := NewMachine(def)
	if _, err := m.Initialize("root"); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	return m, rec, observer
}

func TestMachine_Initialize(t *testing.T) {
	rec := &Recorder{}
	m := NewMachine(CreateHierarchyDefinition(t, rec))

	assert.False(t, m.IsInitialized())
	assert.Equal(t, "", m.CurrentState())

	ctx, err := m.Initialize("root")
	require.NoError(t, err)
	AssertTrace(t, ctx, "Enter(root) Enter(mid) Enter(leafA)")
	AssertState(t, m, "leafA")
	assert.Equal(t, []string{"enter:root", "enter:mid", "enter:leafA"}, rec.Calls())

	_, ok := ctx.Event()
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, ctx.EventID())

	_, err = m.Initialize("root")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestMachine_InitializeNestedState(t *testing.T) {
	m := NewMachine(CreateHierarchyDefinition(t, &Recorder{}))

	ctx, err := m.Initialize("leafB")
	require.NoError(t, err)
	AssertTrace(t, ctx, "Enter(root) Enter(mid) Enter(leafB)")
	assert.True(t, m.IsInState("mid"))
	assert.True(t, m.IsInState("root"))
	assert.False(t, m.IsInState("leafA"))
}

func TestMachine_InitializeUnknownState(t *testing.T) {
	m := NewMachine(CreateHierarchyDefinition(t, &Recorder{}))

	_, err := m.Initialize("nowhere")
	require.Error(t, err)
	assert.True(t, IsStateError(err))
	assert.Equal(t, ErrCodeStateNotFound, GetErrorCode(err))
	assert.False(t, m.IsInitialized())
}

func TestMachine_FireBeforeInitialize(t *testing.T) {
	m := NewMachine(CreateHierarchyDefinition(t, &Recorder{}))

	_, err := m.Fire("sibling")
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestMachine_TransitionTraces(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		event    string
		expected string
		final    string
	}{
		{"siblings under the same parent", "leafA", "sibling", "Exit(leafA) Enter(leafB)", "leafB"},
		{"leaf to a shallower state", "leafA", "away", "Exit(leafA) Exit(mid) Enter(other)", "other"},
		{"transition inherited from an ancestor", "leafB", "reset", "Exit(leafB) Exit(mid) Enter(other)", "other"},
		{"target below the source", "other", "deep", "Exit(other) Enter(mid) Enter(leafB)", "leafB"},
		{"target above the source", "leafA", "up", "Exit(leafA) Exit(mid) Enter(mid) Enter(leafA)", "leafA"},
		{"composite target enters its initial child", "other", "back", "Exit(other) Enter(mid) Enter(leafA)", "leafA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(CreateHierarchyDefinition(t, &Recorder{}))
			_, err := m.Initialize(tt.start)
			require.NoError(t, err)

			ctx := mustFire(t, m, tt.event)
			AssertTrace(t, ctx, tt.expected)
			AssertState(t, m, tt.final)
			assert.Equal(t, tt.start, ctx.State())
		})
	}
}

func TestMachine_CousinTransitions(t *testing.T) {
	m := NewMachine(CreateCousinDefinition(t))
	_, err := m.Initialize("a")
	require.NoError(t, err)

	ctx := mustFire(t, m, "cross")
	AssertTrace(t, ctx, "Exit(a) Exit(m1) Enter(m2) Enter(d) Enter(d1)")
	AssertState(t, m, "d1")

	ctx = mustFire(t, m, "cross")
	AssertTrace(t, ctx, "Exit(d1) Exit(d) Exit(m2) Enter(m1) Enter(b)")
	AssertState(t, m, "b")
}

func TestMachine_ActionOrder(t *testing.T) {
	m, rec, _ := newHierarchyMachine(t)
	def := m.Definition()
	def.AddTransition("leafB", "cross", "other").Do(rec.Action("transition"))

	mustFire(t, m, "sibling")
	mustFire(t, m, "cross")

	expected := []string{
		"enter:root", "enter:mid", "enter:leafA",
		"exit:leafA", "enter:leafB",
		"exit:leafB", "exit:mid", "transition", "enter:other",
	}
	assert.Equal(t, expected, rec.Calls())
}

func TestMachine_SelfTransition(t *testing.T) {
	t.Run("leaf", func(t *testing.T) {
		m, _, _ := newHierarchyMachine(t)
		m.Definition().AddTransition("leafA", "again", "leafA")

		ctx := mustFire(t, m, "again")
		AssertTrace(t, ctx, "Exit(leafA) Enter(leafA)")
		AssertState(t, m, "leafA")
	})

	t.Run("composite", func(t *testing.T) {
		m, _, _ := newHierarchyMachine(t)
		m.Definition().AddTransition("mid", "again", "mid")
		mustFire(t, m, "sibling")

		ctx := mustFire(t, m, "again")
		AssertTrace(t, ctx, "Exit(leafB) Exit(mid) Enter(mid) Enter(leafA)")
		AssertState(t, m, "leafA")
	})
}

func TestMachine_InternalTransition(t *testing.T) {
	m, rec, observer := newHierarchyMachine(t)
	m.Definition().AddInternalTransition("mid", "tick").Do(rec.Action("tick"))

	ctx := mustFire(t, m, "tick", 42)
	assert.Empty(t, ctx.Records())
	AssertState(t, m, "leafA")
	assert.Equal(t, "tick", rec.Calls()[len(rec.Calls())-1])
	assert.Equal(t, []string{"leafA"}, observer.CompletedStates())
	assert.Equal(t, 42, ctx.Arg(0))
	assert.Nil(t, ctx.Arg(1))
}

func TestMachine_DeclinedEvent(t *testing.T) {
	m, _, observer := newHierarchyMachine(t)

	ctx, err := m.Fire("unknown")
	require.NoError(t, err)
	assert.Empty(t, ctx.Records())
	AssertState(t, m, "leafA")
	assert.Equal(t, 1, observer.DeclinedCount())
	assert.Equal(t, []string{"unknown"}, observer.Declined)
	assert.Empty(t, observer.Begins)

	// every candidate guarded away is a decline as well
	m.Definition().AddTransition("leafA", "blocked", "leafB").When(never)
	mustFire(t, m, "blocked")
	assert.Equal(t, 2, observer.DeclinedCount())
	AssertState(t, m, "leafA")
}

func TestMachine_GuardOrdering(t *testing.T) {
	t.Run("first guard false", func(t *testing.T) {
		def := NewDefinition[string, string]("guards")
		def.AddTransition("a", "go", "b").When(never)
		def.AddTransition("a", "go", "c").When(always)
		m := NewMachine(def)
		_, err := m.Initialize("a")
		require.NoError(t, err)

		mustFire(t, m, "go")
		AssertState(t, m, "c")
	})

	t.Run("first guard true", func(t *testing.T) {
		def := NewDefinition[string, string]("guards")
		def.AddTransition("a", "go", "b").When(always)
		def.AddTransition("a", "go", "c").When(always)
		m := NewMachine(def)
		_, err := m.Initialize("a")
		require.NoError(t, err)

		mustFire(t, m, "go")
		AssertState(t, m, "b")
	})

	t.Run("falls through to the parent", func(t *testing.T) {
		m, _, _ := newHierarchyMachine(t)
		m.Definition().AddTransition("leafA", "reset", "leafB").When(never)

		mustFire(t, m, "reset")
		AssertState(t, m, "other")
	})

	t.Run("guard sees the event arguments", func(t *testing.T) {
		def := NewDefinition[string, string]("args")
		def.AddTransition("a", "go", "b").When(func(ctx *Context[string, string]) bool {
			return ctx.Arg(0) == "open sesame"
		})
		m := NewMachine(def)
		_, err := m.Initialize("a")
		require.NoError(t, err)

		mustFire(t, m, "go", "wrong")
		AssertState(t, m, "a")
		mustFire(t, m, "go", "open sesame")
		AssertState(t, m, "b")
	})
}

func TestMachine_GuardPanic(t *testing.T) {
	observer := NewTestObserver()
	def := NewDefinition[string, string]("panic")
	def.AddObserver(observer)
	def.AddTransition("a", "go", "b").When(func(ctx *Context[string, string]) bool {
		panic("boom")
	})
	def.AddTransition("a", "go", "c")
	m := NewMachine(def)
	_, err := m.Initialize("a")
	require.NoError(t, err)

	ctx := mustFire(t, m, "go")
	AssertState(t, m, "c")
	require.Len(t, ctx.Errors(), 1)
	assert.True(t, IsGuardError(ctx.Errors()[0]))
	assert.Contains(t, ctx.Errors()[0].Error(), "boom")
	assert.Equal(t, 1, observer.ErrorCount())
}

func TestMachine_ActionErrorsAreIsolated(t *testing.T) {
	rec := &Recorder{}
	observer := NewTestObserver()
	def := CreateHierarchyDefinition(t, rec)
	def.AddObserver(observer)
	failure := errors.New("entry failed")
	def.State("mid").OnEntry(func(ctx *Context[string, string]) error { return failure })
	m := NewMachine(def)
	_, err := m.Initialize("other")
	require.NoError(t, err)

	ctx := mustFire(t, m, "back")
	AssertState(t, m, "leafA")
	AssertTrace(t, ctx, "Exit(other) Enter(mid) Enter(leafA)")
	assert.Contains(t, rec.Calls(), "enter:leafA")

	require.Len(t, ctx.Errors(), 1)
	assert.Equal(t, 1, observer.ErrorCount())
	assert.ErrorIs(t, ctx.Errors()[0], failure)

	var actionErr *ActionError
	require.True(t, errors.As(ctx.Errors()[0], &actionErr))
	assert.Equal(t, EntryAction, actionErr.Kind)
	assert.Equal(t, "mid", actionErr.State)
}

func TestMachine_ActionPanic(t *testing.T) {
	def := NewDefinition[string, string]("panic")
	def.AddTransition("a", "go", "b").Do(
		func(ctx *Context[string, string]) error { panic("kaboom") },
		func(ctx *Context[string, string]) error {
			ctx.Set("second", true)
			return nil
		},
	)
	m := NewMachine(def)
	_, err := m.Initialize("a")
	require.NoError(t, err)

	ctx := mustFire(t, m, "go")
	AssertState(t, m, "b")
	require.Len(t, ctx.Errors(), 1)
	assert.True(t, IsActionError(ctx.Errors()[0]))
	assert.Equal(t, ErrCodeActionFailed, GetErrorCode(ctx.Errors()[0]))

	second, ok := m.Get("second")
	assert.True(t, ok)
	assert.Equal(t, true, second)
}

func TestMachine_Terminate(t *testing.T) {
	m, rec, _ := newHierarchyMachine(t)

	ctx := m.Terminate()
	AssertTrace(t, ctx, "Exit(leafA) Exit(mid) Exit(root)")
	assert.True(t, m.IsTerminated())
	calls := len(rec.Calls())

	again := m.Terminate()
	assert.Empty(t, again.Records())
	assert.Len(t, rec.Calls(), calls)

	_, err := m.Fire("sibling")
	assert.ErrorIs(t, err, ErrTerminated)
}

func TestMachine_TerminateBeforeInitialize(t *testing.T) {
	rec := &Recorder{}
	m := NewMachine(CreateHierarchyDefinition(t, rec))

	ctx := m.Terminate()
	assert.Empty(t, ctx.Records())
	assert.Empty(t, rec.Calls())
	assert.False(t, m.IsTerminated())

	_, err := m.Initialize("root")
	require.NoError(t, err)
	mustFire(t, m, "sibling")
	AssertState(t, m, "leafB")

	ctx = m.Terminate()
	AssertTrace(t, ctx, "Exit(leafB) Exit(mid) Exit(root)")
	assert.True(t, m.IsTerminated())
}

func TestMachine_HistoryNone(t *testing.T) {
	m, _, _ := newHierarchyMachine(t)

	mustFire(t, m, "sibling")
	mustFire(t, m, "away")
	ctx := mustFire(t, m, "back")

	AssertState(t, m, "leafA")
	AssertTrace(t, ctx, "Exit(other) Enter(mid) Enter(leafA)")
	_, ok := m.LastActiveState("mid")
	assert.False(t, ok, "NONE composites do not record history")
}

func TestMachine_HistoryShallow(t *testing.T) {
	def := NewDefinition[string, string]("shallow")
	require.NoError(t, def.DefineHierarchy("p", "a", HistoryShallow, "a", "b"))
	def.AddTransition("a", "next", "b")
	def.AddTransition("p", "leave", "q")
	def.AddTransition("q", "return", "p")
	m := NewMachine(def)
	_, err := m.Initialize("p")
	require.NoError(t, err)

	mustFire(t, m, "next")
	mustFire(t, m, "leave")
	last, ok := m.LastActiveState("p")
	require.True(t, ok)
	assert.Equal(t, "b", last)

	ctx := mustFire(t, m, "return")
	AssertTrace(t, ctx, "Exit(q) Enter(p) Enter(b)")
	AssertState(t, m, "b")
}

func TestMachine_HistoryDeepAndShallow(t *testing.T) {
	tests := []struct {
		name     string
		top      HistoryMode
		middle   HistoryMode
		expected string
	}{
		{"deep restores the exact leaf", HistoryDeep, HistoryShallow, "deep2"},
		{"deep restores through a deep child", HistoryDeep, HistoryDeep, "deep2"},
		{"deep defers to a child without history", HistoryDeep, HistoryNone, "deep1"},
		{"shallow enters the initial chain below", HistoryShallow, HistoryShallow, "deep1"},
		{"none enters the initial child", HistoryNone, HistoryNone, "deep1"},
		{"none lets the initial child apply its own mode", HistoryNone, HistoryShallow, "deep2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(CreateHistoryDefinition(t, tt.top, tt.middle))
			_, err := m.Initialize("top")
			require.NoError(t, err)
			AssertState(t, m, "deep1")

			mustFire(t, m, "next")
			AssertState(t, m, "deep2")
			mustFire(t, m, "leave")
			AssertState(t, m, "away")

			mustFire(t, m, "return")
			AssertState(t, m, tt.expected)
		})
	}
}

func TestMachine_HistoryRecordedOnSiblingMove(t *testing.T) {
	m := NewMachine(CreateHistoryDefinition(t, HistoryShallow, HistoryNone))
	_, err := m.Initialize("top")
	require.NoError(t, err)

	mustFire(t, m, "aside")
	AssertState(t, m, "side")
	mustFire(t, m, "leave")
	mustFire(t, m, "return")
	AssertState(t, m, "side")
}

func TestMachine_Data(t *testing.T) {
	def := NewDefinition[string, string]("data")
	def.AddTransition("a", "inc", "a").Do(func(ctx *Context[string, string]) error {
		count, _ := ctx.Get("count")
		n, _ := count.(int)
		ctx.Set("count", n+1)
		return nil
	})
	m := NewMachine(def)
	_, err := m.Initialize("a")
	require.NoError(t, err)

	mustFire(t, m, "inc")
	ctx := mustFire(t, m, "inc")

	count, ok := m.Get("count")
	require.True(t, ok)
	assert.Equal(t, 2, count)
	assert.NotEqual(t, uuid.Nil, ctx.EventID())
	assert.False(t, ctx.EnqueuedAt().IsZero())
	assert.Same(t, m, ctx.Machine())
}

func TestMachine_Options(t *testing.T) {
	def := NewDefinition[string, string]("definition-name")
	def.State("a")

	m := NewMachine(def)
	assert.Equal(t, "definition-name", m.Name())

	named := NewMachine(def, WithName("custom"))
	assert.Equal(t, "custom", named.Name())
	assert.NotEqual(t, m.ID(), named.ID())
}
