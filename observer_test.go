package hfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingObserver struct {
	BaseObserver[string, string]
	errors []error
}

func (o *panickingObserver) OnTransitionCompleted(ctx *Context[string, string], newState string) {
	panic("observer exploded")
}

func (o *panickingObserver) OnError(ctx *Context[string, string], err error) {
	o.errors = append(o.errors, err)
}

func TestObserverManager_PanicsAreContained(t *testing.T) {
	bad := &panickingObserver{}
	good := NewTestObserver()

	def := NewDefinition[string, string]("observed")
	def.AddTransition("a", "go", "b")
	def.AddObserver(bad)
	def.AddObserver(good)

	m := NewMachine(def)
	_, err := m.Initialize("a")
	require.NoError(t, err)

	ctx := mustFire(t, m, "go")
	AssertState(t, m, "b")
	assert.Equal(t, []string{"b"}, good.CompletedStates())
	require.Len(t, bad.errors, 1)
	assert.Contains(t, bad.errors[0].Error(), "OnTransitionCompleted")
	assert.Empty(t, ctx.Errors(), "observer failures are not machine errors")
}

func TestObserverManager_ExtendedNotifications(t *testing.T) {
	observer := NewTestObserver()
	def := CreateHierarchyDefinition(t, &Recorder{})
	def.AddObserver(observer)

	m := NewMachine(def)
	_, err := m.Initialize("root")
	require.NoError(t, err)
	mustFire(t, m, "away")

	assert.Equal(t, []string{"root", "mid", "leafA", "other"}, observer.Enters)
	assert.Equal(t, []string{"leafA", "mid"}, observer.Exits)
	assert.Equal(t, []string{"away"}, observer.Begins)
}

func TestObserverManager_AddRemove(t *testing.T) {
	om := NewObserverManager[string, string]()
	first := NewTestObserver()
	second := NewTestObserver()

	om.AddObserver(first)
	om.AddObserver(second)
	assert.Equal(t, 2, om.Len())

	om.RemoveObserver(first)
	assert.Equal(t, 1, om.Len())
	om.RemoveObserver(first)
	assert.Equal(t, 1, om.Len())

	def := NewDefinition[string, string]("removed")
	def.AddTransition("a", "go", "b")
	def.AddObserver(first)
	def.RemoveObserver(first)
	m := NewMachine(def)
	_, err := m.Initialize("a")
	require.NoError(t, err)
	mustFire(t, m, "go")
	assert.Empty(t, first.CompletedStates())
}
