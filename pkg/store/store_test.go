package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/hfsm"
)

func snapshot(current string) hfsm.Snapshot[string] {
	return hfsm.Snapshot[string]{
		CurrentState: current,
		History:      []hfsm.HistoryEntry[string]{{SuperState: "p", LastActiveState: current}},
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	st, err := NewMemoryStore[string](logger)
	require.NoError(t, err)

	_, err = st.Load(ctx, "door-1")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := st.Save(ctx, "door-1", snapshot("a"))
	require.NoError(t, err)
	second, err := st.Save(ctx, "door-1", snapshot("b"))
	require.NoError(t, err)
	_, err = st.Save(ctx, "door-2", snapshot("z"))
	require.NoError(t, err)
	assert.Equal(t, -1, first.Compare(second))

	loaded, err := st.Load(ctx, "door-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot("b"), loaded)

	versions, err := st.Versions(ctx, "door-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, first, versions[0].Version)
	assert.Equal(t, second, versions[1].Version)
	assert.Equal(t, "door-1", versions[0].MachineID)
	assert.False(t, versions[0].SavedAt.IsZero())

	old, err := st.LoadVersion(ctx, "door-1", first)
	require.NoError(t, err)
	assert.Equal(t, snapshot("a"), old)
	_, err = st.LoadVersion(ctx, "door-1", ulid.Make())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Delete(ctx, "door-1"))
	_, err = st.Load(ctx, "door-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.Delete(ctx, "door-1"), ErrNotFound)

	other, err := st.Load(ctx, "door-2")
	require.NoError(t, err)
	assert.Equal(t, "z", other.CurrentState)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "memory", hook.LastEntry().Data["store"])
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	st, err := NewMemoryStore[string](nil)
	require.NoError(t, err)

	_, err = st.Save(context.Background(), "", snapshot("a"))
	assert.ErrorIs(t, err, errEmptyID)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = st.Save(canceled, "door", snapshot("a"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = st.Load(canceled, "door")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, st.Delete(canceled, "door"), context.Canceled)
}

func TestFileStore(t *testing.T) {
	for _, format := range []Format{JSON, YAML} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			dir := filepath.Join(t.TempDir(), "snapshots")
			st, err := NewFileStore[string](dir, format)
			require.NoError(t, err)

			_, err = st.Load(ctx, "door-1")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = st.Save(ctx, "door-1", snapshot("a"))
			require.NoError(t, err)
			version, err := st.Save(ctx, "door-1", snapshot("b"))
			require.NoError(t, err)

			loaded, err := st.Load(ctx, "door-1")
			require.NoError(t, err)
			assert.Equal(t, snapshot("b"), loaded)

			record, err := st.Record(ctx, "door-1")
			require.NoError(t, err)
			assert.Equal(t, version, record.Version)
			assert.Equal(t, "door-1", record.MachineID)

			data, err := os.ReadFile(filepath.Join(dir, "door-1."+string(format)))
			require.NoError(t, err)
			assert.Contains(t, string(data), "currentState")
			assert.Contains(t, string(data), version.String())

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files are renamed away")

			require.NoError(t, st.Delete(ctx, "door-1"))
			assert.ErrorIs(t, st.Delete(ctx, "door-1"), ErrNotFound)
		})
	}
}

func TestFileStore_InvalidInput(t *testing.T) {
	_, err := NewFileStore[string](t.TempDir(), Format("xml"))
	assert.Error(t, err)

	st, err := NewFileStore[string](t.TempDir(), JSON)
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := st.Save(context.Background(), id, snapshot("a"))
		if err == nil {
			t.Errorf("Expected error for machine id %q", id)
		}
	}

	require.NoError(t, os.WriteFile(filepath.Join(st.dir, "broken.json"), []byte("{not json"), 0o644))
	_, err = st.Load(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, strings.Contains(err.Error(), "json unmarshal"))
}

func TestPassivateAndActivate(t *testing.T) {
	ctx := context.Background()
	def, err := hfsm.NewBuilder[string, string]("door").
		Composite("open").History(hfsm.HistoryShallow).Children("ajar", "wide").
		State("ajar").To("wide").On("push").
		State("open").To("closed").On("slam").
		State("closed").To("open").On("pull").
		Build()
	require.NoError(t, err)

	stores := map[string]func(t *testing.T) Store[string]{
		"memory": func(t *testing.T) Store[string] {
			st, err := NewMemoryStore[string](nil)
			require.NoError(t, err)
			return st
		},
		"file": func(t *testing.T) Store[string] {
			st, err := NewFileStore[string](t.TempDir(), YAML)
			require.NoError(t, err)
			return st
		},
	}

	for name, create := range stores {
		t.Run(name, func(t *testing.T) {
			st := create(t)

			first := hfsm.NewPassiveMachine(def)
			require.NoError(t, first.Initialize("open"))
			require.NoError(t, first.Start())
			require.NoError(t, first.Fire("push"))
			require.NoError(t, first.Fire("slam"))

			_, err := PassivateTo[string, string](ctx, first, st, "door-7")
			require.NoError(t, err)
			assert.Equal(t, hfsm.Terminated, first.RunningState())

			second := hfsm.NewPassiveMachine(def)
			require.NoError(t, ActivateFrom[string, string](ctx, second, st, "door-7"))
			require.NoError(t, second.Start())
			assert.Equal(t, "closed", second.CurrentState())

			require.NoError(t, second.Fire("pull"))
			assert.Equal(t, "wide", second.CurrentState())

			third := hfsm.NewPassiveMachine(def)
			err = ActivateFrom[string, string](ctx, third, st, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = PassivateTo[string, string](ctx, hfsm.NewPassiveMachine(def), st, "never-started")
			assert.ErrorIs(t, err, hfsm.ErrNotInitialized)
		})
	}
}
