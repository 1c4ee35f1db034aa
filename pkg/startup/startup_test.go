package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func recorder(events *[]string, name string, needs ...string) *Dependency {
	return &Dependency{
		Name:  name,
		Needs: needs,
		StartFunc: func(context.Context) error {
			*events = append(*events, "start "+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			*events = append(*events, "stop "+name)
			return nil
		},
	}
}

func TestStartup_DependencyOrder(t *testing.T) {
	var events []string
	s := newTestStartup(1)
	s.AddDependency(recorder(&events, "store", "database"))
	s.AddDependency(recorder(&events, "database"))
	s.AddDependency(recorder(&events, "lock"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start store", "start lock"}, events)
	assert.Equal(t, StartupStatusStarted, s.Status("store"))

	events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop lock", "stop store", "stop database"}, events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	s := newTestStartup(3)
	s.AddDependency(&Dependency{
		Name: "graph",
		StartFunc: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := newTestStartup(2)
	s.AddDependency(&Dependency{
		Name:      "kafka",
		StartFunc: func(context.Context) error { return errors.New("no brokers") },
	})

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "after 2 attempts")
	assert.ErrorContains(t, err, "no brokers")
	assert.Equal(t, StartupStatusFailed, s.Status("kafka"))
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	s := newTestStartup(1)
	s.AddDependency(&Dependency{Name: "store", Needs: []string{"database"}})
	assert.ErrorContains(t, s.Start(context.Background()), "unknown startup dependency")

	s = newTestStartup(1)
	s.AddDependency(&Dependency{Name: "a", Needs: []string{"b"}})
	s.AddDependency(&Dependency{Name: "b", Needs: []string{"a"}})
	assert.ErrorContains(t, s.Start(context.Background()), "cycle")
}

func TestStartup_StopOnlyStarted(t *testing.T) {
	var events []string
	s := newTestStartup(1)
	s.AddDependency(recorder(&events, "database"))
	s.AddDependency(&Dependency{
		Name:      "store",
		StartFunc: func(context.Context) error { return errors.New("boom") },
		StopFunc: func(context.Context) error {
			events = append(events, "stop store")
			return nil
		},
	})

	require.Error(t, s.Start(context.Background()))
	events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop database"}, events)
}
