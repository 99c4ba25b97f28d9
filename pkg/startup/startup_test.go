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

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, requires []string, startErrs ...error) *Func {
	calls := 0
	return &Func{
		Name:     name,
		Requires: requires,
		StartFunc: func(context.Context) error {
			calls++
			if calls <= len(startErrs) && startErrs[calls-1] != nil {
				r.events = append(r.events, "fail "+name)
				return startErrs[calls-1]
			}
			r.events = append(r.events, "start "+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			r.events = append(r.events, "stop "+name)
			return nil
		},
	}
}

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStart_DependencyOrder(t *testing.T) {
	r := &recorder{}
	s := newTestStartup(1)
	s.AddDependency(r.dep("http", []string{"processor"}))
	s.AddDependency(r.dep("processor", []string{"database", "redis"}))
	s.AddDependency(r.dep("database", nil))
	s.AddDependency(r.dep("redis", nil))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start redis", "start processor", "start http"}, r.events)

	r.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop http", "stop processor", "stop redis", "stop database"}, r.events)
}

func TestStart_RetriesFailedDependency(t *testing.T) {
	r := &recorder{}
	s := newTestStartup(3)
	s.AddDependency(r.dep("database", nil))
	s.AddDependency(r.dep("redis", nil, errors.New("connection refused")))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "fail redis", "start redis"}, r.events)
	assert.Equal(t, StatusStarted, s.Status("redis"))
}

func TestStart_GivesUp(t *testing.T) {
	r := &recorder{}
	down := errors.New("connection refused")
	s := newTestStartup(2)
	s.AddDependency(r.dep("redis", nil, down, down))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, StatusFailed, s.Status("redis"))
}

func TestStart_Cycle(t *testing.T) {
	r := &recorder{}
	s := newTestStartup(1)
	s.AddDependency(r.dep("a", []string{"b"}))
	s.AddDependency(r.dep("b", []string{"a"}))

	assert.Error(t, s.Start(context.Background()))
	assert.Empty(t, r.events)
}
