package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job " + j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

type recordingObserver struct {
	mu       sync.Mutex
	finished map[string]int
	failed   map[string]int
}

func (o *recordingObserver) JobFinished(job string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished, o.failed = map[string]int{}, map[string]int{}
	}
	o.finished[job]++
	if err != nil {
		o.failed[job]++
	}
}

func newTestScheduler(obs JobObserver) *Scheduler {
	return New(Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observer: obs,
		Tick:     5 * time.Millisecond,
	})
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(nil)
	job := funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)
	assert.Nil(t, jobs[0].LastResult)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestScheduler(obs)

	var runs atomic.Int32
	require.NoError(t, s.Register(funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.GreaterOrEqual(t, obs.finished["tick"], 2)
	assert.Zero(t, obs.failed["tick"])
}

func TestScheduler_NoOverlappingRuns(t *testing.T) {
	s := newTestScheduler(nil)

	var concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Register(funcJob{name: "slow", run: func(ctx context.Context) error {
		n := concurrent.Add(1)
		defer concurrent.Add(-1)
		if n > maxConcurrent.Load() {
			maxConcurrent.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return concurrent.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, s.Stop())

	assert.EqualValues(t, 1, maxConcurrent.Load())
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := newTestScheduler(nil)

	started := make(chan struct{})
	var once sync.Once
	require.NoError(t, s.Register(funcJob{name: "blocking", run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	<-started

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not wait for cancelled job")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestScheduler(obs)
	boom := errors.New("boom")

	require.NoError(t, s.Register(funcJob{name: "fails", run: func(context.Context) error { return boom }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "panics", run: func(context.Context) error { panic("bad job") }}, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "fails")
	assert.ErrorIs(t, err, boom)
	assert.False(t, result.Success)
	assert.True(t, result.Manual)

	_, err = s.RunNow(context.Background(), "panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "fails", jobs[0].Name)
	assert.EqualValues(t, 1, jobs[0].FailCount)
	require.NotNil(t, jobs[0].LastResult)
	assert.Equal(t, 1, obs.failed["panics"])
}

func TestEvery(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(15*time.Minute), Every(15*time.Minute).Next(at))
}
