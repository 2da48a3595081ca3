package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // fail this many times before succeeding
	calls    int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(time.FixedZone("IST", 5*3600+1800), logger.Nop())
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "a", schedule: "0 15 * * 3"}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "b", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	_, err := s.RunJob("a")
	assert.Error(t, err)
}

func TestRunJobRecordsHistory(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "a", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("a")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)

	history, err := s.GetJobHistory("a")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, 1.0, history.GetSuccessRate())

	stats := s.GetJobStats()["a"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestNoRetryByDefault(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "a", schedule: "@daily", failures: 1}
	require.NoError(t, s.AddJob(job))

	result, _ := s.RunJob("a")
	assert.False(t, result.Success)
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
	assert.Equal(t, 1, s.GetJobStats()["a"].FailureCount)
}

func TestWithRetry(t *testing.T) {
	s := newTestScheduler().WithRetry(2, time.Millisecond)
	job := &countingJob{name: "a", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, _ := s.RunJob("a")
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestHistoryIsCapped(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}

func TestNextRunUsesLocation(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 15 * * 3"}))
	s.Start()
	defer s.Stop()

	next, err := s.NextRun("a")
	require.NoError(t, err)
	local := next.In(s.location)
	assert.Equal(t, time.Wednesday, local.Weekday())
	assert.Equal(t, 15, local.Hour())
	assert.Equal(t, 0, local.Minute())
}
