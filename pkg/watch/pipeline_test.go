package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSettle = time.Millisecond

func TestLinearWeights(t *testing.T) {
	lw, err := NewLinearWeights(25, 50, 25)
	require.NoError(t, err)

	tests := []struct {
		stage    int
		fraction float64
		want     float64
	}{
		{0, 0, 0},
		{0, 0.5, 12.5},
		{0, 1, 25},
		{1, 0, 25},
		{1, 0.5, 50},
		{1, 1, 75},
		{2, 0.4, 85},
		{2, 1, 100},
		{1, -0.5, 25},  // clamped low
		{1, 1.5, 75},   // clamped high
		{5, 0.5, 0},    // out of range
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, lw.Overall(tt.stage, tt.fraction), 1e-9)
	}
}

func TestNewLinearWeights_Invalid(t *testing.T) {
	_, err := NewLinearWeights()
	assert.Error(t, err)

	_, err = NewLinearWeights(25, 0, 75)
	assert.Error(t, err)

	_, err = NewLinearWeights(30, 30, 30)
	assert.Error(t, err)
}

// threeStages builds 25/50/25 stages and returns the stage job ids plus a
// start counter per stage.
func threeStages() ([]uuid.UUID, []*atomic.Int32, []Stage) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	counts := []*atomic.Int32{{}, {}, {}}
	names := []string{"split", "scripts", "audio"}
	weights := []float64{25, 50, 25}
	stages := make([]Stage, 3)
	for i := range stages {
		i := i
		stages[i] = Stage{
			Name:   names[i],
			Weight: weights[i],
			Start: func(context.Context) (uuid.UUID, error) {
				counts[i].Add(1)
				return ids[i], nil
			},
		}
	}
	return ids, counts, stages
}

func TestPipeline_RunsStagesToCompletion(t *testing.T) {
	gw := newFakeGateway()
	ids, counts, stages := threeStages()
	gw.script(ids[0], stepRunning(ids[0], 0.5), stepCompleted(ids[0]))
	gw.script(ids[1], stepRunning(ids[1], 0.5), stepCompleted(ids[1]))
	gw.script(ids[2], stepCompleted(ids[2]))

	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle))

	// The probe is registered before Run, so it fires before the pipeline's
	// own listener and samples the overall value as of the previous tick.
	var samples []float64
	m.AddListener(func(ProgressEvent) {
		samples = append(samples, p.Overall())
	})

	done, err := p.Run(context.Background(), stages)
	require.NoError(t, err)

	select {
	case runErr := <-done:
		require.NoError(t, runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	assert.InDelta(t, 100, p.Overall(), 1e-9)
	assert.False(t, p.Running())
	for i, c := range counts {
		assert.Equal(t, int32(1), c.Load(), "stage %d started once", i)
	}

	// Success is reported exactly once.
	select {
	case extra := <-done:
		t.Fatalf("unexpected second result: %v", extra)
	case <-time.After(5 * testPoll):
	}

	// The sampled overall percentage never decreased and passed through the
	// stage-boundary checkpoints (the probe samples as of the prior tick, so
	// 100 shows up in Overall above rather than in the samples).
	prev := -1.0
	for _, v := range samples {
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Contains(t, samples, 25.0)
	assert.Contains(t, samples, 75.0)
}

func TestPipeline_FailureResetsToZero(t *testing.T) {
	gw := newFakeGateway()
	ids, _, stages := threeStages()
	gw.script(ids[0], stepCompleted(ids[0]))
	gw.script(ids[1], stepRunning(ids[1], 0.4), stepFailed(ids[1], "inference backend down"))

	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle))

	// Samples as of the prior tick: the failed event's sample is the 45
	// the run reached before the reset.
	var samples []float64
	m.AddListener(func(ProgressEvent) {
		samples = append(samples, p.Overall())
	})

	done, err := p.Run(context.Background(), stages)
	require.NoError(t, err)

	select {
	case runErr := <-done:
		require.Error(t, runErr)
		assert.Contains(t, runErr.Error(), "scripts")
		assert.Contains(t, runErr.Error(), "inference backend down")
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	// Mid-stage the overall percentage reached 25 + 50*0.4 = 45, then the
	// failure reset it.
	assert.Contains(t, samples, 45.0)
	assert.Zero(t, p.Overall())
	assert.False(t, p.Running())
	_, watching := m.Watching()
	assert.False(t, watching)
}

func TestPipeline_FirstStageStartFailure(t *testing.T) {
	gw := newFakeGateway()
	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle))

	stages := []Stage{{
		Name:   "split",
		Weight: 100,
		Start: func(context.Context) (uuid.UUID, error) {
			return uuid.Nil, errors.New("project has no pdf")
		},
	}}

	_, err := p.Run(context.Background(), stages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project has no pdf")
	assert.False(t, p.Running())
	assert.Zero(t, p.Overall())
	_, watching := m.Watching()
	assert.False(t, watching)
}

func TestPipeline_MidRunStageStartFailure(t *testing.T) {
	gw := newFakeGateway()
	splitID := uuid.New()
	gw.script(splitID, stepCompleted(splitID))

	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle))

	stages := []Stage{
		{Name: "split", Weight: 50, Start: func(context.Context) (uuid.UUID, error) {
			return splitID, nil
		}},
		{Name: "scripts", Weight: 50, Start: func(context.Context) (uuid.UUID, error) {
			return uuid.Nil, errors.New("no pages")
		}},
	}

	done, err := p.Run(context.Background(), stages)
	require.NoError(t, err)

	select {
	case runErr := <-done:
		require.Error(t, runErr)
		assert.Contains(t, runErr.Error(), "no pages")
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	assert.Zero(t, p.Overall())
	_, watching := m.Watching()
	assert.False(t, watching)
}

func TestPipeline_Abort(t *testing.T) {
	gw := newFakeGateway()
	jobID := uuid.New()
	gw.script(jobID, stepRunning(jobID, 0.5))

	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle))

	stages := []Stage{{Name: "split", Weight: 100, Start: func(context.Context) (uuid.UUID, error) {
		return jobID, nil
	}}}

	done, err := p.Run(context.Background(), stages)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Overall() > 0 }, time.Second, time.Millisecond)

	p.Abort()

	select {
	case runErr := <-done:
		assert.ErrorIs(t, runErr, ErrAborted)
	case <-time.After(time.Second):
		t.Fatal("abort not reported")
	}

	assert.Zero(t, p.Overall())
	_, watching := m.Watching()
	assert.False(t, watching)

	// Abort when idle is a no-op.
	p.Abort()
}

func TestPipeline_RejectsConcurrentRun(t *testing.T) {
	gw := newFakeGateway()
	jobID := uuid.New()
	gw.script(jobID, stepRunning(jobID, 0.1))

	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle))

	stages := []Stage{{Name: "split", Weight: 100, Start: func(context.Context) (uuid.UUID, error) {
		return jobID, nil
	}}}

	_, err := p.Run(context.Background(), stages)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), stages)
	assert.ErrorIs(t, err, ErrPipelineBusy)

	p.Abort()
}

func TestPipeline_CustomProgressModel(t *testing.T) {
	gw := newFakeGateway()
	jobID := uuid.New()
	gw.script(jobID, stepCompleted(jobID))

	m := NewMonitor(gw, WithPollInterval(testPoll))
	p := NewPipeline(m, WithSettleDelay(testSettle), WithProgressModel(stubModel{}))

	// Weights that would not survive LinearWeights validation are fine when
	// a model is supplied.
	stages := []Stage{{Name: "split", Start: func(context.Context) (uuid.UUID, error) {
		return jobID, nil
	}}}

	done, err := p.Run(context.Background(), stages)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.InDelta(t, 100, p.Overall(), 1e-9)
}

type stubModel struct{}

func (stubModel) Overall(int, float64) float64 { return 100 }
