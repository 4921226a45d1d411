package watch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSettleDelay = 500 * time.Millisecond

var (
	// ErrPipelineBusy is returned by Run while a previous run is active.
	ErrPipelineBusy = errors.New("watch: pipeline already running")

	// ErrAborted is delivered on the run's done channel after Abort.
	ErrAborted = errors.New("watch: pipeline aborted")
)

// Stage is one step of a generation pipeline. Start kicks the stage off
// server-side and returns the job to watch.
type Stage struct {
	Name   string
	Weight float64
	Start  func(ctx context.Context) (uuid.UUID, error)
}

// ProgressModel maps a stage index and that stage's completion fraction to
// an overall percentage in [0, 100].
type ProgressModel interface {
	Overall(stage int, fraction float64) float64
}

// LinearWeights assigns each stage a fixed slice of the overall percentage:
// overall = sum(weights before stage) + weight*fraction.
type LinearWeights struct {
	weights []float64
	bases   []float64
}

// NewLinearWeights validates that the weights are positive and sum to 100.
func NewLinearWeights(weights ...float64) (*LinearWeights, error) {
	if len(weights) == 0 {
		return nil, errors.New("watch: no stage weights")
	}
	var sum float64
	bases := make([]float64, len(weights))
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("watch: stage %d weight %.2f is not positive", i, w)
		}
		bases[i] = sum
		sum += w
	}
	if math.Abs(sum-100) > 1e-6 {
		return nil, fmt.Errorf("watch: stage weights sum to %.2f, want 100", sum)
	}
	return &LinearWeights{weights: weights, bases: bases}, nil
}

func (lw *LinearWeights) Overall(stage int, fraction float64) float64 {
	if stage < 0 || stage >= len(lw.weights) {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return lw.bases[stage] + lw.weights[stage]*fraction
}

// Pipeline chains stages into a single run: each stage's job is watched by
// the monitor, its progress folded into one overall percentage, and the next
// stage started automatically once the previous one completes. Failure at
// any point ends the run and resets the overall percentage to zero.
type Pipeline struct {
	monitor *Monitor
	settle  time.Duration

	// model is the configured override; runModel is what the current run
	// actually uses (the override, or weights derived from the stages).
	model ProgressModel

	mu       sync.Mutex
	gen      int
	stages   []Stage
	runModel ProgressModel
	active   int
	jobID   uuid.UUID
	overall float64
	running bool
	handle  ListenerHandle
	runCtx  context.Context
	done    chan error
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSettleDelay overrides the pause between a stage completing and the
// next stage starting.
func WithSettleDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.settle = d }
}

// WithProgressModel replaces the linear-weights model derived from the
// stages' Weight fields.
func WithProgressModel(model ProgressModel) PipelineOption {
	return func(p *Pipeline) { p.model = model }
}

// NewPipeline builds a pipeline driven by the given monitor.
func NewPipeline(monitor *Monitor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		monitor: monitor,
		settle:  defaultSettleDelay,
		active:  -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the first stage and returns a channel that receives exactly one
// value when the run ends: nil on success, ErrAborted after Abort, or the
// stage failure otherwise. The overall percentage is reset to zero up front.
// A failure to start the first stage is returned directly and nothing is
// watched.
func (p *Pipeline) Run(ctx context.Context, stages []Stage) (<-chan error, error) {
	if len(stages) == 0 {
		return nil, errors.New("watch: no stages")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrPipelineBusy
	}
	model := p.model
	if model == nil {
		weights := make([]float64, len(stages))
		for i, st := range stages {
			weights[i] = st.Weight
		}
		lw, err := NewLinearWeights(weights...)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		model = lw
	}

	p.gen++
	gen := p.gen
	done := make(chan error, 1)
	p.stages = stages
	p.runModel = model
	p.active = -1
	p.jobID = uuid.Nil
	p.overall = 0
	p.running = true
	p.runCtx = ctx
	p.done = done
	p.handle = p.monitor.AddListener(func(ev ProgressEvent) {
		p.onEvent(gen, ev)
	})
	p.mu.Unlock()

	if err := p.startStage(gen, 0); err != nil {
		return nil, err
	}
	return done, nil
}

// Overall returns the current overall percentage. It is monotonic within a
// run, 100 after success, and 0 after failure or abort.
func (p *Pipeline) Overall() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overall
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ActiveStage returns the index of the stage currently being watched.
func (p *Pipeline) ActiveStage() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.active < 0 {
		return 0, false
	}
	return p.active, true
}

// Abort ends the current run, stops the monitor, and resets the overall
// percentage to zero. The run's done channel receives ErrAborted. Calling
// Abort when idle is a no-op.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	handle, done := p.resetLocked(0)
	p.mu.Unlock()

	p.monitor.RemoveListener(handle)
	p.monitor.Stop()
	done <- ErrAborted
}

// startStage kicks off stage i and hands its job to the monitor. A start
// failure ends the run with the overall percentage reset to zero.
func (p *Pipeline) startStage(gen, i int) error {
	p.mu.Lock()
	if p.gen != gen || !p.running {
		p.mu.Unlock()
		return nil
	}
	stage := p.stages[i]
	ctx := p.runCtx
	p.mu.Unlock()

	jobID, err := stage.Start(ctx)

	p.mu.Lock()
	if p.gen != gen || !p.running {
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		wrapped := fmt.Errorf("start stage %q: %w", stage.Name, err)
		handle, done := p.resetLocked(0)
		p.mu.Unlock()
		p.monitor.RemoveListener(handle)
		done <- wrapped
		return wrapped
	}
	p.active = i
	p.jobID = jobID
	p.mu.Unlock()

	p.monitor.Start(jobID)
	return nil
}

// onEvent folds a monitor event into the run. Only events for the active
// stage's job count; anything else is a stale emission and ignored.
func (p *Pipeline) onEvent(gen int, ev ProgressEvent) {
	p.mu.Lock()
	if p.gen != gen || !p.running || p.active < 0 || ev.JobID != p.jobID {
		p.mu.Unlock()
		return
	}
	i := p.active

	switch {
	case ev.Completed():
		if i == len(p.stages)-1 {
			handle, done := p.resetLocked(100)
			p.mu.Unlock()
			p.monitor.RemoveListener(handle)
			done <- nil
			return
		}
		p.raiseLocked(p.runModel.Overall(i, 1))
		p.jobID = uuid.Nil
		settle := p.settle
		p.mu.Unlock()
		time.AfterFunc(settle, func() {
			p.startStage(gen, i+1) //nolint:errcheck // delivered on the done channel
		})

	case ev.Finished:
		name := p.stages[i].Name
		msg := ev.ErrorMessage
		handle, done := p.resetLocked(0)
		p.mu.Unlock()
		p.monitor.RemoveListener(handle)
		if msg == "" {
			done <- fmt.Errorf("stage %q failed", name)
		} else {
			done <- fmt.Errorf("stage %q failed: %s", name, msg)
		}

	default:
		p.raiseLocked(p.runModel.Overall(i, ev.Fraction))
		p.mu.Unlock()
	}
}

// raiseLocked bumps the overall percentage, never lowering it mid-run.
func (p *Pipeline) raiseLocked(v float64) {
	if v > p.overall {
		p.overall = v
	}
}

// resetLocked ends the run, leaving overall at the given final value, and
// returns the listener handle and done channel for the caller to settle
// outside the lock.
func (p *Pipeline) resetLocked(overall float64) (ListenerHandle, chan error) {
	handle := p.handle
	done := p.done
	p.running = false
	p.active = -1
	p.jobID = uuid.Nil
	p.overall = overall
	p.runCtx = nil
	p.done = nil
	return handle, done
}
