package live

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"
)

type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const defaultInterval = time.Second

// Engine synthesises live race updates for its targets on a ticker and is the
// only writer of its Store.
type Engine struct {
	store  *Store
	logger logrus.FieldLogger

	// lifecycleMutex serialises Start and Stop.
	lifecycleMutex sync.Mutex
	state          atomic.Int32
	cfn            context.CancelFunc
	done           chan struct{}
	interval       time.Duration
	runID          string

	// simMutex guards the targets, their simulations and the random source.
	simMutex    sync.Mutex
	rand        *rand.Rand
	targets     []Target
	simulations map[string]*simulation

	now func() time.Time
}

// NewEngine creates a stopped engine. A zero seed seeds the simulation from
// the clock.
func NewEngine(store *Store, seed int64, logger logrus.FieldLogger) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		store:       store,
		logger:      logger,
		rand:        rand.New(rand.NewSource(seed)),
		simulations: make(map[string]*simulation),
		now:         time.Now,
	}
}

// Track adds a target, or updates an existing one keeping its progress.
func (e *Engine) Track(target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	e.simMutex.Lock()
	defer e.simMutex.Unlock()

	if sim, ok := e.simulations[target.SessionID]; ok {
		sim.retarget(target, e.rand)

		for i := range e.targets {
			if e.targets[i].SessionID == target.SessionID {
				e.targets[i] = target
			}
		}

		return nil
	}

	e.simulations[target.SessionID] = newSimulation(target, e.rand, e.now())
	e.targets = append(e.targets, target)

	e.logger.Infof("Tracking simulated session %s with %d drivers over %d laps", target.SessionID, len(target.Drivers), target.TotalLaps)

	return nil
}

func (e *Engine) Targets() []Target {
	e.simMutex.Lock()
	defer e.simMutex.Unlock()

	return append([]Target(nil), e.targets...)
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Interval() time.Duration {
	e.lifecycleMutex.Lock()
	defer e.lifecycleMutex.Unlock()

	return e.interval
}

// Start launches the tick loop. Starting a running engine changes nothing.
func (e *Engine) Start(interval time.Duration) State {
	e.lifecycleMutex.Lock()
	defer e.lifecycleMutex.Unlock()

	if e.State() == Running {
		return Running
	}

	if interval <= 0 {
		interval = defaultInterval
	}

	ctx, cfn := context.WithCancel(context.Background())

	e.cfn = cfn
	e.done = make(chan struct{})
	e.interval = interval
	e.runID = uuid.New().String()
	e.state.Store(int32(Running))

	metrics.SimulationRunning.Set(1)
	e.logger.WithField("run", e.runID).Infof("Starting simulation, ticking every %s", durafmt.Parse(interval))

	go e.loop(ctx, interval, e.runID, e.done)

	return Running
}

// Stop cancels the tick loop and waits for an in-flight tick to finish.
// Simulation state is kept for the next Start.
func (e *Engine) Stop() State {
	e.lifecycleMutex.Lock()
	defer e.lifecycleMutex.Unlock()

	if e.State() == Stopped {
		return Stopped
	}

	e.cfn()
	<-e.done

	e.state.Store(int32(Stopped))
	metrics.SimulationRunning.Set(0)
	e.logger.WithField("run", e.runID).Info("Simulation stopped")

	return Stopped
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, runID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.tick(runID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(runID)
		}
	}
}

func (e *Engine) tick(runID string) {
	e.simMutex.Lock()
	defer e.simMutex.Unlock()

	metrics.SimulationTicks.Inc()

	now := e.now()

	for _, target := range e.targets {
		sim, ok := e.simulations[target.SessionID]

		if !ok {
			continue
		}

		sim.advance(e.rand, now)

		e.publish(target.SessionID, sim.state(runID), MetricSession)
		e.publish(target.SessionID, sim.timing(), MetricTiming)
		e.publish(target.SessionID, sim.weather, MetricWeather)
		e.publish(target.SessionID, TrackState{Status: sim.track, Since: sim.trackSince}, MetricTrackStatus)

		for _, driver := range sim.drivers {
			e.publish(target.SessionID, sim.car(driver, e.rand), MetricCar, driver.id)
		}
	}
}

// publish writes one value, logging and skipping malformed keys.
func (e *Engine) publish(sessionID string, value interface{}, parts ...string) {
	key, err := NewKey(sessionID, parts...)

	if err == nil {
		_, err = e.store.Set(key, value)
	}

	if err != nil {
		metrics.SimulationSkipped.Inc()
		e.logger.WithError(err).Warnf("Skipping live update for session %s", sessionID)
	}
}
