package live

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

var ErrInvalidTarget = errors.New("live: invalid simulation target")

// Target is a session the engine produces live data for.
type Target struct {
	SessionID   string        `json:"session_id"`
	Drivers     []string      `json:"drivers"`
	TotalLaps   int           `json:"total_laps"`
	BaseLapTime time.Duration `json:"base_lap_time"`
	Latitude    float64       `json:"latitude"`
	Longitude   float64       `json:"longitude"`
}

func TargetFromConfig(c config.SimulationTarget) Target {
	return Target{
		SessionID:   c.SessionID,
		Drivers:     append([]string(nil), c.Drivers...),
		TotalLaps:   c.TotalLaps,
		BaseLapTime: c.BaseLapTime,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
	}
}

func (t Target) Validate() error {
	switch {
	case !validSegment(t.SessionID):
		return errors.Wrapf(ErrInvalidTarget, "session id %q", t.SessionID)
	case len(t.Drivers) == 0:
		return errors.Wrapf(ErrInvalidTarget, "%s has no drivers", t.SessionID)
	case t.TotalLaps < 1:
		return errors.Wrapf(ErrInvalidTarget, "%s has %d laps", t.SessionID, t.TotalLaps)
	case t.BaseLapTime <= 0:
		return errors.Wrapf(ErrInvalidTarget, "%s has no base lap time", t.SessionID)
	}

	return nil
}

const (
	lapJitter       = 400 * time.Millisecond
	tyreDegradation = 60 * time.Millisecond
	pitLoss         = 21 * time.Second
	neutralisedPace = 1.35

	maxWindSpeed         = 40
	temperatureVariation = 2.0
	windVariation        = 15.0
)

var pitCompounds = []f1.Compound{f1.CompoundHard, f1.CompoundMedium}

type driverSimulation struct {
	id string

	lap      int
	total    time.Duration
	last     time.Duration
	best     time.Duration
	pace     float64
	compound f1.Compound
	tyreAge  int
	stintLen int
	pitStops int
	inPit    bool
}

// simulation is the state of one target. It is only touched by the engine
// while holding its simulation mutex.
type simulation struct {
	target  Target
	drivers []*driverSimulation

	lap      int
	elapsed  time.Duration
	finished bool

	track      TrackStatus
	trackSince int

	weather     f1.WeatherSnapshot
	baseWeather f1.WeatherSnapshot
}

func newSimulation(target Target, r *rand.Rand, now time.Time) *simulation {
	sim := &simulation{
		target: target,
		track:  TrackGreen,
	}

	for _, driver := range target.Drivers {
		sim.drivers = append(sim.drivers, &driverSimulation{
			id:       driver,
			pace:     1 + (r.Float64()-0.5)*0.02,
			compound: f1.DryCompounds[r.Intn(2)],
			stintLen: 15 + r.Intn(15),
		})
	}

	sim.baseWeather = f1.WeatherSnapshot{
		Latitude:      target.Latitude,
		Longitude:     target.Longitude,
		Time:          now.UTC(),
		Temperature:   20 + float64(r.Intn(12)),
		WindSpeed:     float64(3 + r.Intn(15)),
		WindDirection: float64(r.Intn(360)),
		Humidity:      float64(35 + r.Intn(40)),
	}
	sim.weather = sim.baseWeather

	return sim
}

// retarget applies new target settings while keeping the race progress.
func (s *simulation) retarget(target Target, r *rand.Rand) {
	known := make(map[string]*driverSimulation)

	for _, driver := range s.drivers {
		known[driver.id] = driver
	}

	drivers := make([]*driverSimulation, 0, len(target.Drivers))

	for _, id := range target.Drivers {
		if driver, ok := known[id]; ok {
			drivers = append(drivers, driver)
			continue
		}

		drivers = append(drivers, &driverSimulation{
			id:       id,
			lap:      s.lap,
			total:    s.elapsed,
			pace:     1 + (r.Float64()-0.5)*0.02,
			compound: f1.CompoundMedium,
			stintLen: 15 + r.Intn(15),
		})
	}

	s.target = target
	s.drivers = drivers

	// a longer race resumes, a shorter one ends at the current lap
	s.finished = s.lap >= target.TotalLaps
}

// advance runs one lap for every driver. Laps never go past the target's
// total.
func (s *simulation) advance(r *rand.Rand, now time.Time) {
	if s.finished {
		return
	}

	s.updateTrackStatus(r)

	for _, driver := range s.drivers {
		s.advanceDriver(driver, r)
	}

	s.lap++
	s.elapsed = s.leader().total

	if r.Float64() < 0.2 {
		s.driftWeather(r)
	}

	s.weather.Time = now.UTC()

	if s.lap >= s.target.TotalLaps {
		s.finished = true
	}
}

func (s *simulation) advanceDriver(driver *driverSimulation, r *rand.Rand) {
	lapTime := time.Duration(float64(s.target.BaseLapTime) * driver.pace)
	lapTime += time.Duration(driver.tyreAge) * tyreDegradation
	lapTime += time.Duration((r.Float64()*2 - 1) * float64(lapJitter))

	if s.track == TrackSafetyCar || s.track == TrackVirtualSafetyCar {
		lapTime = time.Duration(float64(lapTime) * neutralisedPace)
	}

	driver.inPit = false

	// stops are cheaper under a neutralised track, and never on the last lap
	pitChance := 0.35

	if s.track != TrackGreen {
		pitChance = 0.8
	}

	if driver.tyreAge >= driver.stintLen && s.lap+1 < s.target.TotalLaps && r.Float64() < pitChance {
		driver.inPit = true
		driver.pitStops++
		driver.tyreAge = 0
		driver.stintLen = 18 + r.Intn(15)
		driver.compound = pitCompounds[r.Intn(len(pitCompounds))]
		lapTime += pitLoss
	}

	driver.lap++
	driver.tyreAge++
	driver.last = lapTime.Round(time.Millisecond)
	driver.total += driver.last

	if driver.best == 0 || driver.last < driver.best {
		driver.best = driver.last
	}
}

func (s *simulation) updateTrackStatus(r *rand.Rand) {
	if s.track != TrackGreen {
		if s.lap-s.trackSince >= 1+r.Intn(3) {
			s.track, s.trackSince = TrackGreen, s.lap
		}

		return
	}

	if r.Float64() >= 0.04 {
		return
	}

	switch r.Intn(3) {
	case 0:
		s.track = TrackYellow
	case 1:
		s.track = TrackVirtualSafetyCar
	default:
		s.track = TrackSafetyCar
	}

	s.trackSince = s.lap
}

// driftWeather moves the conditions around their base values, within bounds.
func (s *simulation) driftWeather(r *rand.Rand) {
	w := s.weather

	w.Temperature = clamp(w.Temperature+(r.Float64()-0.5), s.baseWeather.Temperature-temperatureVariation, s.baseWeather.Temperature+temperatureVariation)
	w.Humidity = clamp(w.Humidity+(r.Float64()*4-2), 10, 100)
	w.WindSpeed = clamp(w.WindSpeed+(r.Float64()*2-1), 0, maxWindSpeed)

	direction := w.WindDirection + (r.Float64()*2-1)*windVariation/3

	if math.Abs(angleDiff(direction, s.baseWeather.WindDirection)) > windVariation {
		direction = w.WindDirection
	}

	w.WindDirection = math.Mod(direction+360, 360)

	if w.Raining {
		w.Raining = r.Float64() > 0.3
	} else {
		w.Raining = w.Humidity > 85 && r.Float64() < 0.1
	}

	if w.Raining {
		w.Precipitation = math.Round((0.1+r.Float64()*1.5)*10) / 10
	} else {
		w.Precipitation = 0
	}

	w.Temperature = math.Round(w.Temperature*10) / 10
	w.Humidity = math.Round(w.Humidity)
	w.WindSpeed = math.Round(w.WindSpeed*10) / 10
	w.WindDirection = math.Round(w.WindDirection)

	s.weather = w
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func angleDiff(a, b float64) float64 {
	return math.Mod(a-b+540, 360) - 180
}

// order sorts drivers by laps completed, then total race time.
func (s *simulation) order() []*driverSimulation {
	ordered := append([]*driverSimulation(nil), s.drivers...)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].lap != ordered[j].lap {
			return ordered[i].lap > ordered[j].lap
		}

		return ordered[i].total < ordered[j].total
	})

	return ordered
}

func (s *simulation) leader() *driverSimulation {
	return s.order()[0]
}

func (s *simulation) timing() Timing {
	ordered := s.order()
	lines := make([]TimingLine, 0, len(ordered))

	for pos, driver := range ordered {
		line := TimingLine{
			Position: pos + 1,
			DriverID: driver.id,
			Lap:      driver.lap,
			LastLap:  driver.last,
			BestLap:  driver.best,
			Compound: driver.compound,
			TyreAge:  driver.tyreAge,
			PitStops: driver.pitStops,
			InPit:    driver.inPit,
		}

		if pos > 0 {
			line.Gap = driver.total - ordered[0].total
			line.Interval = driver.total - ordered[pos-1].total
		}

		lines = append(lines, line)
	}

	return Timing{Lines: lines}
}

func (s *simulation) car(driver *driverSimulation, r *rand.Rand) CarState {
	car := CarState{
		DriverID: driver.id,
		Lap:      driver.lap,
	}

	if driver.inPit {
		car.Speed = 80
		car.Gear = 2
		car.RPM = 7000
		car.Throttle = 30

		return car
	}

	braking := r.Float64() < 0.25

	if braking {
		car.Speed = math.Round(90 + r.Float64()*120)
		car.Brake = true
		car.Gear = 2 + r.Intn(4)
	} else {
		car.Speed = math.Round(200 + r.Float64()*140)
		car.Throttle = math.Round(70 + r.Float64()*30)
		car.Gear = 6 + r.Intn(3)
		car.DRS = s.track == TrackGreen && car.Speed > 290 && r.Float64() < 0.5
	}

	car.RPM = 10000 + r.Intn(2500)

	return car
}

func (s *simulation) state(runID string) SessionState {
	return SessionState{
		SessionID:  s.target.SessionID,
		RunID:      runID,
		CurrentLap: s.lap,
		TotalLaps:  s.target.TotalLaps,
		Elapsed:    s.elapsed,
		Finished:   s.finished,
	}
}
