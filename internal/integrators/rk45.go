package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/loopsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// continuous extension (Hairer, Norsett & Wanner, dopri5)
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

const (
	DefaultRelTol   = 1e-3
	DefaultAbsTol   = 1e-6
	DefaultMaxSteps = 1_000_000
)

// Options controls step-size selection and the failure budget.
type Options struct {
	RelTol float64
	AbsTol float64
	// MaxSteps bounds attempted steps (accepted and rejected) per Solve.
	MaxSteps int
	// InitialStep of 0 selects the first step automatically.
	InitialStep float64
	// MaxStep of 0 leaves the step size unbounded.
	MaxStep float64
}

func DefaultOptions() Options {
	return Options{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxSteps: DefaultMaxSteps,
	}
}

func (o Options) Validate() error {
	if !(o.RelTol > 0) {
		return fmt.Errorf("%w: relative tolerance must be positive, got %v", dynamo.ErrConfig, o.RelTol)
	}
	if !(o.AbsTol > 0) {
		return fmt.Errorf("%w: absolute tolerance must be positive, got %v", dynamo.ErrConfig, o.AbsTol)
	}
	if o.MaxSteps <= 0 {
		return fmt.Errorf("%w: step budget must be positive, got %d", dynamo.ErrConfig, o.MaxSteps)
	}
	if o.InitialStep < 0 || o.MaxStep < 0 {
		return fmt.Errorf("%w: step bounds must not be negative", dynamo.ErrConfig)
	}
	return nil
}

type Stats struct {
	Accepted    int `json:"accepted"`
	Rejected    int `json:"rejected"`
	Evaluations int `json:"evaluations"`
}

func (s *Stats) Add(o Stats) {
	s.Accepted += o.Accepted
	s.Rejected += o.Rejected
	s.Evaluations += o.Evaluations
}

// Solution holds the states at the requested query times. When Solve fails,
// it holds the samples produced before the failure and Complete is false.
type Solution struct {
	Times    []float64
	States   []dynamo.State
	Final    dynamo.State
	Stats    Stats
	Complete bool
}

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	opts     Options
}

func NewRK45(opts Options) *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		opts:     opts,
	}
}

func (r *RK45) Options() Options { return r.opts }

// stages holds k1..k7 of the last attempted step.
type stages [7]dynamo.State

// Solve integrates sys from x0 at t0 to t1 and returns the state at every
// query time. Queries must be ascending and inside [t0, t1]; they are
// answered from the dense output, so step sizes never bend toward them.
// The last step lands exactly on t1.
func (r *RK45) Solve(sys dynamo.System, x0 dynamo.State, t0, t1 float64, query []float64) (*Solution, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, err
	}
	if !(t1 > t0) {
		return nil, fmt.Errorf("%w: empty interval [%v, %v]", dynamo.ErrConfig, t0, t1)
	}
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d entries, system has %d", dynamo.ErrDimensionMismatch, len(x0), sys.StateDim())
	}
	for i, q := range query {
		if q < t0 || q > t1 || (i > 0 && q < query[i-1]) {
			return nil, fmt.Errorf("%w: query time %v not ascending within [%v, %v]", dynamo.ErrConfig, q, t0, t1)
		}
	}

	sol := &Solution{
		Times:  make([]float64, 0, len(query)),
		States: make([]dynamo.State, 0, len(query)),
	}
	emit := func(q float64, x dynamo.State) {
		sol.Times = append(sol.Times, q)
		sol.States = append(sol.States, x)
	}

	x := x0.Clone()
	t := t0
	qi := 0
	for qi < len(query) && query[qi] == t0 {
		emit(query[qi], x.Clone())
		qi++
	}

	k1 := sys.Derive(x, t)
	sol.Stats.Evaluations++

	h := r.opts.InitialStep
	if h <= 0 {
		h = r.initialStep(sys, x, k1, t, t1-t0, &sol.Stats)
	}
	maxStep := r.opts.MaxStep
	if maxStep <= 0 {
		maxStep = math.Inf(1)
	}

	var k stages
	nonFinite := false
	rejected := false
	attempts := 0

	for t < t1 {
		if attempts >= r.opts.MaxSteps {
			sol.Final = x
			return sol, &dynamo.SimulationError{
				Step:    sol.Stats.Accepted,
				Time:    t,
				State:   x.Clone(),
				Wrapped: fmt.Errorf("%w: %w (%d attempts)", dynamo.ErrIntegrationFailure, dynamo.ErrStepBudget, attempts),
			}
		}
		attempts++

		h = math.Min(h, maxStep)
		minStep := 10 * ulp(t)
		if t1-t <= minStep && !rejected {
			// closing sliver shorter than the minimum step: take it whole
			h = t1 - t
		} else if h < minStep {
			cause := fmt.Errorf("%w: %w (h=%g)", dynamo.ErrIntegrationFailure, dynamo.ErrStepTooSmall, h)
			if nonFinite {
				cause = fmt.Errorf("%w: no finite step from t=%g", dynamo.ErrDivergence, t)
			}
			sol.Final = x
			return sol, &dynamo.SimulationError{
				Step:    sol.Stats.Accepted,
				Time:    t,
				State:   x.Clone(),
				Wrapped: cause,
			}
		}

		last := false
		if t+h >= t1 {
			h = t1 - t
			last = true
		}

		xNew, errNorm := r.attempt(sys, x, k1, t, h, &k)
		sol.Stats.Evaluations += 6

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !xNew.IsValid() {
			nonFinite, rejected = true, true
			sol.Stats.Rejected++
			h *= r.minScale
			continue
		}
		nonFinite = false

		if errNorm > 1 {
			rejected = true
			sol.Stats.Rejected++
			h *= math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2))
			continue
		}

		tNew := t + h
		if last {
			tNew = t1
		}
		for qi < len(query) && query[qi] <= tNew {
			q := query[qi]
			if q == tNew {
				emit(q, xNew.Clone())
			} else {
				emit(q, dense(x, xNew, &k, h, (q-t)/h))
			}
			qi++
		}

		sol.Stats.Accepted++
		x, k1, t = xNew, k[6], tNew

		scale := r.maxScale
		if errNorm > 0 {
			scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, -0.2))
		}
		if rejected {
			// no growth right after a rejection
			scale = math.Min(1, scale)
			rejected = false
		}
		h *= scale
	}

	sol.Final = x
	sol.Complete = true
	return sol, nil
}

// attempt takes one Dormand-Prince step of size h from (t, x) with
// k1 = f(t, x) already known. It fills k and returns the 5th-order
// solution with its scaled RMS error estimate.
func (r *RK45) attempt(sys dynamo.System, x, k1 dynamo.State, t, h float64, k *stages) (dynamo.State, float64) {
	n := len(x)
	k[0] = k1

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + h*b21*k1[i]
	}
	k[1] = sys.Derive(x2, t+a2*h)

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + h*(b31*k1[i]+b32*k[1][i])
	}
	k[2] = sys.Derive(x3, t+a3*h)

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + h*(b41*k1[i]+b42*k[1][i]+b43*k[2][i])
	}
	k[3] = sys.Derive(x4, t+a4*h)

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + h*(b51*k1[i]+b52*k[1][i]+b53*k[2][i]+b54*k[3][i])
	}
	k[4] = sys.Derive(x5, t+a5*h)

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + h*(b61*k1[i]+b62*k[1][i]+b63*k[2][i]+b64*k[3][i]+b65*k[4][i])
	}
	k[5] = sys.Derive(x6, t+h)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + h*(c1*k1[i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}

	k[6] = sys.Derive(xNew, t+h)

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k1[i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
		scale := r.opts.AbsTol + r.opts.RelTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		sum += (errEst / scale) * (errEst / scale)
	}

	return xNew, math.Sqrt(sum / float64(n))
}

// dense evaluates the 4th-order continuous extension of the last accepted
// step at t + theta*h.
func dense(x, xNew dynamo.State, k *stages, h, theta float64) dynamo.State {
	out := make(dynamo.State, len(x))
	th1 := 1 - theta
	for i := range out {
		ydiff := xNew[i] - x[i]
		bspl := h*k[0][i] - ydiff
		r4 := ydiff - h*k[6][i] - bspl
		r5 := h * (d1*k[0][i] + d3*k[2][i] + d4*k[3][i] + d5*k[4][i] + d6*k[5][i] + d7*k[6][i])
		out[i] = x[i] + theta*(ydiff+th1*(bspl+theta*(r4+th1*r5)))
	}
	return out
}

// initialStep estimates a first step from the size of the state and its
// first two derivatives.
func (r *RK45) initialStep(sys dynamo.System, x, f0 dynamo.State, t, span float64, st *Stats) float64 {
	n := len(x)
	rms := func(v func(i int) float64) float64 {
		sum := 0.0
		for i := 0; i < n; i++ {
			s := r.opts.AbsTol + r.opts.RelTol*math.Abs(x[i])
			sum += (v(i) / s) * (v(i) / s)
		}
		return math.Sqrt(sum / float64(n))
	}

	dx0 := rms(func(i int) float64 { return x[i] })
	df0 := rms(func(i int) float64 { return f0[i] })

	h0 := 1e-6
	if dx0 >= 1e-5 && df0 >= 1e-5 {
		h0 = 0.01 * dx0 / df0
	}
	h0 = math.Min(h0, span)

	x1 := make(dynamo.State, n)
	for i := range x1 {
		x1[i] = x[i] + h0*f0[i]
	}
	f1 := sys.Derive(x1, t+h0)
	st.Evaluations++

	ddf := rms(func(i int) float64 { return f1[i] - f0[i] }) / h0

	var h1 float64
	if df0 <= 1e-15 && ddf <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(df0, ddf), 0.2)
	}

	return math.Min(math.Min(100*h0, h1), span)
}

func ulp(t float64) float64 {
	return math.Nextafter(math.Abs(t), math.Inf(1)) - math.Abs(t)
}
