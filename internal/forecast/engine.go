// Package forecast fits a seasonal ARIMA model to a monthly series and
// produces point forecasts with symmetric prediction intervals.
package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// penalty replaces objective values the optimizer cannot rank.
const penalty = 1e100

// State is the lifecycle position of an Engine.
type State int

const (
	Untrained State = iota
	Fitted
	Forecasted
)

func (s State) String() string {
	switch s {
	case Untrained:
		return "untrained"
	case Fitted:
		return "fitted"
	case Forecasted:
		return "forecasted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config controls model order, interval width and fitting.
//
// EnforceStationarity and EnforceInvertibility restrict the optimizer to
// coefficients whose AR and MA polynomials respectively keep their roots
// outside the unit circle. Both default to off.
type Config struct {
	Order                Order
	Confidence           float64
	EnforceStationarity  bool
	EnforceInvertibility bool
	MaxIterations        int
}

// DefaultConfig returns a (1,1,1)x(1,1,1,12) model with 95% intervals.
func DefaultConfig() Config {
	return Config{
		Order:         DefaultOrder,
		Confidence:    0.95,
		MaxIterations: 5000,
	}
}

func (c Config) validate() error {
	if err := c.Order.validate(); err != nil {
		return err
	}
	if !(c.Confidence > 0 && c.Confidence < 1) {
		return fmt.Errorf("%w: confidence must be in (0, 1), got %v", ErrInvalidConfig, c.Confidence)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Engine owns one fitted model. It moves Untrained -> Fitted -> Forecasted;
// retraining requires a new Engine. An Engine is not safe for concurrent use.
type Engine struct {
	cfg   Config
	state State

	history []Point
	y       []float64
	w       []float64
	resid   []float64
	params  Params
	iters   int
}

// NewEngine returns an untrained engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) State() State   { return e.state }
func (e *Engine) Config() Config { return e.cfg }

// Params returns the fitted coefficients. It is only meaningful after Fit.
func (e *Engine) Params() Params { return e.params }

// Iterations reports how many optimizer iterations the fit used.
func (e *Engine) Iterations() int { return e.iters }

// Fit estimates the model on a contiguous monthly window by minimizing the
// conditional sum of squared innovations.
func (e *Engine) Fit(series []Point) error {
	if e.state != Untrained {
		return &SequenceError{Err: ErrAlreadyFitted}
	}
	if err := checkWindow(series, e.cfg.Order.minHistory()); err != nil {
		return err
	}

	order := e.cfg.Order
	y := make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Value
	}
	w := difference(y, order.diffPoly())
	n := order.numParams()
	if len(w) <= n {
		return &PreconditionError{Err: fmt.Errorf("%w: %d differenced points for %d parameters",
			ErrInsufficientHistory, len(w), n)}
	}

	objective := func(x []float64) float64 {
		p := e.unpack(x)
		ss := sumSquares(w, order.arPoly(p), order.maPoly(p))
		if !finite(ss) || ss > penalty {
			return penalty
		}
		return ss
	}

	x := make([]float64, n)
	if n > 0 {
		result, err := optimize.Minimize(
			optimize.Problem{Func: objective},
			x,
			&optimize.Settings{MajorIterations: e.cfg.MaxIterations},
			&optimize.NelderMead{},
		)
		if result == nil {
			return fmt.Errorf("fit %s: %w", order, err)
		}
		if err != nil && !finite(result.F) {
			return fmt.Errorf("fit %s: %w", order, err)
		}
		x = result.X
		e.iters = result.Stats.MajorIterations
	}

	params := e.unpack(x)
	resid := residuals(w, order.arPoly(params), order.maPoly(params))
	var ss float64
	for _, v := range resid {
		ss += v * v
	}
	params.Sigma2 = ss / float64(len(w))

	e.history = append([]Point(nil), series...)
	e.y = y
	e.w = w
	e.resid = resid
	e.params = params
	e.state = Fitted
	return nil
}

// unpack splits an optimizer vector into coefficient groups, mapping through
// the stationarity or invertibility transform when enabled.
func (e *Engine) unpack(x []float64) Params {
	o := e.cfg.Order
	take := func(k int) []float64 {
		out := append([]float64(nil), x[:k]...)
		x = x[k:]
		return out
	}
	p := Params{
		AR:         take(o.AR),
		MA:         take(o.MA),
		SeasonalAR: take(o.SeasonalAR),
		SeasonalMA: take(o.SeasonalMA),
	}
	if e.cfg.EnforceStationarity {
		p.AR = constrainStationary(p.AR)
		p.SeasonalAR = constrainStationary(p.SeasonalAR)
	}
	if e.cfg.EnforceInvertibility {
		p.MA = negate(constrainStationary(p.MA))
		p.SeasonalMA = negate(constrainStationary(p.SeasonalMA))
	}
	return p
}

// Forecast returns h consecutive months following the training window with
// point estimates and prediction bounds at the configured confidence.
// Calling it again with the same h returns the same results.
func (e *Engine) Forecast(h int) ([]domain.ForecastResult, error) {
	if e.state == Untrained {
		return nil, &SequenceError{Err: ErrNotFitted}
	}
	if h <= 0 {
		return nil, &SequenceError{Err: fmt.Errorf("%w: got %d", ErrInvalidHorizon, h)}
	}

	order := e.cfg.Order
	ar := order.arPoly(e.params)
	ma := order.maPoly(e.params)
	diff := order.diffPoly()

	// Extend the differenced series with future innovations set to zero.
	nw := len(e.w)
	w := append(append([]float64(nil), e.w...), make([]float64, h)...)
	resid := append(append([]float64(nil), e.resid...), make([]float64, h)...)
	for t := nw; t < nw+h; t++ {
		var v float64
		for k := 1; k < len(ar) && k <= t; k++ {
			v -= ar[k] * w[t-k]
		}
		for k := 1; k < len(ma) && k <= t; k++ {
			v += ma[k] * resid[t-k]
		}
		w[t] = v
	}

	// Integrate back onto the original scale.
	ny := len(e.y)
	offset := len(diff) - 1
	y := append(append([]float64(nil), e.y...), make([]float64, h)...)
	for t := ny; t < ny+h; t++ {
		v := w[t-offset]
		for k := 1; k <= offset; k++ {
			v -= diff[k] * y[t-k]
		}
		y[t] = v
	}

	psi := psiWeights(polyMul(ar, diff), ma, h)
	z := distuv.UnitNormal.Quantile(0.5 + e.cfg.Confidence/2)
	last := e.history[len(e.history)-1].Month

	out := make([]domain.ForecastResult, h)
	var cum float64
	for i := range out {
		cum += psi[i] * psi[i]
		half := z * math.Sqrt(e.params.Sigma2*cum)
		point := y[ny+i]
		out[i] = domain.ForecastResult{
			TargetMonth:   last.AddMonths(i + 1),
			PointEstimate: point,
			LowerBound:    point - half,
			UpperBound:    point + half,
		}
	}
	e.state = Forecasted
	return out, nil
}

func checkWindow(series []Point, minLen int) error {
	if len(series) < minLen {
		return &PreconditionError{Err: fmt.Errorf("%w: have %d months, need at least %d",
			ErrInsufficientHistory, len(series), minLen)}
	}
	for i, p := range series {
		if !finite(p.Value) {
			return &PreconditionError{Err: fmt.Errorf("%w: %s", ErrNonFiniteValue, p.Month)}
		}
		if i > 0 && p.Month != series[i-1].Month.AddMonths(1) {
			return &PreconditionError{Err: fmt.Errorf("%w: %s follows %s",
				ErrGappedHistory, p.Month, series[i-1].Month)}
		}
	}
	return nil
}

func negate(v []float64) []float64 {
	for i := range v {
		v[i] = -v[i]
	}
	return v
}
