package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Order is a seasonal ARIMA specification (p,d,q)x(P,D,Q,s).
type Order struct {
	AR, Diff, MA                         int
	SeasonalAR, SeasonalDiff, SeasonalMA int
	Period                               int
}

// DefaultOrder is the (1,1,1)x(1,1,1,12) monthly specification.
var DefaultOrder = Order{AR: 1, Diff: 1, MA: 1, SeasonalAR: 1, SeasonalDiff: 1, SeasonalMA: 1, Period: 12}

func (o Order) String() string {
	return fmt.Sprintf("SARIMA(%d,%d,%d)x(%d,%d,%d,%d)",
		o.AR, o.Diff, o.MA, o.SeasonalAR, o.SeasonalDiff, o.SeasonalMA, o.Period)
}

func (o Order) numParams() int {
	return o.AR + o.MA + o.SeasonalAR + o.SeasonalMA
}

func (o Order) seasonal() bool {
	return o.SeasonalAR+o.SeasonalDiff+o.SeasonalMA > 0
}

// minHistory is the shortest window the engine will fit: two full seasonal
// periods, and always more points than differencing plus parameters consume.
func (o Order) minHistory() int {
	n := len(o.diffPoly()) + o.numParams()
	if o.seasonal() {
		n = max(n, 2*o.Period)
	}
	return n
}

func (o Order) validate() error {
	if o.AR < 0 || o.Diff < 0 || o.MA < 0 || o.SeasonalAR < 0 || o.SeasonalDiff < 0 || o.SeasonalMA < 0 {
		return fmt.Errorf("%w: negative order in %s", ErrInvalidConfig, o)
	}
	if o.seasonal() && o.Period < 2 {
		return fmt.Errorf("%w: seasonal period must be at least 2, got %d", ErrInvalidConfig, o.Period)
	}
	return nil
}

// Params holds fitted coefficients in the sign convention
// (1 - φB)(1 - ΦB^s) w_t = (1 + θB)(1 + ΘB^s) e_t.
type Params struct {
	AR         []float64 `json:"ar"`
	MA         []float64 `json:"ma"`
	SeasonalAR []float64 `json:"seasonal_ar"`
	SeasonalMA []float64 `json:"seasonal_ma"`
	Sigma2     float64   `json:"sigma2"`
}

// polyMul multiplies two polynomials stored as ascending coefficients.
func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// lagPoly builds 1 + sign·(c1·B^step + c2·B^(2·step) + ...).
func lagPoly(coef []float64, step int, sign float64) []float64 {
	p := make([]float64, len(coef)*step+1)
	p[0] = 1
	for i, c := range coef {
		p[(i+1)*step] = sign * c
	}
	return p
}

func (o Order) diffPoly() []float64 {
	p := []float64{1}
	for range o.Diff {
		p = polyMul(p, []float64{1, -1})
	}
	for range o.SeasonalDiff {
		p = polyMul(p, lagPoly([]float64{1}, o.Period, -1))
	}
	return p
}

func (o Order) arPoly(p Params) []float64 {
	return polyMul(lagPoly(p.AR, 1, -1), lagPoly(p.SeasonalAR, o.Period, -1))
}

func (o Order) maPoly(p Params) []float64 {
	return polyMul(lagPoly(p.MA, 1, 1), lagPoly(p.SeasonalMA, o.Period, 1))
}

// difference applies the differencing polynomial, dropping the leading
// observations it consumes.
func difference(y, diff []float64) []float64 {
	offset := len(diff) - 1
	if len(y) <= offset {
		return nil
	}
	w := make([]float64, len(y)-offset)
	for t := range w {
		for k, c := range diff {
			w[t] += c * y[t+offset-k]
		}
	}
	return w
}

// residuals runs the ARMA recursion a(B) w_t = m(B) e_t forward from zero
// pre-sample values and returns the one-step innovations.
func residuals(w, ar, ma []float64) []float64 {
	e := make([]float64, len(w))
	for t := range w {
		v := w[t]
		for k := 1; k < len(ar) && k <= t; k++ {
			v += ar[k] * w[t-k]
		}
		for k := 1; k < len(ma) && k <= t; k++ {
			v -= ma[k] * e[t-k]
		}
		e[t] = v
	}
	return e
}

// sumSquares is the conditional sum of squares objective.
func sumSquares(w, ar, ma []float64) float64 {
	e := residuals(w, ar, ma)
	return floats.Dot(e, e)
}

// psiWeights expands m(B)/a(B) into its first n moving-average weights.
func psiWeights(ar, ma []float64, n int) []float64 {
	psi := make([]float64, n)
	for j := range psi {
		if j == 0 {
			psi[0] = 1
			continue
		}
		var v float64
		if j < len(ma) {
			v = ma[j]
		}
		for k := 1; k < len(ar) && k <= j; k++ {
			v -= ar[k] * psi[j-k]
		}
		psi[j] = v
	}
	return psi
}

// constrainStationary maps unconstrained reals onto the coefficients of a
// stationary polynomial 1 - c1·B - ... - cn·B^n through partial
// autocorrelations in (-1, 1).
func constrainStationary(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	y := make([][]float64, n)
	for k := range y {
		y[k] = make([]float64, n)
		r := x[k] / math.Sqrt(1+x[k]*x[k])
		for i := 0; i < k; i++ {
			y[k][i] = y[k-1][i] + r*y[k-1][k-i-1]
		}
		y[k][k] = r
	}
	out := make([]float64, n)
	for i, v := range y[n-1] {
		out[i] = -v
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
