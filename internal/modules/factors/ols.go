package factors

import (
	"fmt"
	"math"

	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Regression is an ordinary least squares fit with an intercept named Const.
type Regression struct {
	// Names lists the coefficients in design-matrix order, Const first.
	Names       []string
	Params      map[string]float64
	StdErrors   map[string]float64
	TValues     map[string]float64
	PValues     map[string]float64
	RSquared    float64
	AdjRSquared float64
	NObs        int
	DFResid     int
}

// Coefficient returns the fitted coefficient for name.
func (r *Regression) Coefficient(name string) (float64, bool) {
	v, ok := r.Params[name]
	return v, ok
}

// OLS regresses y on the columns of x plus an intercept. x holds one row per
// observation with one value per entry of names.
//
// Coefficients are solved by QR least squares; standard errors come from
// sigma^2 (X'X)^-1 and two-sided p-values from Student's t with n-k degrees
// of freedom.
func OLS(y []float64, x [][]float64, names []string) (*Regression, error) {
	const op = "ols"

	n := len(y)
	k := len(names) + 1
	if len(x) != n {
		return nil, &risk.Error{Kind: risk.KindDimensionMismatch, Op: op,
			Msg: fmt.Sprintf("%d regressor rows for %d observations", len(x), n)}
	}
	if n <= k {
		return nil, &risk.Error{Kind: risk.KindInsufficientData, Op: op,
			Msg: fmt.Sprintf("need more than %d observations for %d coefficients, got %d", k, k, n)}
	}

	design := mat.NewDense(n, k, nil)
	for i, row := range x {
		if len(row) != len(names) {
			return nil, &risk.Error{Kind: risk.KindDimensionMismatch, Op: op,
				Msg: fmt.Sprintf("row %d has %d regressors, expected %d", i, len(row), len(names))}
		}
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	response := mat.NewVecDense(n, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, response); err != nil {
		return nil, &risk.Error{Kind: risk.KindDegenerateInput, Op: op,
			Msg: fmt.Sprintf("regressors are collinear: %v", err)}
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(design, &beta)
	resid.SubVec(response, &fitted)
	ssr := mat.Dot(&resid, &resid)

	mean := stat.Mean(y, nil)
	sst := 0.0
	for _, v := range y {
		sst += (v - mean) * (v - mean)
	}

	dfResid := n - k
	sigma2 := ssr / float64(dfResid)

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(k, xtx.RawMatrix().Data)); !ok {
		return nil, &risk.Error{Kind: risk.KindDegenerateInput, Op: op, Msg: "X'X is not positive definite"}
	}
	var xtxInv mat.SymDense
	if err := chol.InverseTo(&xtxInv); err != nil {
		return nil, &risk.Error{Kind: risk.KindDegenerateInput, Op: op,
			Msg: fmt.Sprintf("failed to invert X'X: %v", err)}
	}

	reg := &Regression{
		Names:     append([]string{Const}, names...),
		Params:    make(map[string]float64, k),
		StdErrors: make(map[string]float64, k),
		TValues:   make(map[string]float64, k),
		PValues:   make(map[string]float64, k),
		NObs:      n,
		DFResid:   dfResid,
	}

	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}
	for j, name := range reg.Names {
		b := beta.AtVec(j)
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		t := b / se
		reg.Params[name] = b
		reg.StdErrors[name] = se
		reg.TValues[name] = t
		reg.PValues[name] = 2 * tdist.Survival(math.Abs(t))
	}

	if sst > 0 {
		reg.RSquared = 1 - ssr/sst
		reg.AdjRSquared = 1 - (1-reg.RSquared)*float64(n-1)/float64(dfResid)
	}

	return reg, nil
}
