package acf

import (
	"fmt"
	"math"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
	"regcore/ml/ols"
)

// Decay 幂律衰减拟合 acf(k) ≈ A·k^{-Gamma}
type Decay struct {
	Gamma     float64
	Intercept float64 // log A
	RSquared  float64
	Start     int // 参与拟合的 lag 区间 [Start, End)
	End       int
	Model     *ols.Model
}

// FitDecay 在 lag>=1 的第一段连续正值区间上做 log(acf) = a + b·log(lag), Gamma = -b
func FitDecay(acf []float64, minPoints int) (*Decay, error) {
	n := len(acf)
	if n < 3 {
		return nil, errorx.New(errCode.INVALID_VALUE, "acf too short")
	}
	if minPoints < 2 {
		minPoints = 2
	}

	start := -1
	for i := 1; i < n; i++ {
		if acf[i] > 0 && !dataset.IsNA(acf[i]) {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, errorx.New(errCode.INVALID_VALUE, "acf has no positive lag")
	}
	end := start
	for end < n && acf[end] > 0 && !dataset.IsNA(acf[end]) {
		end++
	}
	if end-start < minPoints {
		return nil, errorx.New(errCode.DF_ERROR,
			fmt.Sprintf("positive acf run too short (%d), need at least %d points", end-start, minPoints))
	}

	m := end - start
	logLag := make([]float64, m)
	logAcf := make([]float64, m)
	for i := 0; i < m; i++ {
		logLag[i] = math.Log(float64(start + i))
		logAcf[i] = math.Log(acf[start+i])
	}
	ds := dataset.New(m)
	vy := ds.MustAddSeries("log_acf", logAcf)
	vx := ds.MustAddSeries("log_lag", logLag)

	mdl, err := ols.Estimate(ds, ols.List{vy, 0, vx}, 0, ols.Params{})
	if err != nil {
		return nil, err
	}
	return &Decay{
		Gamma:     -mdl.Coeffs[1],
		Intercept: mdl.Coeffs[0],
		RSquared:  mdl.RSquared,
		Start:     start,
		End:       end,
		Model:     mdl,
	}, nil
}
