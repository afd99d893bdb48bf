package ols

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
)

func TestEstimateCollinearWithIntercept(t *testing.T) {
	ds, v := newDS(t, 5, []float64{1, 2, 3, 4, 5}, []float64{1, 1, 1, 1, 1})

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorx.New(errCode.SINGULAR, "")))
	assert.Equal(t, errCode.SINGULAR, mdl.Errcode)
	assert.True(t, mdl.Failed())
}

func TestEstimateExactFit(t *testing.T) {
	ds, v := newDS(t, 5, []float64{2, 4, 6, 8, 10}, []float64{1, 2, 3, 4, 5})

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.NoError(t, err)
	assert.Equal(t, errCode.OK, mdl.Errcode)

	assert.InDelta(t, 0.0, mdl.Coeffs[0], 1e-12)
	assert.InDelta(t, 2.0, mdl.Coeffs[1], 1e-12)
	assert.Equal(t, 0.0, mdl.ESS)
	assert.Equal(t, 0.0, mdl.Sigma)
	assert.InDelta(t, 1.0, mdl.RSquared, 1e-12)
	assert.True(t, math.IsNaN(mdl.FStat))
	assert.InDelta(t, 40.0, mdl.TSS, 1e-12)
}

func TestEstimateSingleOutlier(t *testing.T) {
	// 第 3 个观测 (x 取均值处) 加 1
	ds, v := newDS(t, 5, []float64{2, 4, 7, 8, 10}, []float64{1, 2, 3, 4, 5})

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, mdl.Coeffs[0], 1e-12)
	assert.InDelta(t, 2.0, mdl.Coeffs[1], 1e-12)
	// ESS = 1 - h, 该点杠杆值 h = 1/5
	assert.InDelta(t, 0.8, mdl.ESS, 1e-12)
	assert.InDelta(t, 0.8, mdl.Uhat[2], 1e-12)
	assert.InDelta(t, -0.2, mdl.Uhat[0], 1e-12)
	assert.InDelta(t, math.Sqrt(0.8/3), mdl.Sigma, 1e-12)
	assert.InDelta(t, 1-0.8/40.8, mdl.RSquared, 1e-12)
	assert.Less(t, mdl.RSquared, 1.0)
	assert.InDelta(t, 1-0.8*4/(40.8*3), mdl.AdjRSquared, 1e-12)
	assert.Equal(t, 1, mdl.DFN)
	assert.Equal(t, 3, mdl.DFD)

	// 单个斜率时 F = t²
	assert.InDelta(t, mdl.TStats[1]*mdl.TStats[1], mdl.FStat, 1e-8)
	assert.InDelta(t, mdl.PValues[1], mdl.FPValue, 1e-8)
}

func TestEstimateAgreesWithNormalEquations(t *testing.T) {
	y, x1, x2 := linearData(3, 60, 0.5)
	ds, v := newDS(t, 60, y, x1, x2)
	list := List{v[0], v[1], 0, v[2]}

	mdl, err := Estimate(ds, list, 0, Params{})
	require.NoError(t, err)

	X, yy, _ := publicX(ds, list, mdl)
	beta, xtxi := normalEquations(t, X, yy)
	for i := range beta {
		assert.InDelta(t, beta[i], mdl.Coeffs[i], 1e-10)
	}
	// 经典协方差 σ²(X'X)^{-1}, 对外顺序
	s2 := mdl.Sigma * mdl.Sigma
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, s2*xtxi.At(i, j), mdl.VcvAt(i, j), 1e-12)
		}
		assert.InDelta(t, math.Sqrt(s2*xtxi.At(i, i)), mdl.SE[i], 1e-12)
	}
	assert.Equal(t, VcvClassical, mdl.Vcv.Kind)
}

func TestResidualsOrthogonalToRegressors(t *testing.T) {
	y, x1, x2 := linearData(4, 80, 2)
	ds, v := newDS(t, 80, y, x1, x2)
	list := List{v[0], 0, v[1], v[2]}

	for _, opt := range []Opt{0, OptRobust, OptRobust | OptHAC, OptNoDFCorr} {
		mdl, err := Estimate(ds, list, opt, Params{HC: HC3, HACLag: func(int) int { return 3 }})
		require.NoError(t, err)

		X, _, u := publicX(ds, list, mdl)
		var xu mat.VecDense
		xu.MulVec(X.T(), mat.NewVecDense(len(u), u))
		for i := 0; i < xu.Len(); i++ {
			assert.InDelta(t, 0.0, xu.AtVec(i), 1e-9, "opt %b", opt)
		}
		assert.InDelta(t, floats.Dot(u, u), mdl.ESS, 1e-9)
	}
}

func TestFullLengthOutput(t *testing.T) {
	y, x1, _ := linearData(5, 20, 1)
	ds, v := newDS(t, 20, y, x1)
	require.NoError(t, ds.SetSample(5, 14))

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.NoError(t, err)

	require.Len(t, mdl.Uhat, 20)
	require.Len(t, mdl.Yhat, 20)
	for i := 0; i < 20; i++ {
		inside := i >= 5 && i <= 14
		assert.Equal(t, !inside, dataset.IsNA(mdl.Uhat[i]), "uhat[%d]", i)
		assert.Equal(t, !inside, dataset.IsNA(mdl.Yhat[i]), "yhat[%d]", i)
		if inside {
			assert.InDelta(t, y[i], mdl.Yhat[i]+mdl.Uhat[i], 1e-12)
		}
	}
	assert.Equal(t, 10, mdl.NObs)
	assert.Equal(t, 5, mdl.T1)
	assert.Equal(t, 14, mdl.T2)
}

func TestMissingObservationsAreMasked(t *testing.T) {
	y, x1, _ := linearData(6, 12, 1)
	x1[7] = dataset.NA
	y[3] = dataset.NA
	ds, v := newDS(t, 12, y, x1)

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.NoError(t, err)
	assert.Equal(t, 10, mdl.NObs)
	assert.True(t, mdl.Missmask[3])
	assert.True(t, mdl.Missmask[7])
	assert.True(t, dataset.IsNA(mdl.Uhat[3]))
	assert.True(t, dataset.IsNA(mdl.Yhat[7]))
	assert.False(t, dataset.IsNA(mdl.Uhat[8]))
}

func TestSaturatedModel(t *testing.T) {
	ds, v := newDS(t, 2, []float64{1, 3}, []float64{1, 2})

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, mdl.Coeffs[0], 1e-12)
	assert.InDelta(t, 2.0, mdl.Coeffs[1], 1e-12)
	assert.Equal(t, 0, mdl.DFD)
	assert.Equal(t, 0.0, mdl.Sigma)
	assert.Equal(t, 1.0, mdl.RSquared)
	assert.True(t, math.IsNaN(mdl.AdjRSquared))
	assert.True(t, math.IsNaN(mdl.FStat))
	assert.True(t, math.IsNaN(mdl.PValues[1]))
}

func TestNoInterceptRSquared(t *testing.T) {
	y, x1, _ := linearData(7, 30, 1)
	ds, v := newDS(t, 30, y, x1)

	mdl, err := Estimate(ds, List{v[0], v[1]}, 0, Params{})
	require.NoError(t, err)
	assert.False(t, mdl.IFC)
	assert.Equal(t, 1, mdl.DFN)

	r := stat.Correlation(y, x1, nil)
	assert.InDelta(t, r*r, mdl.RSquared, 1e-10)
	assert.InDelta(t, 1-(1-r*r)*29/29, mdl.AdjRSquared, 1e-10)
	assert.InDelta(t, floats.Dot(y, y), mdl.TSS, 1e-9)
}

func TestNoInterceptConstantFit(t *testing.T) {
	ds, v := newDS(t, 4, []float64{1, 2, 4, 3}, []float64{2, 2, 2, 2})

	mdl, err := Estimate(ds, List{v[0], v[1]}, 0, Params{})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, mdl.Coeffs[0], 1e-12)
	assert.True(t, math.IsNaN(mdl.RSquared))
	assert.True(t, math.IsNaN(mdl.AdjRSquared))
}

func TestSingleConstantModel(t *testing.T) {
	ds, v := newDS(t, 4, []float64{1, 2, 4, 3})

	mdl, err := Estimate(ds, List{v[0], 0}, 0, Params{})
	require.NoError(t, err)
	assert.True(t, mdl.SingleConst())
	assert.InDelta(t, 2.5, mdl.Coeffs[0], 1e-12)
	assert.True(t, math.IsNaN(mdl.FStat))
	assert.InDelta(t, 0.0, mdl.RSquared, 1e-12)
}

func TestNoDFCorrection(t *testing.T) {
	ds, v := newDS(t, 5, []float64{2, 4, 7, 8, 10}, []float64{1, 2, 3, 4, 5})

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, OptNoDFCorr, Params{})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.8/5), mdl.Sigma, 1e-12)
}

func TestWeightedLeastSquares(t *testing.T) {
	y, x1, _ := linearData(8, 25, 1)
	w := make([]float64, 25)
	ys, xs, cs := make([]float64, 25), make([]float64, 25), make([]float64, 25)
	for i := range w {
		w[i] = 0.5 + float64(i%4)
		s := math.Sqrt(w[i])
		ys[i], xs[i], cs[i] = s*y[i], s*x1[i], s
	}
	ds, v := newDS(t, 25, y, x1, w, ys, xs, cs)

	wls, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{WeightVar: v[2]})
	require.NoError(t, err)
	manual, err := Estimate(ds, List{v[3], v[5], v[4]}, 0, Params{})
	require.NoError(t, err)

	assert.InDelta(t, manual.Coeffs[0], wls.Coeffs[0], 1e-10)
	assert.InDelta(t, manual.Coeffs[1], wls.Coeffs[1], 1e-10)
	assert.InDelta(t, manual.ESS, wls.ESS, 1e-9)
	assert.InDelta(t, manual.SE[1], wls.SE[1], 1e-10)
	for i := 0; i < 25; i++ {
		assert.InDelta(t, manual.Uhat[i], wls.Uhat[i], 1e-10)
	}
}

func TestDummyWeightsDropZeroRows(t *testing.T) {
	y, x1, _ := linearData(9, 16, 1)
	w := make([]float64, 16)
	for i := range w {
		if i%3 != 0 {
			w[i] = 1
		}
	}
	ds, v := newDS(t, 16, y, x1, w)

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{WeightVar: v[2]})
	require.NoError(t, err)
	assert.Equal(t, 10, mdl.NObs)
	for i := 0; i < 16; i++ {
		assert.Equal(t, w[i] == 0, dataset.IsNA(mdl.Uhat[i]))
	}

	w[4] = -1
	_, err = Estimate(ds, List{v[0], 0, v[1]}, 0, Params{WeightVar: v[2]})
	assert.Equal(t, errCode.INVALID_VALUE, errorx.CodeOf(err))
}

func TestPraisWinstenTransform(t *testing.T) {
	const rho = 0.6
	y, x1, _ := linearData(10, 30, 1)
	pw1 := math.Sqrt(1 - rho*rho)
	ys, xs, cs := make([]float64, 30), make([]float64, 30), make([]float64, 30)
	ys[0], xs[0], cs[0] = pw1*y[0], pw1*x1[0], pw1
	for i := 1; i < 30; i++ {
		ys[i] = y[i] - rho*y[i-1]
		xs[i] = x1[i] - rho*x1[i-1]
		cs[i] = 1 - rho
	}
	ds, v := newDS(t, 30, y, x1, ys, xs, cs)

	pw, err := Estimate(ds, List{v[0], 0, v[1]}, OptPraisWinsten, Params{Rho: rho})
	require.NoError(t, err)
	manual, err := Estimate(ds, List{v[2], v[4], v[3]}, 0, Params{})
	require.NoError(t, err)

	assert.InDelta(t, manual.Coeffs[0], pw.Coeffs[0], 1e-10)
	assert.InDelta(t, manual.Coeffs[1], pw.Coeffs[1], 1e-10)
	assert.InDelta(t, manual.ESS, pw.ESS, 1e-9)
	assert.InDelta(t, manual.Uhat[0], pw.Uhat[0], 1e-10)
	assert.InDelta(t, manual.Uhat[17], pw.Uhat[17], 1e-10)
}

func TestCochraneOrcuttNeedsLag(t *testing.T) {
	const rho = 0.4
	y, x1, _ := linearData(11, 20, 1)
	ds, v := newDS(t, 20, y, x1)
	list := List{v[0], 0, v[1]}

	_, err := Estimate(ds, list, 0, Params{Rho: rho})
	assert.Equal(t, errCode.MISSING_DATA, errorx.CodeOf(err))

	require.NoError(t, ds.SetSample(1, 19))
	co, err := Estimate(ds, list, 0, Params{Rho: rho})
	require.NoError(t, err)
	assert.Equal(t, 19, co.NObs)
	assert.True(t, dataset.IsNA(co.Uhat[0]))
	yq := y[5] - rho*y[4]
	assert.InDelta(t, yq, co.Yhat[5]+co.Uhat[5], 1e-12)

	x1[10] = dataset.NA
	_, err = Estimate(ds, list, 0, Params{Rho: rho})
	assert.Equal(t, errCode.MISSING_DATA, errorx.CodeOf(err))
}

func TestEstimateInputErrors(t *testing.T) {
	ds, v := newDS(t, 3, []float64{1, 2, 3}, []float64{1, 2, 4}, []float64{3, 1, 2})

	cases := []struct {
		name string
		list List
		opt  Opt
		p    Params
		code errCode.Code
	}{
		{"short list", List{v[0]}, 0, Params{}, errCode.INVALID_VALUE},
		{"unknown var", List{v[0], 0, 42}, 0, Params{}, errCode.INVALID_VALUE},
		{"const depvar", List{0, v[1]}, 0, Params{}, errCode.INVALID_VALUE},
		{"duplicate regressor", List{v[0], v[1], v[1]}, 0, Params{}, errCode.INVALID_VALUE},
		{"bad HC", List{v[0], 0, v[1]}, OptRobust, Params{HC: 7}, errCode.INVALID_VALUE},
		{"rho with weights", List{v[0], 0, v[1]}, 0, Params{Rho: 0.5, WeightVar: v[2]}, errCode.INVALID_VALUE},
		{"pw unit root", List{v[0], 0, v[1]}, OptPraisWinsten, Params{Rho: 1}, errCode.INVALID_VALUE},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mdl, err := Estimate(ds, tc.list, tc.opt, tc.p)
			require.Error(t, err)
			assert.Equal(t, tc.code, errorx.CodeOf(err))
			assert.Equal(t, tc.code, mdl.Errcode)
		})
	}

	_, err := Estimate(nil, List{1, 0}, 0, Params{})
	assert.Equal(t, errCode.EMPTY_VALUE, errorx.CodeOf(err))
}

func TestInsufficientObservations(t *testing.T) {
	ds, v := newDS(t, 2, []float64{1, 2}, []float64{1, 3}, []float64{2, 1})
	_, err := Estimate(ds, List{v[0], 0, v[1], v[2]}, 0, Params{})
	assert.Equal(t, errCode.DF_ERROR, errorx.CodeOf(err))
}

func TestAllocationLimit(t *testing.T) {
	saved := maxWorkCells
	maxWorkCells = 10
	t.Cleanup(func() { maxWorkCells = saved })

	y, x1, _ := linearData(12, 6, 1)
	ds, v := newDS(t, 6, y, x1)
	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	assert.Equal(t, errCode.ALLOC_FAILED, errorx.CodeOf(err))
	assert.Equal(t, errCode.ALLOC_FAILED, mdl.Errcode)
}

func TestConcurrentEstimation(t *testing.T) {
	y, x1, x2 := linearData(13, 200, 1)
	ds, v := newDS(t, 200, y, x1, x2)
	list := List{v[0], 0, v[1], v[2]}

	ref, err := Estimate(ds, list, OptRobust|OptHAC, Params{HACLag: func(int) int { return 4 }})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Model, 8)
	for g := range results {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			results[g], _ = Estimate(ds, list, OptRobust|OptHAC, Params{HACLag: func(int) int { return 4 }})
		}(g)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, ref.Coeffs, r.Coeffs)
		assert.Equal(t, ref.VCV, r.VCV)
	}
}

func TestInformationCriteria(t *testing.T) {
	y, x1, _ := linearData(14, 50, 1)
	ds, v := newDS(t, 50, y, x1)

	mdl, err := Estimate(ds, List{v[0], 0, v[1]}, 0, Params{})
	require.NoError(t, err)

	m := 50.0
	lnl := -0.5 * m * (1 + math.Log(2*math.Pi) + math.Log(mdl.ESS/m))
	assert.InDelta(t, lnl, mdl.LnL, 1e-9)
	assert.InDelta(t, -2*lnl+4, mdl.AIC, 1e-9)
	assert.InDelta(t, -2*lnl+2*math.Log(m), mdl.BIC, 1e-9)
	assert.InDelta(t, -2*lnl+4*math.Log(math.Log(m)), mdl.HQC, 1e-9)

	u := make([]float64, 50)
	copy(u, mdl.Uhat)
	dw := 0.0
	for i := 1; i < 50; i++ {
		dw += (u[i] - u[i-1]) * (u[i] - u[i-1])
	}
	assert.InDelta(t, dw/mdl.ESS, mdl.DW, 1e-12)
	assert.True(t, mdl.Rho > -1 && mdl.Rho < 1)
}
