package ols

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"regcore/dataset"
)

// essZero 小于它的 ESS 视为精确拟合
const essZero = 1e-22

// fit 估计窗口内 (压缩后) 的拟合值与残差, 供协方差和统计量使用
type fit struct {
	y    []float64
	yhat []float64
	u    []float64
}

// solveCoeffs γ = Q'y, b = R^{-1}γ, ŷ = Qγ; 系数写入 mdl 时常数挪到第一位
func solveCoeffs(f *qrFactors, y []float64, mdl *Model) *fit {
	yv := mat.NewVecDense(f.m, y)

	var gamma mat.VecDense
	gamma.MulVec(f.q.T(), yv)

	var b mat.VecDense
	b.MulVec(f.rinv, &gamma)

	var yh mat.VecDense
	yh.MulVec(f.q, &gamma)

	mdl.Coeffs = make([]float64, f.n)
	reorderVec(mdl.Coeffs, b.RawVector().Data, mdl.IFC)

	yhat := make([]float64, f.m)
	for i := range yhat {
		yhat[i] = yh.AtVec(i)
	}
	return &fit{y: y, yhat: yhat}
}

// residuals 展开到全样本长度; 实际值由原始数据按同样的变换重建后与拟合值比较
func residuals(d *design, ft *fit, mdl *Model, opt Opt) {
	N := d.ds.N
	mdl.Yhat = make([]float64, N)
	mdl.Uhat = make([]float64, N)
	mdl.Missmask = d.mask
	ft.u = make([]float64, d.m)

	dep := d.list.Depvar()
	ess := 0.0
	i := 0
	for t := 0; t < N; t++ {
		if !d.ds.InSample(t) || d.mask[t] {
			mdl.Yhat[t] = dataset.NA
			mdl.Uhat[t] = dataset.NA
			continue
		}
		yh := ft.yhat[i]
		u := d.value(dep, t) - yh
		mdl.Yhat[t] = yh
		mdl.Uhat[t] = u
		ft.u[i] = u
		ess += u * u
		i++
	}
	if math.Abs(ess) < essZero {
		ess = 0
	}
	mdl.ESS = ess

	mdl.NObs = d.m
	mdl.NCoeff = d.n
	mdl.DFD = d.m - d.n
	mdl.DFN = d.n
	if d.ifc {
		mdl.DFN = d.n - 1
	}

	switch {
	case mdl.DFD <= 0:
		mdl.Sigma = 0
	case opt.Has(OptNoDFCorr):
		mdl.Sigma = math.Sqrt(ess / float64(d.m))
	default:
		mdl.Sigma = math.Sqrt(ess / float64(mdl.DFD))
	}
}
