package ols

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"regcore/dataset"
	"regcore/infra/observe/log/staticLog"
)

// finalize R², 调整 R², F, t 统计量与信息准则
func finalize(mdl *Model, ft *fit, wald WaldTester) {
	m := float64(mdl.NObs)
	dfd := float64(mdl.DFD)

	// R²
	switch {
	case mdl.DFD == 0:
		mdl.RSquared = 1
		mdl.AdjRSquared = dataset.NA
	case mdl.IFC:
		mdl.RSquared = 1 - mdl.ESS/mdl.TSS
		mdl.AdjRSquared = 1 - mdl.ESS*(m-1)/(mdl.TSS*dfd)
	default:
		// 无截距时未中心化 R² 有误导性, 用实际值与拟合值相关系数的平方
		r := dataset.NA
		if !flat(ft.yhat) {
			r = stat.Correlation(ft.y, ft.yhat, nil)
		}
		if na(r) {
			mdl.RSquared = dataset.NA
			mdl.AdjRSquared = dataset.NA
		} else {
			mdl.RSquared = r * r
			mdl.AdjRSquared = 1 - (1-mdl.RSquared)*(m-1)/dfd
		}
	}

	// F
	mdl.FStat = dataset.NA
	mdl.FPValue = dataset.NA
	if mdl.DFN > 0 && mdl.DFD > 0 && !mdl.SingleConst() {
		if mdl.Vcv.Robust() {
			if wald == nil {
				wald = SlopeWald{}
			}
			F, err := wald.RobustF(mdl)
			if err != nil {
				staticLog.Log.Warnf("ols: robust F unavailable: %v", err)
			} else {
				mdl.FStat = F
			}
		} else if mdl.ESS > 0 {
			mdl.FStat = (mdl.TSS - mdl.ESS) * dfd / (mdl.ESS * float64(mdl.DFN))
		}
		if !na(mdl.FStat) {
			fd := distuv.F{D1: float64(mdl.DFN), D2: dfd}
			mdl.FPValue = fd.Survival(mdl.FStat)
		}
	}

	// t 统计量与双尾 p 值 (Student-t, 自由度 dfd)
	n := mdl.NCoeff
	mdl.TStats = make([]float64, n)
	mdl.PValues = make([]float64, n)
	var tdist *distuv.StudentsT
	if mdl.DFD > 0 {
		tdist = &distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dfd}
	}
	for i := 0; i < n; i++ {
		if mdl.SE[i] <= 0 || na(mdl.SE[i]) {
			mdl.TStats[i] = dataset.NA
			mdl.PValues[i] = dataset.NA
			continue
		}
		ts := mdl.Coeffs[i] / mdl.SE[i]
		mdl.TStats[i] = ts
		if tdist == nil {
			mdl.PValues[i] = dataset.NA
		} else {
			mdl.PValues[i] = 2 * tdist.Survival(math.Abs(ts))
		}
	}

	infoCriteria(mdl)
	residualAutocorr(mdl, ft.u)
}

// flat 拟合值在舍入误差内为常数, 此时相关系数无定义
func flat(x []float64) bool {
	lo, hi := floats.Min(x), floats.Max(x)
	return hi-lo <= 1e-12*math.Max(math.Abs(lo), math.Abs(hi))
}

// infoCriteria 高斯对数似然与 AIC/BIC/HQC; ESS 为 0 时无定义
func infoCriteria(mdl *Model) {
	if mdl.ESS <= 0 {
		return
	}
	m := float64(mdl.NObs)
	k := float64(mdl.NCoeff)
	mdl.LnL = -0.5 * m * (1 + math.Log(2*math.Pi) + math.Log(mdl.ESS/m))
	mdl.AIC = -2*mdl.LnL + 2*k
	mdl.BIC = -2*mdl.LnL + k*math.Log(m)
	if m > 1 {
		mdl.HQC = -2*mdl.LnL + 2*k*math.Log(math.Log(m))
	}
}

// residualAutocorr Durbin-Watson 与一阶自相关 ρ̂, 按有效观测顺序计算
func residualAutocorr(mdl *Model, u []float64) {
	if mdl.ESS <= 0 || len(u) < 2 {
		return
	}
	dw, num, den := 0.0, 0.0, 0.0
	for t := 1; t < len(u); t++ {
		d := u[t] - u[t-1]
		dw += d * d
		num += u[t] * u[t-1]
		den += u[t-1] * u[t-1]
	}
	mdl.DW = dw / mdl.ESS
	if den > 0 {
		mdl.Rho = num / den
	}
}
