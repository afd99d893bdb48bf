package adfuller

import (
	"fmt"
	"math"

	"github.com/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
	"regcore/ml/ols"
	"regcore/timeSeries/acf"
)

type ARResult struct {
	P       int
	Coeffs  []float64 // 常数在前, 之后为 lag 1..P
	AIC     float64
	BIC     float64
	PValues []float64
}

func dropNA(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !dataset.IsNA(v) {
			out = append(out, v)
		}
	}
	return out
}

// DetectAR 检验残差是否存在AR(p)结构，按 AIC 选出最佳p. 各阶共用 [pMax, n-1] 样本
func DetectAR(resid []float64, pMax int) (bestP int, info []ARResult, err error) {
	r := dropNA(resid)
	n := len(r)
	if pMax < 0 {
		return 0, nil, errorx.New(errCode.INVALID_VALUE, "pMax 不能为负")
	}
	if n-pMax < pMax+2 {
		return 0, nil, errorx.New(errCode.DF_ERROR, fmt.Sprintf("残差只有 %d 个, 不足以拟合 AR(%d)", n, pMax))
	}

	// AR(0) 基准模型（白噪声）
	window := r[pMax:]
	m := float64(len(window))
	mean := stat.Mean(window, nil)
	var ss float64
	for _, v := range window {
		ss += (v - mean) * (v - mean)
	}
	if ss == 0 {
		return 0, nil, errorx.New(errCode.INVALID_VALUE, "残差方差为零")
	}
	lnl := -0.5 * m * (1 + math.Log(2*math.Pi) + math.Log(ss/m))
	info = append(info, ARResult{
		P:      0,
		Coeffs: []float64{mean},
		AIC:    -2*lnl + 2,
		BIC:    -2*lnl + math.Log(m),
	})

	ds := dataset.New(n)
	vr := ds.MustAddSeries("resid", r)
	lags := make([]int, 0, pMax)
	for j := 1; j <= pMax; j++ {
		lags = append(lags, ds.MustAddSeries(fmt.Sprintf("resid_lag%d", j), lagged(r, j)))
	}
	if err := ds.SetSample(pMax, n-1); err != nil {
		return 0, nil, err
	}

	bestAIC := info[0].AIC
	for p := 1; p <= pMax; p++ {
		list := append(ols.List{vr, 0}, lags[:p]...)
		mdl, err := ols.Estimate(ds, list, 0, ols.Params{})
		if err != nil {
			continue
		}
		info = append(info, ARResult{
			P:       p,
			Coeffs:  mdl.Coeffs,
			AIC:     mdl.AIC,
			BIC:     mdl.BIC,
			PValues: mdl.PValues,
		})
		if mdl.AIC < bestAIC {
			bestAIC = mdl.AIC
			bestP = p
		}
	}
	return bestP, info, nil
}

// Ljung-Box检验
// 样本自相关系数: rk = Σ((rt - rmean)(rt-k - rmean)) / Σ((rt - rmean)^2)
// Ljung-Box统计量: Q = n(n+2)Σ(rk^2/(n-k))  k=1~lags, 服从自由度为lags的卡方分布
// 残差中的 NA 处断开, 不跨缺失值配对
// output: result 是否拒绝原假设(残差白噪声); Q 统计量; pValue p值
func LjungBoxTest(resid []float64, lags int, alpha float64) (result bool, Q float64, pValue float64, err error) {
	if lags <= 0 {
		return false, 0, 0, errorx.New(errCode.INVALID_VALUE, "lags 必须为正")
	}
	s, err := acf.NewSegments(acf.SplitNA(resid))
	if err != nil {
		return false, 0, 0, err
	}
	n := float64(s.Len())
	if s.Len() <= lags {
		return false, 0, 0, errorx.New(errCode.DF_ERROR, "样本量过小, 无法进行Ljung-Box检验")
	}
	r, err := s.AutoCorr(lags)
	if err != nil {
		return false, 0, 0, err
	}

	for k := 1; k <= lags; k++ {
		Q += r[k] * r[k] / (n - float64(k))
	}
	Q = n * (n + 2) * Q

	chi2 := distuv.ChiSquared{K: float64(lags)}
	pValue = chi2.Survival(Q)
	return pValue < alpha, Q, pValue, nil
}
