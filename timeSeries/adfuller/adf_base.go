package adfuller

import (
	"fmt"
	"math"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
	"regcore/infra/observe/log/staticLog"
	"regcore/ml/ols"
)

type ADFResult struct {
	Gamma     float64            // 单位根系数
	TStat     float64            // ADF统计量 (t值)
	PValue    float64            // 对应p值 (Student-t, 仅供参考, 判定用 Criticals)
	UsedLag   int                // 选用的滞后阶数
	NObs      int                // 有效样本量
	AIC       float64            // Akaike信息准则
	BIC       float64            // 贝叶斯信息准则
	Method    LagMode            // autolag选择方法
	Trend     string             // 趋势类型 ("n"、"c"、"ct")
	Criticals map[string]float64 // 临界值（1%, 5%, 10%）
	Tail      string             // 左尾or右尾
	Resid     []float64          // 残差
	Coeffs    []float64          // 回归系数, 顺序: [常数], y_{t-1}, [趋势], Δy_{t-1}...Δy_{t-p}
	Model     *ols.Model
}

// adfData 辅助回归 Δy_t = [μ] + γ·y_{t-1} + [τ·t] + Σ φ_j·Δy_{t-j} + ε_t 的数据集.
// 观测 t 对应 Δy_t = y_{t+1} - y_t, 所有阶数共用 [maxLag, N-1] 样本.
type adfData struct {
	ds    *dataset.Dataset
	dy    int
	ylag  int
	trend int
	dlags []int // dlags[j-1] 为 Δy_{t-j}
}

func diff(x []float64) []float64 {
	d := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		d[i-1] = x[i] - x[i-1]
	}
	return d
}

// lagged x_{t-j}, 前 j 个为 NA
func lagged(x []float64, j int) []float64 {
	out := make([]float64, len(x))
	for t := range out {
		if t < j {
			out[t] = dataset.NA
		} else {
			out[t] = x[t-j]
		}
	}
	return out
}

func buildADFData(series []float64, maxLag int) (*adfData, error) {
	dy := diff(series)
	N := len(dy)
	if N-maxLag < 10 {
		return nil, errorx.New(errCode.DF_ERROR,
			fmt.Sprintf("样本量过小: %d 个差分, maxLag %d", N, maxLag))
	}

	trend := make([]float64, N)
	for t := range trend {
		trend[t] = float64(t - maxLag + 1)
	}

	ds := dataset.New(N)
	a := &adfData{ds: ds}
	a.dy = ds.MustAddSeries("dy", dy)
	a.ylag = ds.MustAddSeries("y_lag", series[:N])
	a.trend = ds.MustAddSeries("trend", trend)
	for j := 1; j <= maxLag; j++ {
		a.dlags = append(a.dlags, ds.MustAddSeries(fmt.Sprintf("dy_lag%d", j), lagged(dy, j)))
	}
	if err := ds.SetSample(maxLag, N-1); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *adfData) list(regr string, lag int) ols.List {
	l := ols.List{a.dy, a.ylag}
	if regr != TREND_N {
		l = append(l, 0)
	}
	if regr == TREND_CT {
		l = append(l, a.trend)
	}
	return append(l, a.dlags[:lag]...)
}

// gammaPos y_{t-1} 的系数下标 (常数排第一)
func gammaPos(regr string) int {
	if regr == TREND_N {
		return 0
	}
	return 1
}

// ADF检验主函数, H0: 存在单位根; 左尾 H1: 平稳, 右尾 H1: 爆炸性 (价格泡沫)
// input: series 序列 (如对数价格); regr: "n"、"c"、"ct"; maxLag: 最大滞后阶数; autolag: 滞后阶数选择方法; tail: LEFT_TAIL or RIGHT_TAIL
func AdfTest(series []float64, regr string, maxLag int, autolag LagMode, tail string) (ADFResult, error) {
	result := ADFResult{
		AIC:    math.Inf(1),
		BIC:    math.Inf(1),
		Tail:   tail,
		Method: autolag,
		Trend:  regr,
	}

	var table map[string]map[string]float64
	switch tail {
	case LEFT_TAIL:
		table = adfLeftTailCriticalValues
	case RIGHT_TAIL:
		table = adfRightTailCriticalValues
	default:
		return result, errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("未知的检验方向 %q", tail))
	}
	crit, ok := table[regr]
	if !ok {
		return result, errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("未知的趋势类型 %q", regr))
	}
	result.Criticals = make(map[string]float64, len(crit))
	for k, v := range crit {
		result.Criticals[k] = v
	}
	if autolag == LAG_MODE_ERROR || autolag < 0 {
		return result, errorx.New(errCode.INVALID_VALUE, "未知的滞后阶数选择方法")
	}
	if maxLag < 0 || len(series) < 2 {
		return result, errorx.New(errCode.INVALID_VALUE, "maxLag 不能为负, 序列至少两个点")
	}

	data, err := buildADFData(series, maxLag)
	if err != nil {
		return result, err
	}

	models := make([]*ols.Model, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		mdl, err := ols.Estimate(data.ds, data.list(regr, lag), 0, ols.Params{})
		if err != nil {
			staticLog.Log.Debugf("adf: lag %d skipped: %v", lag, err)
			continue
		}
		models[lag] = mdl
	}

	best := selectLag(models, autolag, gammaPos(regr))
	if best < 0 {
		return result, errorx.New(errCode.INVALID_VALUE, "ADF检验失败, 可能样本量过小或数据异常")
	}

	mdl := models[best]
	gi := gammaPos(regr)
	result.Gamma = mdl.Coeffs[gi]
	result.TStat = mdl.TStats[gi]
	result.PValue = mdl.PValues[gi]
	result.AIC = mdl.AIC
	result.BIC = mdl.BIC
	result.UsedLag = best
	result.NObs = mdl.NObs
	result.Coeffs = mdl.Coeffs
	result.Model = mdl
	result.Resid = make([]float64, 0, mdl.NObs)
	for t := mdl.T1; t <= mdl.T2; t++ {
		if !dataset.IsNA(mdl.Uhat[t]) {
			result.Resid = append(result.Resid, mdl.Uhat[t])
		}
	}

	if dataset.IsNA(result.TStat) {
		return result, errorx.New(errCode.NUMERICAL, "ADF统计量无定义, 可能残差为零")
	}
	return result, nil
}

// selectLag AIC/BIC 取最小; t-stat 从最高阶往下, 取最高阶差分滞后显著的第一个阶数, 都不显著时为 0
func selectLag(models []*ols.Model, autolag LagMode, gi int) int {
	best := -1
	switch autolag {
	case LAG_MODE_AIC, LAG_MODE_BIC:
		score := math.Inf(1)
		for lag, mdl := range models {
			if mdl == nil {
				continue
			}
			s := mdl.AIC
			if autolag == LAG_MODE_BIC {
				s = mdl.BIC
			}
			if best < 0 || s < score {
				best, score = lag, s
			}
		}
	case LAG_MODE_TSTAT:
		for lag := len(models) - 1; lag > 0; lag-- {
			mdl := models[lag]
			if mdl == nil {
				continue
			}
			if math.Abs(mdl.TStats[mdl.NCoeff-1]) >= tStatCutoff {
				return lag
			}
		}
		if models[0] != nil {
			best = 0
		}
	}
	return best
}

// Reject 是否在给定显著性水平 ("1%", "5%", "10%") 下拒绝单位根
func (f *ADFResult) Reject(level string) bool {
	c, ok := f.Criticals[level]
	if !ok {
		return false
	}
	if f.Tail == RIGHT_TAIL {
		return f.TStat > c
	}
	return f.TStat < c
}

// GetEstimate 从adf检验结果获取确定性项的估计
func (f *ADFResult) GetEstimate() (regr string, muHat, tauHat float64) {
	switch f.Trend {
	case TREND_C:
		if len(f.Coeffs) >= 2 {
			muHat = f.Coeffs[0]
		}
	case TREND_CT:
		if len(f.Coeffs) >= 3 {
			muHat = f.Coeffs[0]
			tauHat = f.Coeffs[2]
		}
	}
	return f.Trend, muHat, tauHat
}
