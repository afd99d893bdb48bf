package adfuller

const (
	LEFT_TAIL  = "left_tail"
	RIGHT_TAIL = "right_tail"
)

// 确定性项
const (
	TREND_N  = "n"  // 无常数
	TREND_C  = "c"  // 常数
	TREND_CT = "ct" // 常数 + 线性趋势
)

type LagMode int

const (
	LAG_MODE_AIC   LagMode = iota // "AIC"
	LAG_MODE_BIC                  // "BIC"
	LAG_MODE_TSTAT                // "t-stat"
	LAG_MODE_ERROR                // "ERROR"
)

func (s LagMode) String() string {
	switch s {
	case LAG_MODE_AIC:
		return "AIC"
	case LAG_MODE_BIC:
		return "BIC"
	case LAG_MODE_TSTAT:
		return "t-stat"
	default:
		return "ERROR"
	}
}

func GetMyLagMode(s string) LagMode {
	switch s {
	case "AIC":
		return LAG_MODE_AIC
	case "BIC":
		return LAG_MODE_BIC
	case "t-stat":
		return LAG_MODE_TSTAT
	default:
		return LAG_MODE_ERROR
	}
}

// tStatCutoff t-stat 选阶时最高阶滞后差分的显著性门槛 (双尾 10%)
const tStatCutoff = 1.6449

var adfLeftTailCriticalValues = map[string]map[string]float64{
	TREND_N:  {"1%": -2.58, "5%": -1.95, "10%": -1.62},
	TREND_C:  {"1%": -3.43, "5%": -2.86, "10%": -2.57},
	TREND_CT: {"1%": -3.96, "5%": -3.41, "10%": -3.13},
}

// 右尾ADF临界值
var adfRightTailCriticalValues = map[string]map[string]float64{
	TREND_N:  {"1%": 2.58, "5%": 1.95, "10%": 1.62},
	TREND_C:  {"1%": 3.43, "5%": 2.86, "10%": 2.57},
	TREND_CT: {"1%": 3.96, "5%": 3.41, "10%": 3.13},
}
