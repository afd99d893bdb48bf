package ols

import (
	"fmt"
	"math"

	"regcore/config"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
)

// Opt 调用方传入的估计选项位掩码
type Opt uint32

const (
	OptRobust       Opt = 1 << iota // 稳健协方差 (HCCME, 或配合 OptHAC 用 Newey-West)
	OptHAC                          // 仅在 OptRobust 下生效
	OptNoDFCorr                     // sigma 用 ESS/m 而非 ESS/(m-n)
	OptPraisWinsten                 // 准差分时首个观测乘 sqrt(1-rho^2)
)

func (o Opt) Has(f Opt) bool { return o&f != 0 }

// VcvKind 协方差估计器类别, 在估计开始时由 Opt 一次性确定
type VcvKind int

const (
	VcvClassical VcvKind = iota
	VcvHCCME
	VcvHAC
)

func (k VcvKind) String() string {
	switch k {
	case VcvClassical:
		return "classical"
	case VcvHCCME:
		return "HCCME"
	case VcvHAC:
		return "HAC"
	default:
		return "unknown"
	}
}

type HCVersion int

const (
	HC0 HCVersion = iota
	HC1
	HC2
	HC3
)

func (v HCVersion) String() string { return fmt.Sprintf("HC%d", int(v)) }

type Kernel int

const (
	KernelBartlett Kernel = iota
	KernelParzen
)

func (k Kernel) String() string {
	if k == KernelParzen {
		return "Parzen"
	}
	return "Bartlett"
}

// VcvSpec 封闭的协方差估计器选择: {Classical, HCCME(HC), HAC(Lag, Kernel)}
type VcvSpec struct {
	Kind   VcvKind
	HC     HCVersion
	Lag    int
	Kernel Kernel
}

func (s VcvSpec) Robust() bool { return s.Kind != VcvClassical }

func (s VcvSpec) String() string {
	switch s.Kind {
	case VcvHCCME:
		return s.HC.String()
	case VcvHAC:
		return fmt.Sprintf("HAC(%s, lag %d)", s.Kernel, s.Lag)
	default:
		return s.Kind.String()
	}
}

// Params 位掩码之外的估计参数
type Params struct {
	Rho       float64         // 准差分系数, 0 表示不做
	WeightVar int             // 权重变量编号, 0 表示不加权
	HC        HCVersion       // OptRobust 且非 HAC 时使用
	HACLag    func(T int) int // nil 时取 config.Current() 的带宽规则
	Kernel    Kernel
	Wald      WaldTester // 稳健 F 检验, nil 时用 SlopeWald
}

// ParamsFromConfig 按配置文件填充 HC 版本、HAC 核函数与带宽规则
func ParamsFromConfig(c *config.Config) Params {
	p := Params{HC: HCVersion(c.HCCME.Version)}
	if c.HAC.Kernel == config.KernelParzen {
		p.Kernel = KernelParzen
	}
	hac := c.HAC
	p.HACLag = hac.LagFor
	return p
}

func (p Params) validate(opt Opt) error {
	if p.HC < HC0 || p.HC > HC3 {
		return errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("unknown HCCME variant %d", int(p.HC)))
	}
	if p.Kernel != KernelBartlett && p.Kernel != KernelParzen {
		return errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("unknown HAC kernel %d", int(p.Kernel)))
	}
	if math.IsNaN(p.Rho) || math.IsInf(p.Rho, 0) {
		return errorx.New(errCode.INVALID_VALUE, "rho is not finite")
	}
	if p.Rho != 0 && p.WeightVar != 0 {
		return errorx.New(errCode.INVALID_VALUE, "weighting and quasi-differencing cannot be combined")
	}
	if p.Rho != 0 && opt.Has(OptPraisWinsten) && math.Abs(p.Rho) >= 1 {
		return errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("Prais-Winsten needs |rho| < 1, got %g", p.Rho))
	}
	return nil
}

// resolveVcv 有效样本量 T 确定后调用一次, 之后不再检查位掩码
func resolveVcv(opt Opt, p Params, T int) VcvSpec {
	if !opt.Has(OptRobust) {
		return VcvSpec{Kind: VcvClassical}
	}
	if !opt.Has(OptHAC) {
		return VcvSpec{Kind: VcvHCCME, HC: p.HC}
	}
	lagFn := p.HACLag
	if lagFn == nil {
		lagFn = config.Current().HAC.LagFor
	}
	lag := lagFn(T)
	if lag > T-1 {
		lag = T - 1
	}
	if lag < 0 {
		lag = 0
	}
	return VcvSpec{Kind: VcvHAC, Lag: lag, Kernel: p.Kernel}
}
