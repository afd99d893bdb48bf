package ols

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
)

// maxWorkCells 单个工作矩阵允许的最大元素数, 超出按分配失败处理
var maxWorkCells = 1 << 28

// design 估计样本与变换规则: 决定哪些观测参与, 以及每个观测值如何加权或准差分
type design struct {
	ds   *dataset.Dataset
	list List
	regs []int // 分解列顺序: 非常数回归量按列表顺序, 常数最后
	ifc  bool

	rho    float64
	pwe    bool
	pw1    float64 // sqrt(1-rho^2)
	wvar   int
	wdummy bool

	mask []bool // 长度 N, 窗口内被剔除的观测为 true
	obs  []int  // 有效观测的绝对下标, 升序
	m, n int
}

func newDesign(ds *dataset.Dataset, list List, opt Opt, p Params) (*design, error) {
	if ds == nil {
		return nil, errorx.New(errCode.EMPTY_VALUE, "nil dataset")
	}
	if len(list) < 2 {
		return nil, errorx.New(errCode.INVALID_VALUE, "list needs a dependent variable and at least one regressor")
	}
	if err := p.validate(opt); err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(list))
	for i, v := range list {
		if !ds.Valid(v) {
			return nil, errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("unknown variable %d in list", v))
		}
		if i > 0 && seen[v] {
			return nil, errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("variable %d appears twice among regressors", v))
		}
		if i > 0 {
			seen[v] = true
		}
	}
	if list.Depvar() == 0 {
		return nil, errorx.New(errCode.INVALID_VALUE, "dependent variable cannot be the constant")
	}

	d := &design{
		ds:   ds,
		list: list,
		ifc:  list.HasConst(),
		rho:  p.Rho,
		pwe:  opt.Has(OptPraisWinsten) && p.Rho != 0,
		wvar: p.WeightVar,
	}
	if d.pwe {
		d.pw1 = math.Sqrt(1 - d.rho*d.rho)
	}
	for _, v := range list.Regressors() {
		if v != 0 {
			d.regs = append(d.regs, v)
		}
	}
	if d.ifc {
		d.regs = append(d.regs, 0)
	}
	d.n = len(d.regs)

	if d.wvar != 0 {
		if d.wvar < 0 || !ds.Valid(d.wvar) {
			return nil, errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("unknown weight variable %d", d.wvar))
		}
		d.wdummy = ds.IsDummy(d.wvar)
	}

	if err := d.sample(); err != nil {
		return nil, err
	}
	return d, nil
}

// sample 计算剔除掩码与有效观测
func (d *design) sample() error {
	ds := d.ds
	d.mask = make([]bool, ds.N)
	d.obs = make([]int, 0, ds.SampleSize())
	qdiff := d.rho != 0

	for t := ds.T1; t <= ds.T2; t++ {
		masked := ds.Missing(d.list, t)
		if d.wvar != 0 && !masked {
			w := ds.Z[d.wvar][t]
			switch {
			case dataset.IsNA(w):
				masked = true
			case w < 0:
				return errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("negative weight at observation %d", t))
			case w == 0 && d.wdummy:
				masked = true
			}
		}
		if qdiff && masked {
			return errorx.New(errCode.MISSING_DATA,
				fmt.Sprintf("missing value at observation %d breaks quasi-differencing", t))
		}
		d.mask[t] = masked
		if !masked {
			d.obs = append(d.obs, t)
		}
	}

	// Cochrane-Orcutt 需要窗口前一期的取值
	if qdiff && !d.pwe {
		if ds.T1 == 0 || ds.Missing(d.list, ds.T1-1) {
			return errorx.New(errCode.MISSING_DATA, "no lagged observation available before the sample start")
		}
	}

	d.m = len(d.obs)
	if d.m == 0 {
		return errorx.New(errCode.EMPTY_VALUE, "no usable observations in sample")
	}
	if d.m < d.n {
		return errorx.New(errCode.DF_ERROR,
			fmt.Sprintf("%d observations for %d parameters", d.m, d.n))
	}
	if d.m > maxWorkCells/d.n {
		return errorx.New(errCode.ALLOC_FAILED,
			fmt.Sprintf("design matrix %dx%d exceeds working limit", d.m, d.n))
	}
	return nil
}

// value 变量 v 在观测 t 处变换后的取值 (加权或准差分), 残差重建也走这里
func (d *design) value(v, t int) float64 {
	x := d.ds.Z[v][t]
	switch {
	case d.wvar != 0:
		x *= math.Sqrt(d.ds.Z[d.wvar][t])
	case d.rho != 0:
		if d.pwe && t == d.ds.T1 {
			x *= d.pw1
		} else {
			x -= d.rho * d.ds.Z[v][t-1]
		}
	}
	return x
}

// buildX 按分解列顺序构造 m×n 设计矩阵
func (d *design) buildX() *mat.Dense {
	X := mat.NewDense(d.m, d.n, nil)
	for j, v := range d.regs {
		for i, t := range d.obs {
			X.Set(i, j, d.value(v, t))
		}
	}
	return X
}

func (d *design) buildY() []float64 {
	y := make([]float64, d.m)
	dep := d.list.Depvar()
	for i, t := range d.obs {
		y[i] = d.value(dep, t)
	}
	return y
}

// totalSS 有截距时以均值为中心, 否则为未中心化平方和
func totalSS(y []float64, ifc bool) float64 {
	if !ifc {
		return floats.Dot(y, y)
	}
	mean := stat.Mean(y, nil)
	tss := 0.0
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	return tss
}
