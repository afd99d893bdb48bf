// Package dataset 估计引擎读取的数据集: 按变量存储的观测序列加上样本区间.
//
// 变量 0 固定为常数项, 与变量列表中 "0 表示截距" 的约定一致.
// 缺失值用 NaN 表示 (NA). 估计过程中数据集只读.
package dataset

import (
	"fmt"
	"math"

	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
)

// NA 缺失值哨兵
var NA = math.NaN()

func IsNA(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}

type Dataset struct {
	Z      [][]float64 // Z[v][t]
	Names  []string
	N      int // 全样本长度
	T1, T2 int // 估计窗口, 闭区间
}

// New 创建长度为 n 的数据集, 自带常数项 "const"
func New(n int) *Dataset {
	ones := make([]float64, n)
	for t := range ones {
		ones[t] = 1
	}
	return &Dataset{
		Z:     [][]float64{ones},
		Names: []string{"const"},
		N:     n,
		T1:    0,
		T2:    n - 1,
	}
}

// AddSeries 追加变量, 返回其编号
func (d *Dataset) AddSeries(name string, vals []float64) (int, error) {
	if len(vals) != d.N {
		return -1, errorx.New(errCode.INVALID_VALUE,
			fmt.Sprintf("series %q has %d observations, dataset has %d", name, len(vals), d.N))
	}
	if d.VarIndex(name) >= 0 {
		return -1, errorx.New(errCode.INVALID_VALUE, fmt.Sprintf("duplicate series %q", name))
	}
	d.Z = append(d.Z, vals)
	d.Names = append(d.Names, name)
	return len(d.Z) - 1, nil
}

// MustAddSeries 用于测试和示例
func (d *Dataset) MustAddSeries(name string, vals []float64) int {
	v, err := d.AddSeries(name, vals)
	if err != nil {
		panic(err)
	}
	return v
}

func (d *Dataset) SetSample(t1, t2 int) error {
	if t1 < 0 || t2 >= d.N || t1 > t2 {
		return errorx.New(errCode.INVALID_VALUE,
			fmt.Sprintf("sample [%d, %d] outside [0, %d]", t1, t2, d.N-1))
	}
	d.T1, d.T2 = t1, t2
	return nil
}

func (d *Dataset) NumVars() int { return len(d.Z) }

func (d *Dataset) VarIndex(name string) int {
	for i, s := range d.Names {
		if s == name {
			return i
		}
	}
	return -1
}

func (d *Dataset) Valid(v int) bool {
	return v >= 0 && v < len(d.Z)
}

// InSample t 是否落在估计窗口内
func (d *Dataset) InSample(t int) bool {
	return t >= d.T1 && t <= d.T2
}

func (d *Dataset) SampleSize() int {
	return d.T2 - d.T1 + 1
}

// Missing 列表中任一变量在 t 处缺失
func (d *Dataset) Missing(vars []int, t int) bool {
	for _, v := range vars {
		if IsNA(d.Z[v][t]) {
			return true
		}
	}
	return false
}

// IsDummy 样本内非缺失值只取 0 或 1
func (d *Dataset) IsDummy(v int) bool {
	x := d.Z[v]
	for t := d.T1; t <= d.T2; t++ {
		if IsNA(x[t]) {
			continue
		}
		if x[t] != 0 && x[t] != 1 {
			return false
		}
	}
	return true
}
