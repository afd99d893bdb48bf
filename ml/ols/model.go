package ols

import (
	"math"

	"regcore/dataset"
	"regcore/infra/errorx/errCode"
)

// List 变量列表: 第一个为因变量, 其余为回归量; 变量 0 为常数项
type List []int

func (l List) Depvar() int { return l[0] }

func (l List) Regressors() []int { return l[1:] }

func (l List) HasConst() bool {
	for _, v := range l[1:] {
		if v == 0 {
			return true
		}
	}
	return false
}

// Model 拟合结果. Errcode 非 OK 时其余数值字段无意义.
//
// 系数、标准误与协方差均按 {常数, 回归量...} 的顺序给出;
// Yhat/Uhat 长度为数据集全长, 窗口外或被剔除的观测为 NA.
type Model struct {
	List   List
	T1, T2 int
	FullN  int
	NObs   int // 有效观测数 m
	NCoeff int // 参数个数 n
	IFC    bool
	DFN    int
	DFD    int

	Coeffs  []float64
	SE      []float64
	VCV     []float64 // 打包对称阵, 下标见 VcvIndex
	TStats  []float64
	PValues []float64

	Yhat     []float64
	Uhat     []float64
	Missmask []bool // 窗口内被剔除的观测为 true

	ESS         float64
	TSS         float64
	Sigma       float64
	RSquared    float64
	AdjRSquared float64
	FStat       float64
	FPValue     float64
	LnL         float64
	AIC         float64
	BIC         float64
	HQC         float64
	DW          float64 // Durbin-Watson
	Rho         float64 // 残差一阶自相关

	Vcv     VcvSpec
	Errcode errCode.Code
}

func newModel(ds *dataset.Dataset, list List) *Model {
	return &Model{
		List:        append(List(nil), list...),
		T1:          ds.T1,
		T2:          ds.T2,
		FullN:       ds.N,
		IFC:         list.HasConst(),
		ESS:         dataset.NA,
		TSS:         dataset.NA,
		Sigma:       dataset.NA,
		RSquared:    dataset.NA,
		AdjRSquared: dataset.NA,
		FStat:       dataset.NA,
		FPValue:     dataset.NA,
		LnL:         dataset.NA,
		AIC:         dataset.NA,
		BIC:         dataset.NA,
		HQC:         dataset.NA,
		DW:          dataset.NA,
		Rho:         dataset.NA,
	}
}

// VcvIndex 打包协方差中 (i, j) 的位置, 对称: VcvIndex(i, j) == VcvIndex(j, i).
// 存储顺序为按列的下三角 (等价于按行的上三角), 长度 n(n+1)/2.
func VcvIndex(i, j, n int) int {
	if i > j {
		i, j = j, i
	}
	return n*i + j - i*(i+1)/2
}

// VcvAt 返回协方差阵元素 (i, j), 下标为对外的系数顺序
func (m *Model) VcvAt(i, j int) float64 {
	return m.VCV[VcvIndex(i, j, m.NCoeff)]
}

func (m *Model) Failed() bool { return m.Errcode != errCode.OK }

// SingleConst 只有一个参数且为常数项, 没有斜率可检验
func (m *Model) SingleConst() bool {
	return m.NCoeff == 1 && m.IFC
}

func na(x float64) bool { return math.IsNaN(x) || math.IsInf(x, 0) }
