package ols

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"regcore/infra/observe/log/staticLog"
)

// levMax 杠杆值不小于它的观测残差恒为 0, 其权重记为 0
const levMax = 1 - 1e-10

// computeVcv 按选定的估计器计算, 结果 (分解顺序) 写入 mdl 的 VCV 与 SE (对外顺序)
func computeVcv(sel VcvSpec, d *design, f *qrFactors, u []float64, mdl *Model) {
	var V *mat.SymDense
	var se []float64

	switch sel.Kind {
	case VcvHCCME:
		V = hccmeVcv(f, u, sel.HC)
	case VcvHAC:
		V = hacVcv(d.buildX(), f, u, sel.Lag, sel.Kernel)
	default:
		V, se = classicalVcv(f, mdl.Sigma)
	}
	if se == nil {
		se = make([]float64, f.n)
		for i := range se {
			se[i] = math.Sqrt(V.At(i, i))
		}
	}

	staticLog.Log.Debugf("ols: covariance %s, m=%d n=%d", sel, f.m, f.n)

	n := f.n
	mdl.Vcv = sel
	mdl.VCV = make([]float64, n*(n+1)/2)
	packVcv(mdl.VCV, V, mdl.IFC)
	mdl.SE = make([]float64, n)
	reorderVec(mdl.SE, se, mdl.IFC)
}

// classicalVcv V = σ²(X'X)^{-1}, SE_i = σ·sqrt((X'X)^{-1}_ii)
func classicalVcv(f *qrFactors, sigma float64) (*mat.SymDense, []float64) {
	xtxi := f.xtxInverse()
	se := make([]float64, f.n)
	for i := range se {
		se[i] = sigma * math.Sqrt(xtxi.At(i, i))
	}
	var V mat.SymDense
	V.ScaleSym(sigma*sigma, xtxi)
	return &V, se
}

// hccmeVcv 夹心估计 (X'X)^{-1} X' diag(d) X (X'X)^{-1}.
// 由 X = QR 化为 R^{-1}·(Q' diag(d) Q)·R^{-T}: Q 按行乘 d 后与 Q' 相乘, 不构造对角阵.
func hccmeVcv(f *qrFactors, u []float64, hc HCVersion) *mat.SymDense {
	m, n := f.m, f.n
	d := make([]float64, m)
	for t, ut := range u {
		dt := ut * ut
		switch hc {
		case HC1:
			if m > n {
				dt *= float64(m) / float64(m-n)
			}
		case HC2, HC3:
			h := f.leverage(t)
			if h >= levMax {
				dt = 0
			} else if hc == HC2 {
				dt /= 1 - h
			} else {
				dt /= (1 - h) * (1 - h)
			}
		}
		d[t] = dt
	}

	qd := mat.DenseCopyOf(f.q)
	for t := 0; t < m; t++ {
		row := qd.RawRowView(t)
		for j := range row {
			row[j] *= d[t]
		}
	}
	var meat mat.Dense
	meat.Mul(f.q.T(), qd)

	return sandwich(f.rinv, &meat)
}

// sandwich A·B·A' 并对称化
func sandwich(a, b mat.Matrix) *mat.SymDense {
	var tmp, v mat.Dense
	tmp.Mul(a, b)
	v.Mul(&tmp, a.T())
	return symmetrize(&v)
}

func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}
