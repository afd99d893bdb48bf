package ols

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// kernelWeight 滞后 j 的核权重, 带宽 p
func kernelWeight(k Kernel, j, p int) float64 {
	a := float64(j) / float64(p+1)
	switch k {
	case KernelParzen:
		if a <= 0.5 {
			return 1 - 6*a*a + 6*a*a*a
		}
		return 2 * math.Pow(1-a, 3)
	default:
		return 1 - a
	}
}

// longRunMeat Γ̂ = Γ(0) + Σ_{j=1..p} w_j (Γ(j) + Γ(j)'), Γ(j) = Σ_t x_t x_{t-j}' u_t u_{t-j}
func longRunMeat(X *mat.Dense, u []float64, p int, k Kernel) *mat.Dense {
	m, n := X.Dims()
	ghat := mat.NewDense(n, n, nil)
	gj := mat.NewDense(n, n, nil)

	for j := 0; j <= p; j++ {
		w := 1.0
		if j > 0 {
			w = kernelWeight(k, j, p)
			if w == 0 {
				continue
			}
		}
		gj.Zero()
		for t := j; t < m; t++ {
			c := u[t] * u[t-j]
			if c == 0 {
				continue
			}
			gj.RankOne(gj, c, X.RowView(t), X.RowView(t-j))
		}
		if j == 0 {
			ghat.Add(ghat, gj)
			continue
		}
		var sym mat.Dense
		sym.Add(gj, gj.T())
		sym.Scale(w, &sym)
		ghat.Add(ghat, &sym)
	}
	return ghat
}

// hacVcv Newey-West: V = (X'X)^{-1} Γ̂ (X'X)^{-1}. X 为从数据重建的原始设计矩阵 (分解列顺序)
func hacVcv(X *mat.Dense, f *qrFactors, u []float64, p int, k Kernel) *mat.SymDense {
	ghat := longRunMeat(X, u, p, k)
	return sandwich(f.xtxInverse(), ghat)
}
