package ols

import (
	"gonum.org/v1/gonum/mat"

	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
)

// WaldTester 稳健/HAC 模型的 F 检验: 斜率系数联合为零
type WaldTester interface {
	RobustF(mdl *Model) (float64, error)
}

// SlopeWald 用模型自身的 (稳健) 协方差阵做 Wald 检验, F = b'V^{-1}b / q
type SlopeWald struct{}

func (SlopeWald) RobustF(mdl *Model) (float64, error) {
	start := 0
	if mdl.IFC {
		start = 1
	}
	q := mdl.NCoeff - start
	if q <= 0 {
		return 0, errorx.New(errCode.INVALID_VALUE, "no slope coefficients to test")
	}

	b := mat.NewVecDense(q, nil)
	V := mat.NewSymDense(q, nil)
	for i := 0; i < q; i++ {
		b.SetVec(i, mdl.Coeffs[start+i])
		for j := i; j < q; j++ {
			V.SetSym(i, j, mdl.VcvAt(start+i, start+j))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(V); !ok {
		return 0, errorx.New(errCode.SINGULAR, "robust covariance of slopes is not positive definite")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return 0, errorx.Wrap(errCode.NUMERICAL, err, "wald solve")
	}
	return mat.Dot(b, &x) / float64(q), nil
}
