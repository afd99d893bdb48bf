package ols

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
	"regcore/infra/observe/log/staticLog"
)

// RcondMin R 的 1-范数倒数条件数下限, 低于它视为奇异
const RcondMin = 1e-15

// qrFactors X = Q·R 的结果, 只保留后续步骤需要的部分
type qrFactors struct {
	m, n  int
	q     *mat.Dense    // m×n, 列正交
	r     *mat.TriDense // n×n 上三角
	rinv  *mat.TriDense // R^{-1}
	rcond float64
}

// lapackCall gonum 的 lapack 在参数异常时 panic, 这里转成 NUMERICAL 错误并记录例程名
func lapackCall(routine string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			staticLog.Log.WithFields(logrus.Fields{
				"routine": routine,
				"status":  r,
			}).Error("lapack routine failed")
			err = errorx.New(errCode.NUMERICAL, routine+" failed", fmt.Sprint(r))
		}
	}()
	fn()
	return nil
}

// factorize Householder QR: 工作区查询 -> 分解 -> 条件数检查 -> 求 R^{-1} -> 重建 Q.
// X 不被修改.
func factorize(X *mat.Dense) (*qrFactors, error) {
	m, n := X.Dims()
	if m < n {
		return nil, errorx.New(errCode.DF_ERROR, fmt.Sprintf("QR needs m >= n, got %dx%d", m, n))
	}

	a := mat.DenseCopyOf(X)
	raw := a.RawMatrix()
	tau := make([]float64, n)

	// 工作区大小查询
	work := make([]float64, 1)
	if err := lapackCall("dgeqrf", func() { lapack64.Geqrf(raw, tau, work, -1) }); err != nil {
		return nil, err
	}
	lwork := workSize(work[0], n)
	work = make([]float64, lwork)
	if err := lapackCall("dgeqrf", func() { lapack64.Geqrf(raw, tau, work, lwork) }); err != nil {
		return nil, err
	}

	// R 取自上三角, 下三角是 Householder 向量, 留给 dorgqr
	r := mat.NewTriDense(n, mat.Upper, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r.SetTri(i, j, a.At(i, j))
		}
	}

	f := &qrFactors{m: m, n: n, r: r}
	if err := f.checkCondition(); err != nil {
		return nil, err
	}

	rinv := mat.NewTriDense(n, mat.Upper, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rinv.SetTri(i, j, r.At(i, j))
		}
	}
	var ok bool
	if err := lapackCall("dtrtri", func() { ok = lapack64.Trtri(rinv.RawTriangular()) }); err != nil {
		return nil, err
	}
	if !ok {
		staticLog.Log.WithField("routine", "dtrtri").Error("zero diagonal in R after condition check")
		return nil, errorx.New(errCode.NUMERICAL, "dtrtri failed", "exactly zero diagonal element")
	}
	f.rinv = rinv

	// 重建 Q, HCCME 的杠杆值要用
	work = work[:1]
	if err := lapackCall("dorgqr", func() { lapack64.Orgqr(raw, tau, work, -1) }); err != nil {
		return nil, err
	}
	lwork = workSize(work[0], n)
	work = make([]float64, lwork)
	if err := lapackCall("dorgqr", func() { lapack64.Orgqr(raw, tau, work, lwork) }); err != nil {
		return nil, err
	}
	f.q = a
	return f, nil
}

// checkCondition 1-范数倒数条件数, 低于 RcondMin 返回 SINGULAR
func (f *qrFactors) checkCondition() error {
	n := f.n
	work := make([]float64, 3*n)
	iwork := make([]int, n)
	var rcond float64
	rt := f.r.RawTriangular()
	tri := blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: n, Stride: rt.Stride, Data: rt.Data}
	if err := lapackCall("dtrcon", func() { rcond = lapack64.Trcon(lapack.MaxColumnSum, tri, work, iwork) }); err != nil {
		return err
	}
	f.rcond = rcond
	if rcond < RcondMin {
		staticLog.Log.WithField("rcond", rcond).Warn("design matrix is near singular")
		return errorx.New(errCode.SINGULAR, fmt.Sprintf("rcond = %g < %g", rcond, RcondMin))
	}
	return nil
}

// xtxInverse (X'X)^{-1} = R^{-1}·R^{-T}
func (f *qrFactors) xtxInverse() *mat.SymDense {
	var s mat.SymDense
	s.SymOuterK(1, f.rinv)
	return &s
}

// leverage 帽子矩阵对角元, 即 Q 第 t 行的平方和
func (f *qrFactors) leverage(t int) float64 {
	row := f.q.RawRowView(t)
	h := 0.0
	for _, v := range row {
		h += v * v
	}
	return h
}

func workSize(opt float64, n int) int {
	lwork := int(opt)
	if lwork < n {
		lwork = n
	}
	if lwork < 1 {
		lwork = 1
	}
	return lwork
}
