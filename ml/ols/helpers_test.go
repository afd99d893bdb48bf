package ols

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"regcore/dataset"
)

// newDS 构造数据集, 依次加入 series, 返回各自编号
func newDS(t *testing.T, n int, series ...[]float64) (*dataset.Dataset, []int) {
	t.Helper()
	ds := dataset.New(n)
	ids := make([]int, len(series))
	for i, s := range series {
		v, err := ds.AddSeries(string(rune('a'+i)), s)
		require.NoError(t, err)
		ids[i] = v
	}
	return ds, ids
}

// linearData y = 1 + 0.5 x1 - 2 x2 + noise(scale)
func linearData(seed int64, n int, scale float64) (y, x1, x2 []float64) {
	r := rand.New(rand.NewSource(seed))
	y = make([]float64, n)
	x1 = make([]float64, n)
	x2 = make([]float64, n)
	for t := 0; t < n; t++ {
		x1[t] = r.NormFloat64()
		x2[t] = 3 + r.Float64()*2
		y[t] = 1 + 0.5*x1[t] - 2*x2[t] + scale*r.NormFloat64()
	}
	return y, x1, x2
}

// publicX 按对外系数顺序 (常数在前) 构造窗口内有效观测的设计矩阵
func publicX(ds *dataset.Dataset, list List, mdl *Model) (*mat.Dense, []float64, []float64) {
	var rows [][]float64
	var y, u []float64
	for t := ds.T1; t <= ds.T2; t++ {
		if dataset.IsNA(mdl.Uhat[t]) {
			continue
		}
		var row []float64
		if list.HasConst() {
			row = append(row, 1)
		}
		for _, v := range list.Regressors() {
			if v != 0 {
				row = append(row, ds.Z[v][t])
			}
		}
		rows = append(rows, row)
		y = append(y, ds.Z[list.Depvar()][t])
		u = append(u, mdl.Uhat[t])
	}
	X := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		X.SetRow(i, row)
	}
	return X, y, u
}

// normalEquations β = (X'X)^{-1} X'y, 作为 QR 结果的对照
func normalEquations(t *testing.T, X *mat.Dense, y []float64) ([]float64, *mat.Dense) {
	t.Helper()
	var XTX mat.Dense
	XTX.Mul(X.T(), X)
	var invXTX mat.Dense
	require.NoError(t, invXTX.Inverse(&XTX))

	var XTY mat.VecDense
	XTY.MulVec(X.T(), mat.NewVecDense(len(y), y))
	var beta mat.VecDense
	beta.MulVec(&invXTX, &XTY)
	return beta.RawVector().Data, &invXTX
}

// sandwichRef A X' diag(d) X A, 直接按定义计算
func sandwichRef(X *mat.Dense, A *mat.Dense, d []float64) *mat.Dense {
	m, k := X.Dims()
	meat := mat.NewDense(k, k, nil)
	for t := 0; t < m; t++ {
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				meat.Set(a, b, meat.At(a, b)+d[t]*X.At(t, a)*X.At(t, b))
			}
		}
	}
	var tmp, v mat.Dense
	tmp.Mul(A, meat)
	v.Mul(&tmp, A)
	return &v
}

// hatValues 帽子矩阵对角元 x_t' A x_t
func hatValues(X, A *mat.Dense) []float64 {
	m, _ := X.Dims()
	h := make([]float64, m)
	for t := 0; t < m; t++ {
		x := X.RowView(t)
		h[t] = mat.Inner(x, A, x)
	}
	return h
}

func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(math.Abs(b), 1e-300)
}
