package ols

import "gonum.org/v1/gonum/mat"

// 分解时常数列放在最后 (数值条件更好), 对外展示时常数排第一.
// 系数、标准误和协方差的重排都只经过 publicPos.

// publicPos 分解列 j 对应的对外下标
func publicPos(j, n int, ifc bool) int {
	if !ifc {
		return j
	}
	if j == n-1 {
		return 0
	}
	return j + 1
}

// reorderVec dst[publicPos(j)] = src[j]
func reorderVec(dst, src []float64, ifc bool) {
	n := len(src)
	for j, v := range src {
		dst[publicPos(j, n, ifc)] = v
	}
}

// packVcv 把分解顺序的对称阵写成对外顺序的打包数组
func packVcv(dst []float64, v mat.Symmetric, ifc bool) {
	n := v.SymmetricDim()
	for i := 0; i < n; i++ {
		pi := publicPos(i, n, ifc)
		for j := i; j < n; j++ {
			dst[VcvIndex(pi, publicPos(j, n, ifc), n)] = v.At(i, j)
		}
	}
}
