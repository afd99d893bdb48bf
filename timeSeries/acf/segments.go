// 多段序列的合并自相关
//
//	         ∑j∑t (εt - μ)⋅(εt+τ - μ)
//	r(τ) = ——————————————————————————
//	           ∑j∑t (εt - μ)**2
//
// μ 为所有段的全局均值; 同一 lag 的乘积只在段内配对, 跨过缺失值的配对不计.
// 单段时即为通常的样本自相关 (Box-Jenkins 口径).
package acf

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"regcore/dataset"
	"regcore/infra/errorx"
	"regcore/infra/errorx/errCode"
	"regcore/ml/ols"
)

type Segments struct {
	eps    [][]float64 // 分段样本
	totalN int         // 样本长度
	mean   float64     // 全局均值
	ss     float64     // 全局离差平方和
}

func NewSegments(epsSegments [][]float64) (*Segments, error) {
	if len(epsSegments) == 0 {
		return nil, errorx.New(errCode.EMPTY_VALUE, "segments is empty")
	}

	all := make([]float64, 0, len(epsSegments[0]))
	kept := make([][]float64, 0, len(epsSegments))
	for _, seg := range epsSegments {
		for _, v := range seg {
			if dataset.IsNA(v) {
				return nil, errorx.New(errCode.MISSING_DATA, "segment contains NA, use SplitNA first")
			}
		}
		if len(seg) > 0 {
			kept = append(kept, seg)
			all = append(all, seg...)
		}
	}
	if len(all) == 0 {
		return nil, errorx.New(errCode.EMPTY_VALUE, "all segments are empty")
	}

	mean, variance := stat.PopMeanVariance(all, nil)
	if variance == 0 {
		return nil, errorx.New(errCode.INVALID_VALUE, "variance is zero")
	}
	return &Segments{eps: kept, totalN: len(all), mean: mean, ss: variance * float64(len(all))}, nil
}

// SplitNA 按缺失值切段
func SplitNA(series []float64) [][]float64 {
	var segs [][]float64
	start := -1
	for i, v := range series {
		if dataset.IsNA(v) {
			if start >= 0 {
				segs = append(segs, series[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		segs = append(segs, series[start:])
	}
	return segs
}

// FromModel 取模型估计窗口内的残差, 被剔除的观测处断开
func FromModel(mdl *ols.Model) (*Segments, error) {
	if mdl == nil || mdl.Failed() || len(mdl.Uhat) == 0 {
		return nil, errorx.New(errCode.INVALID_VALUE, "model has no residuals")
	}
	return NewSegments(SplitNA(mdl.Uhat[mdl.T1 : mdl.T2+1]))
}

func (s *Segments) Len() int { return s.totalN }

func (s *Segments) checkLag(maxLag int) error {
	if maxLag < 0 {
		return errorx.New(errCode.INVALID_VALUE, "maxLag must be >= 0")
	}
	if maxLag >= s.totalN {
		return errorx.New(errCode.DF_ERROR, "maxLag must be smaller than the sample")
	}
	return nil
}

// lagSum ∑j∑t (εt - μ)(εt+k - μ)
func (s *Segments) lagSum(k int) float64 {
	num := 0.0
	for _, seg := range s.eps {
		nk := len(seg) - k
		if nk <= 0 {
			continue
		}
		segk := seg[k:]
		seg0 := seg[:nk]
		for i := 0; i < nk; i++ {
			num += (seg0[i] - s.mean) * (segk[i] - s.mean)
		}
	}
	return num
}

// AutoCorr 直接法, 返回 lag 0..maxLag
func (s *Segments) AutoCorr(maxLag int) ([]float64, error) {
	if err := s.checkLag(maxLag); err != nil {
		return nil, err
	}
	acf := make([]float64, maxLag+1)
	for k := range acf {
		acf[k] = s.lagSum(k) / s.ss
	}
	return acf, nil
}

// AutoCorrParallel 按 lag 分发给 worker, 结果与 AutoCorr 一致
func (s *Segments) AutoCorrParallel(maxLag int) ([]float64, error) {
	if err := s.checkLag(maxLag); err != nil {
		return nil, err
	}

	results := make([]float64, maxLag+1)
	tasks := make(chan int, len(results))
	for k := range results {
		tasks <- k
	}
	close(tasks)

	numWorkers := runtime.NumCPU()
	if numWorkers > len(results) {
		numWorkers = len(results)
	}
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for k := range tasks {
				results[k] = s.lagSum(k) / s.ss
			}
		}()
	}
	wg.Wait()

	return results, nil
}

// AutoCorr 单条序列的样本自相关, NA 处断开
func AutoCorr(series []float64, maxLag int) ([]float64, error) {
	s, err := NewSegments(SplitNA(series))
	if err != nil {
		return nil, err
	}
	return s.AutoCorr(maxLag)
}
