// 自相关 => 卷积
// 自相关 C(τ) = ∑(Xt)⋅(Xt+τ) 就是 x 和翻转后的 x 做卷积,
// 频域里等价于 X⋅conj(X) = |X|², 再 IFFT 回来.
// 复杂度 O(N⋅maxLag) => O(NlogN)
package acf

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// AutoCorrFFT 与 AutoCorr 同口径, 每段零填充到 2T 以上避免循环卷积回绕
func (s *Segments) AutoCorrFFT(maxLag int) ([]float64, error) {
	if err := s.checkLag(maxLag); err != nil {
		return nil, err
	}

	numerator := make([]float64, maxLag+1)
	for _, seg := range s.eps {
		T := len(seg)

		L := nextPow2(2 * T)
		seq := make([]float64, L)
		for i := 0; i < T; i++ {
			seq[i] = seg[i] - s.mean
		}

		fft := fourier.NewFFT(L)
		coeff := fft.Coefficients(nil, seq) // len = L/2 + 1
		for i, c := range coeff {
			re, im := real(c), imag(c)
			coeff[i] = complex(re*re+im*im, 0)
		}
		// Coefficients 再 Sequence 会乘以 L
		acTime := fft.Sequence(nil, coeff)
		scale := 1.0 / float64(L)

		maxK := maxLag
		if maxK > T-1 {
			maxK = T - 1
		}
		for k := 0; k <= maxK; k++ {
			numerator[k] += acTime[k] * scale
		}
	}

	acf := make([]float64, maxLag+1)
	for k := range acf {
		acf[k] = numerator[k] / s.ss
	}
	return acf, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
