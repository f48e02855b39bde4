package conv

import "github.com/cwbudde/algo-vecmath"

// direct is a time-domain convolver. It stores the kernel reversed so that
// each output sample is a single dot product over the overlapping region:
//
//	out[n] = Σ_k x[n-k]·h[k] = Σ_j x[j]·r[j-n+m-1],  r[i] = h[m-1-i]
type direct struct {
	reversed []float64
}

func newDirect(kernel []float64) *direct {
	m := len(kernel)

	r := make([]float64, m)
	for i, v := range kernel {
		r[m-1-i] = v
	}

	return &direct{reversed: r}
}

func (d *direct) convolve(x []float64, outLen int) ([]float64, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]float64, outLen)
	CorrelateReversedTo(out, x, d.reversed)

	return out, nil
}

// CorrelateReversedTo fills dst with the linear convolution of x with the
// kernel whose reversed form is r. dst may be shorter than len(x)+len(r)-1,
// in which case only the leading samples are computed.
func CorrelateReversedTo(dst, x, r []float64) {
	n := len(x)
	m := len(r)

	for i := range dst {
		// Input range contributing to out[i]: j in [i-m+1, i] ∩ [0, n).
		lo := i - m + 1
		hi := i + 1

		rOff := 0
		if lo < 0 {
			rOff = -lo
			lo = 0
		}

		if hi > n {
			hi = n
		}

		if lo >= hi {
			dst[i] = 0
			continue
		}

		dst[i] = vecmath.DotProduct(x[lo:hi], r[rOff:rOff+hi-lo])
	}
}
