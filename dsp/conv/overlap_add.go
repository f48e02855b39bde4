package conv

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// overlapAdd implements FFT-based convolution using the overlap-add method.
//
// The algorithm:
// 1. Divide the input into non-overlapping blocks
// 2. Zero-pad each block and the kernel to FFT size
// 3. Multiply in the frequency domain
// 4. Overlap-add the block results to form the output
type overlapAdd struct {
	kernelFFT []complex128

	kernelLen int
	blockSize int
	fftSize   int

	plan *algofft.Plan[complex128]

	scratch []complex128
}

// newOverlapAdd prepares the kernel spectrum. If blockSize is 0, a size is
// chosen from the kernel length.
func newOverlapAdd(kernel []float64, blockSize int) (*overlapAdd, error) {
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	kernelLen := len(kernel)

	if blockSize <= 0 {
		// Rule of thumb: block size roughly equal to or larger than kernel
		blockSize = max(nextPowerOf2(kernelLen), 256)
	}

	fftSize := nextPowerOf2(blockSize + kernelLen - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	oa := &overlapAdd{
		kernelFFT: make([]complex128, fftSize),
		kernelLen: kernelLen,
		blockSize: blockSize,
		fftSize:   fftSize,
		plan:      plan,
		scratch:   make([]complex128, fftSize),
	}

	padded := make([]complex128, fftSize)
	for i, v := range kernel {
		padded[i] = complex(v, 0)
	}

	err = plan.Forward(oa.kernelFFT, padded)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to compute kernel FFT: %w", err)
	}

	return oa, nil
}

func (oa *overlapAdd) convolve(x []float64, outLen int) ([]float64, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]float64, outLen)

	for start := 0; start < len(x) && start < outLen; start += oa.blockSize {
		end := min(start+oa.blockSize, len(x))
		blockLen := end - start

		for i := range oa.scratch {
			oa.scratch[i] = 0
		}

		for i := range blockLen {
			oa.scratch[i] = complex(x[start+i], 0)
		}

		err := oa.plan.Forward(oa.scratch, oa.scratch)
		if err != nil {
			return nil, fmt.Errorf("conv: forward FFT failed: %w", err)
		}

		for i := range oa.scratch {
			oa.scratch[i] *= oa.kernelFFT[i]
		}

		err = oa.plan.Inverse(oa.scratch, oa.scratch)
		if err != nil {
			return nil, fmt.Errorf("conv: inverse FFT failed: %w", err)
		}

		resultLen := blockLen + oa.kernelLen - 1
		for i := 0; i < resultLen && start+i < outLen; i++ {
			out[start+i] += real(oa.scratch[i])
		}
	}

	return out, nil
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p *= 2
	}

	return p
}
