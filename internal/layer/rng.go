package layer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RNG is a seeded random source used for weight initialization.
type RNG struct {
	r *rand.Rand
}

// NewRNG creates a deterministic RNG from seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(int64(seed)))}
}

// sizeSeeded returns rng, or a generator seeded from the layer shape when rng is nil.
func sizeSeeded(rng *RNG, inSize, outSize, salt int) *RNG {
	if rng != nil {
		return rng
	}
	return NewRNG(uint64(inSize*1000 + outSize*100 + salt))
}

// Uniform returns a sample from U(lo, hi).
func (g *RNG) Uniform(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

// Normal returns a standard normal sample.
func (g *RNG) Normal() float64 {
	return g.r.NormFloat64()
}

// glorotUniform fills dst with U(-limit, limit), limit = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(dst []float64, fanIn, fanOut int, rng *RNG) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range dst {
		dst[i] = rng.Uniform(-limit, limit)
	}
}

// orthogonal fills dst (rows x cols, row-major, rows >= cols) with a matrix whose
// columns are orthonormal, taken from the QR decomposition of a Gaussian matrix.
func orthogonal(dst []float64, rows, cols int, rng *RNG) {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Normal()
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(rows, cols, data))

	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	for j := 0; j < cols; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < rows; i++ {
			dst[i*cols+j] = q.At(i, j) * sign
		}
	}
}
