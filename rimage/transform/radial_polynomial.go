package transform

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RadialPolynomial is the fisheye lens model rho = k1*theta + k2*theta^2 + k3*theta^3 + k4*theta^4.
type RadialPolynomial struct {
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
	K4 float64 `json:"k4"`
}

// NewRadialPolynomial takes in up to four coefficients, k1 first. Missing values are zero.
func NewRadialPolynomial(inp []float64) (*RadialPolynomial, error) {
	if len(inp) > 4 {
		return nil, errors.Errorf("list of parameters too long, expected max 4, got %d", len(inp))
	}
	var k [4]float64
	copy(k[:], inp)
	rp := &RadialPolynomial{k[0], k[1], k[2], k[3]}
	return rp, rp.CheckValid()
}

// CheckValid checks that the polynomial is not identically zero.
func (rp *RadialPolynomial) CheckValid() error {
	if rp == nil {
		return InvalidDistortionError("RadialPolynomial shaped lens parameters not provided")
	}
	if rp.K1 == 0 && rp.K2 == 0 && rp.K3 == 0 && rp.K4 == 0 {
		return InvalidDistortionError("all radial polynomial coefficients are zero")
	}
	for _, k := range rp.Parameters() {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return InvalidDistortionError("radial polynomial coefficients must be finite")
		}
	}
	return nil
}

// ModelType returns the type of lens model.
func (rp *RadialPolynomial) ModelType() DistortionType {
	return RadialPolynomialDistortionType
}

// Parameters returns k1 through k4.
func (rp *RadialPolynomial) Parameters() []float64 {
	return []float64{rp.K1, rp.K2, rp.K3, rp.K4}
}

// Rho evaluates the polynomial.
func (rp *RadialPolynomial) Rho(theta float64) float64 {
	return theta * (rp.K1 + theta*(rp.K2+theta*(rp.K3+theta*rp.K4)))
}

func (rp *RadialPolynomial) dRho(theta float64) float64 {
	return rp.K1 + theta*(2*rp.K2+theta*(3*rp.K3+theta*4*rp.K4))
}

// Theta returns the smallest root of Rho(theta) = rho in [0, pi), or NaN when there is none.
// The roots are the eigenvalues of the polynomial's companion matrix, polished by one Newton step.
func (rp *RadialPolynomial) Theta(rho float64) float64 {
	if rho == 0 {
		return 0
	}
	if math.IsNaN(rho) || math.IsInf(rho, 0) {
		return math.NaN()
	}
	// coeffs[i] multiplies theta^i.
	coeffs := []float64{-rho, rp.K1, rp.K2, rp.K3, rp.K4}
	degree := 4
	for degree > 0 && coeffs[degree] == 0 {
		degree--
	}
	if degree == 0 {
		return math.NaN()
	}

	var roots []complex128
	if degree == 1 {
		roots = []complex128{complex(rho/rp.K1, 0)}
	} else {
		companion := mat.NewDense(degree, degree, nil)
		for j := 0; j < degree; j++ {
			companion.Set(0, j, -coeffs[degree-1-j]/coeffs[degree])
		}
		for i := 1; i < degree; i++ {
			companion.Set(i, i-1, 1)
		}
		var eig mat.Eigen
		if ok := eig.Factorize(companion, mat.EigenNone); !ok {
			return math.NaN()
		}
		roots = eig.Values(nil)
	}

	const imagTolerance = 1e-9
	const negativeTolerance = 1e-12
	best := math.NaN()
	for _, root := range roots {
		re := real(root)
		if math.Abs(imag(root)) > imagTolerance*math.Max(1, cmplx.Abs(root)) {
			continue
		}
		if re < -negativeTolerance || re >= math.Pi {
			continue
		}
		if math.IsNaN(best) || re < best {
			best = math.Max(re, 0)
		}
	}
	if math.IsNaN(best) {
		return best
	}
	if d := rp.dRho(best); d != 0 {
		if polished := best - (rp.Rho(best)-rho)/d; polished >= 0 && polished < math.Pi {
			best = polished
		}
	}
	return best
}
