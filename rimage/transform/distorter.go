package transform

import "github.com/pkg/errors"

// DistortionType is the name of the lens model.
type DistortionType string

// RadialPolynomialDistortionType maps the incidence angle to an image-plane radius with a fourth
// order polynomial. It is the model used by automotive fisheye surround-view cameras.
const RadialPolynomialDistortionType = DistortionType("radial_polynomial")

// LensModel maps between the incidence angle theta of a ray (radians from the optical axis) and
// the radius rho of its image on the lens plane in pixels.
type LensModel interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	// Rho returns the image radius for an incidence angle.
	Rho(theta float64) float64
	// Theta inverts Rho. It returns NaN when no angle in [0, pi) produces rho.
	Theta(rho float64) float64
}

// InvalidDistortionError is used when the lens parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid lens parameters"), msg)
}

// NewLensModel returns a LensModel given a valid DistortionType and its parameters.
func NewLensModel(distortionType DistortionType, parameters []float64) (LensModel, error) {
	switch distortionType {
	case RadialPolynomialDistortionType:
		return NewRadialPolynomial(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q lens model", distortionType)
	}
}
