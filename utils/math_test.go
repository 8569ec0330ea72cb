package utils

import (
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestAngleConversion(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90.)
	test.That(t, RadToDeg(DegToRad(-37.5)), test.ShouldAlmostEqual, -37.5)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(1, 2, 3), test.ShouldBeTrue)
	test.That(t, IsFinite(), test.ShouldBeTrue)
	test.That(t, IsFinite(1, math.NaN()), test.ShouldBeFalse)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
	test.That(t, Clamp(5, 0, 1), test.ShouldEqual, 1.)
	test.That(t, Clamp(-5, 0, 1), test.ShouldEqual, 0.)
}

func TestResolvePath(t *testing.T) {
	test.That(t, ResolvePath("/etc/rig", "front.json"), test.ShouldEqual, filepath.Join("/etc/rig", "front.json"))
	test.That(t, ResolvePath("/etc/rig", "/abs/front.json"), test.ShouldEqual, "/abs/front.json")
	test.That(t, ResolvePath("/etc/rig", ""), test.ShouldEqual, "")

	_, err := SafeJoinDir("/out", "../escape")
	test.That(t, err, test.ShouldNotBeNil)
	joined, err := SafeJoinDir("/out", "front.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joined, test.ShouldEqual, "/out/front.json")
}
