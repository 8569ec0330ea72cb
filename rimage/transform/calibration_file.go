package transform

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/surroundview/spatialmath"
)

// ExtrinsicParameters is the "extrinsic" object of a calibration file. The quaternion is in
// scalar-last (x, y, z, w) order and the translation is the camera centre in metres.
type ExtrinsicParameters struct {
	Quaternion  [4]float64 `json:"quaternion"`
	Translation [3]float64 `json:"translation"`
}

// CalibrationFile is the on-disk calibration of one camera.
type CalibrationFile struct {
	Extrinsic ExtrinsicParameters `json:"extrinsic"`
	Intrinsic FisheyeIntrinsics   `json:"intrinsic"`
}

// CamPose converts the extrinsic parameters. The quaternion is normalized; a zero quaternion is an error.
func (ep ExtrinsicParameters) CamPose() (CamPose, error) {
	q := spatialmath.NewQuaternionXYZW(ep.Quaternion)
	if _, err := spatialmath.NormalizeQuat(quat.Number(*q)); err != nil {
		return CamPose{}, errors.Wrap(err, "invalid extrinsic quaternion")
	}
	return CamPose{
		Rotation:    q.RotationMatrix(),
		Translation: r3.Vector{X: ep.Translation[0], Y: ep.Translation[1], Z: ep.Translation[2]},
	}, nil
}

// NewExtrinsicParameters encodes a pose with a unit quaternion whose scalar part is non-negative.
func NewExtrinsicParameters(pose CamPose) ExtrinsicParameters {
	q := spatialmath.Canonicalize(pose.Rotation.Quaternion())
	return ExtrinsicParameters{
		Quaternion:  [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real},
		Translation: [3]float64{pose.Translation.X, pose.Translation.Y, pose.Translation.Z},
	}
}

// ReadCalibration parses a calibration from a reader.
func ReadCalibration(r io.Reader) (*CalibrationFile, error) {
	calib := &CalibrationFile{}
	if err := json.NewDecoder(r).Decode(calib); err != nil {
		return nil, errors.Wrap(err, "error parsing calibration JSON")
	}
	return calib, nil
}

// NewFisheyeCameraFromJSONFile reads a calibration file and builds the camera it describes.
func NewFisheyeCameraFromJSONFile(jsonPath string) (*FisheyeCamera, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)

	calib, err := ReadCalibration(jsonFile)
	if err != nil {
		return nil, errors.Wrapf(err, "calibration %q", jsonPath)
	}
	return calib.Camera()
}

// Camera builds the camera described by the calibration.
func (cf *CalibrationFile) Camera() (*FisheyeCamera, error) {
	pose, err := cf.Extrinsic.CamPose()
	if err != nil {
		return nil, err
	}
	return NewFisheyeCamera(cf.Intrinsic, pose)
}

// NewCalibrationFile captures the current state of a camera.
func NewCalibrationFile(cam *FisheyeCamera) *CalibrationFile {
	return &CalibrationFile{
		Extrinsic: NewExtrinsicParameters(cam.Pose()),
		Intrinsic: cam.Intrinsics(),
	}
}

// WriteCalibration writes the calibration as indented JSON.
func WriteCalibration(w io.Writer, calib *CalibrationFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(calib)
}

// WriteFisheyeCameraToJSONFile saves the camera's calibration, creating parent directories as needed.
func WriteFisheyeCameraToJSONFile(cam *FisheyeCamera, jsonPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0o750); err != nil {
		return errors.Wrap(err, "error creating calibration directory")
	}
	//nolint:gosec
	f, err := os.Create(jsonPath)
	if err != nil {
		return errors.Wrap(err, "error creating calibration file")
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return WriteCalibration(f, NewCalibrationFile(cam))
}
