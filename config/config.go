// Package config defines the pipeline configuration file: which calibration, image and
// correspondence files to use, how to optimize and how to render the bird's-eye view.
package config

import (
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/surroundview/bev"
	"go.viam.com/surroundview/calibration"
	"go.viam.com/surroundview/logging"
	"go.viam.com/surroundview/utils"
)

// CameraFiles names one file per camera.
type CameraFiles struct {
	Front string `json:"front"`
	Left  string `json:"left"`
	Right string `json:"right"`
	Rear  string `json:"rear"`
}

// Paths returns the files in front, left, right, rear order.
func (cf CameraFiles) Paths() [4]string {
	return [4]string{cf.Front, cf.Left, cf.Right, cf.Rear}
}

// IsEmpty is true when no file is named.
func (cf CameraFiles) IsEmpty() bool {
	return cf == CameraFiles{}
}

// Validate requires every camera to be named.
func (cf CameraFiles) Validate(path string) error {
	for i, p := range cf.Paths() {
		if p == "" {
			return utils.NewConfigValidationFieldRequiredError(path, calibration.CameraID(i).String())
		}
	}
	return nil
}

func (cf CameraFiles) resolve(baseDir string) CameraFiles {
	return CameraFiles{
		Front: utils.ResolvePath(baseDir, cf.Front),
		Left:  utils.ResolvePath(baseDir, cf.Left),
		Right: utils.ResolvePath(baseDir, cf.Right),
		Rear:  utils.ResolvePath(baseDir, cf.Rear),
	}
}

// Output names the files written by the pipeline. Empty entries are skipped.
type Output struct {
	CalibrationDir string `json:"calibration_dir"`
	BEVImage       string `json:"bev_image"`
	Result         string `json:"result"`
	Plot           string `json:"plot"`
}

// Config is a whole pipeline configuration.
type Config struct {
	ConfigFilePath  string               `json:"-"`
	LogLevel        string               `json:"log_level"`
	Calibrations    CameraFiles          `json:"calibrations"`
	Images          CameraFiles          `json:"images"`
	Correspondences string               `json:"correspondences"`
	Optimizer       calibration.Settings `json:"optimizer"`
	BEV             bev.RenderConfig     `json:"bev"`
	Output          Output               `json:"output"`
}

// Validate checks the configuration. Only calibrations are required; commands check for the
// other files they need.
func (c *Config) Validate(path string) error {
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if err := c.Calibrations.Validate(path + ".calibrations"); err != nil {
		return err
	}
	if !c.Images.IsEmpty() {
		if err := c.Images.Validate(path + ".images"); err != nil {
			return err
		}
	}
	if err := c.Optimizer.Validate(path + ".optimizer"); err != nil {
		return err
	}
	return c.BEV.Validate(path + ".bev")
}

// Level returns the configured log level, INFO if unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// resolvePaths makes every file path absolute relative to the configuration file's directory.
func (c *Config) resolvePaths() {
	if c.ConfigFilePath == "" {
		return
	}
	dir := filepath.Dir(c.ConfigFilePath)
	c.Calibrations = c.Calibrations.resolve(dir)
	c.Images = c.Images.resolve(dir)
	c.Correspondences = utils.ResolvePath(dir, c.Correspondences)
	c.Output.CalibrationDir = utils.ResolvePath(dir, c.Output.CalibrationDir)
	c.Output.BEVImage = utils.ResolvePath(dir, c.Output.BEVImage)
	c.Output.Result = utils.ResolvePath(dir, c.Output.Result)
	c.Output.Plot = utils.ResolvePath(dir, c.Output.Plot)
}

// Rig loads the configured calibrations.
func (c *Config) Rig() (*calibration.Rig, error) {
	return calibration.NewRigFromJSONFiles(c.Calibrations.Paths())
}

// CalibrationOutputPaths returns where each camera's refined calibration is written: the input
// file names inside Output.CalibrationDir.
func (c *Config) CalibrationOutputPaths() ([4]string, error) {
	var out [4]string
	if c.Output.CalibrationDir == "" {
		return out, errors.New("no output calibration_dir configured")
	}
	for i, p := range c.Calibrations.Paths() {
		joined, err := utils.SafeJoinDir(c.Output.CalibrationDir, filepath.Base(p))
		if err != nil {
			return out, err
		}
		out[i] = joined
	}
	return out, nil
}
