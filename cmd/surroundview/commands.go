package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/surroundview/bev"
	"go.viam.com/surroundview/calibration"
	"go.viam.com/surroundview/config"
	"go.viam.com/surroundview/logging"
	"go.viam.com/surroundview/rimage"
	"go.viam.com/surroundview/spatialmath"
)

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg, err := config.Read(c.Context, c.String(flagConfig), logger)
	if err != nil {
		return nil, err
	}
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(cfg.Level())
	}
	return cfg, nil
}

func loadCorrespondences(cfg *config.Config) (*calibration.Correspondences, error) {
	if cfg.Correspondences == "" {
		return nil, errors.New("config has no correspondences file")
	}
	return calibration.ReadCorrespondencesFromJSONFile(cfg.Correspondences)
}

func loadImages(ctx context.Context, files config.CameraFiles) ([4]*image.NRGBA, error) {
	var images [4]*image.NRGBA
	if files.IsEmpty() {
		return images, errors.New("config has no images")
	}
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files.Paths() {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := rimage.ReadImageFromFile(path)
			if err != nil {
				return errors.Wrapf(err, "%s image", calibration.CameraID(i))
			}
			images[i] = img
			return nil
		})
	}
	return images, g.Wait()
}

func writeJSONFile(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readResultFile(path string) (*calibration.Result, error) {
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res calibration.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, errors.Wrapf(err, "error parsing result %q", path)
	}
	return &res, nil
}

func bevOutputPath(c *cli.Context, cfg *config.Config) (string, error) {
	if c.IsSet(flagOut) {
		return c.String(flagOut), nil
	}
	if cfg.Output.BEVImage == "" {
		return "", errors.Errorf("no output image, set --%s or output.bev_image", flagOut)
	}
	return cfg.Output.BEVImage, nil
}

// poseTable prints each camera's pose in the form used by bev overrides.
func poseTable(rig *calibration.Rig) string {
	t := table.NewWriter()
	t.SetTitle("Camera poses")
	t.AppendHeader(table.Row{"Camera", "X", "Y", "Z", "Rot Z1", "Rot X", "Rot Z2"})
	poses := rig.Poses()
	for _, id := range calibration.CameraIDs {
		pose := poses[id]
		euler := spatialmath.NewExtrinsicZXZFromRotationMatrix(pose.Rotation)
		t.AppendRow(table.Row{
			id.String(),
			fmt.Sprintf("%.4f", pose.Translation.X),
			fmt.Sprintf("%.4f", pose.Translation.Y),
			fmt.Sprintf("%.4f", pose.Translation.Z),
			fmt.Sprintf("%.3f", euler.Z1),
			fmt.Sprintf("%.3f", euler.X),
			fmt.Sprintf("%.3f", euler.Z2),
		})
	}
	return t.Render()
}

func reportTable(title string, report *calibration.Report) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Pair", "Points", "Mean", "Median", "P90", "Max"})
	for _, pr := range report.Pairs {
		t.AppendRow(table.Row{
			pr.Pair,
			pr.Count,
			fmt.Sprintf("%.4f", pr.Mean),
			fmt.Sprintf("%.4f", pr.Median),
			fmt.Sprintf("%.4f", pr.P90),
			fmt.Sprintf("%.4f", pr.Max),
		})
	}
	t.AppendFooter(table.Row{"all", report.Count, fmt.Sprintf("%.4f", report.MeanDistanceError)})
	return t.Render()
}

func resultTable(res *calibration.Result) string {
	t := table.NewWriter()
	t.SetTitle("Optimization " + res.ID.String())
	t.AppendRows([]table.Row{
		{"Method", res.Settings.Method},
		{"Parametrization", res.Settings.Parametrization},
		{"Status", res.Status},
		{"Optimizer status", res.OptimizerStatus},
		{"Iterations", res.Iterations},
		{"Evaluations", res.Evaluations},
		{"Initial cost", fmt.Sprintf("%.6f", res.InitialCost)},
		{"Final cost", fmt.Sprintf("%.6f", res.Cost)},
		{"Runtime", res.Runtime.String()},
	})
	if res.OptimizerError != "" {
		t.AppendRow(table.Row{"Error", res.OptimizerError})
	}
	return t.Render()
}

func optimizeAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	rig, err := cfg.Rig()
	if err != nil {
		return err
	}
	corr, err := loadCorrespondences(cfg)
	if err != nil {
		return err
	}

	settings := cfg.Optimizer
	if c.IsSet(flagMethod) {
		settings.Method = calibration.Method(c.String(flagMethod))
	}
	if c.IsSet(flagAnchor) {
		settings.Anchor = c.String(flagAnchor)
	}
	opt, err := calibration.NewOptimizer(settings, logger)
	if err != nil {
		return err
	}
	res, err := opt.Optimize(c.Context, rig, corr)
	if err != nil {
		return err
	}
	refined, err := calibration.ApplyResult(rig, res)
	if err != nil {
		return err
	}
	report, err := calibration.Evaluate(c.Context, refined, corr)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, resultTable(res))
	fmt.Fprintln(c.App.Writer, poseTable(refined))
	fmt.Fprintln(c.App.Writer, reportTable("Optimized ground error", report))
	return writeOptimizeOutputs(c.Context, cfg, refined, res, logger)
}

func writeOptimizeOutputs(
	ctx context.Context,
	cfg *config.Config,
	refined *calibration.Rig,
	res *calibration.Result,
	logger logging.Logger,
) error {
	if cfg.Output.CalibrationDir != "" {
		paths, err := cfg.CalibrationOutputPaths()
		if err != nil {
			return err
		}
		if err := refined.WriteJSONFiles(paths); err != nil {
			return err
		}
		logger.Infow("wrote calibrations", "dir", cfg.Output.CalibrationDir)
	}
	if cfg.Output.Result != "" {
		if err := writeJSONFile(cfg.Output.Result, res); err != nil {
			return err
		}
		logger.Infow("wrote result", "path", cfg.Output.Result)
	}
	if cfg.Output.Plot != "" {
		if err := calibration.SaveConvergencePlot(res, cfg.Output.Plot); err != nil {
			return err
		}
		logger.Infow("wrote convergence plot", "path", cfg.Output.Plot)
	}
	if cfg.Output.BEVImage != "" && !cfg.Images.IsEmpty() {
		images, err := loadImages(ctx, cfg.Images)
		if err != nil {
			return err
		}
		renderCfg := cfg.BEV
		renderCfg.Overrides = nil
		img, err := bev.NewRenderer(logger).Render(ctx, refined, images, renderCfg)
		if err != nil {
			return err
		}
		if err := rimage.WriteImageToFile(cfg.Output.BEVImage, img); err != nil {
			return err
		}
		logger.Infow("wrote bird's-eye view", "path", cfg.Output.BEVImage)
	}
	return nil
}

func evalAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	rig, err := cfg.Rig()
	if err != nil {
		return err
	}
	corr, err := loadCorrespondences(cfg)
	if err != nil {
		return err
	}
	title := "Ground error"
	if c.IsSet(flagResult) {
		res, err := readResultFile(c.String(flagResult))
		if err != nil {
			return err
		}
		if rig, err = calibration.ApplyResult(rig, res); err != nil {
			return err
		}
		title = "Ground error of result " + res.ID.String()
	}
	report, err := calibration.Evaluate(c.Context, rig, corr)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, poseTable(rig))
	fmt.Fprintln(c.App.Writer, reportTable(title, report))
	if bins := c.Int(flagHist); bins > 0 {
		for _, pr := range report.Pairs {
			fmt.Fprintf(c.App.Writer, "\n%s distances (m)\n", pr.Pair)
			if err := pr.FprintHistogram(c.App.Writer, bins, 40); err != nil {
				return err
			}
		}
	}
	return nil
}

func bevAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	out, err := bevOutputPath(c, cfg)
	if err != nil {
		return err
	}
	rig, err := cfg.Rig()
	if err != nil {
		return err
	}
	images, err := loadImages(c.Context, cfg.Images)
	if err != nil {
		return err
	}
	renderCfg := cfg.BEV
	renderCfg.Overrides = nil
	if c.Bool(flagAnnotate) {
		renderCfg.Annotate = true
	}
	img, err := bev.NewRenderer(logger).Render(c.Context, rig, images, renderCfg)
	if err != nil {
		return err
	}
	if err := rimage.WriteImageToFile(out, img); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}

// tuner renders the configured overrides, reusing lookup tables and images between config
// versions.
type tuner struct {
	c          *cli.Context
	renderer   *bev.Renderer
	imageFiles config.CameraFiles
	images     [4]*image.NRGBA
}

func (tn *tuner) render(cfg *config.Config) error {
	out, err := bevOutputPath(tn.c, cfg)
	if err != nil {
		return err
	}
	rig, err := cfg.Rig()
	if err != nil {
		return err
	}
	overrides, err := cfg.BEV.CameraOverrides()
	if err != nil {
		return err
	}
	tuned, err := bev.ApplyOverrides(rig, overrides)
	if err != nil {
		return err
	}
	if cfg.Images != tn.imageFiles || tn.images[calibration.Front] == nil {
		images, err := loadImages(tn.c.Context, cfg.Images)
		if err != nil {
			return err
		}
		tn.images, tn.imageFiles = images, cfg.Images
	}

	renderCfg := cfg.BEV
	renderCfg.Overrides = nil
	img, err := tn.renderer.Render(tn.c.Context, tuned, tn.images, renderCfg)
	if err != nil {
		return err
	}
	if err := rimage.WriteImageToFile(out, img); err != nil {
		return err
	}
	fmt.Fprintln(tn.c.App.Writer, poseTable(tuned))
	fmt.Fprintf(tn.c.App.Writer, "wrote %s\n", out)

	if tn.c.Bool(flagExport) {
		paths, err := cfg.CalibrationOutputPaths()
		if err != nil {
			return err
		}
		if err := tuned.WriteJSONFiles(paths); err != nil {
			return err
		}
		fmt.Fprintf(tn.c.App.Writer, "exported calibrations to %s\n", cfg.Output.CalibrationDir)
	}
	return nil
}

func tuneAction(c *cli.Context, logger logging.Logger) (err error) {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	tn := &tuner{c: c, renderer: bev.NewRenderer(logger)}
	if err := tn.render(cfg); err != nil {
		return err
	}
	if !c.Bool(flagWatch) {
		return nil
	}

	watcher, err := config.NewWatcher(c.Context, c.String(flagConfig), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, watcher.Close())
	}()
	logger.Infow("watching config for changes", "path", c.String(flagConfig))
	for {
		select {
		case <-c.Context.Done():
			return nil
		case cfg := <-watcher.Config():
			if err := tn.render(cfg); err != nil {
				logger.Errorw("error rendering changed config", "error", err)
			}
		}
	}
}
