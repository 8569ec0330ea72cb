package bev

import (
	"context"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"golang.org/x/sync/errgroup"

	"go.viam.com/surroundview/calibration"
	"go.viam.com/surroundview/logging"
	"go.viam.com/surroundview/rimage"
	"go.viam.com/surroundview/utils"
)

// Default canvas parameters.
const (
	DefaultRange = 25.0
	DefaultSize  = 960
)

// RenderConfig describes one composite.
type RenderConfig struct {
	Range         float64              `json:"range"`
	Size          int                  `json:"size"`
	Mode          Mode                 `json:"mode"`
	Interpolation rimage.Interpolation `json:"interpolation"`
	Overrides     map[string]Override  `json:"overrides,omitempty"`
	Annotate      bool                 `json:"annotate,omitempty"`
}

// Validate checks the configuration, reporting errors against path.
func (rc *RenderConfig) Validate(path string) error {
	if err := validateCanvas(rc.Range, rc.Size); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := ParseMode(string(rc.Mode)); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := rimage.ParseInterpolation(string(rc.Interpolation)); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	for name, o := range rc.Overrides {
		if _, err := calibration.CameraIDFromString(name); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
		if err := o.Validate(fmt.Sprintf("%s.overrides.%s", path, name)); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaults fills unset fields with the default canvas, averaging and cubic sampling.
func (rc RenderConfig) WithDefaults() RenderConfig {
	if rc.Range == 0 {
		rc.Range = DefaultRange
	}
	if rc.Size == 0 {
		rc.Size = DefaultSize
	}
	if rc.Mode == "" {
		rc.Mode = AverageAll
	}
	if rc.Interpolation == "" {
		rc.Interpolation = rimage.Cubic
	}
	return rc
}

// CameraOverrides converts the named overrides for ApplyOverrides.
func (rc *RenderConfig) CameraOverrides() (map[calibration.CameraID]Override, error) {
	out := make(map[calibration.CameraID]Override, len(rc.Overrides))
	for name, o := range rc.Overrides {
		id, err := calibration.CameraIDFromString(name)
		if err != nil {
			return nil, err
		}
		out[id] = o
	}
	return out, nil
}

// Renderer builds composites, reusing lookup tables across calls while poses are unchanged.
type Renderer struct {
	logger logging.Logger
	cache  *MapCache
}

// NewRenderer returns a renderer with an empty map cache.
func NewRenderer(logger logging.Logger) *Renderer {
	return &Renderer{logger: logger, cache: NewMapCache()}
}

// Render applies the configured overrides to rig, remaps every camera image onto the canvas and
// composites them. images are indexed by camera. The rig is not modified.
func (r *Renderer) Render(
	ctx context.Context,
	rig *calibration.Rig,
	images [4]*image.NRGBA,
	cfg RenderConfig,
) (*image.NRGBA, error) {
	ctx, span := trace.StartSpan(ctx, "bev::Render")
	defer span.End()

	cfg = cfg.WithDefaults()
	if err := cfg.Validate("bev"); err != nil {
		return nil, err
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	interp, err := rimage.ParseInterpolation(string(cfg.Interpolation))
	if err != nil {
		return nil, err
	}
	overrides, err := cfg.CameraOverrides()
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if rig, err = ApplyOverrides(rig, overrides); err != nil {
			return nil, err
		}
	}

	for _, id := range calibration.CameraIDs {
		if images[id] == nil {
			return nil, errors.Errorf("missing %s image", id)
		}
	}

	var remapped [4]*image.NRGBA
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range calibration.CameraIDs {
		id := id
		g.Go(func() error {
			m, err := r.cache.Get(gctx, int(id), rig.Camera(id), cfg.Range, cfg.Size)
			if err != nil {
				return errors.Wrapf(err, "%s camera", id)
			}
			remapped[id], err = rimage.Remap(gctx, images[id], m.U, m.V, m.Size, m.Size, interp)
			return errors.Wrapf(err, "%s camera", id)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seams := NewSeamLines(rig, cfg.Range, cfg.Size)
	out, err := Composite(ctx, remapped, mode, seams)
	if err != nil {
		return nil, err
	}
	r.logger.Debugw("rendered bev", "mode", mode, "size", cfg.Size, "range", cfg.Range, "cache_hits", r.cache.Hits())
	if cfg.Annotate {
		out = annotate(out, rig, cfg, mode, seams)
	}
	return out, nil
}

// Render is a one-shot Renderer.Render without map reuse.
func Render(ctx context.Context, rig *calibration.Rig, images [4]*image.NRGBA, cfg RenderConfig) (*image.NRGBA, error) {
	return NewRenderer(logging.NewBlankLogger("bev")).Render(ctx, rig, images, cfg)
}

// annotate marks every camera's ground position and, in seam modes, the seam lines.
func annotate(img *image.NRGBA, rig *calibration.Rig, cfg RenderConfig, mode Mode, seams SeamLines) *image.NRGBA {
	return rimage.Annotate(img, func(dc *gg.Context) {
		size := float64(cfg.Size)
		if mode != AverageAll {
			b := img.Bounds()
			rimage.DrawLine(dc, image.Pt(b.Min.X, seams.FrontRow), image.Pt(b.Max.X, seams.FrontRow), rimage.Yellow, 1)
			rimage.DrawLine(dc, image.Pt(b.Min.X, seams.RearRow), image.Pt(b.Max.X, seams.RearRow), rimage.Yellow, 1)
			rimage.DrawLine(dc, image.Pt(seams.LeftCol, b.Min.Y), image.Pt(seams.LeftCol, b.Max.Y), rimage.Yellow, 1)
			rimage.DrawLine(dc, image.Pt(seams.RightCol, b.Min.Y), image.Pt(seams.RightCol, b.Max.Y), rimage.Yellow, 1)
		}
		for _, id := range calibration.CameraIDs {
			t := rig.Camera(id).Pose().Translation
			row, col := CanvasPosition(cfg.Range, cfg.Size, t.X, t.Y)
			rimage.DrawMarker(dc, image.Pt(int(col), int(row)), size/240+2, id.String(), cameraColor(id))
		}
	})
}

// cameraColor spreads the cameras evenly around the hue circle.
func cameraColor(id calibration.CameraID) colorful.Color {
	return colorful.Hsv(float64(id)*90, 0.85, 1)
}
