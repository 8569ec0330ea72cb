// Package main is the surroundview command line. It refines the extrinsic calibration of a
// four-camera fisheye rig from ground correspondences and renders bird's-eye-view composites.
package main

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/surroundview/logging"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagMethod   = "method"
	flagAnchor   = "anchor"
	flagResult   = "result"
	flagOut      = "out"
	flagAnnotate = "annotate"
	flagWatch    = "watch"
	flagExport   = "export"
	flagHist     = "histogram"
)

var logger = logging.NewLogger("surroundview")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return newApp(os.Stdout, logger).RunContext(ctx, args)
}

func newApp(out io.Writer, logger logging.Logger) *cli.App {
	return &cli.App{
		Name:   "surroundview",
		Usage:  "calibrate a fisheye surround-view rig and render bird's-eye views",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Usage:    "load configuration from `FILE`",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "optimize",
				Usage: "refine the rig extrinsics against the configured correspondences",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagMethod,
						Usage: "minimizer to use: bfgs, lbfgs or nelder-mead",
					},
					&cli.StringFlag{
						Name:  flagAnchor,
						Usage: "camera whose pose is held fixed",
					},
				},
				Action: func(c *cli.Context) error {
					return optimizeAction(c, logger)
				},
			},
			{
				Name:  "eval",
				Usage: "report the ground distance error of the configured rig",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagResult,
						Usage: "evaluate the poses of an optimization result `FILE` instead",
					},
					&cli.IntFlag{
						Name:  flagHist,
						Usage: "also print a distance histogram with `N` buckets for every pair",
					},
				},
				Action: func(c *cli.Context) error {
					return evalAction(c, logger)
				},
			},
			{
				Name:  "bev",
				Usage: "render a bird's-eye-view composite",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Usage: "write the composite to `FILE` instead of the configured output",
					},
					&cli.BoolFlag{
						Name:  flagAnnotate,
						Usage: "draw seam lines and camera positions",
					},
				},
				Action: func(c *cli.Context) error {
					return bevAction(c, logger)
				},
			},
			{
				Name:  "tune",
				Usage: "render with the configured pose overrides, optionally re-rendering on every config change",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Usage: "write the composite to `FILE` instead of the configured output",
					},
					&cli.BoolFlag{
						Name:  flagWatch,
						Usage: "keep running and re-render whenever the config file changes",
					},
					&cli.BoolFlag{
						Name:  flagExport,
						Usage: "write calibrations with the overrides applied to the output calibration_dir",
					},
				},
				Action: func(c *cli.Context) error {
					return tuneAction(c, logger)
				},
			},
		},
	}
}
