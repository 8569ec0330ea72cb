package config

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/surroundview/bev"
	"go.viam.com/surroundview/logging"
)

const watchedConfig = `
calibrations:
  front: /f.json
  left: /l.json
  right: /r.json
  rear: /b.json
bev:
  mode: %s
`

func TestWatcher(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := writeConfig(t, fmt.Sprintf(watchedConfig, "average-all"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	w, err := NewWatcher(ctx, path, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	// an invalid edit is skipped
	test.That(t, os.WriteFile(path, []byte(fmt.Sprintf(watchedConfig, "sideways")), 0o600), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(fmt.Sprintf(watchedConfig, "left-right-seam")), 0o600), test.ShouldBeNil)

	for {
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for config change")
		case cfg := <-w.Config():
			test.That(t, cfg.BEV.Mode, test.ShouldNotEqual, bev.Mode("sideways"))
			if cfg.BEV.Mode == bev.LeftRightSeam {
				return
			}
		}
	}
}

func TestWatcherCloseWaitsForReload(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := writeConfig(t, fmt.Sprintf(watchedConfig, "average-all"))

	for _, settle := range []time.Duration{0, 3 * watchDebounce} {
		w, err := NewWatcher(context.Background(), path, logger)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 5; i++ {
			test.That(t, os.WriteFile(path, []byte(fmt.Sprintf(watchedConfig, "left-right-seam")), 0o600), test.ShouldBeNil)
		}
		// Nobody reads the change, so a reload that fired is parked on delivery.
		time.Sleep(settle)

		closed := make(chan error, 1)
		go func() { closed <- w.Close() }()
		select {
		case err := <-closed:
			test.That(t, err, test.ShouldBeNil)
		case <-time.After(5 * time.Second):
			t.Fatal("Close did not return")
		}

		// Nothing is delivered once Close has returned, including a burst still inside the debounce window.
		select {
		case cfg := <-w.Config():
			t.Fatalf("config delivered after Close: %v", cfg.BEV.Mode)
		case <-time.After(3 * watchDebounce):
		}
	}
}
