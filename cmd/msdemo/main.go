// Command msdemo drives a multiplexer on the noop HAL backend: it registers
// a row of clock and color surfaces, ticks the clocks for a number of frames
// and optionally saves the final atlas as a PNG.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/multisurface"
	"github.com/gogpu/multisurface/compositor"
	"github.com/gogpu/multisurface/surface"
)

var palette = []gg.RGBA{gg.Red, gg.Green, gg.Blue, gg.Yellow, gg.Cyan, gg.Magenta}

func main() {
	var (
		surfaces = flag.Int("surfaces", 6, "number of surfaces")
		frames   = flag.Int("frames", 30, "number of clock ticks")
		interval = flag.Duration("interval", 16*time.Millisecond, "time between ticks")
		atlasW   = flag.Int("atlas-width", compositor.DefaultAtlasWidth, "atlas width")
		atlasH   = flag.Int("atlas-height", compositor.DefaultAtlasHeight, "atlas height")
		output   = flag.String("output", "", "save the atlas to this PNG file")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *surfaces, *frames, *interval, *atlasW, *atlasH, *output); err != nil {
		logger.Error("msdemo failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, n, frames int, interval time.Duration, atlasW, atlasH int, output string) error {
	raster := compositor.NewRasterRenderer(scene.WithWorkers(0))
	m, err := multisurface.New(&noop.Device{}, &noop.Queue{},
		multisurface.WithLogger(logger),
		multisurface.WithAtlasSize(atlasW, atlasH),
		multisurface.WithSceneRenderer(&snapshot{RasterRenderer: raster, path: output}),
	)
	if err != nil {
		return err
	}

	ids := make([]surface.ID, 0, n)
	for i := range n {
		id := surface.ID(i + 1)
		if err := m.RegisterSurface(id, &noop.Surface{}, 160+40*(i%4), 60+20*(i%3)); err != nil {
			return err
		}
		var d surface.Descriptor = surface.Solid{Color: palette[i%len(palette)]}
		if i%2 == 0 {
			d = surface.Parametrized{Text: "00:00", Size: 32, Weight: float32(300 + 100*(i%6))}
		}
		if err := m.UpdateContent(id, d); err != nil {
			return err
		}
		ids = append(ids, id)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for frame := range frames {
		for i, id := range ids {
			if i%2 == 0 {
				if err := m.UpdateText(id, fmt.Sprintf("%02d:%02d", frame/60, frame%60)); err != nil {
					return err
				}
			}
		}
		m.RequestRender(ids...)
		<-ticker.C
	}

	m.Shutdown()
	if err := m.Wait(); err != nil {
		return err
	}
	st := m.Stats()
	logger.Info("msdemo done",
		"requests", frames,
		"frames", st.Frames,
		"presented", st.Presented,
		"skipped", st.Skipped,
		"abandoned", st.Abandoned)
	return nil
}

// snapshot saves the atlas after every frame.
type snapshot struct {
	*compositor.RasterRenderer
	path string
}

func (s *snapshot) RenderScene(t compositor.AtlasTarget, sc *scene.Scene, width, height int) error {
	if err := s.RasterRenderer.RenderScene(t, sc, width, height); err != nil {
		return err
	}
	if s.path == "" {
		return nil
	}
	return s.Pixmap().SavePNG(s.path)
}
