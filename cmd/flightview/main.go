// cmd/flightview/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EngoEngine/engo"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/network"
	"github.com/opd-ai/go-arcadeflight/pkg/render"
	engorender "github.com/opd-ai/go-arcadeflight/pkg/render/engo"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	renderer := flag.String("renderer", "engo", "Renderer type: 'engo', 'terminal' or 'null'")
	remote := flag.String("remote", "", "Control API URL of a running flightsim (terminal and null only)")
	follow := flag.Uint64("follow", 0, "Vehicle ID to follow (0 follows the first)")
	fullscreen := flag.Bool("fullscreen", false, "Run in fullscreen mode (Engo only)")
	width := flag.Int("width", 1024, "Window width (Engo only)")
	height := flag.Int("height", 768, "Window height (Engo only)")
	cols := flag.Int("cols", 80, "Map width in cells (terminal only)")
	rows := flag.Int("rows", 24, "Map height in cells (terminal only)")
	scale := flag.Float64("scale", 50, "Meters per cell (terminal only)")
	flag.Parse()

	if *remote != "" {
		envConfig, err := config.LoadConfigFromEnv()
		if err != nil {
			logger.Error(ctx, "Failed to load environment configuration", err)
			os.Exit(1)
		}
		client := network.NewControlClient(*remote, envConfig, logger)
		runRemote(client, frameRenderer(*renderer, *cols, *rows, *scale, logger), entity.ID(*follow), logger)
		return
	}

	simConfig := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		simConfig, err = config.LoadConfig(*configPath)
		if err != nil {
			logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
			os.Exit(1)
		}
	}
	if err := config.ApplyEnvironmentOverrides(simConfig); err != nil {
		logger.Error(ctx, "Failed to apply environment configuration", err)
		os.Exit(1)
	}

	world, err := engine.NewWorld(simConfig, nil, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create world", err)
		os.Exit(1)
	}

	switch *renderer {
	case "terminal", "null":
		runLocal(world, frameRenderer(*renderer, *cols, *rows, *scale, logger), entity.ID(*follow))
	default:
		startEngoRenderer(world, entity.ID(*follow), *width, *height, *fullscreen)
	}
}

// frameRenderer builds the non-windowed renderer named by kind
func frameRenderer(kind string, cols, rows int, scale float64, logger *logging.Logger) render.Renderer {
	if kind == "null" {
		return render.NewNullRenderer(logger)
	}
	return render.NewTerminalRenderer(os.Stdout, cols, rows, scale)
}

// drawFrame centres r on the followed vehicle when it supports that, then
// draws states
func drawFrame(r render.Renderer, states []engine.VehicleState, followID entity.ID) {
	if c, ok := r.(interface{ SetCenter(mgl64.Vec3) }); ok {
		c.SetCenter(centerOn(states, followID))
	}
	render.Frame(r, states)
}

// startEngoRenderer opens a window flying world
func startEngoRenderer(world *engine.World, followID entity.ID, width, height int, fullscreen bool) {
	scene := engorender.NewFlightScene(world, followID)

	opts := engo.RunOptions{
		Title:      "Arcade Flight",
		Width:      width,
		Height:     height,
		Fullscreen: fullscreen,
		VSync:      true,
	}
	engo.Run(opts, scene)
}

// centerOn returns the position of followID, or of the first vehicle when
// followID is zero or missing
func centerOn(states []engine.VehicleState, followID entity.ID) mgl64.Vec3 {
	for _, s := range states {
		if s.ID == followID {
			return s.Position
		}
	}
	if len(states) > 0 {
		return states[0].Position
	}
	return mgl64.Vec3{}
}

// runLocal steps world at its tick rate and draws ten frames a second until
// interrupted
func runLocal(world *engine.World, r render.Renderer, followID entity.ID) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go world.Run(ctx)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drawFrame(r, world.Vehicles(), followID)
		}
	}
}

// runRemote polls a flightsim control API and draws what it returns
func runRemote(client *network.ControlClient, r render.Renderer, followID entity.ID, logger *logging.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			views, err := client.Vehicles(ctx)
			if err != nil {
				logger.Warn(ctx, "Failed to fetch vehicles", "error", err.Error())
				continue
			}
			states := make([]engine.VehicleState, 0, len(views))
			for _, v := range views {
				states = append(states, v.State())
			}
			drawFrame(r, states, followID)
		}
	}
}
