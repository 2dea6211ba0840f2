// cmd/flightctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/network"
)

const usage = `usage: flightctl [-server URL] <command> [args]

commands:
  state                          print the world state
  vehicles                       list vehicles
  vehicle <id>                   print one vehicle
  pilots                         list scripted pilots
  profiles                       list catalog profiles
  spawn -name N -profile P [-pilot X] [-alt M] [-heading D] [-throttle T]
  destroy <id>                   remove a vehicle
  pilot <id> <name>              hand a vehicle to a scripted pilot
  profile <id> <profile>         swap a vehicle's profile
  equip <id> <base> <json>       fly base adjusted by JSON modifiers
  control <id> [-pitch] [-yaw] [-roll] [-strafe] [-throttle] [-brake]
`

func main() {
	server := flag.String("server", "http://localhost:8080", "Control API base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flightctl: %v\n", err)
		os.Exit(1)
	}
	// command output goes to stdout; keep the client's logs off it
	logger := logging.NewLoggerWithWriter(os.Stderr, logging.LevelFromEnv())
	client := network.NewControlClient(*server, envConfig, logger)

	ctx := logging.WithCorrelationID(context.Background(), "")
	if err := run(ctx, client, os.Stdout, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flightctl: %v\n", err)
		os.Exit(1)
	}
}

// errUsage reports a malformed command line
var errUsage = errors.New("invalid arguments; run flightctl -h for usage")

func parseID(s string) (entity.ID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid vehicle id %q", s)
	}
	return entity.ID(id), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func run(ctx context.Context, client *network.ControlClient, out io.Writer, cmd string, args []string) error {
	switch cmd {
	case "state":
		state, err := client.State(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, state)
	case "vehicles":
		views, err := client.Vehicles(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, views)
	case "pilots":
		names, err := client.Pilots(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, names)
	case "profiles":
		ids, err := client.Profiles(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, ids)
	case "vehicle":
		if len(args) != 1 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		view, err := client.Vehicle(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(out, view)
	case "spawn":
		return runSpawn(ctx, client, out, args)
	case "destroy":
		if len(args) != 1 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return client.Destroy(ctx, id)
	case "pilot", "profile":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if cmd == "pilot" {
			return client.SetPilot(ctx, id, args[1])
		}
		return client.SwapProfile(ctx, id, args[1])
	case "equip":
		if len(args) != 3 {
			return errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var mods entity.Modifiers
		if err := json.Unmarshal([]byte(args[2]), &mods); err != nil {
			return fmt.Errorf("invalid modifiers: %w", err)
		}
		return client.Equip(ctx, id, args[1], mods)
	case "control":
		return runControl(ctx, client, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runSpawn(ctx context.Context, client *network.ControlClient, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("spawn", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "Vehicle name")
	profile := fs.String("profile", "trainer", "Profile ID")
	pilot := fs.String("pilot", "", "Scripted pilot")
	alt := fs.Float64("alt", 500, "Altitude in meters")
	heading := fs.Float64("heading", 0, "Heading in degrees")
	throttle := fs.Float64("throttle", 0.8, "Initial throttle")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	id, err := client.Spawn(ctx, config.VehicleConfig{
		Name:     *name,
		Profile:  *profile,
		Pilot:    *pilot,
		Position: [3]float64{0, *alt, 0},
		Heading:  *heading,
		Throttle: *throttle,
	})
	if err != nil {
		return err
	}
	return printJSON(out, network.SpawnResponse{ID: uint64(id)})
}

func runControl(ctx context.Context, client *network.ControlClient, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("control", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var sample flight.ControlSample
	fs.Float64Var(&sample.Pitch, "pitch", 0, "Pitch axis [-1, 1]")
	fs.Float64Var(&sample.Yaw, "yaw", 0, "Yaw axis [-1, 1]")
	fs.Float64Var(&sample.Roll, "roll", 0, "Roll axis [-1, 1]")
	fs.Float64Var(&sample.Strafe, "strafe", 0, "Strafe axis [-1, 1]")
	fs.Float64Var(&sample.Throttle, "throttle", 0, "Throttle [0, 1]")
	fs.BoolVar(&sample.Brake, "brake", false, "Apply the air brake")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return client.SendControl(ctx, id, sample)
}
