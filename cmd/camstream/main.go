package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "v0.0.0"

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to camstream config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "camstream config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"CAMSTREAM_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "camera",
		Usage:   "camera model (OV2640 or OV5642)",
		EnvVars: []string{"CAMSTREAM_CAMERA"},
	},
	&cli.StringFlag{
		Name:    "host",
		Usage:   "host of the peripheral, that receives commands",
		EnvVars: []string{"CAMSTREAM_HOST"},
	},
	&cli.StringFlag{
		Name:  "resolution",
		Usage: "resolution requested to the peripheral, see the modes command",
	},
	&cli.UintFlag{
		Name:  "packet-size",
		Usage: "size of datagrams requested to the peripheral",
	},
	&cli.BoolFlag{
		Name:  "start",
		Usage: "send the start command on launch",
	},
	&cli.StringFlag{
		Name:    "listen",
		Usage:   "UDP address on which the stream is received",
		EnvVars: []string{"CAMSTREAM_LISTEN"},
	},
	&cli.StringFlag{
		Name:  "multicast-interface",
		Usage: "interface on which the multicast group is joined",
	},
	&cli.StringFlag{
		Name:  "gap-policy",
		Usage: "behavior when a datagram is lost (discard or deliver)",
	},
	&cli.StringFlag{
		Name:  "viewer",
		Usage: "HTTP address of the viewer, empty to disable",
	},
	&cli.StringFlag{
		Name:  "metrics",
		Usage: "HTTP address of Prometheus metrics, empty to disable",
	},
	&cli.StringFlag{
		Name:  "snapshot-dir",
		Usage: "directory where captured images are saved",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (debug, info, warn, error)",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func main() {
	app := &cli.App{
		Name:        "camstream",
		Usage:       "receiver of camera image streams",
		Description: "run without subcommands to start receiving",
		Flags:       baseFlags,
		Action:      runReceiver,
		Commands: []*cli.Command{
			{
				Name:   "modes",
				Usage:  "print the resolutions of a camera model",
				Action: printModes,
			},
			{
				Name:   "command",
				Usage:  "send the start command to the peripheral and exit",
				Action: sendCommand,
			},
			{
				Name:      "send",
				Usage:     "stream image files like a peripheral does",
				ArgsUsage: "FILE...",
				Action:    sendImages,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "UDP address of the receiver",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "size of datagrams",
						Value: 1472,
					},
					&cli.UintFlag{
						Name:  "mode",
						Usage: "resolution code written in datagrams",
					},
					&cli.Float64Flag{
						Name:  "fps",
						Usage: "images per second",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "number of images to send, 0 to loop forever",
					},
					&cli.Float64Flag{
						Name:  "loss",
						Usage: "fraction of datagrams to drop, to simulate a lossy link",
					},
				},
			},
		},
		Version: version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
