package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream/pkg/camera"
	"github.com/bluenviron/gocamstream/pkg/command"
	"github.com/bluenviron/gocamstream/pkg/imagestream"
)

func printModes(c *cli.Context) error {
	models := camera.Models()

	if c.IsSet("camera") {
		m, err := camera.ParseModel(c.String("camera"))
		if err != nil {
			return err
		}
		models = []camera.Model{m}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Camera", "Code", "Resolution"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})

	for _, m := range models {
		for code, label := range m.Resolutions() {
			table.Append([]string{
				m.String(),
				fmt.Sprintf("%d", code),
				label,
			})
		}
	}

	table.Render()
	return nil
}

func sendCommand(c *cli.Context) error {
	cnf, l, err := getConfig(c)
	if err != nil {
		return err
	}
	defer l.Sync() //nolint:errcheck

	if cnf.Host == "" {
		return errors.New("host of the peripheral is not configured")
	}

	s := &command.Sender{
		Address: cnf.CommandAddress(),
	}
	err = s.Initialize()
	if err != nil {
		return err
	}

	cmd := cnf.Command()

	err = s.Send(c.Context, cmd)
	if err != nil {
		return errors.Wrap(err, "send start command")
	}

	l.Info("start command sent",
		zap.String("address", s.Address),
		zap.String("resolution", cnf.Resolution),
		zap.Uint8("mode", cmd.Mode),
		zap.Uint32("packetSize", cmd.PacketSize))

	return nil
}

func sendImages(c *cli.Context) error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer l.Sync() //nolint:errcheck

	if c.NArg() == 0 {
		return errors.New("no image files provided")
	}

	fps := c.Float64("fps")
	if fps <= 0 {
		return errors.Errorf("invalid frame rate: %v", fps)
	}

	loss := c.Float64("loss")
	if loss < 0 || loss >= 1 {
		return errors.Errorf("invalid loss: %v", loss)
	}

	images := make([][]byte, c.NArg())
	for i, fpath := range c.Args().Slice() {
		images[i], err = os.ReadFile(fpath)
		if err != nil {
			return errors.Wrapf(err, "read %s", fpath)
		}
	}

	e := &imagestream.Encoder{
		PacketSize: c.Int("size"),
		Mode:       uint8(c.Uint("mode")),
	}
	err = e.Initialize()
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", c.String("to"))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, ctxCancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer ctxCancel()

	return sendLoop(ctx, conn, e, images, fps, loss, c.Int("count"), l)
}

func sendLoop(
	ctx context.Context,
	conn net.Conn,
	e *imagestream.Encoder,
	images [][]byte,
	fps float64,
	loss float64,
	count int,
	l *zap.Logger,
) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	var sentBytes uint64

	for i := 0; count == 0 || i < count; i++ {
		image := images[i%len(images)]

		dgrams, err := e.Encode(image)
		if err != nil {
			return err
		}

		dropped := 0

		for _, dgram := range dgrams {
			if loss != 0 && rand.Float64() < loss {
				dropped++
				continue
			}

			_, err = conn.Write(dgram)
			if err != nil {
				return err
			}
			sentBytes += uint64(len(dgram))
		}

		l.Debug("image sent",
			zap.Int("index", i),
			zap.String("size", humanize.Bytes(uint64(len(image)))),
			zap.Int("datagrams", len(dgrams)),
			zap.Int("dropped", dropped))

		select {
		case <-ticker.C:
		case <-ctx.Done():
			l.Info("interrupted", zap.String("sent", humanize.Bytes(sentBytes)))
			return nil
		}
	}

	l.Info("done", zap.String("sent", humanize.Bytes(sentBytes)))
	return nil
}
