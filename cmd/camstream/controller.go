package main

import (
	"context"
	"encoding/hex"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream"
	"github.com/bluenviron/gocamstream/pkg/command"
	"github.com/bluenviron/gocamstream/pkg/snapshot"
)

// controller restarts the stream: local state is reset, then the
// peripheral is commanded to start again.
type controller struct {
	receiver *gocamstream.Receiver
	saver    *snapshot.Saver
	sender   *command.Sender
	cmd      command.Command
	logger   *zap.Logger
}

func (c *controller) Reset(ctx context.Context) error {
	c.receiver.Reset()
	c.saver.ResetCounters()

	if c.sender == nil {
		return errors.New("host of the peripheral is not configured")
	}

	buf, _ := c.cmd.Marshal()
	c.logger.Info("sending start command",
		zap.String("address", c.sender.Address),
		zap.String("command", hex.EncodeToString(buf)))

	err := c.sender.Send(ctx, c.cmd)
	if err != nil {
		return errors.Wrap(err, "send start command")
	}

	return nil
}
