package command

import (
	"context"
	"fmt"
	"net"
	"time"
)

const (
	// DefaultPort is the TCP port on which peripherals receive commands.
	DefaultPort = 1234

	defaultConnectTimeout = 3 * time.Second
	defaultWriteTimeout   = 3 * time.Second
)

// Sender sends commands to a peripheral.
// Every command uses a new connection.
type Sender struct {
	// Address of the peripheral, in host:port format.
	// If the port is missing, DefaultPort is used.
	Address string

	// Timeout of connection establishment.
	// It defaults to 3 seconds.
	ConnectTimeout time.Duration

	// Timeout of writes.
	// It defaults to 3 seconds.
	WriteTimeout time.Duration

	// function used to initialize the TCP connection.
	// It defaults to (&net.Dialer{}).DialContext.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)

	address string
}

// Initialize initializes Sender.
func (s *Sender) Initialize() error {
	if s.Address == "" {
		return fmt.Errorf("address is empty")
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = defaultConnectTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultWriteTimeout
	}
	if s.DialContext == nil {
		s.DialContext = (&net.Dialer{}).DialContext
	}

	s.address = s.Address
	if _, _, err := net.SplitHostPort(s.address); err != nil {
		s.address = net.JoinHostPort(s.address, fmt.Sprintf("%d", DefaultPort))
	}

	return nil
}

// Send sends a command.
func (s *Sender) Send(ctx context.Context, c Command) error {
	err := c.Validate()
	if err != nil {
		return err
	}

	buf, _ := c.Marshal()

	dialCtx, dialCtxCancel := context.WithTimeout(ctx, s.ConnectTimeout)
	defer dialCtxCancel()

	nconn, err := s.DialContext(dialCtx, "tcp", s.address)
	if err != nil {
		return err
	}
	defer nconn.Close()

	err = nconn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	if err != nil {
		return err
	}

	_, err = nconn.Write(buf)
	return err
}
