// Package readbuffer sets and verifies the operating system read buffer of the stream socket.
package readbuffer

import (
	"fmt"
	"net"
	"syscall"
)

// PacketConn is a packet connection whose read buffer can be tuned.
type PacketConn interface {
	net.PacketConn
	SyscallConn() (syscall.RawConn, error)
	SetReadBuffer(bytes int) error
}

// SetReadBuffer sets the read buffer size of pc.
// The operating system may silently cap the value, therefore the result is read back.
func SetReadBuffer(pc PacketConn, size int) error {
	err := pc.SetReadBuffer(size)
	if err != nil {
		return err
	}

	v, err := ReadBuffer(pc)
	if err != nil {
		return err
	}

	if v != size {
		return fmt.Errorf("read buffer size is %d instead of %d, increase the operating system limit (net.core.rmem_max)",
			v, size)
	}

	return nil
}
