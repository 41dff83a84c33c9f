package gocamstream

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gocamstream/pkg/multicast"
	"github.com/bluenviron/gocamstream/pkg/readbuffer"
)

func atomicAdd(v *uint64, delta uint64) {
	atomic.AddUint64(v, delta)
}

func atomicLoad(v *uint64) uint64 {
	return atomic.LoadUint64(v)
}

func isMulticastAddress(address string) (bool, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return false, err
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsMulticast(), nil
}

type receiverUDPListener struct {
	r *Receiver

	pc readbuffer.PacketConn
}

func (u *receiverUDPListener) initialize() error {
	multi, err := isMulticastAddress(u.r.Address)
	if err != nil {
		return err
	}

	if multi {
		var intf *net.Interface
		if u.r.MulticastInterface != "" {
			intf, err = net.InterfaceByName(u.r.MulticastInterface)
			if err != nil {
				return err
			}
		}

		u.pc, err = multicast.Listen(intf, u.r.Address, u.r.ListenPacket)
		if err != nil {
			return err
		}
	} else {
		tmp, err2 := u.r.ListenPacket("udp", u.r.Address)
		if err2 != nil {
			return err2
		}

		var ok bool
		u.pc, ok = tmp.(*net.UDPConn)
		if !ok {
			tmp.Close() //nolint:errcheck
			return fmt.Errorf("unsupported connection type %T", tmp)
		}
	}

	if u.r.UDPReadBufferSize != 0 {
		err = readbuffer.SetReadBuffer(u.pc, u.r.UDPReadBufferSize)
		if err != nil {
			u.pc.Close() //nolint:errcheck
			return err
		}
	}

	return nil
}

func (u *receiverUDPListener) close() {
	u.pc.Close() //nolint:errcheck
}

// interrupt unblocks a pending read and makes future reads fail.
func (u *receiverUDPListener) interrupt() {
	u.pc.SetReadDeadline(time.Now()) //nolint:errcheck
}

func (u *receiverUDPListener) run() error {
	// one more byte to detect datagrams that exceed the maximum size.
	buf := make([]byte, u.r.MaxDatagramSize+1)

	for {
		n, _, err := u.pc.ReadFrom(buf)
		if err != nil {
			return err
		}

		u.r.processDatagram(buf[:n])
	}
}
