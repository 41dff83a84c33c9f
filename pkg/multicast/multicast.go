// Package multicast contains a connection that receives from a multicast group.
package multicast

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"
)

// Conn is a UDP connection that is member of a multicast group.
type Conn struct {
	*net.UDPConn

	connIP *ipv4.PacketConn
	group  *net.UDPAddr
	intfs  []*net.Interface
}

// Listen joins the multicast group of address (in ip:port format) on the given
// interface, or on every multicast-capable interface when intf is nil.
func Listen(
	intf *net.Interface,
	address string,
	listenPacket func(network, address string) (net.PacketConn, error),
) (*Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, err
	}

	if !addr.IP.IsMulticast() {
		return nil, fmt.Errorf("'%v' is not a multicast address", addr.IP)
	}

	tmp, err := listenPacket("udp4", ":"+strconv.FormatInt(int64(addr.Port), 10))
	if err != nil {
		return nil, err
	}

	conn, ok := tmp.(*net.UDPConn)
	if !ok {
		tmp.Close() //nolint:errcheck
		return nil, fmt.Errorf("unsupported connection type %T", tmp)
	}

	var intfs []*net.Interface
	if intf != nil {
		intfs = []*net.Interface{intf}
	} else {
		intfs, err = multicastInterfaces()
		if err != nil {
			conn.Close() //nolint:errcheck
			return nil, err
		}
	}

	connIP := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: addr.IP}

	var joined []*net.Interface //nolint:prealloc

	for _, intf := range intfs {
		err = connIP.JoinGroup(intf, group)
		if err != nil {
			continue
		}
		joined = append(joined, intf)
	}

	if joined == nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("unable to join multicast group %v on any interface", addr.IP)
	}

	return &Conn{
		UDPConn: conn,
		connIP:  connIP,
		group:   group,
		intfs:   joined,
	}, nil
}

func multicastInterfaces() ([]*net.Interface, error) {
	intfs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ret []*net.Interface //nolint:prealloc

	for _, intf := range intfs {
		if (intf.Flags&net.FlagMulticast) == 0 || (intf.Flags&net.FlagUp) == 0 {
			continue
		}
		cintf := intf
		ret = append(ret, &cintf)
	}

	return ret, nil
}

// Interfaces returns the interfaces on which the group has been joined.
func (c *Conn) Interfaces() []*net.Interface {
	return c.intfs
}

// Close leaves the group and closes the connection.
func (c *Conn) Close() error {
	for _, intf := range c.intfs {
		c.connIP.LeaveGroup(intf, c.group) //nolint:errcheck
	}
	return c.UDPConn.Close()
}
