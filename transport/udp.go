package transport

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/metrics"
)

const (
	udpScheme   = "udp://"
	maxDatagram = 65507
)

// ConfigUDP unicast and multicast datagram transport
type ConfigUDP struct {
	// Listen unicast address, port 0 picks free one
	Listen string

	// Group multicast discovery group host:port. Empty disables multicast
	Group string

	// Interface name used for multicast. Empty lets system decide
	Interface string

	// Loopback receive own multicast datagrams, required for several participants per host
	Loopback bool

	// Peers unicast addresses receiving group traffic in addition to multicast
	Peers []string

	Stat metrics.Bytes
}

// UDP transport
type UDP struct {
	base
	unicast *net.UDPConn
	ucast   *ipv4.PacketConn
	mcast   *ipv4.PacketConn
	group   *net.UDPAddr
	peers   []*net.UDPAddr
	locator string

	resolved sync.Map
}

var _ Provider = (*UDP)(nil)

// NewUDP binds sockets and starts reading
func NewUDP(c *ConfigUDP) (*UDP, error) {
	u := &UDP{}

	laddr, err := net.ResolveUDPAddr("udp4", c.Listen)
	if err != nil {
		return nil, errors.Wrap(err, "udp: listen address")
	}

	if u.unicast, err = net.ListenUDP("udp4", laddr); err != nil {
		return nil, errors.Wrap(err, "udp: listen")
	}

	u.ucast = ipv4.NewPacketConn(u.unicast)
	u.locator = udpScheme + advertisedAddr(u.unicast.LocalAddr().(*net.UDPAddr))

	u.init(configuration.GetLogger().Named("transport").With(loggerLocator(u.locator)), c.Stat)

	for _, p := range c.Peers {
		addr, e := net.ResolveUDPAddr("udp4", p)
		if e != nil {
			_ = u.unicast.Close()
			return nil, errors.Wrap(e, "udp: peer "+p)
		}

		u.peers = append(u.peers, addr)
	}

	if len(c.Group) != 0 {
		if err = u.joinGroup(c); err != nil {
			_ = u.unicast.Close()
			return nil, err
		}
	}

	u.wg.Add(1)
	go u.readLoop(u.ucast)

	if u.mcast != nil {
		u.wg.Add(1)
		go u.readLoop(u.mcast)
	}

	return u, nil
}

func (u *UDP) joinGroup(c *ConfigUDP) error {
	var err error

	if u.group, err = net.ResolveUDPAddr("udp4", c.Group); err != nil {
		return errors.Wrap(err, "udp: group address")
	}

	if !u.group.IP.IsMulticast() {
		return errors.Errorf("udp: %s is not multicast address", u.group.IP)
	}

	var ifi *net.Interface
	if len(c.Interface) != 0 {
		if ifi, err = net.InterfaceByName(c.Interface); err != nil {
			return errors.Wrap(err, "udp: interface")
		}
	}

	lc := net.ListenConfig{Control: reuseControl}

	conn, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(u.group.Port)))
	if err != nil {
		return errors.Wrap(err, "udp: group listen")
	}

	u.mcast = ipv4.NewPacketConn(conn)

	if err = u.mcast.JoinGroup(ifi, &net.UDPAddr{IP: u.group.IP}); err != nil {
		_ = u.mcast.Close()
		return errors.Wrap(err, "udp: join group")
	}

	if ifi != nil {
		if err = u.ucast.SetMulticastInterface(ifi); err != nil {
			_ = u.mcast.Close()
			return errors.Wrap(err, "udp: multicast interface")
		}
	}

	if err = u.ucast.SetMulticastLoopback(c.Loopback); err != nil {
		_ = u.mcast.Close()
		return errors.Wrap(err, "udp: multicast loopback")
	}

	return nil
}

func (u *UDP) readLoop(pc *ipv4.PacketConn) {
	defer u.wg.Done()

	buf := make([]byte, maxDatagram)

	for {
		n, _, src, err := pc.ReadFrom(buf)
		if err != nil {
			if u.closed() {
				return
			}

			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}

			u.log.Error("read", zap.Error(err))
			return
		}

		payload := append([]byte(nil), buf[:n]...)
		u.deliver(payload, udpScheme+src.String())
	}
}

func (u *UDP) resolve(dest string) (*net.UDPAddr, error) {
	if v, ok := u.resolved.Load(dest); ok {
		return v.(*net.UDPAddr), nil
	}

	if !strings.HasPrefix(dest, udpScheme) {
		return nil, ErrInvalidLocator
	}

	addr, err := net.ResolveUDPAddr("udp4", strings.TrimPrefix(dest, udpScheme))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidLocator, err.Error())
	}

	u.resolved.Store(dest, addr)

	return addr, nil
}

// Send datagram
func (u *UDP) Send(ctx context.Context, payload []byte, dest string) error {
	if u.closed() {
		return ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}

	if err := u.unicast.SetWriteDeadline(deadline); err != nil {
		return err
	}

	if len(dest) != 0 {
		addr, err := u.resolve(dest)
		if err != nil {
			return err
		}

		return u.write(payload, addr)
	}

	var err error

	if u.group != nil {
		if _, e := u.ucast.WriteTo(payload, nil, u.group); e != nil {
			err = e
		} else {
			u.stat.OnSent(len(payload))
		}
	}

	for _, p := range u.peers {
		if e := u.write(payload, p); e != nil {
			err = e
		}
	}

	return err
}

func (u *UDP) write(payload []byte, addr *net.UDPAddr) error {
	n, err := u.unicast.WriteToUDP(payload, addr)
	u.stat.OnSent(n)

	return err
}

// Locator of unicast socket
func (u *UDP) Locator() string {
	return u.locator
}

// Close sockets and wait readers
func (u *UDP) Close() error {
	if !u.shutdown() {
		return nil
	}

	err := u.unicast.Close()

	if u.mcast != nil {
		if e := u.mcast.Close(); e != nil && err == nil {
			err = e
		}
	}

	u.wg.Wait()

	return err
}

// advertisedAddr replaces unspecified bind address with first non loopback IPv4
func advertisedAddr(a *net.UDPAddr) string {
	ip := a.IP

	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)

		if addrs, err := net.InterfaceAddrs(); err == nil {
			for _, addr := range addrs {
				if n, ok := addr.(*net.IPNet); ok && !n.IP.IsLoopback() && n.IP.To4() != nil {
					ip = n.IP
					break
				}
			}
		}
	}

	return net.JoinHostPort(ip.String(), strconv.Itoa(a.Port))
}
