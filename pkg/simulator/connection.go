package simulator

import (
	"math"

	"github.com/dd0wney/cluso-perfsim/pkg/network"
)

// TCP slow start parameters
const (
	TCPSegmentSize       = 1460
	InitialCongestionWnd = 10
)

// Connection is one simulated TCP (optionally TLS) connection
type Connection struct {
	Origin      string
	Index       int // position among the origin's connections
	Secure      bool
	Multiplexed bool

	rtt       float64
	warm      bool
	occupants int
	readyAt   float64 // handshake completion
	freeAt    float64 // last release

	cwnd      float64 // congestion window in bytes
	downloads int     // requests currently receiving body bytes
	growthAt  float64 // next window doubling while downloads > 0
}

func newConnection(origin string, index int, rtt float64, secure, multiplexed bool) *Connection {
	return &Connection{
		Origin:      origin,
		Index:       index,
		Secure:      secure,
		Multiplexed: multiplexed,
		rtt:         rtt,
		cwnd:        InitialCongestionWnd * TCPSegmentSize,
	}
}

// IsWarm reports whether the connection has completed a request before
func (c *Connection) IsWarm() bool { return c.warm }

// Occupants is the number of requests currently using the connection
func (c *Connection) Occupants() int { return c.occupants }

// CongestionWindow returns the current window in bytes
func (c *Connection) CongestionWindow() float64 { return c.cwnd }

// FreeAt is when the connection was last released
func (c *Connection) FreeAt() float64 { return c.freeAt }

// RTT is the round trip time to the connection's origin
func (c *Connection) RTT() float64 { return c.rtt }

// capacity is the bytes per ms the window allows
func (c *Connection) capacity() float64 {
	if c.rtt <= 0 {
		return math.Inf(1)
	}
	return c.cwnd / c.rtt
}

// canGrow reports whether doubling the window would still raise throughput
// on a link of the given bytes per ms.
func (c *Connection) canGrow(link float64) bool {
	return c.rtt > 0 && c.capacity() < link
}

// startDownload registers a body transfer; the window starts growing one
// RTT after the connection becomes busy.
func (c *Connection) startDownload(simTime float64) {
	if c.downloads == 0 {
		c.growthAt = simTime + c.rtt
	}
	c.downloads++
}

func (c *Connection) finishDownload() {
	if c.downloads > 0 {
		c.downloads--
	}
}

// ConnectionPool hands out connections per origin, charging handshake
// costs for cold ones. It is private to one simulation run.
type ConnectionPool struct {
	maxPerOrigin int
	dns          *DNSCache
	rttFor       func(origin string) float64
	byOrigin     map[string][]*Connection
	all          []*Connection
}

// NewConnectionPool creates a pool. rttFor returns the round trip time to
// an origin.
func NewConnectionPool(maxPerOrigin int, dns *DNSCache, rttFor func(origin string) float64) *ConnectionPool {
	if maxPerOrigin <= 0 {
		maxPerOrigin = 6
	}
	return &ConnectionPool{
		maxPerOrigin: maxPerOrigin,
		dns:          dns,
		rttFor:       rttFor,
		byOrigin:     make(map[string][]*Connection),
	}
}

// Acquire finds a connection for rec at simTime. It returns the connection
// and the setup latency owed before the request can be sent, or ok=false
// when every allowed connection to the origin is busy.
func (p *ConnectionPool) Acquire(rec *network.Record, simTime float64) (conn *Connection, setup float64, ok bool) {
	origin := rec.Origin()
	conns := p.byOrigin[origin]

	if rec.IsMultiplexed() {
		for _, c := range conns {
			if c.Multiplexed {
				c.occupants++
				return c, math.Max(0, c.readyAt-simTime), true
			}
		}
		c, setup := p.open(origin, rec, simTime, true)
		c.occupants++
		return c, setup, true
	}

	var free *Connection
	serial := 0
	for _, c := range conns {
		if c.Multiplexed {
			continue
		}
		serial++
		if c.occupants > 0 {
			continue
		}
		if c.warm {
			free = c
			break
		}
		if free == nil {
			free = c
		}
	}
	if free != nil {
		free.occupants++
		return free, math.Max(0, free.readyAt-simTime), true
	}
	// The limit covers HTTP/1.1 connections only.
	if serial >= p.maxPerOrigin {
		return nil, 0, false
	}
	c, setup := p.open(origin, rec, simTime, false)
	c.occupants++
	return c, setup, true
}

func (p *ConnectionPool) open(origin string, rec *network.Record, simTime float64, multiplexed bool) (*Connection, float64) {
	rtt := p.rttFor(origin)
	c := newConnection(origin, len(p.byOrigin[origin]), rtt, rec.IsSecure(), multiplexed)

	setup := p.dns.Resolve(origin, rtt, simTime) + rtt
	if c.Secure {
		setup += rtt
	}
	c.readyAt = simTime + setup

	p.byOrigin[origin] = append(p.byOrigin[origin], c)
	p.all = append(p.all, c)
	return c, setup
}

// Release removes one occupant, marking the connection warm
func (p *ConnectionPool) Release(c *Connection, simTime float64) {
	if c.occupants > 0 {
		c.occupants--
	}
	c.warm = true
	c.freeAt = simTime
}

// Connections returns every connection opened, in creation order
func (p *ConnectionPool) Connections() []*Connection {
	return p.all
}
