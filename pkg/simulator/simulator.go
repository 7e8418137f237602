// Package simulator replays a dependency graph under a throttling profile
// with a single-threaded discrete-event loop.
//
// Network nodes compete for per-origin connections and a shared link whose
// bandwidth is divided max-min fairly among transferring requests; CPU and
// checkpoint nodes run one at a time on a single simulated main thread.
// Runs are deterministic: all state lives in slices ordered by discovery
// index, and simulated time only moves to the next event boundary.
package simulator

import (
	"math"
	"sort"
	"slices"

	"github.com/dd0wney/cluso-perfsim/pkg/graph"
	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/throttling"
)

// Fixed costs for requests that never touch a connection
const (
	DefaultServerResponseTimeMs = 30.0
	DiskCacheBaseMs             = 8.0
	DiskCachePerMiBMs           = 20.0
	NonNetworkMs                = 2.0
)

const (
	timeEpsilon = 1e-9
	byteEpsilon = 1e-3
	bytesPerMiB = 1024 * 1024
)

// Options tunes one simulation
type Options struct {
	Profile throttling.Profile
	// AdditionalRTTByOrigin is added to the profile RTT for each origin
	AdditionalRTTByOrigin map[string]float64
	// ServerResponseTimeByOrigin is server think time; absent origins use
	// DefaultServerResponseTimeMs
	ServerResponseTimeByOrigin map[string]float64
	Logger                     logging.Logger
}

// Timing is a node's simulated start and end in ms from navigation start
type Timing struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start
func (t Timing) Duration() float64 { return t.End - t.Start }

// Result is the immutable outcome of one (graph, profile) simulation
type Result struct {
	Nodes   map[string]Timing `json:"nodes"`
	EndTime float64           `json:"end_time"`
	Events  int               `json:"events"`
}

// Timing returns the simulated timing of a node
func (r *Result) Timing(id string) (Timing, bool) {
	t, ok := r.Nodes[id]
	return t, ok
}

// Simulator runs graphs under one set of options. A Simulator holds no
// per-run state and is safe for concurrent use.
type Simulator struct {
	opts   Options
	logger logging.Logger
}

// New creates a simulator; zero profile knobs take their defaults
func New(opts Options) *Simulator {
	opts.Profile = opts.Profile.WithDefaults()
	return &Simulator{opts: opts, logger: logging.OrDefault(opts.Logger)}
}

// Simulate computes simulated timings for every node of g
func (s *Simulator) Simulate(g *graph.Graph) (*Result, error) {
	return s.run(g.Nodes())
}

type phase int

const (
	phaseLatency phase = iota // connection setup, request and server response
	phaseDownload
	phaseFixed // cached or non-network, no connection
)

type request struct {
	pos       int
	conn      *Connection
	phase     phase
	phaseEnd  float64
	remaining float64 // body bytes still to receive
	rate      float64 // bytes per ms
}

type run struct {
	opts   Options
	logger logging.Logger
	link   float64 // bytes per ms
	pool   *ConnectionPool
	nodes  []graph.Node
	posOf  map[string]int
	prio   []network.Priority
	waits  []int
	timing []Timing
	done   []bool

	readyNet  []int
	readyCPU  []int
	active    []*request
	connBound int
	cpuBusy   bool
	cpuPos    int
	cpuEnd    float64
	now       float64
	completed int
	events    int
	maxEvents int
}

func (s *Simulator) run(nodes []graph.Node) (*Result, error) {
	r := s.newRun(nodes)

	for pos := range nodes {
		if r.waits[pos] == 0 {
			r.markReady(pos)
		}
	}

	for r.completed < len(nodes) {
		r.events++
		if r.events > r.maxEvents {
			return nil, r.stall("event limit exceeded")
		}

		r.startCPU()
		r.dispatchNetwork()
		r.allocateBandwidth()

		next := r.nextBoundary()
		if math.IsInf(next, 1) {
			return nil, r.stall("no schedulable node")
		}
		r.advance(next)
		r.completeDue()
	}

	res := &Result{Nodes: make(map[string]Timing, len(nodes)), Events: r.events}
	for pos, n := range nodes {
		res.Nodes[n.ID()] = r.timing[pos]
		res.EndTime = math.Max(res.EndTime, r.timing[pos].End)
	}

	s.logger.Debug("simulation complete",
		logging.Component("simulator"),
		logging.Count(len(nodes)),
		logging.Int("events", r.events),
		logging.SimTime(res.EndTime))
	return res, nil
}

func (s *Simulator) newRun(nodes []graph.Node) *run {
	p := s.opts.Profile
	link := math.Inf(1)
	if p.ThroughputKbps > 0 {
		link = p.ThroughputKbps * 1024 / 8 / 1000
	}

	r := &run{
		opts:      s.opts,
		logger:    s.logger,
		link:      link,
		nodes:     nodes,
		posOf:     make(map[string]int, len(nodes)),
		prio:      make([]network.Priority, len(nodes)),
		waits:     make([]int, len(nodes)),
		timing:    make([]Timing, len(nodes)),
		done:      make([]bool, len(nodes)),
		maxEvents: p.MaxEvents,
	}
	r.pool = NewConnectionPool(p.MaxConnectionsPerOrigin, NewDNSCache(p.DNSRTTMultiplier), r.rttFor)

	for pos, n := range nodes {
		r.posOf[n.ID()] = pos
		if nn, ok := n.(*graph.NetworkNode); ok && nn.Record != nil {
			r.prio[pos] = nn.Record.Priority
		}
	}
	for pos, n := range nodes {
		for _, dep := range n.Dependencies() {
			if _, known := r.posOf[dep.ID()]; known {
				r.waits[pos]++
			} else {
				// A dependency outside the node set can never complete.
				r.waits[pos] = math.MaxInt / 2
			}
		}
	}
	return r
}

func (r *run) rttFor(origin string) float64 {
	return r.opts.Profile.RTTMs + r.opts.AdditionalRTTByOrigin[origin]
}

func (r *run) serverResponseTime(origin string) float64 {
	if v, ok := r.opts.ServerResponseTimeByOrigin[origin]; ok {
		return v
	}
	return DefaultServerResponseTimeMs
}

func (r *run) isNetwork(pos int) bool {
	_, ok := r.nodes[pos].(*graph.NetworkNode)
	return ok
}

// markReady queues pos. Network nodes are ordered by descending priority
// then discovery index; main-thread nodes by discovery index.
func (r *run) markReady(pos int) {
	idx := r.nodes[pos].Index()
	if r.isNetwork(pos) {
		i := sort.Search(len(r.readyNet), func(i int) bool {
			other := r.readyNet[i]
			if r.prio[other] != r.prio[pos] {
				return r.prio[other] < r.prio[pos]
			}
			return r.nodes[other].Index() > idx
		})
		r.readyNet = slices.Insert(r.readyNet, i, pos)
		return
	}
	i := sort.Search(len(r.readyCPU), func(i int) bool {
		return r.nodes[r.readyCPU[i]].Index() > idx
	})
	r.readyCPU = slices.Insert(r.readyCPU, i, pos)
}

func (r *run) cpuDuration(n graph.Node) float64 {
	p := r.opts.Profile
	var observed float64
	multiplier := p.CPUSlowdownMultiplier

	switch n := n.(type) {
	case *graph.CheckpointNode:
		return 0
	case *graph.CPUNode:
		observed = n.Duration()
		if n.Task != nil && n.Task.DidPerformLayout {
			multiplier *= p.LayoutTaskMultiplier
		}
	default:
		observed = n.EndTime() - n.StartTime()
	}
	return math.Min(math.Max(0, observed)*multiplier, p.MaxCPUTaskDurationMs)
}

func (r *run) startCPU() {
	if r.cpuBusy || len(r.readyCPU) == 0 {
		return
	}
	pos := r.readyCPU[0]
	r.readyCPU = r.readyCPU[1:]
	r.cpuBusy = true
	r.cpuPos = pos
	r.cpuEnd = r.now + r.cpuDuration(r.nodes[pos])
	r.timing[pos].Start = r.now
}

// fixedDuration returns the cost of a request served without a
// connection, or false when it needs the network.
func fixedDuration(rec *network.Record) (float64, bool) {
	switch {
	case rec.IsNonNetworkProtocol() || rec.FromMemoryCache:
		return NonNetworkMs, true
	case rec.FromDiskCache:
		size := rec.ResourceSize
		if size <= 0 {
			size = rec.TransferSize
		}
		return DiskCacheBaseMs + DiskCachePerMiBMs*float64(max(size, 0))/bytesPerMiB, true
	}
	return 0, false
}

func (r *run) dispatchNetwork() {
	if len(r.readyNet) == 0 {
		return
	}
	waiting := make([]int, 0, len(r.readyNet))
	for _, pos := range r.readyNet {
		rec := r.nodes[pos].(*graph.NetworkNode).Record
		if rec == nil {
			r.begin(&request{pos: pos, phase: phaseFixed, phaseEnd: r.now})
			continue
		}
		if d, ok := fixedDuration(rec); ok {
			r.begin(&request{pos: pos, phase: phaseFixed, phaseEnd: r.now + d})
			continue
		}
		if r.connBound >= r.opts.Profile.MaxConcurrentRequests {
			waiting = append(waiting, pos)
			continue
		}
		conn, setup, ok := r.pool.Acquire(rec, r.now)
		if !ok {
			waiting = append(waiting, pos)
			continue
		}
		r.connBound++
		r.logger.Debug("request dispatched",
			logging.GraphNode(r.nodes[pos].ID()),
			logging.Origin(conn.Origin),
			logging.Float64("setup_ms", setup),
			logging.SimTime(r.now))
		r.begin(&request{
			pos:       pos,
			conn:      conn,
			phase:     phaseLatency,
			phaseEnd:  r.now + setup + conn.rtt + r.serverResponseTime(conn.Origin),
			remaining: float64(max(rec.TransferSize, 0)),
		})
	}
	r.readyNet = waiting
}

func (r *run) begin(req *request) {
	r.timing[req.pos].Start = r.now
	r.active = append(r.active, req)
}

// allocateBandwidth divides the link max-min fairly. Each download is
// capped by its share of its connection's congestion window.
func (r *run) allocateBandwidth() {
	var downloading []*request
	for _, req := range r.active {
		if req.phase == phaseDownload {
			downloading = append(downloading, req)
		}
	}
	if len(downloading) == 0 {
		return
	}

	caps := make([]float64, len(downloading))
	order := make([]int, len(downloading))
	for i, req := range downloading {
		caps[i] = req.conn.capacity() / float64(req.conn.downloads)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return caps[order[a]] < caps[order[b]] })

	remaining := r.link
	left := len(order)
	for _, i := range order {
		share := remaining / float64(left)
		alloc := math.Min(caps[i], share)
		downloading[i].rate = alloc
		if !math.IsInf(remaining, 1) {
			remaining -= alloc
		}
		left--
	}
}

func (r *run) nextBoundary() float64 {
	next := math.Inf(1)
	if r.cpuBusy {
		next = r.cpuEnd
	}
	for _, req := range r.active {
		switch req.phase {
		case phaseLatency, phaseFixed:
			next = math.Min(next, req.phaseEnd)
		case phaseDownload:
			switch {
			case math.IsInf(req.rate, 1):
				next = math.Min(next, r.now)
			case req.rate > 0:
				next = math.Min(next, r.now+req.remaining/req.rate)
			}
		}
	}
	for _, c := range r.pool.Connections() {
		if c.downloads > 0 && c.canGrow(r.link) {
			next = math.Min(next, c.growthAt)
		}
	}
	return next
}

func (r *run) advance(next float64) {
	dt := next - r.now
	for _, req := range r.active {
		if req.phase != phaseDownload {
			continue
		}
		if math.IsInf(req.rate, 1) {
			req.remaining = 0
		} else {
			req.remaining -= req.rate * dt
		}
	}
	r.now = next

	for _, c := range r.pool.Connections() {
		if c.downloads > 0 && c.canGrow(r.link) && r.now >= c.growthAt-timeEpsilon {
			c.cwnd *= 2
			c.growthAt += c.rtt
		}
	}
}

func (r *run) completeDue() {
	still := r.active[:0:0]
	for _, req := range r.active {
		switch req.phase {
		case phaseFixed:
			if r.now >= req.phaseEnd-timeEpsilon {
				r.finishRequest(req)
				continue
			}
		case phaseLatency:
			if r.now >= req.phaseEnd-timeEpsilon {
				if req.remaining <= byteEpsilon {
					r.finishRequest(req)
					continue
				}
				req.phase = phaseDownload
				req.conn.startDownload(r.now)
			}
		case phaseDownload:
			if req.remaining <= byteEpsilon {
				req.conn.finishDownload()
				r.finishRequest(req)
				continue
			}
		}
		still = append(still, req)
	}
	r.active = still

	if r.cpuBusy && r.now >= r.cpuEnd-timeEpsilon {
		r.cpuBusy = false
		r.complete(r.cpuPos)
	}
}

func (r *run) finishRequest(req *request) {
	if req.conn != nil {
		r.pool.Release(req.conn, r.now)
		r.connBound--
	}
	r.complete(req.pos)
}

func (r *run) complete(pos int) {
	r.done[pos] = true
	r.timing[pos].End = r.now
	r.completed++
	for _, dep := range r.nodes[pos].Dependents() {
		p, ok := r.posOf[dep.ID()]
		if !ok {
			continue
		}
		r.waits[p]--
		if r.waits[p] == 0 {
			r.markReady(p)
		}
	}
}

func (r *run) stall(reason string) error {
	err := &SimulationStallError{
		Reason:    reason,
		SimTime:   r.now,
		Completed: r.completed,
		Total:     len(r.nodes),
	}
	for pos, n := range r.nodes {
		if !r.done[pos] {
			err.Pending = append(err.Pending, n.ID())
		}
	}
	fields := []logging.Field{logging.String("reason", reason), logging.SimTime(r.now), logging.Count(len(err.Pending))}
	if len(err.Pending) > 0 {
		fields = append(fields, logging.GraphNode(err.Pending[0]))
	}
	r.logger.Warn("simulation stalled", fields...)
	return err
}
