package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// DefaultMinTaskDurationMs is the shortest unattributed task kept for scheduling
const DefaultMinTaskDurationMs = 10

// Input is everything the builder derives a graph from. Records must come
// from network.Normalize and tasks from trace.Process.
type Input struct {
	Records []*network.Record
	Tasks   []*trace.Task
	// NavigationStartMs is navigation start on the network log's clock
	NavigationStartMs float64
	// Observed paint times relative to navigation start; nil skips the checkpoint
	FirstContentfulPaint   *float64
	LargestContentfulPaint *float64
}

// Options controls builder strictness
type Options struct {
	// Relaxed attaches unresolvable initiators to the root instead of failing
	Relaxed           bool
	MinTaskDurationMs float64
}

type builder struct {
	in   Input
	opts Options

	root       *NetworkNode
	network    []*NetworkNode
	cpu        []*CPUNode
	byReqID    map[string]*NetworkNode
	byURL      map[string][]*NetworkNode
	initiators map[string]*CPUNode
	relaxed    int
}

// Build derives the dependency graph. It is a pure function of its input:
// identical inputs produce structurally identical graphs.
func Build(in Input, opts Options) (*Graph, error) {
	if opts.MinTaskDurationMs <= 0 {
		opts.MinTaskDurationMs = DefaultMinTaskDurationMs
	}
	b := &builder{
		in:         in,
		opts:       opts,
		byReqID:    make(map[string]*NetworkNode),
		byURL:      make(map[string][]*NetworkNode),
		initiators: make(map[string]*CPUNode),
	}

	if err := b.createNetworkNodes(); err != nil {
		return nil, err
	}
	b.createCPUNodes()

	if err := b.linkNetworkNodes(); err != nil {
		return nil, err
	}
	b.linkCPUNodes()
	checkpoints := b.createCheckpoints()

	nodes := b.orderNodes(checkpoints)
	g := newGraph(b.root, nodes)
	g.RelaxedLinks = b.relaxed

	if err := validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// BuildWithFallback builds strictly and, if an initiator reference cannot be
// resolved, retries in relaxed mode where such requests depend on the root.
func BuildWithFallback(in Input, opts Options, logger logging.Logger) (*Graph, error) {
	logger = logging.OrDefault(logger)
	opts.Relaxed = false
	g, err := Build(in, opts)
	if err == nil || !errors.Is(err, ErrUnresolvedReference) {
		return g, err
	}

	logger.Warn("retrying graph build with relaxed initiator resolution",
		logging.Component("graph"), logging.Error(err))
	opts.Relaxed = true
	return Build(in, opts)
}

func (b *builder) rel(absMs float64) float64 {
	return absMs - b.in.NavigationStartMs
}

func (b *builder) createNetworkNodes() error {
	rootRecord, err := network.Root(b.in.Records)
	if err != nil {
		return constructionError("find-root", "", ErrNoRoot, err.Error())
	}

	for _, rec := range b.in.Records {
		id := "net:" + rec.RequestID
		if _, dup := b.byReqID[rec.RequestID]; dup {
			return constructionError("create-network-node", id, ErrUnresolvedReference, "duplicate request id")
		}
		n := &NetworkNode{
			baseNode: baseNode{id: id, start: b.rel(rec.StartTime), end: b.rel(rec.EndTime)},
			Record:   rec,
		}
		b.network = append(b.network, n)
		b.byReqID[rec.RequestID] = n
		b.byURL[rec.URL] = append(b.byURL[rec.URL], n)
		if rec == rootRecord {
			b.root = n
		}
	}
	if b.root == nil {
		return constructionError("find-root", "", ErrNoRoot, "root record not among records")
	}
	return nil
}

func (b *builder) createCPUNodes() {
	for _, task := range b.in.Tasks {
		attributed := len(task.URLs) > 0 || len(task.InitiatedRequestIDs) > 0 ||
			len(task.TimerInstalls) > 0 || len(task.TimerFires) > 0
		if task.Duration() < b.opts.MinTaskDurationMs && !attributed {
			continue
		}
		n := &CPUNode{
			baseNode: baseNode{id: fmt.Sprintf("cpu:%d", task.Index), start: task.Start, end: task.End},
			Task:     task,
		}
		b.cpu = append(b.cpu, n)
		for _, reqID := range task.InitiatedRequestIDs {
			if _, taken := b.initiators[reqID]; !taken {
				b.initiators[reqID] = n
			}
		}
	}
}

func (b *builder) linkNetworkNodes() error {
	for _, n := range b.network {
		if n == b.root {
			continue
		}
		rec := n.Record

		if rec.RedirectSource != nil {
			src, ok := b.byReqID[rec.RedirectSource.RequestID]
			if !ok {
				return constructionError("link-redirect", n.id, ErrUnresolvedReference, rec.RedirectSource.RequestID)
			}
			link(src, n)
			continue
		}

		if task, ok := b.initiators[rec.RequestID]; ok && task.start <= n.start {
			link(task, n)
			continue
		}

		initiator, err := b.resolveInitiator(n)
		if err != nil {
			if errors.Is(err, ErrCycle) || !b.opts.Relaxed {
				return err
			}
			b.relaxed++
			initiator = b.root
		}
		link(initiator, n)
	}
	return nil
}

// resolveInitiator yields the node that discovered n, or the root when the
// record carries no initiator reference at all.
func (b *builder) resolveInitiator(n *NetworkNode) (linkable, error) {
	init := n.Record.Initiator

	if init.RequestID != "" {
		target, ok := b.byReqID[init.RequestID]
		if !ok {
			return nil, constructionError("link-initiator", n.id, ErrUnresolvedReference,
				"initiator request "+init.RequestID)
		}
		if target == n {
			return nil, constructionError("link-initiator", n.id, ErrCycle, "request initiates itself")
		}
		return target, nil
	}

	if init.URL != "" {
		var best *NetworkNode
		for _, candidate := range b.byURL[init.URL] {
			if candidate == n || candidate.start > n.start {
				continue
			}
			best = candidate
			break
		}
		if best == nil {
			if init.URL == n.Record.URL {
				return nil, constructionError("link-initiator", n.id, ErrCycle, "request initiates itself")
			}
			return nil, constructionError("link-initiator", n.id, ErrUnresolvedReference, "initiator url "+init.URL)
		}
		return best, nil
	}

	return b.root, nil
}

func (b *builder) linkCPUNodes() {
	timerInstallers := make(map[string]*CPUNode)

	for _, n := range b.cpu {
		for _, url := range n.Task.URLs {
			// The request that finished closest before the task started.
			var best *NetworkNode
			for _, candidate := range b.byURL[url] {
				if candidate.end > n.start {
					continue
				}
				if best == nil || candidate.end > best.end {
					best = candidate
				}
			}
			if best != nil {
				link(best, n)
			}
		}

		for _, timer := range n.Task.TimerFires {
			if installer, ok := timerInstallers[timer]; ok && installer != n {
				link(installer, n)
			}
		}
		for _, timer := range n.Task.TimerInstalls {
			timerInstallers[timer] = n
		}

		if len(n.dependencies) == 0 {
			link(b.root, n)
		}
	}
}

func isRenderBlocking(rec *network.Record, fcp float64, rel float64) bool {
	if rec.RenderBlocking {
		return true
	}
	if rel >= fcp {
		return false
	}
	switch rec.ResourceType {
	case network.ResourceStylesheet:
		return rec.Priority >= network.PriorityHigh
	case network.ResourceScript:
		return rec.Priority >= network.PriorityHigh && !strings.Contains(rec.Initiator.Type, network.InitiatorScript)
	}
	return false
}

func (b *builder) createCheckpoints() []*CheckpointNode {
	var out []*CheckpointNode

	var fcpNode *CheckpointNode
	if b.in.FirstContentfulPaint != nil {
		fcp := *b.in.FirstContentfulPaint
		fcpNode = &CheckpointNode{
			baseNode: baseNode{id: CheckpointID(CheckpointFirstContentfulPaint), start: fcp, end: fcp},
			Name:     CheckpointFirstContentfulPaint,
		}
		link(b.root, fcpNode)
		if doc, err := network.MainDocument(b.in.Records); err == nil {
			if n, ok := b.byReqID[doc.RequestID]; ok {
				link(n, fcpNode)
			}
		}
		for _, n := range b.network {
			if n != b.root && isRenderBlocking(n.Record, fcp, n.start) {
				link(n, fcpNode)
			}
		}
		for _, n := range b.cpu {
			if n.end <= fcp {
				link(n, fcpNode)
			}
		}
		out = append(out, fcpNode)
	}

	if b.in.LargestContentfulPaint != nil {
		lcp := *b.in.LargestContentfulPaint
		lcpNode := &CheckpointNode{
			baseNode: baseNode{id: CheckpointID(CheckpointLargestContentfulPaint), start: lcp, end: lcp},
			Name:     CheckpointLargestContentfulPaint,
		}
		if fcpNode != nil {
			link(fcpNode, lcpNode)
		} else {
			link(b.root, lcpNode)
		}
		for _, n := range b.network {
			if n != b.root && n.start < lcp && n.Record.Priority >= network.PriorityHigh {
				link(n, lcpNode)
			}
		}
		for _, n := range b.cpu {
			if n.end <= lcp {
				link(n, lcpNode)
			}
		}
		out = append(out, lcpNode)
	}
	return out
}

// orderNodes merges all nodes by observed start time and assigns discovery
// indices. The root is always first; ties keep network, CPU, checkpoint order.
func (b *builder) orderNodes(checkpoints []*CheckpointNode) []Node {
	all := make([]linkable, 0, len(b.network)+len(b.cpu)+len(checkpoints))
	for _, n := range b.network {
		all = append(all, n)
	}
	for _, n := range b.cpu {
		all = append(all, n)
	}
	for _, n := range checkpoints {
		all = append(all, n)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i] == linkable(b.root) {
			return all[j] != linkable(b.root)
		}
		if all[j] == linkable(b.root) {
			return false
		}
		return all[i].StartTime() < all[j].StartTime()
	})

	nodes := make([]Node, len(all))
	for i, n := range all {
		n.base().index = i
		nodes[i] = n
	}
	return nodes
}

func validate(g *Graph) error {
	if len(g.root.Dependencies()) > 0 {
		return constructionError("validate", g.root.ID(), ErrInvalidRoot, "")
	}
	for _, n := range g.nodes {
		if n != g.root && len(n.Dependencies()) == 0 {
			return constructionError("validate", n.ID(), ErrOrphanNode, "")
		}
	}
	if cycle := g.FindCycle(); cycle != nil {
		return constructionError("validate", cycle[0], ErrCycle, strings.Join(cycle, " -> "))
	}
	return nil
}
