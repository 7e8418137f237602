package graph

import (
	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// NodeKind distinguishes what a node occupies during simulation
type NodeKind int

const (
	// KindNetwork nodes occupy a connection and link bandwidth
	KindNetwork NodeKind = iota
	// KindCPU nodes occupy the single simulated main thread
	KindCPU
	// KindCheckpoint nodes are zero-length markers on the main thread
	KindCheckpoint
)

func (k NodeKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindCPU:
		return "cpu"
	case KindCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// Checkpoint names
const (
	CheckpointFirstContentfulPaint   = "first-contentful-paint"
	CheckpointLargestContentfulPaint = "largest-contentful-paint"
)

// Node is a vertex of the dependency graph. Nodes are read-only once the
// builder returns.
type Node interface {
	ID() string
	Kind() NodeKind
	// Index is the discovery order, the simulator's stable tie-break
	Index() int
	Dependencies() []Node
	Dependents() []Node
	// StartTime and EndTime are the observed times relative to navigation start (ms)
	StartTime() float64
	EndTime() float64
}

type baseNode struct {
	id           string
	index        int
	start, end   float64
	dependencies []Node
	dependents   []Node
}

func (n *baseNode) ID() string           { return n.id }
func (n *baseNode) Index() int           { return n.index }
func (n *baseNode) Dependencies() []Node { return n.dependencies }
func (n *baseNode) Dependents() []Node   { return n.dependents }
func (n *baseNode) StartTime() float64   { return n.start }
func (n *baseNode) EndTime() float64     { return n.end }
func (n *baseNode) base() *baseNode      { return n }

type linkable interface {
	Node
	base() *baseNode
}

// link records that dependent cannot start until dependency finishes.
// Duplicate edges are ignored.
func link(dependency, dependent linkable) {
	d := dependent.base()
	for _, existing := range d.dependencies {
		if existing.ID() == dependency.ID() {
			return
		}
	}
	d.dependencies = append(d.dependencies, dependency)
	dependency.base().dependents = append(dependency.base().dependents, dependent)
}

// NetworkNode is a request in the graph
type NetworkNode struct {
	baseNode
	Record *network.Record
}

func (n *NetworkNode) Kind() NodeKind { return KindNetwork }

// CPUNode is a top-level main-thread task in the graph
type CPUNode struct {
	baseNode
	Task *trace.Task
}

func (n *CPUNode) Kind() NodeKind { return KindCPU }

// Duration is the observed task duration in ms
func (n *CPUNode) Duration() float64 { return n.end - n.start }

// CheckpointNode marks the moment a paint can happen once its
// dependencies are done
type CheckpointNode struct {
	baseNode
	Name string
}

func (n *CheckpointNode) Kind() NodeKind { return KindCheckpoint }

// CheckpointID returns the node ID used for a named checkpoint
func CheckpointID(name string) string {
	return "checkpoint:" + name
}
