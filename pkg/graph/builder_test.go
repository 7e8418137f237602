package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

func req(id, url, typ string, start, end float64) *network.Record {
	return &network.Record{
		RequestID: id, URL: url, ResourceType: typ, StartTime: start, EndTime: end,
		Priority: network.PriorityLow, Protocol: "http/1.1",
	}
}

func normalized(t *testing.T, records ...*network.Record) []*network.Record {
	t.Helper()
	out, err := network.Normalize(network.NewLog(records))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return out
}

func deps(n Node) string {
	var ids []string
	for _, d := range n.Dependencies() {
		ids = append(ids, d.ID())
	}
	return strings.Join(ids, ",")
}

func mustNode(t *testing.T, g *Graph, id string) Node {
	t.Helper()
	n, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	return n
}

func TestBuild_InitiatorAndRedirectEdges(t *testing.T) {
	redirect := req("1", "http://example.com/", network.ResourceDocument, 0, 100)
	doc := req("2", "https://example.com/", network.ResourceDocument, 100, 400)
	doc.RedirectSourceID = "1"
	css := req("3", "https://example.com/style.css", network.ResourceStylesheet, 450, 600)
	css.Initiator = network.Initiator{Type: network.InitiatorParser, URL: "https://example.com/"}
	font := req("4", "https://fonts.test/a.woff2", network.ResourceFont, 650, 700)
	font.Initiator = network.Initiator{Type: network.InitiatorParser, RequestID: "3"}
	beacon := req("5", "https://stats.test/b", network.ResourceOther, 700, 720)

	g, err := Build(Input{Records: normalized(t, redirect, doc, css, font, beacon)}, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.Root().ID() != "net:1" || g.Root().Index() != 0 {
		t.Errorf("root = %s (index %d)", g.Root().ID(), g.Root().Index())
	}
	if got := deps(mustNode(t, g, "net:2")); got != "net:1" {
		t.Errorf("redirect destination deps = %q", got)
	}
	if got := deps(mustNode(t, g, "net:3")); got != "net:2" {
		t.Errorf("stylesheet deps = %q, want the final document", got)
	}
	if got := deps(mustNode(t, g, "net:4")); got != "net:3" {
		t.Errorf("font deps = %q", got)
	}
	if got := deps(mustNode(t, g, "net:5")); got != "net:1" {
		t.Errorf("uninitiated request deps = %q, want root", got)
	}
	if g.EdgeCount() != 4 || g.Len() != 5 {
		t.Errorf("edges = %d, nodes = %d", g.EdgeCount(), g.Len())
	}

	var visited []string
	g.Traverse(func(n Node) { visited = append(visited, n.ID()) })
	if len(visited) != 5 || visited[0] != "net:1" {
		t.Errorf("Traverse visited %v", visited)
	}
}

func TestBuild_CircularInitiatorFails(t *testing.T) {
	doc := req("1", "https://example.com/", network.ResourceDocument, 0, 100)
	a := req("2", "https://example.com/a.js", network.ResourceScript, 110, 200)
	a.Initiator.RequestID = "3"
	b := req("3", "https://example.com/b.js", network.ResourceScript, 120, 220)
	b.Initiator.RequestID = "2"

	_, err := Build(Input{Records: normalized(t, doc, a, b)}, Options{})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if !IsConstructionError(err) {
		t.Errorf("expected GraphConstructionError, got %T", err)
	}
	var gce *GraphConstructionError
	errors.As(err, &gce)
	if !strings.Contains(gce.Context, "->") {
		t.Errorf("expected cycle path in context, got %q", gce.Context)
	}

	// Relaxed mode never hides a cycle.
	if _, err := Build(Input{Records: normalized(t, doc, a, b)}, Options{Relaxed: true}); !errors.Is(err, ErrCycle) {
		t.Errorf("relaxed build: expected ErrCycle, got %v", err)
	}
}

func TestBuild_SelfInitiatedFails(t *testing.T) {
	doc := req("1", "https://example.com/", network.ResourceDocument, 0, 100)
	a := req("2", "https://example.com/a.js", network.ResourceScript, 110, 200)
	a.Initiator.RequestID = "2"

	if _, err := Build(Input{Records: normalized(t, doc, a)}, Options{}); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestBuild_UnresolvedInitiatorFallback(t *testing.T) {
	doc := req("1", "https://example.com/", network.ResourceDocument, 0, 100)
	img := req("2", "https://example.com/hero.png", network.ResourceImage, 150, 300)
	img.Initiator = network.Initiator{Type: network.InitiatorParser, URL: "https://elsewhere.test/missing.html"}
	in := Input{Records: normalized(t, doc, img)}

	_, err := Build(in, Options{})
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("strict build: expected ErrUnresolvedReference, got %v", err)
	}

	g, err := BuildWithFallback(in, Options{}, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildWithFallback failed: %v", err)
	}
	if got := deps(mustNode(t, g, "net:2")); got != "net:1" {
		t.Errorf("fallback deps = %q, want root", got)
	}
	if g.RelaxedLinks != 1 {
		t.Errorf("RelaxedLinks = %d, want 1", g.RelaxedLinks)
	}
}

func TestBuild_NoRoot(t *testing.T) {
	_, err := Build(Input{Records: normalized(t, req("1", "https://a.test/x.js", network.ResourceScript, 0, 1))}, Options{})
	if !errors.Is(err, ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}

func TestBuild_CPUEdges(t *testing.T) {
	doc := req("1", "https://example.com/", network.ResourceDocument, 0, 100)
	app := req("2", "https://example.com/app.js", network.ResourceScript, 110, 200)
	app.Initiator.Type = network.InitiatorParser
	xhr := req("3", "https://api.test/data", network.ResourceXHR, 260, 400)

	evaluate := &trace.Task{Name: "RunTask", Start: 210, End: 300, URLs: []string{"https://example.com/app.js"},
		InitiatedRequestIDs: []string{"3"}, TimerInstalls: []string{"9"}, Index: 0}
	tiny := &trace.Task{Name: "RunTask", Start: 310, End: 312, Index: 1}
	timer := &trace.Task{Name: "RunTask", Start: 500, End: 520, TimerFires: []string{"9"}, Index: 2}
	idle := &trace.Task{Name: "RunTask", Start: 600, End: 650, Index: 3}

	g, err := Build(Input{
		Records: normalized(t, doc, app, xhr),
		Tasks:   []*trace.Task{evaluate, tiny, timer, idle},
	}, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, ok := g.Node("cpu:1"); ok {
		t.Error("short unattributed task should be dropped")
	}
	if got := deps(mustNode(t, g, "cpu:0")); got != "net:2" {
		t.Errorf("evaluate deps = %q", got)
	}
	if got := deps(mustNode(t, g, "net:3")); got != "cpu:0" {
		t.Errorf("xhr deps = %q, want the initiating task", got)
	}
	if got := deps(mustNode(t, g, "cpu:2")); got != "cpu:0" {
		t.Errorf("timer deps = %q", got)
	}
	if got := deps(mustNode(t, g, "cpu:3")); got != "net:1" {
		t.Errorf("idle task deps = %q, want root", got)
	}
	if len(g.CPUNodes()) != 3 || len(g.NetworkNodes()) != 3 {
		t.Errorf("cpu = %d, network = %d", len(g.CPUNodes()), len(g.NetworkNodes()))
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder failed: %v", err)
	}
	pos := map[string]int{}
	for i, n := range order {
		pos[n.ID()] = i
	}
	for _, n := range g.Nodes() {
		for _, d := range n.Dependencies() {
			if pos[d.ID()] >= pos[n.ID()] {
				t.Errorf("%s ordered after dependent %s", d.ID(), n.ID())
			}
		}
	}
}

func TestBuild_Checkpoints(t *testing.T) {
	doc := req("1", "https://example.com/", network.ResourceDocument, 0, 100)
	css := req("2", "https://example.com/style.css", network.ResourceStylesheet, 110, 1100)
	css.Priority = network.PriorityVeryHigh
	asyncJS := req("3", "https://example.com/async.js", network.ResourceScript, 120, 300)
	hero := req("4", "https://example.com/hero.jpg", network.ResourceImage, 1200, 1500)
	hero.Priority = network.PriorityHigh
	late := req("5", "https://example.com/late.css", network.ResourceStylesheet, 1300, 1400)
	late.Priority = network.PriorityVeryHigh

	parse := &trace.Task{Name: "RunTask", Start: 1110, End: 1150, Index: 0}
	fcp, lcp := 1200.0, 1600.0
	g, err := Build(Input{
		Records:                normalized(t, doc, css, asyncJS, hero, late),
		Tasks:                  []*trace.Task{parse},
		FirstContentfulPaint:   &fcp,
		LargestContentfulPaint: &lcp,
	}, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	fcpNode, ok := g.Checkpoint(CheckpointFirstContentfulPaint)
	if !ok {
		t.Fatal("missing FCP checkpoint")
	}
	if got := deps(fcpNode); got != "net:1,net:2,cpu:0" {
		t.Errorf("FCP checkpoint deps = %q", got)
	}
	lcpNode, ok := g.Checkpoint(CheckpointLargestContentfulPaint)
	if !ok {
		t.Fatal("missing LCP checkpoint")
	}
	if got := deps(lcpNode); got != "checkpoint:first-contentful-paint,net:2,net:4,net:5,cpu:0" {
		t.Errorf("LCP checkpoint deps = %q", got)
	}
	if lcpNode.Kind() != KindCheckpoint || lcpNode.StartTime() != lcp {
		t.Errorf("unexpected checkpoint node %+v", lcpNode)
	}

	ancestors := g.Ancestors(fcpNode)
	if len(ancestors) != 3 {
		t.Errorf("FCP ancestors = %d, want 3", len(ancestors))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	build := func() *Graph {
		doc := req("1", "https://example.com/", network.ResourceDocument, 0, 100)
		a := req("2", "https://example.com/a.js", network.ResourceScript, 110, 200)
		b := req("3", "https://example.com/b.js", network.ResourceScript, 110, 220)
		c := req("4", "https://cdn.test/c.png", network.ResourceImage, 110, 240)
		c.Initiator.URL = "https://example.com/a.js"
		g, err := Build(Input{Records: normalized(t, doc, a, b, c)}, Options{})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return g
	}

	g1, g2 := build(), build()
	for i, n := range g1.Nodes() {
		other := g2.Nodes()[i]
		if n.ID() != other.ID() || deps(n) != deps(other) || n.Index() != other.Index() {
			t.Errorf("node %d differs: %s(%s) vs %s(%s)", i, n.ID(), deps(n), other.ID(), deps(other))
		}
	}
}

func TestNodeKindString(t *testing.T) {
	if KindNetwork.String() != "network" || KindCPU.String() != "cpu" || KindCheckpoint.String() != "checkpoint" {
		t.Error("unexpected kind names")
	}
	if NodeKind(7).String() != "unknown" {
		t.Error("unknown kind")
	}
}

func TestGraphConstructionErrorMessage(t *testing.T) {
	err := constructionError("validate", "net:1", ErrCycle, "net:1 -> net:2")
	if err.Error() != "graph validate net:1 (net:1 -> net:2): dependency cycle" {
		t.Errorf("Error() = %q", err.Error())
	}
}
