// Package audit derives load metrics from one page load's artifacts. It
// normalizes the inputs, then either simulates the dependency graph under a
// throttling profile or trusts the observed timeline, and runs every metric
// extractor on the result.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-perfsim/pkg/artifacts"
	"github.com/dd0wney/cluso-perfsim/pkg/computed"
	"github.com/dd0wney/cluso-perfsim/pkg/graph"
	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/metrics"
	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/parallel"
	"github.com/dd0wney/cluso-perfsim/pkg/simulator"
	"github.com/dd0wney/cluso-perfsim/pkg/throttling"
	"github.com/dd0wney/cluso-perfsim/pkg/trace"
	"github.com/dd0wney/cluso-perfsim/pkg/vitals"
)

// DefaultWorkers bounds concurrent metric extraction
const DefaultWorkers = 4

// ErrMissingArtifacts is returned when the trace or network log is nil
var ErrMissingArtifacts = errors.New("audit needs a trace and a network log")

// Options configures an Auditor. Zero values are usable.
type Options struct {
	// Cache is shared across audits of the same run; nil creates a private one
	Cache   *computed.Cache
	Metrics *metrics.Registry
	Logger  logging.Logger
	Workers int
}

// Auditor runs audits. It is safe for concurrent use; concurrent audits of
// the same artifacts share work through the cache.
type Auditor struct {
	cache   *computed.Cache
	metrics *metrics.Registry
	logger  logging.Logger
	workers int
}

// New creates an Auditor
func New(opts Options) *Auditor {
	logger := logging.OrDefault(opts.Logger).With(logging.Component("audit"))
	if opts.Cache == nil {
		opts.Cache = computed.New(opts.Metrics, logger)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Auditor{cache: opts.Cache, metrics: opts.Metrics, logger: logger, workers: opts.Workers}
}

// Run audits one page load with a fresh cache
func Run(ctx context.Context, in *artifacts.Artifacts, profile throttling.Profile) (Result, error) {
	return New(Options{}).Run(ctx, in, profile)
}

// inputs are the normalized artifacts plus their cache identities
type inputs struct {
	traceID string
	logID   string
	trace   *trace.Processed
	records []*network.Record
}

// Run audits one page load. It fails only when the trace cannot anchor any
// metric (no navigation start); every other problem leaves individual
// metrics nil or, in simulate mode, falls back to the observed timeline.
func (a *Auditor) Run(ctx context.Context, in *artifacts.Artifacts, profile throttling.Profile) (res Result, err error) {
	started := time.Now()
	method := string(profile.Method)
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordAudit(method, err, time.Since(started))
		}
	}()

	if in == nil || in.Trace == nil || in.NetworkLog == nil {
		return nil, ErrMissingArtifacts
	}
	profile = profile.WithDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	norm, err := a.normalize(ctx, in)
	if err != nil {
		return nil, err
	}

	observed, err := a.observedTimeline(ctx, norm)
	if err != nil {
		return nil, err
	}
	observedKey := "observed|" + norm.traceID + "|" + norm.logID

	reported, reportedKey := observed, observedKey
	if profile.IsSimulated() {
		simulated, key, err := a.simulatedTimeline(ctx, norm, profile)
		switch {
		case err == nil:
			reported, reportedKey = simulated, key
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			reason := "simulation"
			if graph.IsConstructionError(err) {
				reason = "graph"
			}
			a.logger.Warn("simulation failed, using observed timeline",
				logging.Mode(method), logging.String("reason", reason), logging.Error(err))
			if a.metrics != nil {
				a.metrics.RecordSimulationFallback(reason)
			}
		}
	}

	values, err := a.extract(ctx, norm.trace, map[string]*vitals.Timeline{
		observedKey: observed,
		reportedKey: reported,
	}, []string{observedKey, reportedKey})
	if err != nil {
		return nil, err
	}

	res = make(Result)
	for _, name := range MetricNames() {
		res[name] = MetricValue{
			Value:         values[reportedKey][name],
			ObservedValue: values[observedKey][name],
		}
	}
	return res, nil
}

func (a *Auditor) normalize(ctx context.Context, in *artifacts.Artifacts) (*inputs, error) {
	norm := &inputs{traceID: in.Trace.ID.String(), logID: in.NetworkLog.ID.String()}

	processed, err := computed.Get(ctx, a.cache, computed.KindProcessedTrace, norm.traceID,
		func() (*trace.Processed, error) { return trace.Process(in.Trace) })
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		// Without navigation start nothing can be measured.
		if errors.Is(err, trace.ErrNoNavigationStart) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", trace.ErrNoNavigationStart, err)
	}
	norm.trace = processed

	records, err := computed.Get(ctx, a.cache, computed.KindNormalizedRecords, norm.logID,
		func() ([]*network.Record, error) { return network.Normalize(in.NetworkLog) })
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		a.logger.Warn("network log unusable, continuing without requests", logging.Error(err))
	}
	norm.records = records
	return norm, nil
}

func (a *Auditor) observedTimeline(ctx context.Context, norm *inputs) (*vitals.Timeline, error) {
	return computed.Get(ctx, a.cache, computed.KindTimeline, "observed|"+norm.traceID+"|"+norm.logID,
		func() (*vitals.Timeline, error) {
			return vitals.ObservedTimeline(norm.trace, norm.records), nil
		})
}

// simulatedTimeline builds (or reuses) the graph and simulation for the
// artifacts under profile and returns the simulated timeline with its key.
func (a *Auditor) simulatedTimeline(ctx context.Context, norm *inputs, profile throttling.Profile) (*vitals.Timeline, string, error) {
	graphKey := norm.traceID + "|" + norm.logID
	g, err := computed.Get(ctx, a.cache, computed.KindGraph, graphKey, func() (*graph.Graph, error) {
		return a.buildGraph(norm)
	})
	if err != nil {
		return nil, "", err
	}

	simKey := graphKey + "|" + profile.Key()
	res, err := computed.Get(ctx, a.cache, computed.KindSimulation, simKey, func() (*simulator.Result, error) {
		return a.simulate(g, norm.records, profile)
	})
	if err != nil {
		return nil, "", err
	}

	tlKey := "simulated|" + simKey
	tl, err := computed.Get(ctx, a.cache, computed.KindTimeline, tlKey, func() (*vitals.Timeline, error) {
		return vitals.SimulatedTimeline(g, res), nil
	})
	return tl, tlKey, err
}

func (a *Auditor) buildGraph(norm *inputs) (*graph.Graph, error) {
	started := time.Now()
	p := norm.trace
	in := graph.Input{
		Records:                norm.records,
		Tasks:                  p.Tasks,
		NavigationStartMs:      p.NavigationStartUs / 1000,
		FirstContentfulPaint:   p.FirstContentfulPaint,
		LargestContentfulPaint: p.LargestContentfulPaint,
	}
	g, err := graph.BuildWithFallback(in, graph.Options{}, a.logger)

	if a.metrics != nil {
		var netNodes, cpuNodes, relaxed int
		if g != nil {
			netNodes, cpuNodes, relaxed = len(g.NetworkNodes()), len(g.CPUNodes()), g.RelaxedLinks
		}
		a.metrics.RecordGraphBuild(err, time.Since(started), netNodes, cpuNodes, relaxed)
	}
	return g, err
}

func (a *Auditor) simulate(g *graph.Graph, records []*network.Record, profile throttling.Profile) (*simulator.Result, error) {
	timer := logging.StartTimer(a.logger, "simulation", logging.Count(g.Len()))
	started := time.Now()

	rtts := network.EstimateRTTByOrigin(records)
	sim := simulator.New(simulator.Options{
		Profile:                    profile,
		AdditionalRTTByOrigin:      network.AdditionalRTTByOrigin(rtts),
		ServerResponseTimeByOrigin: network.MedianServerResponseTimes(network.EstimateServerResponseTimeByOrigin(records, rtts)),
		Logger:                     a.logger,
	})
	res, err := sim.Simulate(g)

	if a.metrics != nil {
		events, end := 0, 0.0
		if res != nil {
			events, end = res.Events, res.EndTime
		}
		a.metrics.RecordSimulation(err, time.Since(started), events, end)
	}
	if err != nil {
		timer.EndError(err)
		return nil, err
	}
	timer.End()
	return res, nil
}

type extraction struct {
	timelineKey string
	extractor   vitals.Extractor
}

// extract runs every extractor against each distinct timeline on the
// worker pool. Failures are logged and leave that metric nil.
func (a *Auditor) extract(ctx context.Context, p *trace.Processed, timelines map[string]*vitals.Timeline, keys []string) (map[string]map[string]*float64, error) {
	var jobs []extraction
	seen := make(map[string]bool)
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		for _, ex := range vitals.Extractors() {
			jobs = append(jobs, extraction{timelineKey: key, extractor: ex})
		}
	}

	values, err := parallel.Map(a.workers, len(jobs), a.logger, func(i int) *float64 {
		job := jobs[i]
		in := vitals.Inputs{Timeline: timelines[job.timelineKey], Trace: p}
		v, err := computed.Get(ctx, a.cache, computed.KindMetric, job.extractor.Name+"|"+job.timelineKey,
			func() (*float64, error) { return vitals.Run(job.extractor, in) })
		a.recordExtraction(job.extractor.Name, v, err)
		if err != nil {
			a.logger.Warn("metric extraction failed", logging.Metric(job.extractor.Name), logging.Error(err))
			return nil
		}
		return v
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]map[string]*float64, len(seen))
	for i, job := range jobs {
		if out[job.timelineKey] == nil {
			out[job.timelineKey] = make(map[string]*float64)
		}
		out[job.timelineKey][job.extractor.Name] = values[i]
	}
	return out, nil
}

func (a *Auditor) recordExtraction(name string, v *float64, err error) {
	if a.metrics == nil {
		return
	}
	switch {
	case err != nil:
		a.metrics.RecordExtraction(name, metrics.ExtractError)
	case v == nil:
		a.metrics.RecordExtraction(name, metrics.ExtractUnavailable)
	default:
		a.metrics.RecordExtraction(name, metrics.ExtractOK)
	}
}
