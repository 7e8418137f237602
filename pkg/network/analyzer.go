package network

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
)

// OriginSummary aggregates samples observed for one origin
type OriginSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// TTFBRTTMultiplier is the share of a time to first byte taken as round
// trip time when an origin has no connection setup samples. The rest is
// server think time.
const TTFBRTTMultiplier = 0.3

// EstimateRTTByOrigin estimates the round trip time to each origin from
// observed connection setup. The TCP connect phase (without TLS) is one
// round trip; when no fresh connection was observed a coarse share of the
// time to first byte stands in.
func EstimateRTTByOrigin(records []*Record) map[string]OriginSummary {
	connectSamples := make(map[string][]float64)
	ttfbSamples := make(map[string][]float64)

	for _, rec := range records {
		if rec.IsNonNetworkProtocol() || rec.IsCached() || rec.Failed {
			continue
		}
		origin := rec.Origin()
		if origin == "" {
			continue
		}
		tcp := rec.Timing.Connect
		if rec.Timing.SSL > 0 {
			tcp -= rec.Timing.SSL
		}
		if !rec.ConnectionReused && tcp > 0 {
			connectSamples[origin] = append(connectSamples[origin], tcp)
		}
		if rec.Timing.Wait > 0 {
			ttfbSamples[origin] = append(ttfbSamples[origin], rec.Timing.Wait*TTFBRTTMultiplier)
		}
	}

	out := make(map[string]OriginSummary)
	for origin, samples := range ttfbSamples {
		out[origin] = summarize(samples)
	}
	// Connect samples are the better estimate and win when present.
	for origin, samples := range connectSamples {
		out[origin] = summarize(samples)
	}
	return out
}

// EstimateServerResponseTimeByOrigin estimates server think time per origin
// as time to first byte minus the origin's RTT, floored at zero.
func EstimateServerResponseTimeByOrigin(records []*Record, rtts map[string]OriginSummary) map[string]OriginSummary {
	samples := make(map[string][]float64)
	for _, rec := range records {
		if rec.IsNonNetworkProtocol() || rec.IsCached() || rec.Failed || rec.Timing.Wait <= 0 {
			continue
		}
		origin := rec.Origin()
		rtt := rtts[origin].Min
		samples[origin] = append(samples[origin], math.Max(0, rec.Timing.Wait-rtt))
	}

	out := make(map[string]OriginSummary, len(samples))
	for origin, s := range samples {
		out[origin] = summarize(s)
	}
	return out
}

// AdditionalRTTByOrigin returns each origin's RTT above the fastest origin.
// The simulator adds these on top of the profile RTT so relative distance
// between origins survives throttling.
func AdditionalRTTByOrigin(rtts map[string]OriginSummary) map[string]float64 {
	if len(rtts) == 0 {
		return map[string]float64{}
	}
	fastest := math.Inf(1)
	for _, s := range rtts {
		fastest = math.Min(fastest, s.Min)
	}
	out := make(map[string]float64, len(rtts))
	for origin, s := range rtts {
		out[origin] = s.Min - fastest
	}
	return out
}

// MedianServerResponseTimes flattens per-origin summaries to their medians
func MedianServerResponseTimes(summaries map[string]OriginSummary) map[string]float64 {
	out := make(map[string]float64, len(summaries))
	for origin, s := range summaries {
		out[origin] = s.Median
	}
	return out
}

func summarize(samples []float64) OriginSummary {
	if len(samples) == 0 {
		return OriginSummary{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return OriginSummary{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: Median(sorted),
		Count:  len(sorted),
	}
}

// Median returns the median of already sorted values
func Median[T constraints.Integer | constraints.Float](sorted []T) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}
