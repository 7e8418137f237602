package simulator

// DNSCache remembers when each origin's lookup completes so only the first
// connection to an origin pays for resolution.
type DNSCache struct {
	multiplier float64
	resolvedAt map[string]float64
}

// NewDNSCache creates a cache charging multiplier x RTT per lookup
func NewDNSCache(multiplier float64) *DNSCache {
	return &DNSCache{multiplier: multiplier, resolvedAt: make(map[string]float64)}
}

// Resolve returns how long a connection opened at simTime waits for the
// origin's address. A lookup already in flight is joined, not repeated.
func (c *DNSCache) Resolve(origin string, rtt, simTime float64) float64 {
	if at, ok := c.resolvedAt[origin]; ok {
		if at <= simTime {
			return 0
		}
		return at - simTime
	}
	cost := c.multiplier * rtt
	c.resolvedAt[origin] = simTime + cost
	return cost
}
