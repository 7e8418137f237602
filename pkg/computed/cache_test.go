package computed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"

	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/metrics"
)

func TestCache_MemoizesValues(t *testing.T) {
	c := New(nil, logging.NewNopLogger())
	var calls int32
	compute := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := Get(context.Background(), c, KindGraph, "trace-1", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err := Get(context.Background(), c, KindSimulation, "trace-1", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "kinds do not share entries")
	assert.Equal(t, 2, c.Len())
}

func TestCache_MemoizesErrors(t *testing.T) {
	c := New(nil, nil)
	boom := errors.New("cycle")
	var calls int32
	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, err := c.Request(context.Background(), KindGraph, "x", compute)
	assert.ErrorIs(t, err, boom)
	_, err = c.Request(context.Background(), KindGraph, "x", compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_ConcurrentRequestsCollapse(t *testing.T) {
	reg := metrics.NewRegistry()
	c := New(reg, logging.NewNopLogger())

	var calls int32
	release := make(chan struct{})
	compute := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "simulated", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Get(context.Background(), c, KindSimulation, "graph|mobile", compute)
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "identical keys must trigger one computation")
	for i, v := range results {
		assert.Equal(t, "simulated", v, "caller %d", i)
	}

	miss, err := reg.CacheRequestsTotal.GetMetricWithLabelValues(string(KindSimulation), metrics.CacheMiss)
	require.NoError(t, err)
	var m dto.Metric
	require.NoError(t, miss.Write(&m))
	assert.Equal(t, 1.0, m.Counter.GetValue())
}

func TestCache_CancelledCallerLeavesComputationRunning(t *testing.T) {
	c := New(nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Request(ctx, KindGraph, "slow", compute)
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	v, err := c.Request(context.Background(), KindGraph, "slow", compute)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_PanicBecomesError(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Request(context.Background(), KindMetric, "bad", func() (any, error) {
		panic("nil graph")
	})
	assert.ErrorContains(t, err, "panicked")
}

func TestGet_TypeMismatch(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Request(context.Background(), KindTimeline, "t", func() (any, error) { return 1, nil })
	require.NoError(t, err)

	_, err = Get(context.Background(), c, KindTimeline, "t", func() (string, error) { return "", nil })
	assert.ErrorContains(t, err, "has type int")
}
