package metrics

import (
	"sync"
	"time"
)

// MetricsCollector keeps process-local counters and rolling latency windows.
// It is deliberately small; the /metrics endpoint serializes whatever is
// here as JSON.
type MetricsCollector struct {
	counters  map[string]int64
	latencies map[string][]time.Duration
	mutex     sync.RWMutex
}

const latencyWindow = 100

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

func (mc *MetricsCollector) IncrementCounter(name string) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.counters[name]++
}

func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	window := append(mc.latencies[name], duration)
	if len(window) > latencyWindow {
		window = window[len(window)-latencyWindow:]
	}
	mc.latencies[name] = window
}

func (mc *MetricsCollector) GetCounters() map[string]int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	counters := make(map[string]int64, len(mc.counters))
	for name, value := range mc.counters {
		counters[name] = value
	}
	return counters
}

// GetLatencies returns the average latency in milliseconds per operation
// over the rolling window.
func (mc *MetricsCollector) GetLatencies() map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]float64, len(mc.latencies))
	for name, durations := range mc.latencies {
		if len(durations) == 0 {
			continue
		}
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		result[name] = float64(sum) / float64(len(durations)) / float64(time.Millisecond)
	}
	return result
}
