package port

import "time"

// Chain fetch outcomes reported to MetricsRecorder.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// MetricsRecorder receives engine measurements.
type MetricsRecorder interface {
	ObserveChainFetch(chainID uint64, outcome string, elapsed time.Duration)
	ObserveAggregation(succeeded, failed int, elapsed time.Duration)
	SetPointersSynchronized(synchronized bool)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) ObserveChainFetch(uint64, string, time.Duration) {}
func (NopMetrics) ObserveAggregation(int, int, time.Duration)      {}
func (NopMetrics) SetPointersSynchronized(bool)                    {}
