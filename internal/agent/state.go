package agent

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var stateMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pcfan_state",
	Name:      "state",
	Help:      "Fan agent state (label values are critical, normal)",
}, []string{"state"})

// criticalState latches whether the ambient temperature is above the
// critical threshold. While critical, the fan is pinned at full power
// regardless of curve or override.
type criticalState struct {
	mutex sync.Mutex

	criticalActive    bool
	criticalClearChan chan struct{}
}

func newCriticalState() *criticalState {
	return &criticalState{
		criticalClearChan: make(chan struct{}),
	}
}

// RegisterTemperature updates the critical state from a fresh reading.
// It reports whether the state changed.
func (s *criticalState) RegisterTemperature(temperature, threshold float64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	critical := temperature >= threshold
	changed := critical != s.criticalActive
	s.criticalActive = critical

	if changed && !critical {
		close(s.criticalClearChan)
		s.criticalClearChan = make(chan struct{})
	}

	if s.criticalActive {
		stateMetric.WithLabelValues("critical").Set(1)
		stateMetric.WithLabelValues("normal").Set(0)
	} else {
		stateMetric.WithLabelValues("critical").Set(0)
		stateMetric.WithLabelValues("normal").Set(1)
	}

	return changed
}

func (s *criticalState) CriticalActive() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.criticalActive
}

func (s *criticalState) WaitForCriticalClear(ctx context.Context) error {
	s.mutex.Lock()
	clearChan := s.criticalClearChan
	s.mutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clearChan:
		return nil
	}
}
