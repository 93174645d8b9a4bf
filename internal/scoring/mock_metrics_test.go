package scoring

import "sync"

// MockMetrics implements Recorder for testing
type MockMetrics struct {
	mu                sync.Mutex
	decisions         map[string]int
	scores            []float64
	failures          int
	validationErrors  int
	decisionLogErrors int
}

func (m *MockMetrics) PredictionObserve(decision string, probability float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decisions == nil {
		m.decisions = make(map[string]int)
	}
	m.decisions[decision]++
	m.scores = append(m.scores, probability)
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) ValidationErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationErrors++
}

func (m *MockMetrics) DecisionLogErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisionLogErrors++
}

func (m *MockMetrics) Decisions(d Decision) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decisions[string(d)]
}
