package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_SortsSignals(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: sorted
description: "signals out of order"
duration_ms: 1000
signals:
  - { at_ms: 500, type: face }
  - { at_ms: 0, type: trigger }
  - { at_ms: 500, type: classify, label: Artikulirano }
`))
	require.NoError(t, err)
	require.Len(t, s.Signals, 3)
	assert.Equal(t, SignalTrigger, s.Signals[0].Type)
	assert.Equal(t, SignalFace, s.Signals[1].Type)
	assert.Equal(t, SignalClassify, s.Signals[2].Type)
}

func TestParseScenario_Overrides(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: fast
description: "tight cadence"
policy:
  success_threshold: 1
  escalation_gate_ms: 1000
  tick_interval_ms: 10
duration_ms: 1000
signals:
  - { at_ms: 0, type: trigger }
`))
	require.NoError(t, err)
	require.NotNil(t, s.Policy.SuccessThreshold)
	assert.Equal(t, 1, *s.Policy.SuccessThreshold)
	assert.Equal(t, 1000, *s.Policy.EscalationGateMS)
	assert.Equal(t, 10, *s.Policy.TickIntervalMS)
}

func TestParseScenario_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "name: x\ndescription: y\nduration_ms: 10\nsignal: []\n",
		"missing name":   "description: y\nduration_ms: 10\nsignals: [{at_ms: 0, type: trigger}]\n",
		"missing desc":   "name: x\nduration_ms: 10\nsignals: [{at_ms: 0, type: trigger}]\n",
		"no duration":    "name: x\ndescription: y\nsignals: [{at_ms: 0, type: trigger}]\n",
		"no signals":     "name: x\ndescription: y\nduration_ms: 10\n",
		"late signal":    "name: x\ndescription: y\nduration_ms: 10\nsignals: [{at_ms: 11, type: trigger}]\n",
		"unknown signal": "name: x\ndescription: y\nduration_ms: 10\nsignals: [{at_ms: 0, type: wave}]\n",
		"no label":       "name: x\ndescription: y\nduration_ms: 10\nsignals: [{at_ms: 0, type: classify}]\n",
		"bad assertion":  "name: x\ndescription: y\nduration_ms: 10\nsignals: [{at_ms: 0, type: trigger}]\nassertions: [{type: trace_count}]\n",
		"order one tag":  "name: x\ndescription: y\nduration_ms: 10\nsignals: [{at_ms: 0, type: trigger}]\nassertions: [{type: log_order, tags: [CS]}]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/absent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
