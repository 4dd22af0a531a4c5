package sluice

// Schema declares a stage chain that can be built dynamically against a
// Factory's registered components.
type Schema struct {
	// Version tracks the schema version for change management
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	Stages []StageNode `json:"stages" yaml:"stages"`
}

// StageNode is a single stage in the chain. Exactly one of the stage-kind
// fields (apply, filter, sorted, recover, bridge, stage) must be set.
type StageNode struct {
	// Apply references a registered pipz processor run per element.
	Apply string `json:"apply,omitempty" yaml:"apply,omitempty"`
	// Filter references a registered predicate.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
	// Sorted references a registered ordering.
	Sorted string `json:"sorted,omitempty" yaml:"sorted,omitempty"`
	// Recover references a registered fallback applied via HandleError.
	Recover string `json:"recover,omitempty" yaml:"recover,omitempty"`
	// Bridge switches the execution strategy: "sequential" or "parallel".
	Bridge string `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	// Stage references a registered opaque stage, e.g. an FSM attachment.
	Stage string `json:"stage,omitempty" yaml:"stage,omitempty"`

	// Attempts wraps an apply stage's per-element effect with retries.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	// Backoff is the base wait between retry attempts, as a duration string.
	Backoff string `json:"backoff,omitempty" yaml:"backoff,omitempty"`
	// Timeout bounds an apply stage's per-element effect, as a duration string.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Workers limits a parallel bridge's concurrency.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// kind returns the stage-kind field that is set, or "" when none or
// several are set.
func (n *StageNode) kind() string {
	kind := ""
	count := 0
	for _, k := range []struct {
		name  string
		value string
	}{
		{"apply", n.Apply},
		{"filter", n.Filter},
		{"sorted", n.Sorted},
		{"recover", n.Recover},
		{"bridge", n.Bridge},
		{"stage", n.Stage},
	} {
		if k.value != "" {
			kind = k.name
			count++
		}
	}
	if count != 1 {
		return ""
	}
	return kind
}
