package account

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Flow names one OAuth grant type the orchestrator knows how to drive.
type Flow string

const (
	FlowRefresh  Flow = "refresh"
	FlowPassword Flow = "password"
	FlowCode     Flow = "code"
	FlowDevice   Flow = "device"
)

// DefaultFlowOrder is the order the orchestrator falls back to when neither the
// caller nor the account configures one.
var DefaultFlowOrder = FlowOrder{FlowRefresh, FlowPassword, FlowCode, FlowDevice}

// FlowOrder is an ordered, deduplicated sequence of flows the orchestrator will try.
type FlowOrder []Flow

// ParseFlowOrder accepts either a single bare flow name ("refresh") or a JSON
// array of names (`["refresh","device"]`), mirroring the C agent's parseFlow,
// which took either form depending on whether the string started with '['.
// Duplicates are dropped, keeping the first occurrence.
func ParseFlowOrder(raw string) (FlowOrder, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append(FlowOrder{}, DefaultFlowOrder...), nil
	}

	var names []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("invalid flow order array %q: %w", raw, err)
		}
	} else {
		names = []string{raw}
	}

	order := make(FlowOrder, 0, len(names))
	seen := make(map[Flow]bool, len(names))
	for _, n := range names {
		f := Flow(strings.TrimSpace(n))
		if !f.valid() {
			return nil, fmt.Errorf("unknown flow %q", n)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		order = append(order, f)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("flow order must name at least one flow")
	}
	return order, nil
}

func (f Flow) valid() bool {
	switch f {
	case FlowRefresh, FlowPassword, FlowCode, FlowDevice:
		return true
	default:
		return false
	}
}

// String renders the order as a JSON array, the canonical on-disk form.
func (o FlowOrder) String() string {
	parts := make([]string, len(o))
	for i, f := range o {
		parts[i] = string(f)
	}
	b, _ := json.Marshal(parts)
	return string(b)
}
