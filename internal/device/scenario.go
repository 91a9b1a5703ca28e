package device

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of device events for replay off-device.
type Scenario struct {
	PolicyAccess bool   `yaml:"policy_access"`
	Filter       string `yaml:"filter"`
	CustomReply  string `yaml:"custom_reply"`
	Steps        []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Call   *CallStateChange `yaml:"call,omitempty"`
	SMS    *SMS             `yaml:"sms,omitempty"`
	PDUs   []string         `yaml:"pdus,omitempty"`
	Filter string           `yaml:"filter,omitempty"`
	Wait   time.Duration    `yaml:"wait,omitempty"`
}

func (s Step) validate() error {
	n := 0
	for _, set := range []bool{s.Call != nil, s.SMS != nil, len(s.PDUs) > 0, s.Filter != "", s.Wait > 0} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("step must set exactly one action, got %d", n)
	}
	if s.Filter != "" && ParseFilter(s.Filter) == FilterUnknown {
		return fmt.Errorf("unknown filter %q", s.Filter)
	}
	return nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Filter == "" {
		sc.Filter = FilterAll.String()
	}
	if ParseFilter(sc.Filter) == FilterUnknown {
		return nil, fmt.Errorf("parse scenario: unknown filter %q", sc.Filter)
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("parse scenario: step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// Apply sets the scenario's starting platform state.
func (sc *Scenario) Apply(policy *SimulatedPolicy, prefs Preferences) error {
	policy.SetAccess(sc.PolicyAccess)
	policy.SetFilter(ParseFilter(sc.Filter))

	if sc.CustomReply != "" {
		if err := prefs.Set(PrefCustomReply, sc.CustomReply); err != nil {
			return err
		}
	}
	return nil
}

// Replay feeds the steps to a running agent, waiting for each one to be
// fully processed before the next.
func (sc *Scenario) Replay(ctx context.Context, a *Agent, policy *SimulatedPolicy) error {
	for i, st := range sc.Steps {
		var err error
		switch {
		case st.Call != nil:
			err = a.SubmitCallState(ctx, *st.Call)
		case st.SMS != nil:
			err = a.SubmitSMS(ctx, *st.SMS)
		case len(st.PDUs) > 0:
			pdus := make([][]byte, 0, len(st.PDUs))
			for _, h := range st.PDUs {
				b, derr := DecodeHexPDU(h)
				if derr != nil {
					return fmt.Errorf("step %d: %w", i+1, derr)
				}
				pdus = append(pdus, b)
			}
			err = a.SubmitPDUs(ctx, pdus)
		case st.Filter != "":
			policy.SetFilter(ParseFilter(st.Filter))
		case st.Wait > 0:
			err = sleep(ctx, st.Wait)
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := a.Wait(ctx); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
