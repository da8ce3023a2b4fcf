package formats

import (
	"errors"
	"fmt"
)

// Config is the ordered list of parameters describing one input format.
//
// It is loaded once per request and read-only thereafter. A well-formed
// configuration carries at most one MonitoringPoint and at most one
// ObservedPropertySymbol parameter; Date and ObservedPropertyValue
// parameters may repeat to describe composite timestamps and multiple
// measured channels.
type Config struct {
	Parameters []Parameter
}

var errNoParameters = errors.New("format configuration has no parameters")

// NewConfig builds a Config from raw configuration entries, constructing
// each parameter and enforcing the cardinality invariants.
func NewConfig(entries []map[string]any) (*Config, error) {
	if len(entries) == 0 {
		return nil, errNoParameters
	}

	cfg := Config{Parameters: make([]Parameter, 0, len(entries))}
	var points, symbols int
	for i, entry := range entries {
		p, err := FromConfig(entry)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}

		switch p.Type {
		case MonitoringPoint:
			points++
		case ObservedPropertySymbol:
			symbols++
		}
		cfg.Parameters = append(cfg.Parameters, p)
	}

	if points > 1 {
		return nil, fmt.Errorf("format configuration has %d MonitoringPoint parameters, at most one is allowed", points)
	}
	if symbols > 1 {
		return nil, fmt.Errorf("format configuration has %d ObservedPropertySymbol parameters, at most one is allowed", symbols)
	}

	return &cfg, nil
}

// ByType returns the parameters of the given variant, in configuration order.
func (c *Config) ByType(t ParameterType) []Parameter {
	var out []Parameter
	for _, p := range c.Parameters {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// MonitoringPointParameter returns the single MonitoringPoint parameter, if
// the configuration has one.
func (c *Config) MonitoringPointParameter() (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Type == MonitoringPoint {
			return p, true
		}
	}
	return Parameter{}, false
}

// SymbolParameter returns the single ObservedPropertySymbol parameter, if
// the configuration has one.
func (c *Config) SymbolParameter() (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Type == ObservedPropertySymbol {
			return p, true
		}
	}
	return Parameter{}, false
}
