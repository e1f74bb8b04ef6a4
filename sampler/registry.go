package sampler

import (
	"fmt"

	"llamaworker/llmerr"
)

// Spec is the YAML-decodable shape of one sampler-chain entry, as loaded
// by internal/config's sampler preset reader.
type Spec struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Registry resolves Specs into live Samplers by name.
type Registry map[string]func(params map[string]any) (Sampler, error)

// DefaultRegistry covers the samplers shipped with this package.
func DefaultRegistry() Registry {
	return Registry{
		"greedy":             func(map[string]any) (Sampler, error) { return Greedy{}, nil },
		"probabilistic":      func(map[string]any) (Sampler, error) { return Probabilistic{}, nil },
		"top-k":              newTopK,
		"top-p":              newTopP,
		"temperature":        newTemperature,
		"repetition-penalty": newRepetitionPenalty,
	}
}

// Resolve turns an ordered list of Specs into a live sampler chain.
func (r Registry) Resolve(specs []Spec) ([]Sampler, error) {
	chain := make([]Sampler, 0, len(specs))
	for i, spec := range specs {
		build, ok := r[spec.Name]
		if !ok {
			return nil, llmerr.New(llmerr.InvalidArgument, fmt.Sprintf("sampler preset entry %d: unknown sampler %q", i, spec.Name))
		}
		s, err := build(spec.Params)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidArgument, fmt.Sprintf("sampler preset entry %d (%s)", i, spec.Name), err)
		}
		chain = append(chain, s)
	}
	return chain, nil
}

func newTopK(params map[string]any) (Sampler, error) {
	k, err := intParam(params, "k", 40)
	if err != nil {
		return nil, err
	}
	return TopK{K: k}, nil
}

func newTopP(params map[string]any) (Sampler, error) {
	p, err := floatParam(params, "p", 0.95)
	if err != nil {
		return nil, err
	}
	return TopP{P: p}, nil
}

func newTemperature(params map[string]any) (Sampler, error) {
	v, err := floatParam(params, "value", 0.8)
	if err != nil {
		return nil, err
	}
	return Temperature{Value: v}, nil
}

func newRepetitionPenalty(params map[string]any) (Sampler, error) {
	penalty, err := floatParam(params, "penalty", 1.1)
	if err != nil {
		return nil, err
	}
	lastN, err := intParam(params, "last_n", 64)
	if err != nil {
		return nil, err
	}
	return RepetitionPenalty{Penalty: penalty, LastN: lastN}, nil
}

func intParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("param %q must be a number, got %T", key, v)
	}
}

func floatParam(params map[string]any, key string, def float32) (float32, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return float32(n), nil
	case int:
		return float32(n), nil
	default:
		return 0, fmt.Errorf("param %q must be a number, got %T", key, v)
	}
}
