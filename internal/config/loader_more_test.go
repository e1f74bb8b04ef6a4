package config

import (
	"testing"

	"llamaworker/sampler"
)

func TestLoadModelDefaults_PartialContextTable(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "partial.toml", "gpu_layers = 10\n")
	got, err := LoadModelDefaults(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Context.ContextSizeTokens != 0 || got.Context.BatchSizeTokens != 0 {
		t.Fatalf("expected zero-valued context defaults when [context] is absent, got %+v", got.Context)
	}
	if got.GPULayers != 10 {
		t.Fatalf("expected gpu_layers to still be read, got %d", got.GPULayers)
	}
}

func TestLoadSamplerPreset_ResolvesInDeclaredOrder(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "ordered.yaml", `
samplers:
  - name: temperature
    params:
      value: 1.0
  - name: top-k
    params:
      k: 5
  - name: greedy
`)
	chain, err := LoadSamplerPreset(p, sampler.DefaultRegistry())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	names := make([]string, len(chain))
	for i, s := range chain {
		switch s.(type) {
		case sampler.Temperature:
			names[i] = "temperature"
		case sampler.TopK:
			names[i] = "top-k"
		case sampler.Greedy:
			names[i] = "greedy"
		default:
			names[i] = "other"
		}
	}
	want := []string{"temperature", "top-k", "greedy"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("chain[%d] = %s, want %s (order must match the preset file)", i, names[i], n)
		}
	}
}

func TestLoadSamplerPreset_BadParamType(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "badparam.yaml", `
samplers:
  - name: top-k
    params:
      k: "forty"
`)
	if _, err := LoadSamplerPreset(p, sampler.DefaultRegistry()); err == nil {
		t.Fatalf("expected error for non-numeric k param")
	}
}
