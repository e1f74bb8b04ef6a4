// Package config loads the two ambient file formats this module reads:
// model/context parameter defaults (TOML) and sampler-chain presets
// (YAML). Both loaders validate eagerly at load time rather than
// deferring to first use, so a malformed file fails fast at startup
// rather than mid-request.
package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llamaworker/internal/engine"
	"llamaworker/llmerr"
	"llamaworker/sampler"
)

// ModelDefaults holds the defaults a LoadModel/NewContext call can be
// built from instead of constructing engine.ModelParams/ContextParams in
// code.
type ModelDefaults struct {
	GPULayers int  `toml:"gpu_layers"`
	MainGPU   int  `toml:"main_gpu"`
	VocabOnly bool `toml:"vocab_only"`
	MMap      bool `toml:"mmap"`
	MLock     bool `toml:"mlock"`

	Context ContextDefaults `toml:"context"`
}

// ContextDefaults is the nested [context] table of a model defaults file.
type ContextDefaults struct {
	Seed              uint32  `toml:"seed"`
	ContextSizeTokens int     `toml:"context_size_tokens"`
	BatchSizeTokens   int     `toml:"batch_size_tokens"`
	RopeFreqBase      float32 `toml:"rope_freq_base"`
	RopeFreqScale     float32 `toml:"rope_freq_scale"`
	MulMatQ           bool    `toml:"mul_mat_q"`
	F16KV             bool    `toml:"f16_kv"`
	ComputeAllLogits  bool    `toml:"compute_all_logits"`
	EmbeddingOnly     bool    `toml:"embedding_only"`
}

// ModelParams translates the TOML document's model block into the
// façade's parameter struct.
func (d ModelDefaults) ModelParams() engine.ModelParams {
	return engine.ModelParams{
		GPULayers: d.GPULayers,
		MainGPU:   d.MainGPU,
		VocabOnly: d.VocabOnly,
		MMap:      d.MMap,
		MLock:     d.MLock,
	}
}

// ContextParams translates the nested [context] table into the façade's
// parameter struct.
func (d ModelDefaults) ContextParams() engine.ContextParams {
	c := d.Context
	return engine.ContextParams{
		Seed:              c.Seed,
		ContextSizeTokens: c.ContextSizeTokens,
		BatchSizeTokens:   c.BatchSizeTokens,
		RopeFreqBase:      c.RopeFreqBase,
		RopeFreqScale:     c.RopeFreqScale,
		MulMatQ:           c.MulMatQ,
		F16KV:             c.F16KV,
		ComputeAllLogits:  c.ComputeAllLogits,
		EmbeddingOnly:     c.EmbeddingOnly,
	}
}

// LoadModelDefaults reads and validates a TOML model-defaults document.
func LoadModelDefaults(path string) (ModelDefaults, error) {
	var d ModelDefaults
	if path == "" {
		return d, llmerr.New(llmerr.InvalidArgument, "empty model defaults path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return d, llmerr.Wrap(llmerr.InvalidArgument, "reading model defaults file", err)
	}
	if err := toml.Unmarshal(b, &d); err != nil {
		return d, llmerr.Wrap(llmerr.InvalidArgument, "parsing model defaults TOML", err)
	}
	if d.Context.ContextSizeTokens < 0 {
		return d, llmerr.New(llmerr.InvalidArgument, "context.context_size_tokens must not be negative")
	}
	if d.Context.BatchSizeTokens < 0 {
		return d, llmerr.New(llmerr.InvalidArgument, "context.batch_size_tokens must not be negative")
	}
	if d.Context.ContextSizeTokens > 0 && d.Context.BatchSizeTokens > d.Context.ContextSizeTokens {
		return d, llmerr.New(llmerr.InvalidArgument, "context.batch_size_tokens must not exceed context.context_size_tokens")
	}
	return d, nil
}

// SamplerPreset is the YAML-decodable shape of a sampler-chain preset
// file: an ordered list of sampler specs resolved against a
// sampler.Registry.
type SamplerPreset struct {
	Samplers []sampler.Spec `yaml:"samplers"`
}

// LoadSamplerPreset reads a YAML sampler preset and resolves it against
// reg into a live sampler chain. Validation (unknown sampler name, bad
// param types) happens here, eagerly, rather than at the first Generate
// call.
func LoadSamplerPreset(path string, reg sampler.Registry) ([]sampler.Sampler, error) {
	if path == "" {
		return nil, llmerr.New(llmerr.InvalidArgument, "empty sampler preset path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidArgument, "reading sampler preset file", err)
	}
	var preset SamplerPreset
	if err := yaml.Unmarshal(b, &preset); err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidArgument, "parsing sampler preset YAML", err)
	}
	if len(preset.Samplers) == 0 {
		return nil, llmerr.New(llmerr.InvalidArgument, fmt.Sprintf("sampler preset %q lists no samplers", path))
	}
	return reg.Resolve(preset.Samplers)
}
