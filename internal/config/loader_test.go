package config

import (
	"os"
	"path/filepath"
	"testing"

	"llamaworker/llmerr"
	"llamaworker/sampler"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadModelDefaults(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "model.toml", `
gpu_layers = 32
main_gpu = 0
mmap = true
mlock = false

[context]
seed = 42
context_size_tokens = 2048
batch_size_tokens = 512
rope_freq_base = 10000
rope_freq_scale = 1
compute_all_logits = true
`)
	got, err := LoadModelDefaults(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.GPULayers != 32 || !got.MMap || got.MLock {
		t.Fatalf("unexpected model defaults: %+v", got)
	}
	if got.Context.ContextSizeTokens != 2048 || got.Context.BatchSizeTokens != 512 || got.Context.Seed != 42 {
		t.Fatalf("unexpected context defaults: %+v", got.Context)
	}
	mp := got.ModelParams()
	if mp.GPULayers != 32 || !mp.MMap {
		t.Fatalf("ModelParams() translation wrong: %+v", mp)
	}
	cp := got.ContextParams()
	if cp.ContextSizeTokens != 2048 || cp.BatchSizeTokens != 512 {
		t.Fatalf("ContextParams() translation wrong: %+v", cp)
	}
}

func TestLoadModelDefaults_Errors(t *testing.T) {
	if _, err := LoadModelDefaults(""); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for empty path, got %v", err)
	}
	if _, err := LoadModelDefaults("/definitely/not/a/real/file-12345.toml"); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for missing file, got %v", err)
	}

	d := t.TempDir()
	badToml := writeTempFile(t, d, "bad.toml", "gpu_layers = not_a_number\n")
	if _, err := LoadModelDefaults(badToml); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for malformed TOML, got %v", err)
	}

	negCtx := writeTempFile(t, d, "neg.toml", "[context]\ncontext_size_tokens = -1\n")
	if _, err := LoadModelDefaults(negCtx); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for negative context size, got %v", err)
	}

	oversizeBatch := writeTempFile(t, d, "oversize.toml", "[context]\ncontext_size_tokens = 10\nbatch_size_tokens = 20\n")
	if _, err := LoadModelDefaults(oversizeBatch); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for batch exceeding context size, got %v", err)
	}
}

func TestLoadSamplerPreset(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "preset.yaml", `
samplers:
  - name: top-k
    params:
      k: 40
  - name: top-p
    params:
      p: 0.9
  - name: temperature
    params:
      value: 0.7
  - name: probabilistic
`)
	chain, err := LoadSamplerPreset(p, sampler.DefaultRegistry())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chain) != 4 {
		t.Fatalf("expected 4 samplers in chain, got %d", len(chain))
	}
	if _, ok := chain[0].(sampler.TopK); !ok {
		t.Fatalf("expected first sampler to be TopK, got %T", chain[0])
	}
	if _, ok := chain[3].(sampler.Probabilistic); !ok {
		t.Fatalf("expected last sampler to be Probabilistic, got %T", chain[3])
	}
}

func TestLoadSamplerPreset_Errors(t *testing.T) {
	if _, err := LoadSamplerPreset("", sampler.DefaultRegistry()); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for empty path, got %v", err)
	}
	if _, err := LoadSamplerPreset("/definitely/not/a/real/file-99.yaml", sampler.DefaultRegistry()); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for missing file, got %v", err)
	}

	d := t.TempDir()
	empty := writeTempFile(t, d, "empty.yaml", "samplers: []\n")
	if _, err := LoadSamplerPreset(empty, sampler.DefaultRegistry()); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for empty sampler list, got %v", err)
	}

	unknown := writeTempFile(t, d, "unknown.yaml", "samplers:\n  - name: not-a-real-sampler\n")
	if _, err := LoadSamplerPreset(unknown, sampler.DefaultRegistry()); !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for unknown sampler name, got %v", err)
	}

	bad := writeTempFile(t, d, "bad.yaml", "samplers: [this is not a list of maps\n")
	if _, err := LoadSamplerPreset(bad, sampler.DefaultRegistry()); err == nil {
		t.Fatalf("expected error for malformed YAML")
	}
}
