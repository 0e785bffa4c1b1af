package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryOrderedBySize(t *testing.T) {
	if len(Registry) != 5 {
		t.Fatalf("registry has %d tiers, want 5", len(Registry))
	}
	for i := 1; i < len(Registry); i++ {
		if Registry[i].SizeBytes <= Registry[i-1].SizeBytes {
			t.Errorf("tier %s (%d bytes) not larger than %s (%d bytes)",
				Registry[i].Tier, Registry[i].SizeBytes,
				Registry[i-1].Tier, Registry[i-1].SizeBytes)
		}
	}
}

func TestRegistryURLs(t *testing.T) {
	for _, info := range Registry {
		for _, url := range []string{info.EncoderURL, info.DecoderURL, info.TokensURL} {
			if !strings.HasPrefix(url, "https://huggingface.co/csukuangfj/sherpa-onnx-whisper-") {
				t.Errorf("tier %s: unexpected url %q", info.Tier, url)
			}
			if !strings.Contains(url, info.ModelName) {
				t.Errorf("tier %s: url %q does not reference model %q", info.Tier, url, info.ModelName)
			}
		}
	}
}

func TestGetTierInfo(t *testing.T) {
	info := GetTierInfo(TierBase)
	if info == nil {
		t.Fatal("base tier missing")
	}
	if !info.Recommended {
		t.Error("base tier must be recommended")
	}

	// Копия: мутация выдачи не портит каталог
	info.Size = "mutated"
	if GetTierInfo(TierBase).Size == "mutated" {
		t.Error("GetTierInfo must return a copy")
	}

	if GetTierInfo(Tier("giant")) != nil {
		t.Error("unknown tier must return nil")
	}
}

func TestRecommendedTier(t *testing.T) {
	if got := RecommendedTier(); got != TierBase {
		t.Errorf("recommended tier = %s, want base", got)
	}
}

func TestParseTier(t *testing.T) {
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if _, err := ParseTier(name); err != nil {
			t.Errorf("ParseTier(%q) failed: %v", name, err)
		}
	}
	for _, name := range []string{"", "Large", "turbo"} {
		if _, err := ParseTier(name); err == nil {
			t.Errorf("ParseTier(%q) must fail", name)
		}
	}
}

func TestPolicy(t *testing.T) {
	p := NewPolicy(TierLarge, TierMedium)
	if p.Allowed(TierLarge) || p.Allowed(TierMedium) {
		t.Error("excluded tiers must not be allowed")
	}
	if !p.Allowed(TierTiny) || !p.Allowed(TierBase) {
		t.Error("non-excluded tiers must be allowed")
	}

	excluded := p.ExcludedTiers()
	if len(excluded) != 2 {
		t.Errorf("excluded = %v", excluded)
	}

	var nilPolicy *Policy
	if !nilPolicy.Allowed(TierLarge) {
		t.Error("nil policy must allow everything")
	}
	if nilPolicy.ExcludedTiers() != nil {
		t.Error("nil policy has no exclusions")
	}
}

func TestDefaultPolicyExcludesLarge(t *testing.T) {
	p := DefaultPolicy()
	if p.Allowed(TierLarge) {
		t.Error("default policy must exclude large")
	}
	for _, tier := range []Tier{TierTiny, TierBase, TierSmall, TierMedium} {
		if !p.Allowed(tier) {
			t.Errorf("default policy must allow %s", tier)
		}
	}
}

func TestManagerTierPaths(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	paths, err := m.TierPaths(TierLarge)
	if err != nil {
		t.Fatal(err)
	}
	// large использует имя модели large-v3
	if !strings.Contains(paths.Encoder, "large-v3") {
		t.Errorf("encoder path = %q", paths.Encoder)
	}
	if !strings.HasSuffix(paths.Tokens, "-tokens.txt") {
		t.Errorf("tokens path = %q", paths.Tokens)
	}

	if _, err := m.TierPaths(Tier("giant")); err == nil {
		t.Error("unknown tier must fail")
	}
}

func TestManagerIsTierDownloaded(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if m.IsTierDownloaded(TierTiny) {
		t.Error("empty dir must not report downloaded")
	}

	paths, _ := m.TierPaths(TierTiny)
	if err := os.MkdirAll(filepath.Dir(paths.Encoder), 0o755); err != nil {
		t.Fatal(err)
	}

	// Частично скачанная модель не считается готовой
	os.WriteFile(paths.Encoder, []byte("onnx"), 0o644)
	if m.IsTierDownloaded(TierTiny) {
		t.Error("partial download must not report downloaded")
	}

	os.WriteFile(paths.Decoder, []byte("onnx"), 0o644)
	os.WriteFile(paths.Tokens, []byte("tokens"), 0o644)
	if !m.IsTierDownloaded(TierTiny) {
		t.Error("complete download must report downloaded")
	}

	// Пустой файл - битая загрузка
	os.WriteFile(paths.Tokens, nil, 0o644)
	if m.IsTierDownloaded(TierTiny) {
		t.Error("empty file must not count as downloaded")
	}
}
