package ai

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubGenerator struct{ name string }

func (s stubGenerator) Name() string { return s.name }
func (s stubGenerator) Generate(context.Context, string) (string, error) {
	return "[]", nil
}

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()
	r.Register("stub", func(cfg ProviderConfig) (TextGenerator, error) {
		return stubGenerator{name: "stub-" + cfg.Model}, nil
	})

	p, err := r.GetProvider("stub", ProviderConfig{Model: "x"})
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if p.Name() != "stub-x" {
		t.Errorf("Name() = %q", p.Name())
	}

	_, err = r.GetProvider("missing", ProviderConfig{})
	var notFound *ErrProviderNotFound
	if !errors.As(err, &notFound) || notFound.Name != "missing" {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	t.Parallel()

	if got, want := NewDefaultRegistry().Names(), []string{"anthropic", "openai"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewAnthropicProvider(ProviderConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestProviderConfig_Limiter(t *testing.T) {
	t.Parallel()

	if (ProviderConfig{RequestsPerMinute: -1}).limiter() != nil {
		t.Error("negative rate should disable limiting")
	}
	if (ProviderConfig{}).limiter() == nil {
		t.Error("zero rate should select the default limiter")
	}
	if got := (ProviderConfig{}).timeout(); got != DefaultTimeout {
		t.Errorf("timeout() = %v, want %v", got, DefaultTimeout)
	}
}
