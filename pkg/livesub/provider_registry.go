package livesub

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/livesub/pkg/recognition"
	"github.com/harunnryd/livesub/pkg/translator"
)

type EngineFactory func(cfg Config) (recognition.Engine, error)
type TranslationFactory func(cfg Config) (translator.Provider, error)

type ProviderRegistry struct {
	engines     map[string]EngineFactory
	translation map[string]TranslationFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		engines:     make(map[string]EngineFactory),
		translation: make(map[string]TranslationFactory),
	}
}

func (r *ProviderRegistry) RegisterEngine(name string, factory EngineFactory) {
	r.engines[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTranslation(name string, factory TranslationFactory) {
	r.translation[providerKey(name)] = factory
}

func (r *ProviderRegistry) BuildEngine(provider string, cfg Config) (recognition.Engine, error) {
	fn := r.engines[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("recognition provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTranslation(provider string, cfg Config) (translator.Provider, error) {
	fn := r.translation[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("translation provider not registered: %s", provider)
	}
	return fn(cfg)
}

// Engines lists registered recognition providers in name order.
func (r *ProviderRegistry) Engines() []string {
	return sortedKeys(r.engines)
}

func (r *ProviderRegistry) Translations() []string {
	return sortedKeys(r.translation)
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
