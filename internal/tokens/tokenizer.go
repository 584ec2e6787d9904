// Package tokens holds the feature-extraction collaborators: they turn a
// raw input into the ordered sequence of maskable tokens a game is built
// over, and render token sequences back to text for reporting. The
// algorithmic core never depends on this package.
package tokens

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyInput indicates an input with no maskable tokens.
var ErrEmptyInput = errors.New("input contains no maskable tokens")

// Tokenizer converts raw text into maskable feature tokens. Structural
// wrapper tokens that must never be masked are stripped during
// tokenization. Marker returns the neutral replacement token used by the
// perturbation strategy.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
	Marker() string
	Render(tokens []string) string
}

// WordTokenizer splits on whitespace and strips a fixed set of structural
// tokens. Good enough for demos and tests; real model tokenizers plug in
// behind the same interface.
type WordTokenizer struct {
	marker     string
	structural map[string]bool
}

// NewWordTokenizer returns a whitespace tokenizer with the [MASK] marker
// and the usual transformer wrapper tokens treated as structural.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{
		marker: "[MASK]",
		structural: map[string]bool{
			"[CLS]": true,
			"[SEP]": true,
			"[PAD]": true,
			"<s>":   true,
			"</s>":  true,
		},
	}
}

// Tokenize splits the text into maskable tokens.
func (w *WordTokenizer) Tokenize(text string) ([]string, error) {
	fields := strings.Fields(text)
	toks := make([]string, 0, len(fields))
	for _, f := range fields {
		if w.structural[f] {
			continue
		}
		toks = append(toks, f)
	}
	if len(toks) == 0 {
		return nil, ErrEmptyInput
	}
	return toks, nil
}

// Marker returns the neutral replacement token.
func (w *WordTokenizer) Marker() string { return w.marker }

// Render joins the feature sequence back into a human-readable string.
func (w *WordTokenizer) Render(tokens []string) string {
	return strings.Join(tokens, " ")
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Tokenizer)
)

// Register adds a tokenizer factory under a name.
func Register(name string, factory func() Tokenizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get builds a registered tokenizer by name.
func Get(name string) (Tokenizer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// List returns the registered tokenizer names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("word", func() Tokenizer { return NewWordTokenizer() })
}
