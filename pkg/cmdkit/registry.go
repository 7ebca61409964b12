package cmdkit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// candidate is one usage of one registration, indexed under its invoker.
type candidate struct {
	usage Usage
	reg   *Registration
}

// Registry holds the command table built once at startup from declared
// modules. The table is read-only after Build; the mutex only guards the
// one-time construction against early lookups.
type Registry struct {
	mu           sync.RWMutex
	modules      []Module
	byInvoker    map[string][]candidate
	all          []*Registration
	maxVerbDepth int
	built        bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byInvoker: make(map[string][]candidate)}
}

// Register queues a module for the next Build. Usually called from startup
// wiring before traffic starts.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = append(r.modules, m)
}

// Build assembles the command table. Commands that declare verb chains are
// lifted into a nested verb tree, so two commands sharing a leading verb
// ("role add", "role remove") hang under one shared node. Build fails fast
// on any alias collision under the same parent path; this is a startup
// invariant, never a runtime condition.
func (r *Registry) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byInvoker = make(map[string][]candidate)
	r.all = nil
	r.maxVerbDepth = 0

	// seen maps parent path -> leaf name -> owning module, for collision
	// reporting. A leaf may share its name with an interior verb node
	// ("a b" next to "a b c"); only two leaves under one parent collide.
	seen := make(map[string]map[string]string)

	for _, m := range r.modules {
		for _, reg := range m.Commands {
			reg.module = m.Name
			if err := checkSpecs(reg); err != nil {
				return fmt.Errorf("module %s: command %q: %w", m.Name, reg.Usage.Path(), err)
			}
			for _, u := range reg.usages() {
				if u.Invoker == "" {
					return fmt.Errorf("module %s: registration with empty invoker", m.Name)
				}
				if err := claim(seen, m.Name, u); err != nil {
					return fmt.Errorf("module %s: %w", m.Name, err)
				}
				inv := strings.ToLower(u.Invoker)
				r.byInvoker[inv] = append(r.byInvoker[inv], candidate{usage: u, reg: reg})
				if len(u.Verbs) > r.maxVerbDepth {
					r.maxVerbDepth = len(u.Verbs)
				}
			}
			r.all = append(r.all, reg)
		}
	}

	// Longer verb chains first, so the most specific usage wins lookup.
	for inv := range r.byInvoker {
		cands := r.byInvoker[inv]
		sort.SliceStable(cands, func(i, j int) bool {
			return len(cands[i].usage.Verbs) > len(cands[j].usage.Verbs)
		})
	}

	sort.Slice(r.all, func(i, j int) bool {
		return r.all[i].Usage.Path() < r.all[j].Usage.Path()
	})

	r.built = true
	return nil
}

// claim records a usage's leaf alias under its parent node in the synthetic
// verb tree, erroring when another registration already owns that alias.
func claim(seen map[string]map[string]string, module string, u Usage) error {
	parts := append([]string{strings.ToLower(u.Invoker)}, lowerAll(u.Verbs)...)
	leaf := parts[len(parts)-1]
	parent := strings.Join(parts[:len(parts)-1], " ")

	children := seen[parent]
	if children == nil {
		children = make(map[string]string)
		seen[parent] = children
	}
	if owner, exists := children[leaf]; exists {
		return fmt.Errorf("usage %q collides with alias %q under %q (already registered by module %s)",
			u.Path(), leaf, parentLabel(parent), owner)
	}
	children[leaf] = module
	return nil
}

func parentLabel(parent string) string {
	if parent == "" {
		return "root"
	}
	return parent
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// checkSpecs enforces build-time parameter invariants: only the final spec
// may be repeatable, and only one remainder spec may exist, in final or
// next-to-final position.
func checkSpecs(reg *Registration) error {
	for i := range reg.Params {
		p := &reg.Params[i]
		if p.Name == "" {
			return fmt.Errorf("parameter %d has no name", i+1)
		}
		if p.Repeatable && i != len(reg.Params)-1 {
			return fmt.Errorf("parameter %q: repeatable is only legal on the last parameter", p.Name)
		}
		if p.Remainder && i != len(reg.Params)-1 {
			return fmt.Errorf("parameter %q: remainder must be the last parameter", p.Name)
		}
		if p.Remainder && p.Repeatable {
			return fmt.Errorf("parameter %q: remainder cannot be repeatable", p.Name)
		}
	}
	return nil
}

// Match is the result of a successful registry lookup.
type Match struct {
	Registration *Registration
	Usage        Usage

	// Body is the raw text following the matched verbs, spacing preserved.
	Body string
}

// Lookup resolves prefix-stripped text to a registration. The first token is
// the invoker; candidates sharing it are tested in descending verb-chain
// length, so "role add member" prefers a "role add" usage over "role".
func (r *Registry) Lookup(text string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.built {
		return nil, false
	}

	toks := splitHead(text, r.maxVerbDepth+2)
	if len(toks) == 0 {
		return nil, false
	}
	invoker := strings.ToLower(toks[0].Raw)

	for _, cand := range r.byInvoker[invoker] {
		verbs := cand.usage.Verbs
		if len(toks)-1 < len(verbs) {
			continue
		}
		ok := true
		for i, v := range verbs {
			if !strings.EqualFold(toks[i+1].Raw, v) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		body := ""
		if len(toks) > len(verbs)+1 {
			body = text[toks[len(verbs)+1].Start:]
		}
		return &Match{Registration: cand.reg, Usage: cand.usage, Body: body}, true
	}
	return nil, false
}

// All returns every registration, sorted by usage path. Used by help output.
func (r *Registry) All() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, len(r.all))
	copy(out, r.all)
	return out
}

// splitHead tokenizes at most limit leading tokens of text, leaving the rest
// of the string untouched so the command body keeps its original spacing.
func splitHead(text string, limit int) []*Token {
	toks := tokenize(text)
	if len(toks) > limit {
		toks = toks[:limit]
	}
	return toks
}
