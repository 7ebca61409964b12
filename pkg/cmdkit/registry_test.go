package cmdkit

import (
	"context"
	"strings"
	"testing"
)

func noopHandler(context.Context, *Invocation) (*Reply, error) {
	return nil, nil
}

func buildRegistry(t *testing.T, mods ...Module) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, m := range mods {
		r.Register(m)
	}
	if err := r.Build(); err != nil {
		t.Fatalf("registry build failed: %v", err)
	}
	return r
}

func TestLookup_SimpleInvoker(t *testing.T) {
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{
		{Usage: Usage{Invoker: "ping"}, Run: noopHandler},
	}})

	bodies := []string{"", " ", " with a body", " anything  at all"}
	for _, body := range bodies {
		match, ok := r.Lookup("ping" + body)
		if !ok {
			t.Fatalf("expected match for body %q", body)
		}
		if match.Usage.Invoker != "ping" {
			t.Errorf("matched wrong usage: %v", match.Usage)
		}
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{
		{Usage: Usage{Invoker: "Role", Verbs: []string{"Add"}}, Run: noopHandler},
	}})

	for _, text := range []string{"role add x", "ROLE ADD x", "Role aDd x"} {
		if _, ok := r.Lookup(text); !ok {
			t.Errorf("expected match for %q", text)
		}
	}
}

// The longer verb chain must always win over a shorter one sharing its
// leading verbs.
func TestLookup_LongestVerbChainWins(t *testing.T) {
	short := &Registration{Usage: Usage{Invoker: "a", Verbs: []string{"b"}}, Run: noopHandler}
	long := &Registration{Usage: Usage{Invoker: "a", Verbs: []string{"b", "c"}}, Run: noopHandler}
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{short, long}})

	match, ok := r.Lookup("a b c rest")
	if !ok {
		t.Fatal("expected match")
	}
	if match.Registration != long {
		t.Errorf("expected the longer chain to win, matched %q", match.Usage.Path())
	}
	if match.Body != "rest" {
		t.Errorf("expected body %q, got %q", "rest", match.Body)
	}

	match, ok = r.Lookup("a b rest")
	if !ok {
		t.Fatal("expected match")
	}
	if match.Registration != short {
		t.Errorf("expected the shorter chain, matched %q", match.Usage.Path())
	}
}

func TestLookup_NoMatch(t *testing.T) {
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{
		{Usage: Usage{Invoker: "role", Verbs: []string{"add"}}, Run: noopHandler},
	}})

	for _, text := range []string{"", "unknown", "role delete x"} {
		if _, ok := r.Lookup(text); ok {
			t.Errorf("expected no match for %q", text)
		}
	}
}

func TestLookup_BodyPreservesSpacing(t *testing.T) {
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{
		{Usage: Usage{Invoker: "echo"}, Run: noopHandler},
	}})

	match, ok := r.Lookup(`echo "hi  there"`)
	if !ok {
		t.Fatal("expected match")
	}
	if match.Body != `"hi  there"` {
		t.Errorf("expected body with spacing, got %q", match.Body)
	}
}

func TestLookup_Alias(t *testing.T) {
	reg := &Registration{
		Usage:   Usage{Invoker: "role", Verbs: []string{"remove"}},
		Aliases: []Usage{{Invoker: "role", Verbs: []string{"rm"}}},
		Run:     noopHandler,
	}
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{reg}})

	match, ok := r.Lookup("role rm @Mods")
	if !ok {
		t.Fatal("expected alias match")
	}
	if match.Registration != reg {
		t.Error("alias resolved to the wrong registration")
	}
}

func TestBuild_AliasCollision(t *testing.T) {
	r := NewRegistry()
	r.Register(Module{Name: "one", Commands: []*Registration{
		{Usage: Usage{Invoker: "role", Verbs: []string{"add"}}, Run: noopHandler},
	}})
	r.Register(Module{Name: "two", Commands: []*Registration{
		{Usage: Usage{Invoker: "ROLE", Verbs: []string{"Add"}}, Run: noopHandler},
	}})

	err := r.Build()
	if err == nil {
		t.Fatal("expected build to fail on alias collision")
	}
	if !strings.Contains(err.Error(), "collides") {
		t.Errorf("expected a collision error, got: %v", err)
	}
}

func TestBuild_RepeatableMustBeLast(t *testing.T) {
	r := NewRegistry()
	r.Register(Module{Name: "test", Commands: []*Registration{
		{
			Usage: Usage{Invoker: "x"},
			Params: []ParamSpec{
				{Name: "ids", Type: TypeInt, Repeatable: true},
				{Name: "tail", Type: TypeString},
			},
			Run: noopHandler,
		},
	}})
	if err := r.Build(); err == nil {
		t.Fatal("expected build to reject a non-final repeatable parameter")
	}
}

func TestBuild_LeafMayShareInteriorVerb(t *testing.T) {
	// "a b" plus "a b c" must co-exist: the leaf "b" shares its name with
	// the interior node of the longer chain.
	buildRegistry(t, Module{Name: "test", Commands: []*Registration{
		{Usage: Usage{Invoker: "a", Verbs: []string{"b"}}, Run: noopHandler},
		{Usage: Usage{Invoker: "a", Verbs: []string{"b", "c"}}, Run: noopHandler},
	}})
}

func TestAll_Sorted(t *testing.T) {
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{
		{Usage: Usage{Invoker: "zeta"}, Run: noopHandler},
		{Usage: Usage{Invoker: "alpha"}, Run: noopHandler},
	}})

	all := r.All()
	if len(all) != 2 || all[0].Usage.Invoker != "alpha" {
		t.Errorf("expected sorted registrations, got %v", all)
	}
}

func TestFormatUsage(t *testing.T) {
	reg := &Registration{
		Usage: Usage{Invoker: "warn", Verbs: []string{"add"}},
		Params: []ParamSpec{
			{Name: "user", Type: TypeUser},
			{Name: "reason", Type: TypeString, Optional: true, Remainder: true},
		},
	}
	want := "warn add <user> [reason...]"
	if got := reg.FormatUsage(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
