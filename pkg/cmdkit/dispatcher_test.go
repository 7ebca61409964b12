package cmdkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const permManageMessages int64 = 1 << 13

type chanSink struct {
	ch chan *Outcome
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan *Outcome, 8)}
}

func (s *chanSink) Send(_ context.Context, _ *Message, out *Outcome) {
	s.ch <- out
}

func (s *chanSink) await(t *testing.T) *Outcome {
	t.Helper()
	select {
	case out := <-s.ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an outcome")
		return nil
	}
}

func (s *chanSink) awaitNone(t *testing.T) {
	t.Helper()
	select {
	case out := <-s.ch:
		t.Fatalf("expected no outcome, got %s", out.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeChecker struct {
	user, bot bool
	err       error
}

func (c *fakeChecker) UserHas(context.Context, *Message, int64) (bool, error) {
	return c.user, c.err
}

func (c *fakeChecker) BotHas(context.Context, *Message, int64) (bool, error) {
	return c.bot, c.err
}

type prefixFunc func(ctx context.Context, guildID string) (string, error)

func (f prefixFunc) CustomPrefix(ctx context.Context, guildID string) (string, error) {
	return f(ctx, guildID)
}

func guildMessage(text string) *Message {
	return &Message{
		ID:        "msg-1",
		Text:      text,
		AuthorID:  "author-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Timestamp: time.Now(),
	}
}

func directMessage(text string) *Message {
	m := guildMessage(text)
	m.GuildID = ""
	return m
}

type dispatcherOpts struct {
	provider PrefixProvider
	checker  PermissionChecker
	owners   []string
	classify func(err error) (OutcomeKind, bool)
}

func newTestDispatcher(t *testing.T, sink ReplySink, opts dispatcherOpts, regs ...*Registration) *Dispatcher {
	t.Helper()
	r := buildRegistry(t, Module{Name: "test", Commands: regs})
	d, err := NewDispatcher(DispatcherConfig{
		Registry:      r,
		Prefixes:      NewPrefixResolver("!", opts.provider),
		Sink:          sink,
		Checker:       opts.checker,
		Owners:        opts.owners,
		ClassifyError: opts.classify,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("dispatcher config rejected: %v", err)
	}
	return d
}

func TestHandle_SuccessWithRemainder(t *testing.T) {
	sink := newChanSink()
	d := newTestDispatcher(t, sink, dispatcherOpts{}, &Registration{
		Usage:  Usage{Invoker: "echo"},
		Params: []ParamSpec{{Name: "text", Type: TypeString, Remainder: true}},
		Run: func(_ context.Context, inv *Invocation) (*Reply, error) {
			tok, _ := inv.Param("text")
			return ReplyText(tok.Raw), nil
		},
	})

	d.Handle(context.Background(), guildMessage(`!echo "hi  there"`))

	out := sink.await(t)
	if out.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if out.Reply != "hi  there" {
		t.Errorf("expected quote-stripped remainder, got %q", out.Reply)
	}
}

func TestHandle_NonCommandIgnored(t *testing.T) {
	sink := newChanSink()
	d := newTestDispatcher(t, sink, dispatcherOpts{}, &Registration{
		Usage: Usage{Invoker: "ping"},
		Run:   noopHandler,
	})

	d.Handle(context.Background(), guildMessage("just chatting"))
	d.Handle(context.Background(), guildMessage("!unknowncommand"))

	sink.awaitNone(t)
}

func TestHandle_CustomPrefix(t *testing.T) {
	sink := newChanSink()
	provider := prefixFunc(func(_ context.Context, guildID string) (string, error) {
		if guildID == "guild-1" {
			return "?", nil
		}
		return "", nil
	})
	d := newTestDispatcher(t, sink, dispatcherOpts{provider: provider}, &Registration{
		Usage: Usage{Invoker: "ping"},
		Run: func(context.Context, *Invocation) (*Reply, error) {
			return ReplyText("pong"), nil
		},
	})

	// The default prefix no longer applies in this guild.
	d.Handle(context.Background(), guildMessage("!ping"))
	sink.awaitNone(t)

	d.Handle(context.Background(), guildMessage("?ping"))
	if out := sink.await(t); out.Kind != OutcomeSuccess {
		t.Errorf("expected success under custom prefix, got %s", out.Kind)
	}
}

func TestHandle_PrefixProviderErrorDropsMessage(t *testing.T) {
	sink := newChanSink()
	provider := prefixFunc(func(context.Context, string) (string, error) {
		return "", errors.New("store unavailable")
	})
	d := newTestDispatcher(t, sink, dispatcherOpts{provider: provider}, &Registration{
		Usage: Usage{Invoker: "ping"},
		Run:   noopHandler,
	})

	d.Handle(context.Background(), guildMessage("!ping"))
	sink.awaitNone(t)
}

func TestHandle_MissingUserPermissions(t *testing.T) {
	sink := newChanSink()
	ran := false
	d := newTestDispatcher(t, sink,
		dispatcherOpts{checker: &fakeChecker{user: false, bot: true}},
		&Registration{
			Usage:           Usage{Invoker: "purge"},
			UserPermissions: permManageMessages,
			Run: func(context.Context, *Invocation) (*Reply, error) {
				ran = true
				return nil, nil
			},
		})

	d.Handle(context.Background(), guildMessage("!purge"))

	out := sink.await(t)
	if out.Kind != OutcomeMissingUserPerms {
		t.Fatalf("expected missing user permissions, got %s", out.Kind)
	}
	if out.Perms != permManageMessages {
		t.Errorf("expected the registration's permission bits, got %d", out.Perms)
	}
	if ran {
		t.Error("handler must not run when the gate fails")
	}
}

func TestHandle_OwnerBypassesUserPermissions(t *testing.T) {
	sink := newChanSink()
	d := newTestDispatcher(t, sink,
		dispatcherOpts{
			checker: &fakeChecker{user: false, bot: true},
			owners:  []string{"author-1"},
		},
		&Registration{
			Usage:           Usage{Invoker: "purge"},
			UserPermissions: permManageMessages,
			Run: func(context.Context, *Invocation) (*Reply, error) {
				return ReplyText("done"), nil
			},
		})

	d.Handle(context.Background(), guildMessage("!purge"))
	if out := sink.await(t); out.Kind != OutcomeSuccess {
		t.Errorf("expected owners to bypass user permission checks, got %s", out.Kind)
	}
}

func TestHandle_OwnerOnly(t *testing.T) {
	sink := newChanSink()
	d := newTestDispatcher(t, sink, dispatcherOpts{owners: []string{"the-owner"}},
		&Registration{
			Usage:     Usage{Invoker: "shutdown"},
			OwnerOnly: true,
			Run:       noopHandler,
		})

	d.Handle(context.Background(), guildMessage("!shutdown"))
	if out := sink.await(t); out.Kind != OutcomeNotOwner {
		t.Errorf("expected not-owner outcome, got %s", out.Kind)
	}
}

func TestHandle_SourceGating(t *testing.T) {
	sink := newChanSink()
	d := newTestDispatcher(t, sink, dispatcherOpts{},
		&Registration{Usage: Usage{Invoker: "guildonly"}, Run: noopHandler},
		&Registration{Usage: Usage{Invoker: "dmonly"}, DirectOnly: true, Run: noopHandler},
	)

	d.Handle(context.Background(), directMessage("!guildonly"))
	if out := sink.await(t); out.Kind != OutcomeWrongSource {
		t.Errorf("guild-only command in a DM: expected wrong source, got %s", out.Kind)
	}

	d.Handle(context.Background(), guildMessage("!dmonly"))
	if out := sink.await(t); out.Kind != OutcomeWrongSource {
		t.Errorf("DM-only command in a guild: expected wrong source, got %s", out.Kind)
	}
}

func TestHandle_ParseFailureOutcomes(t *testing.T) {
	sink := newChanSink()
	d := newTestDispatcher(t, sink, dispatcherOpts{}, &Registration{
		Usage:  Usage{Invoker: "warn"},
		Params: []ParamSpec{{Name: "user", Type: TypeUser}},
		Run:    noopHandler,
	})

	d.Handle(context.Background(), guildMessage("!warn"))
	out := sink.await(t)
	if out.Kind != OutcomeNotEnoughParams || !out.ShowUsage {
		t.Errorf("expected not-enough-params with usage, got %s show=%v", out.Kind, out.ShowUsage)
	}

	d.Handle(context.Background(), guildMessage("!warn notamention"))
	out = sink.await(t)
	if out.Kind != OutcomeInvalidParamFormat {
		t.Errorf("expected invalid-format, got %s", out.Kind)
	}

	d.Handle(context.Background(), guildMessage("!warn <@1> extra"))
	out = sink.await(t)
	if out.Kind != OutcomeTooManyParams {
		t.Errorf("expected too-many-params, got %s", out.Kind)
	}
}

func TestHandle_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"incorrect params", &IncorrectParamsError{Reason: "bad"}, OutcomeIncorrectParams},
		{"unclear params", &UnclearParamsError{Reason: "which one"}, OutcomeUnclearParams},
		{"missing user perms", &MissingUserPermsError{Perms: 8}, OutcomeMissingUserPerms},
		{"missing bot perms", &MissingBotPermsError{Perms: 8}, OutcomeMissingBotPerms},
		{"business", &BusinessError{Reason: "no such role"}, OutcomeBusinessError},
		{"access revoked", ErrAccessRevoked, OutcomeMissingBotAccess},
		{"permission revoked", ErrPermissionRevoked, OutcomeMissingBotPerms},
		{"wrapped business", Failf("role %q not found", "Mods"), OutcomeBusinessError},
		{"unknown", errors.New("boom"), OutcomeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := newChanSink()
			d := newTestDispatcher(t, sink, dispatcherOpts{}, &Registration{
				Usage: Usage{Invoker: "fail"},
				Run: func(context.Context, *Invocation) (*Reply, error) {
					return nil, tc.err
				},
			})
			d.Handle(context.Background(), guildMessage("!fail"))
			if out := sink.await(t); out.Kind != tc.want {
				t.Errorf("expected %s, got %s", tc.want, out.Kind)
			}
		})
	}
}

func TestHandle_ClassifyErrorHook(t *testing.T) {
	sink := newChanSink()
	wireErr := errors.New("HTTP 403, missing access")
	classify := func(err error) (OutcomeKind, bool) {
		if errors.Is(err, wireErr) {
			return OutcomeMissingBotAccess, true
		}
		return OutcomeNone, false
	}
	d := newTestDispatcher(t, sink, dispatcherOpts{classify: classify}, &Registration{
		Usage: Usage{Invoker: "fail"},
		Run: func(context.Context, *Invocation) (*Reply, error) {
			return nil, wireErr
		},
	})

	d.Handle(context.Background(), guildMessage("!fail"))
	if out := sink.await(t); out.Kind != OutcomeMissingBotAccess {
		t.Errorf("expected classified outcome, got %s", out.Kind)
	}
}

// A panicking fire-and-forget handler must neither crash the process nor
// produce an outcome.
func TestHandle_PanicIsolated(t *testing.T) {
	sink := newChanSink()
	entered := make(chan struct{})
	d := newTestDispatcher(t, sink, dispatcherOpts{}, &Registration{
		Usage: Usage{Invoker: "boom"},
		Run: func(context.Context, *Invocation) (*Reply, error) {
			close(entered)
			panic("handler bug")
		},
	})

	d.Handle(context.Background(), guildMessage("!boom"))

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	sink.awaitNone(t)
}

func TestHandle_SynchronousExecution(t *testing.T) {
	sink := newChanSink()
	ran := false
	d := newTestDispatcher(t, sink, dispatcherOpts{}, &Registration{
		Usage:       Usage{Invoker: "sync"},
		Synchronous: true,
		Run: func(context.Context, *Invocation) (*Reply, error) {
			ran = true
			return nil, nil
		},
	})

	d.Handle(context.Background(), guildMessage("!sync"))
	if !ran {
		t.Error("synchronous command had not executed when Handle returned")
	}
}

func TestHandle_OnExecuted(t *testing.T) {
	sink := newChanSink()
	seen := make(chan OutcomeKind, 1)
	r := buildRegistry(t, Module{Name: "test", Commands: []*Registration{{
		Usage: Usage{Invoker: "ping"},
		Run: func(context.Context, *Invocation) (*Reply, error) {
			return ReplyText("pong"), nil
		},
	}}})
	d, err := NewDispatcher(DispatcherConfig{
		Registry: r,
		Prefixes: NewPrefixResolver("!", nil),
		Sink:     sink,
		OnExecuted: func(_ context.Context, _ *Message, _ *Match, out *Outcome) {
			seen <- out.Kind
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	d.Handle(context.Background(), guildMessage("!ping"))
	select {
	case kind := <-seen:
		if kind != OutcomeSuccess {
			t.Errorf("observer saw %s", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("execution observer never fired")
	}
}
