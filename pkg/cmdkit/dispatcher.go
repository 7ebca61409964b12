package cmdkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PermissionChecker answers the gate's permission questions for a guild
// message. Implemented by the transport adapter.
type PermissionChecker interface {
	// UserHas reports whether the message author holds every bit in perms.
	UserHas(ctx context.Context, msg *Message, perms int64) (bool, error)
	// BotHas reports whether the bot holds every bit in perms.
	BotHas(ctx context.Context, msg *Message, perms int64) (bool, error)
}

// ReplySink delivers outcomes back to the transport for rendering.
type ReplySink interface {
	Send(ctx context.Context, msg *Message, out *Outcome)
}

// TypingNotifier brackets an execution with the transport's typing signal.
// The returned stop function is always called, regardless of outcome.
type TypingNotifier interface {
	StartTyping(channelID string) (stop func())
}

// ExecutedFunc observes every executed command after its outcome is known.
// Used for command history recording.
type ExecutedFunc func(ctx context.Context, msg *Message, match *Match, out *Outcome)

// DispatcherConfig wires a Dispatcher. Registry, Prefixes and Sink are
// required; the rest defaults to permissive no-ops.
type DispatcherConfig struct {
	Registry *Registry
	Prefixes *PrefixResolver
	Sink     ReplySink
	Checker  PermissionChecker
	Typing   TypingNotifier

	// Owners is the set of author ids with owner-only command access.
	// Owners also bypass user permission checks.
	Owners []string

	// ClassifyError maps transport wire errors surfaced during execution
	// onto ErrAccessRevoked / ErrPermissionRevoked equivalents. May be nil.
	ClassifyError func(err error) (OutcomeKind, bool)

	// OnExecuted, when set, is invoked after every execution.
	OnExecuted ExecutedFunc

	Logger zerolog.Logger
}

// Dispatcher turns inbound messages into matched, gated, parsed and executed
// command invocations. Each message is handled independently; the only
// cross-message ordering is whatever the settings store imposes per key.
type Dispatcher struct {
	registry *Registry
	prefixes *PrefixResolver
	sink     ReplySink
	checker  PermissionChecker
	typing   TypingNotifier
	owners   map[string]struct{}
	classify func(err error) (OutcomeKind, bool)
	executed ExecutedFunc
	log      zerolog.Logger
}

// NewDispatcher validates the config and returns a ready dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("dispatcher: registry is required")
	}
	if cfg.Prefixes == nil {
		return nil, errors.New("dispatcher: prefix resolver is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("dispatcher: reply sink is required")
	}
	d := &Dispatcher{
		registry: cfg.Registry,
		prefixes: cfg.Prefixes,
		sink:     cfg.Sink,
		checker:  cfg.Checker,
		typing:   cfg.Typing,
		owners:   make(map[string]struct{}, len(cfg.Owners)),
		classify: cfg.ClassifyError,
		executed: cfg.OnExecuted,
		log:      cfg.Logger,
	}
	for _, id := range cfg.Owners {
		d.owners[id] = struct{}{}
	}
	return d, nil
}

// timings collects the per-phase durations reported on the final log line.
type timings struct {
	transportDelay time.Duration
	verification   time.Duration
	parsing        time.Duration
	execution      time.Duration
}

// Handle runs one message through the pipeline: prefix resolution, registry
// lookup, gating, parameter parsing, execution. Resolution misses are
// dropped silently; every other path produces exactly one outcome.
//
// ctx is the process-lifetime context; there is no per-command timeout.
func (d *Dispatcher) Handle(ctx context.Context, msg *Message) {
	received := time.Now()
	var tm timings
	if !msg.Timestamp.IsZero() {
		tm.transportDelay = received.Sub(msg.Timestamp)
	}

	prefix, err := d.prefixes.Resolve(ctx, msg.GuildID)
	if err != nil {
		// Cannot even tell whether this was a command; drop it.
		d.log.Debug().Err(err).Str("correlation", msg.ID).Msg("prefix resolution failed, dropping message")
		return
	}
	rest, ok := strings.CutPrefix(msg.Text, prefix)
	if !ok {
		return
	}

	match, ok := d.registry.Lookup(rest)
	if !ok {
		return
	}
	reg := match.Registration

	gateStart := time.Now()
	if out := d.gate(ctx, msg, match); out != nil {
		tm.verification = time.Since(gateStart)
		d.finish(ctx, msg, out, tm)
		return
	}
	tm.verification = time.Since(gateStart)

	parseStart := time.Now()
	bound, perr := parseParams(reg.Params, match.Body)
	tm.parsing = time.Since(parseStart)
	if perr != nil {
		d.finish(ctx, msg, parseOutcome(match, perr), tm)
		return
	}

	inv := &Invocation{Message: msg, Match: match, bound: bound}
	if reg.Synchronous {
		d.execute(ctx, inv, tm)
		return
	}
	go d.supervised(ctx, inv, tm)
}

// supervised runs a fire-and-forget execution. Panics and failures are
// captured here and only observed via logging; nothing propagates back to
// the dispatch loop.
func (d *Dispatcher) supervised(ctx context.Context, inv *Invocation, tm timings) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("correlation", inv.Message.ID).
				Str("command", inv.Match.Usage.Path()).
				Str("module", inv.Match.Registration.Module()).
				Interface("panic", r).
				Msg("panic in fire-and-forget execution")
		}
	}()
	d.execute(ctx, inv, tm)
}

// execute runs the handler, maps its result to an outcome, delivers it, and
// emits the per-message log line with phase timings.
func (d *Dispatcher) execute(ctx context.Context, inv *Invocation, tm timings) {
	reg := inv.Match.Registration

	if reg.Typing && d.typing != nil {
		stop := d.typing.StartTyping(inv.Message.ChannelID)
		defer stop()
	}

	execStart := time.Now()
	reply, err := reg.Run(ctx, inv)
	tm.execution = time.Since(execStart)

	out := d.mapResult(inv.Match, reply, err)
	if d.executed != nil {
		d.executed(ctx, inv.Message, inv.Match, out)
	}
	d.finish(ctx, inv.Message, out, tm)
}

// mapResult converts a handler's (reply, error) into an outcome, first match
// wins in priority order.
func (d *Dispatcher) mapResult(match *Match, reply *Reply, err error) *Outcome {
	if err == nil {
		out := &Outcome{Kind: OutcomeSuccess, Match: match}
		if reply != nil {
			out.Reply = reply.Text
		}
		return out
	}

	var incorrect *IncorrectParamsError
	if errors.As(err, &incorrect) {
		return &Outcome{Kind: OutcomeIncorrectParams, Match: match, Reply: incorrect.Reason, ShowUsage: incorrect.ShowUsage}
	}
	var unclear *UnclearParamsError
	if errors.As(err, &unclear) {
		return &Outcome{Kind: OutcomeUnclearParams, Match: match, Reply: unclear.Reason, ShowUsage: true}
	}
	var userPerms *MissingUserPermsError
	if errors.As(err, &userPerms) {
		return &Outcome{Kind: OutcomeMissingUserPerms, Match: match, Perms: userPerms.Perms}
	}
	var botPerms *MissingBotPermsError
	if errors.As(err, &botPerms) {
		return &Outcome{Kind: OutcomeMissingBotPerms, Match: match, Perms: botPerms.Perms}
	}
	var botChanPerms *MissingBotChannelPermsError
	if errors.As(err, &botChanPerms) {
		return &Outcome{Kind: OutcomeMissingBotPerms, Match: match, Perms: botChanPerms.Perms}
	}
	var business *BusinessError
	if errors.As(err, &business) {
		return &Outcome{Kind: OutcomeBusinessError, Match: match, Reply: business.Reason}
	}
	if errors.Is(err, ErrAccessRevoked) {
		return &Outcome{Kind: OutcomeMissingBotAccess, Match: match}
	}
	if errors.Is(err, ErrPermissionRevoked) {
		return &Outcome{Kind: OutcomeMissingBotPerms, Match: match}
	}
	if d.classify != nil {
		if kind, ok := d.classify(err); ok {
			return &Outcome{Kind: kind, Match: match}
		}
	}

	d.log.Error().
		Err(err).
		Str("command", match.Usage.Path()).
		Str("module", match.Registration.Module()).
		Msg("unexpected command error")
	return &Outcome{Kind: OutcomeInternalError, Match: match}
}

// gate applies the fixed pre-parse checks: source type, owner set, user and
// bot permissions. First failure wins; no parsing or execution follows.
func (d *Dispatcher) gate(ctx context.Context, msg *Message, match *Match) *Outcome {
	reg := match.Registration

	if msg.IsDirect() && !reg.AllowDirect && !reg.DirectOnly {
		return &Outcome{Kind: OutcomeWrongSource, Match: match}
	}
	if !msg.IsDirect() && reg.DirectOnly {
		return &Outcome{Kind: OutcomeWrongSource, Match: match}
	}

	_, isOwner := d.owners[msg.AuthorID]
	if reg.OwnerOnly && !isOwner {
		return &Outcome{Kind: OutcomeNotOwner, Match: match}
	}

	if msg.IsDirect() || d.checker == nil {
		return nil
	}

	if reg.UserPermissions != 0 && !isOwner {
		ok, err := d.checker.UserHas(ctx, msg, reg.UserPermissions)
		if err != nil {
			d.log.Error().Err(err).Str("correlation", msg.ID).Msg("user permission check failed")
			return &Outcome{Kind: OutcomeInternalError, Match: match}
		}
		if !ok {
			return &Outcome{Kind: OutcomeMissingUserPerms, Match: match, Perms: reg.UserPermissions}
		}
	}
	if reg.BotPermissions != 0 {
		ok, err := d.checker.BotHas(ctx, msg, reg.BotPermissions)
		if err != nil {
			d.log.Error().Err(err).Str("correlation", msg.ID).Msg("bot permission check failed")
			return &Outcome{Kind: OutcomeInternalError, Match: match}
		}
		if !ok {
			return &Outcome{Kind: OutcomeMissingBotPerms, Match: match, Perms: reg.BotPermissions}
		}
	}
	return nil
}

// finish delivers the outcome and emits the structured per-message log line.
func (d *Dispatcher) finish(ctx context.Context, msg *Message, out *Outcome, tm timings) {
	d.sink.Send(ctx, msg, out)

	evt := d.log.Info()
	if out.Kind == OutcomeInternalError {
		evt = d.log.Error()
	}
	command := ""
	module := ""
	if out.Match != nil {
		command = out.Match.Usage.Path()
		module = out.Match.Registration.Module()
	}
	evt.Str("correlation", msg.ID).
		Str("guild", msg.GuildID).
		Str("channel", msg.ChannelID).
		Str("author", msg.AuthorID).
		Str("command", command).
		Str("module", module).
		Str("outcome", out.Kind.String()).
		Dur("transport_delay", tm.transportDelay).
		Dur("verification", tm.verification).
		Dur("parsing", tm.parsing).
		Dur("execution", tm.execution).
		Msg("command processed")
}

// parseOutcome maps a typed parse failure to its reply outcome.
func parseOutcome(match *Match, perr *ParseError) *Outcome {
	out := &Outcome{Match: match, ShowUsage: true, Reply: perr.Error()}
	switch perr.Kind {
	case ParseNotEnoughParams:
		out.Kind = OutcomeNotEnoughParams
	case ParseTooManyParams:
		out.Kind = OutcomeTooManyParams
	default:
		out.Kind = OutcomeInvalidParamFormat
		out.Reply = fmt.Sprintf("parameter %d (%s) has an invalid format", perr.Position, perr.Name)
	}
	return out
}
