// Command cli drives the dispatcher from stdin for local development: each
// line is treated as a guild message from a console author.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"server-warden/datastore"
	"server-warden/internal/config"
	"server-warden/internal/logging"
	"server-warden/internal/modules/core"
	"server-warden/internal/modules/roles"
	"server-warden/internal/settings"
	"server-warden/pkg/cmdkit"
)

type consoleSink struct{}

func (consoleSink) Send(_ context.Context, _ *cmdkit.Message, out *cmdkit.Outcome) {
	if out.Reply != "" {
		fmt.Println(out.Reply)
	} else if out.Kind != cmdkit.OutcomeSuccess && out.Kind != cmdkit.OutcomeNone {
		fmt.Printf("(%s)\n", out.Kind)
	}
	if out.ShowUsage && out.Match != nil {
		fmt.Printf("usage: %s\n", out.Match.Registration.FormatUsage())
	}
}

// consoleGranter satisfies the roles module without a transport.
type consoleGranter struct{}

func (consoleGranter) GrantRole(context.Context, string, string, string) error { return nil }
func (consoleGranter) RevokeRole(context.Context, string, string, string) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, "")

	ds, err := datastore.New(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open datastore")
	}
	defer ds.Close()
	store := settings.New(ds)

	registry := cmdkit.NewRegistry()
	registry.Register(core.New(store, registry))
	registry.Register(roles.New(store, consoleGranter{}))
	if err := registry.Build(); err != nil {
		log.Fatal().Err(err).Msg("failed to build command registry")
	}

	dispatcher, err := cmdkit.NewDispatcher(cmdkit.DispatcherConfig{
		Registry: registry,
		Prefixes: cmdkit.NewPrefixResolver(cfg.Prefix, settings.NewPrefixes(store)),
		Sink:     consoleSink{},
		Owners:   append(cfg.OwnerIDs, "console"),
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create dispatcher")
	}

	ctx := context.Background()
	fmt.Printf("prefix is %q, type commands below\n", cfg.Prefix)

	scanner := bufio.NewScanner(os.Stdin)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if line == "" {
			continue
		}
		dispatcher.Handle(ctx, &cmdkit.Message{
			ID:         strconv.Itoa(n),
			Text:       line,
			AuthorID:   "console",
			AuthorName: "console",
			ChannelID:  "console",
			GuildID:    "console-guild",
			Timestamp:  time.Now(),
		})
	}
}
