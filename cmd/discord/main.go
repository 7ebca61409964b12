package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"server-warden/datastore"
	"server-warden/internal/config"
	"server-warden/internal/discord"
	"server-warden/internal/logging"
	"server-warden/internal/modules/core"
	"server-warden/internal/modules/roles"
	"server-warden/internal/settings"
	"server-warden/internal/version"
	"server-warden/pkg/cmdkit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "")
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("version", version.Version).Msgf("starting %s", version.AppName)

	if cfg.DiscordToken == "" {
		log.Fatal().Msg("DISCORD_TOKEN is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dsCfg := datastore.DefaultConfig(cfg.StoragePath)
	dsCfg.Logger = log
	ds, err := datastore.NewWithConfig(dsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open datastore")
	}
	defer ds.Close()
	store := settings.New(ds)

	registry := cmdkit.NewRegistry()
	bot, err := discord.NewBot(cfg, store, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}
	registry.Register(core.New(store, registry))
	registry.Register(roles.New(store, bot.RoleGranter()))
	if err := registry.Build(); err != nil {
		log.Fatal().Err(err).Msg("failed to build command registry")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("bot exited with error")
		}
		cancel()
	}

	log.Info().Msg("bot exited cleanly")
}
