package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polzovatel/inbox-responder/internal/browser"
	"github.com/polzovatel/inbox-responder/internal/config"
	"github.com/polzovatel/inbox-responder/internal/inbox"
	"github.com/polzovatel/inbox-responder/internal/journal"
	"github.com/polzovatel/inbox-responder/internal/llm"
	"github.com/polzovatel/inbox-responder/internal/reply"
	"github.com/polzovatel/inbox-responder/internal/session"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sign in and answer new messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	selector, err := newSelector(cfg)
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	launcher, err := browser.NewLauncher(ctx, cfg.Headless)
	if err != nil {
		return fmt.Errorf("browser init: %w", err)
	}
	defer launcher.Close()

	ctrl, err := launcher.NewController(ctx, cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("browser controller: %w", err)
	}
	defer ctrl.Close(context.Background())

	err = session.SignIn(ctx, ctrl, session.Options{
		Mail:     cfg.Mail,
		Password: cfg.Password,
		Attended: !launcher.Headless(),
	}, log.With().Str("comp", "session").Logger())
	if err != nil {
		if errors.Is(err, session.ErrVerificationRequired) {
			log.Error().Msg("captcha detected: restart with RESPONDER_HEADLESS=false and solve it")
		}
		return err
	}

	stopPersist := startPersist(ctx, ctrl, cfg.StoragePath, cfg.SaveInterval, log.With().Str("comp", "cookies").Logger())
	defer stopPersist()

	timings := inbox.DefaultTimings()
	timings.SweepInterval = cfg.SweepInterval
	sel := inbox.DefaultSelectors()
	agent := inbox.New(inbox.Config{
		Selectors:        sel,
		Timings:          timings,
		MinLength:        cfg.MinLength,
		RepliesPerMinute: cfg.RepliesPerMinute,
	}, ctrl, selector, jrnl, log.With().Str("comp", "inbox").Logger())

	ctrl.OnRequest(cfg.DeliveryPattern, func(url string) {
		agent.Signal(inbox.SignalDelivery)
	})
	if err := ctrl.WatchMutations(ctx, sel.ConversationList, func() {
		agent.Signal(inbox.SignalMutation)
	}); err != nil {
		return fmt.Errorf("watch conversation list: %w", err)
	}

	log.Info().
		Str("backend", selector.Backend()).
		Bool("headless", cfg.Headless).
		Msg("responder started")
	return agent.Run(ctx)
}

// startPersist saves cookies in the background. The returned stop cancels
// the loop, waits for its final save and is safe on every return path of run.
func startPersist(ctx context.Context, s session.Saver, path string, interval time.Duration, logger zerolog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.Persist(ctx, s, path, interval, logger)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func newSelector(cfg config.Config) (reply.Selector, error) {
	if cfg.Backend == config.BackendLLM {
		client, err := llm.NewClientWithLogger(log.With().Str("comp", "llm").Logger())
		if err != nil {
			return nil, fmt.Errorf("llm init: %w", err)
		}
		return reply.NewGenerativeSelector(client, cfg.Persona, cfg.Signature), nil
	}

	store := reply.FileStore{Path: cfg.RulesPath}
	rules, err := store.Rules(context.Background())
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", cfg.RulesPath, err)
	}
	log.Info().Str("path", cfg.RulesPath).Int("rules", len(rules)).Msg("reply rules loaded")
	return reply.NewRuleSelector(store, cfg.Signature), nil
}
