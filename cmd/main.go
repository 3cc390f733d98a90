package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"quickcal/internal/auth"
	"quickcal/internal/batch"
	"quickcal/internal/config"
	"quickcal/internal/google"
	"quickcal/internal/models"
	"quickcal/internal/prefs"
	"quickcal/internal/relay"
	"quickcal/internal/store"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "quickcal",
		Usage: "Create Google Calendar events from the command line.",
		Commands: []*cli.Command{
			authCommand(),
			addCommand(),
			importCommand(),
			logoutCommand(),
			serveCommand(),
			prefsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

var relayFlag = &cli.BoolFlag{
	Name:  "relay",
	Usage: "Delegate to a running 'quickcal serve' coordinator instead of using local credentials.",
}

// env is everything a command needs to talk to the calendar directly.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Badger
	manager   *auth.Manager
	submitter *google.Submitter
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("Failed to close store", "error", err)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

// newEnv opens the store and wires the direct token manager and submitter.
func newEnv() (*env, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	oauthConfig, err := google.OAuthConfig(cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get google oauth config: %w", err)
	}

	s, err := store.OpenBadger(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Debug("Opened store", "path", cfg.StorePath)

	api := google.API{CalendarID: cfg.CalendarID, Endpoint: cfg.APIEndpoint}
	provider := google.NewOAuthProvider(logger, oauthConfig, s, os.Stdin, os.Stdout)
	manager := auth.NewManager(logger, s, provider, google.NewProber(api), cfg.TokenMaxAge)

	return &env{
		cfg:       cfg,
		logger:    logger,
		store:     s,
		manager:   manager,
		submitter: google.NewSubmitter(logger, manager, api, cfg.SummaryPrefix),
	}, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and cache a calendar token.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "silent", Usage: "Only use an existing session, never prompt."},
			relayFlag,
		},
		Action: func(c *cli.Context) error {
			interactive := !c.Bool("silent")

			if c.Bool("relay") {
				cfg, logger, err := loadConfig()
				if err != nil {
					return err
				}
				if _, err := relay.NewClient(logger, cfg.RelayAddr, nil).GetToken(c.Context, interactive); err != nil {
					return fmt.Errorf("authentication failed: %w", err)
				}
				logger.Info("Coordinator holds a valid token.")
				return nil
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			e.logger.Info("Starting Google authentication flow.", "interactive", interactive)
			if _, err := e.manager.GetToken(c.Context, interactive); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			if _, err := prefs.Update(c.Context, e.store, func(p *models.Preferences) { p.OnboardingComplete = true }); err != nil {
				return err
			}
			e.logger.Info("Successfully authenticated and cached token.")
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Create one calendar event.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "summary", Usage: "Event title."},
			&cli.StringFlag{Name: "start", Usage: "Start time, RFC3339 or 'YYYY-MM-DD HH:MM'."},
			&cli.StringFlag{Name: "end", Usage: "End time, RFC3339 or 'YYYY-MM-DD HH:MM'."},
			&cli.StringFlag{Name: "tz", Usage: "IANA time zone of the event."},
			&cli.StringFlag{Name: "location"},
			&cli.StringFlag{Name: "description"},
			&cli.PathFlag{Name: "ics", Usage: "Read the event from the first VEVENT of an iCalendar file."},
			&cli.PathFlag{Name: "export", Usage: "Write the created event to an iCalendar file."},
			relayFlag,
		},
		Action: func(c *cli.Context) error {
			event, err := eventFromFlags(c)
			if err != nil {
				return err
			}

			var created *createdEvent
			if c.Bool("relay") {
				cfg, logger, err := loadConfig()
				if err != nil {
					return err
				}
				ev, err := relay.NewClient(logger, cfg.RelayAddr, nil).CreateEvent(c.Context, event)
				if err != nil {
					return fmt.Errorf("failed to create event: %w", err)
				}
				created = &createdEvent{ev}
			} else {
				e, err := newEnv()
				if err != nil {
					return err
				}
				defer e.Close()

				event, err = withDefaultTimeZone(c.Context, e.store, event)
				if err != nil {
					return err
				}
				ev, err := e.submitter.CreateEvent(c.Context, event)
				if err != nil {
					return fmt.Errorf("failed to create event: %w", err)
				}
				created = &createdEvent{ev}
			}

			created.print(os.Stdout)
			if path := c.Path("export"); path != "" {
				return created.export(path)
			}
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create every event of an iCalendar file, skipping ones already created.",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be created without making changes."},
			relayFlag,
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("import needs exactly one FILE argument")
			}
			events, err := readICS(c.Args().First())
			if err != nil {
				return err
			}

			var approver *batch.Approver
			if c.Bool("relay") {
				cfg, logger, err := loadConfig()
				if err != nil {
					return err
				}
				// The coordinator owns the store, so the ledger only lives for this run.
				logger.Warn("Relay mode does not remember events from earlier imports.")
				approver = batch.NewApprover(logger, relay.NewClient(logger, cfg.RelayAddr, nil), store.NewMemory(), c.Bool("dry-run"))
			} else {
				e, err := newEnv()
				if err != nil {
					return err
				}
				defer e.Close()

				for i := range events {
					if events[i], err = withDefaultTimeZone(c.Context, e.store, events[i]); err != nil {
						return err
					}
				}
				approver = batch.NewApprover(e.logger, e.submitter, e.store, c.Bool("dry-run"))
			}

			return importEvents(c.Context, approver, events, os.Stdout)
		},
	}
}

// importEvents submits events and prints the ones that were created.
func importEvents(ctx context.Context, approver *batch.Approver, events []models.CalendarEvent, w io.Writer) error {
	res, err := approver.Approve(ctx, events)
	if res != nil {
		for _, ev := range res.Created {
			(&createdEvent{ev}).print(w)
		}
	}
	return err
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the cached calendar token and the Google session's access token.",
		Action: func(c *cli.Context) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.manager.Logout(c.Context); err != nil {
				return err
			}
			e.logger.Info("Logged out.")
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the coordinator that holds credentials for 'relay' clients.",
		Action: func(c *cli.Context) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return relay.NewServer(e.logger, e.manager, e.submitter).ListenAndServe(ctx, e.cfg.RelayAddr)
		},
	}
}

func prefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "Show or change preferences.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "timezone", Usage: "Default IANA time zone for events without one."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := store.OpenBadger(cfg.StorePath)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() { _ = s.Close() }()

			p, err := prefs.Load(c.Context, s)
			if err != nil {
				return err
			}
			if c.IsSet("timezone") {
				p.DefaultTimeZone = c.String("timezone")
				if err := prefs.Save(c.Context, s, p); err != nil {
					return err
				}
				logger.Info("Saved preferences.")
			}

			fmt.Printf("onboarding complete: %t\ndefault time zone:   %s\n", p.OnboardingComplete, p.DefaultTimeZone)
			return nil
		},
	}
}

func withDefaultTimeZone(ctx context.Context, s store.Store, event models.CalendarEvent) (models.CalendarEvent, error) {
	p, err := prefs.Load(ctx, s)
	if err != nil {
		return event, err
	}
	return event.WithDefaultTimeZone(p.DefaultTimeZone), nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
