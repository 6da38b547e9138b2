package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/exman-app/exman-go/api"
	"github.com/exman-app/exman-go/auth"
	"github.com/exman-app/exman-go/identity"
	"github.com/exman-app/exman-go/identity/firebase"
	"github.com/exman-app/exman-go/identity/googleauth"
	"github.com/exman-app/exman-go/internal/config"
	"github.com/exman-app/exman-go/internal/cookiejar"
)

const appName = "ExMan"

var logger zerolog.Logger

func main() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if os.Getenv("EXMAN_DEBUG") == "" {
		logger = logger.Level(zerolog.WarnLevel)
	}

	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "exman",
		Short:         "Track work hours and expenses from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			displayAppname(appName)
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the config file (default ~/.exman/config.yaml)")

	root.AddCommand(
		loginCommand(&cfgPath),
		signupCommand(&cfgPath),
		logoutCommand(&cfgPath),
		whoamiCommand(&cfgPath),
		forgotPasswordCommand(&cfgPath),
		resetPasswordCommand(&cfgPath),
		entryCommand(&cfgPath),
		reportCommand(&cfgPath),
		settingsCommand(&cfgPath),
	)
	return root
}

// app bundles the wired client stack for one command invocation.
type app struct {
	cfg    config.Config
	jar    *cookiejar.Jar
	api    *api.Client
	engine *auth.Engine
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(cfg.GetCookieFile())
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(cfg.GetRequestTimeout())
	if err != nil {
		return nil, fmt.Errorf("invalid request timeout %q: %w", cfg.GetRequestTimeout(), err)
	}

	apiClient, err := api.New(cfg.GetAPIBaseURL(),
		api.WithHTTPClient(&http.Client{Timeout: timeout, Jar: jar}),
		api.WithLogger(logger),
		api.WithSessionExpiredHandler(func() {
			fmt.Fprintln(os.Stderr, "Session expired. Run `exman login` to sign in again.")
		}),
	)
	if err != nil {
		return nil, err
	}

	var provider identity.Provider
	if cfg.IsFirebaseConfigured() {
		opts := []firebase.Option{firebase.WithLogger(logger)}
		if cfg.GetGoogleClientID() != "" {
			flow, err := googleauth.New(cfg.GetGoogleClientID(), cfg.GetGoogleClientSecret(),
				googleauth.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			opts = append(opts, firebase.WithAuthenticator(flow))
		}
		provider, err = firebase.New(cfg.GetFirebaseAPIKey(), opts...)
		if err != nil {
			return nil, err
		}
	}

	engine, err := auth.New(apiClient, provider, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, jar: jar, api: apiClient, engine: engine}, nil
}

// start brings the engine up and waits for the initial session probe.
func (a *app) start(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	select {
	case <-a.engine.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) close() {
	a.engine.Close()
}

// requireSession starts the engine and fails when nobody is logged in.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		return err
	}
	if a.engine.State() != auth.StateAuthenticated {
		return errors.New("not logged in, run `exman login` first")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
