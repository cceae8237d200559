package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flashcards-backend/internal/apiclient"
	"flashcards-backend/internal/logger"
	"flashcards-backend/internal/models"
)

// app carries what every subcommand needs.
type app struct {
	cfg    *viper.Viper
	path   string
	log    logrus.FieldLogger
	auth   *apiclient.AuthContext
	client *apiclient.Client
}

func main() {
	a := &app{cfg: viper.New()}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "flashcards",
		Short:         "Generate and study flashcards from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(verbose)
		},
	}

	root.PersistentFlags().StringVar(&a.path, "config", defaultConfigPath(), "config file")
	root.PersistentFlags().String("server", "http://localhost:8080/api/v1", "API base URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests")
	a.cfg.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	a.cfg.SetEnvPrefix("FLASHCARDS")
	a.cfg.AutomaticEnv()

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newTopicsCmd(a),
		newGenerateCmd(a),
		newStudyCmd(a),
	)
	return root
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flashcards.yaml"
	}
	return filepath.Join(home, ".flashcards.yaml")
}

// init loads the saved session and keeps the file in step with the auth
// context.
func (a *app) init(verbose bool) error {
	log := logger.Discard()
	if verbose {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
	}
	a.log = log

	a.cfg.SetConfigFile(a.path)
	a.cfg.SetConfigType("yaml")
	if _, err := os.Stat(a.path); err == nil {
		if err := a.cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.path, err)
		}
	}

	a.auth = apiclient.NewAuthContext()
	if token := a.cfg.GetString("access_token"); token != "" {
		a.auth.SignIn(&models.User{Email: a.cfg.GetString("email")}, models.AuthTokens{
			AccessToken:  token,
			RefreshToken: a.cfg.GetString("refresh_token"),
		})
	}
	a.auth.Subscribe(a.persist)

	a.client = apiclient.New(a.cfg.GetString("server"), a.auth, apiclient.WithLogger(log))
	return nil
}

func (a *app) persist(state apiclient.AuthState) {
	switch state.Event {
	case apiclient.EventSignedOut:
		a.cfg.Set("access_token", "")
		a.cfg.Set("refresh_token", "")
		a.cfg.Set("email", "")
	default:
		a.cfg.Set("access_token", state.Token)
		a.cfg.Set("refresh_token", a.auth.RefreshToken())
		if state.User != nil && state.User.Email != "" {
			a.cfg.Set("email", state.User.Email)
		}
	}
	if err := a.cfg.WriteConfigAs(a.path); err != nil {
		a.log.WithError(err).Warn("failed to save session")
	}
}

func (a *app) requireLogin() error {
	if !a.auth.SignedIn() {
		return fmt.Errorf("not logged in, run `flashcards login` first")
	}
	return nil
}
