package cmd

import (
	"os"

	"github.com/collabflow/collabflow-cli/auth"
	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/config"
	"github.com/collabflow/collabflow-cli/db"
	"github.com/collabflow/collabflow-cli/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// skipSetup marks commands that run without config, database or API client.
const skipSetup = "skip-setup"

// environment is what a command works with once setup has run.
type environment struct {
	cfg    *config.Config
	client *client.Client
	teams  db.TeamRepository
}

var (
	cfgFile string
	env     *environment
)

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	config.KeyAPIURL:         "api-url",
	config.KeyDBPath:         "db-path",
	config.KeyRequestTimeout: "timeout",
	config.KeyRateLimit:      "rate-limit",
	config.KeyWorkers:        "workers",
}

func Execute() {
	rootCmd := createRootCmd()
	defer closeDatabase()

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		rootCmd.PrintErrln("Error:", err)
		closeDatabase()
		os.Exit(clierr.ExitCode(err))
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "collabflow",
		Short:         "Manage CollabFlow teams from the command line",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			return setupEnvironment(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is ~/.collabflow/config.yaml)")
	flags.String("api-url", "", "Base URL of the CollabFlow API")
	flags.String("db-path", "", "Path of the local session and cache database")
	flags.Duration("timeout", 0, "Timeout of a single API request (e.g. 30s)")
	flags.Float64("rate-limit", 0, "Maximum API requests per second; 0 means unlimited")
	flags.BoolP("help", "h", false, "Show help for a command")

	rootCmd.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		tokenCmd(),
		teamsCmd(),
		inviteCmd(),
		membersCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// setupEnvironment loads the configuration, opens the local database and
// builds the API client with a session persisted in it.
func setupEnvironment(cmd *cobra.Command) error {
	v := config.New(cfgFile)
	for key, name := range flagBindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return clierr.New(clierr.Internal, "Failed to bind flag --"+name, err)
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return clierr.New(clierr.Validation, "Invalid configuration: "+err.Error(), err)
	}

	if cfg.DBPath != "" {
		db.Path = cfg.DBPath
	} else if err := db.ConfigurePath(); err != nil {
		return clierr.New(clierr.Internal, "Failed to resolve the database path", err)
	}
	if err := initializeDatabase(); err != nil {
		return clierr.New(clierr.Internal, "Failed to open the local database at "+db.Path, err)
	}

	gdb := db.GetDB()
	session := auth.NewSession(
		auth.NewRepoStorer(db.NewTokenRepository(gdb)),
		auth.WithRefreshTimeout(cfg.RefreshTimeout),
		auth.WithRedirector(auth.RedirectFunc(func(reason error) {
			log.Warn().Err(reason).Msg("Session could not be recovered")
			cmd.PrintErrln("Run 'collabflow login' to sign in again.")
		})),
	)
	env = &environment{
		cfg: cfg,
		client: client.New(cfg.APIURL, session,
			client.WithTimeout(cfg.RequestTimeout),
			client.WithRateLimit(cfg.RateLimit),
			client.WithRefreshCookieName(cfg.RefreshCookie),
			client.WithUserAgent("collabflow-cli/"+version),
		),
		teams: db.NewTeamRepository(gdb),
	}
	log.Debug().Str("api", cfg.APIURL).Str("db", db.Path).Msg("Environment ready")
	return nil
}

func initializeDatabase() error {
	closeDatabase()
	if err := db.InitDB(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return err
	}
	return nil
}

func closeDatabase() {
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
	}
	db.Db = nil
}
