package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ado-mcp/internal/config"
	"ado-mcp/internal/devops"
	"ado-mcp/internal/eventlog"
	"ado-mcp/internal/logging"
	"ado-mcp/internal/mcp"
	"ado-mcp/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	docs    *store.Set
	journal *eventlog.Journal
)

var rootCmd = &cobra.Command{
	Use:   "ado-mcp",
	Short: "ADO-MCP discovers and documents an Azure DevOps organization over MCP",
	Long: `An MCP Server that investigates an Azure DevOps organization (work item types, custom fields,
picklist values, team structure and hierarchy) and keeps the findings in a local configuration document.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		docs, err = store.OpenSet(cfg.DataPath, cfg.OrganizationFile, cfg.FieldMappingFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open configuration documents")
		}

		journal = eventlog.NewJournal(cfg.JournalFile)
		if err := journal.Load(); err != nil {
			log.Warn().Err(err).Str("path", cfg.JournalFile).Msg("Investigation history unavailable")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("dataPath", cfg.DataPath).
			Msg("ADO-MCP starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info().Msg("MCP Server starting Stdio loop")
		server := mcp.NewServer(cfg, client, docs, journal, Version)
		return server.Start(ctx)
	},
}

// newClient validates the credentials before anything talks to the service.
func newClient() (devops.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return devops.NewClient(cfg.DevOps), nil
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.SilenceUsage = true
}
