package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"ado-mcp/internal/backup"
	"ado-mcp/internal/devops"
	"ado-mcp/internal/investigation"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var investigateFlags struct {
	kind      string
	project   string
	team      string
	area      string
	iteration string
	backup    bool
}

var investigateCmd = &cobra.Command{
	Use:   "investigate",
	Short: "Run one investigation and print its report",
	Long: `Runs an investigation against the configured organization, merges the findings into the
configuration documents and prints the report to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		project := investigateFlags.project
		if project == "" {
			project = cfg.DevOps.DefaultProject
		}

		res, err := newOrchestrator(client).Investigate(ctx, investigation.Request{
			Kind:          investigateFlags.kind,
			Project:       project,
			Team:          investigateFlags.team,
			AreaPath:      investigateFlags.area,
			IterationPath: investigateFlags.iteration,
			BackupFirst:   investigateFlags.backup,
		})
		if res != nil {
			fmt.Fprintln(cmd.OutOrStdout(), res.Report)
		}
		if err != nil {
			var reqErr *investigation.RequestError
			if !errors.As(err, &reqErr) {
				log.Error().Err(err).Msg("Investigation failed")
			}
			return err
		}
		return nil
	},
}

func newOrchestrator(client devops.Client) *investigation.Orchestrator {
	return investigation.New(client, docs, backup.NewManager(), journal, investigation.Options{
		Organization:         cfg.DevOps.Organization,
		OrganizationURL:      cfg.DevOps.OrganizationURL,
		HierarchySampleSize:  cfg.Discovery.HierarchySampleSize,
		FieldValueSampleSize: cfg.Discovery.FieldValueSampleSize,
		SampleFieldValues:    cfg.Discovery.SampleFieldValues,
		Charts:               cfg.EnableMermaidCharts,
	})
}

func init() {
	f := investigateCmd.Flags()
	f.StringVarP(&investigateFlags.kind, "kind", "k", string(investigation.KindFullConfiguration), "investigation to run ("+investigation.KindList()+")")
	f.StringVarP(&investigateFlags.project, "project", "p", "", "team project (defaults to AZURE_DEVOPS_PROJECT)")
	f.StringVar(&investigateFlags.team, "team", "", "team name")
	f.StringVar(&investigateFlags.area, "area", "", "area path scoping the hierarchy sample")
	f.StringVar(&investigateFlags.iteration, "iteration", "", "iteration path")
	f.BoolVar(&investigateFlags.backup, "backup", false, "back up the configuration documents first")
	rootCmd.AddCommand(investigateCmd)
}
