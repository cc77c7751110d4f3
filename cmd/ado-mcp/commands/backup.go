package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"ado-mcp/internal/backup"

	"github.com/spf13/cobra"
)

var backupDocument string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and restore backups of the configuration documents",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Back up the selected document, or both when none is selected",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := documentPaths(true)
		if err != nil {
			return err
		}
		docs.Lock()
		records := backup.NewManager().BackupAll(paths...)
		docs.Unlock()
		return printJSON(cmd, records)
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := documentPaths(true)
		if err != nil {
			return err
		}
		m := backup.NewManager()
		listing := make(map[string][]backup.Entry, len(paths))
		for _, p := range paths {
			listing[p] = m.ListBackups(p)
		}
		return printJSON(cmd, listing)
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the selected document from its most recent backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := documentPaths(false)
		if err != nil {
			return err
		}
		docs.Lock()
		res := backup.NewManager().Restore(paths[0])
		docs.Unlock()
		if err := printJSON(cmd, res); err != nil {
			return err
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	},
}

// documentPaths maps --document to backing files. Without a selection both
// documents are returned when all is set.
func documentPaths(all bool) ([]string, error) {
	switch backupDocument {
	case "organization":
		return []string{docs.Organization.Path()}, nil
	case "field_mappings":
		return []string{docs.FieldMappings.Path()}, nil
	case "":
		if all {
			return docs.Paths(), nil
		}
		return nil, errors.New("--document is required (organization or field_mappings)")
	default:
		return nil, fmt.Errorf("unknown document %q (expected organization or field_mappings)", backupDocument)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func init() {
	backupCmd.PersistentFlags().StringVarP(&backupDocument, "document", "d", "", "organization or field_mappings")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
