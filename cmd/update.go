package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/camstream/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var check, prerelease, rollback bool
	var repository string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update camstream to the latest release",
		Long: `Downloads the latest GitHub release and replaces the running binary, keeping a backup of the old one. ` +
			`Restart the service afterwards. --rollback restores the backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			up, err := updater.New(updater.Options{
				Repository: repository,
				Prerelease: prerelease,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rollback {
				restored, err := up.Rollback()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Restored camstream %s, restart the service to use it\n", restored)
				return nil
			}

			if check {
				info, err := up.Check(cmd.Context())
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			info, err := up.Apply(cmd.Context())
			if errors.Is(err, updater.ErrUpToDate) {
				fmt.Fprintf(out, "camstream %s is up to date\n", info.CurrentVersion)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Updated camstream %s -> %s, restart the service to use it\n", info.CurrentVersion, info.LatestVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the binary replaced by the last update")
	cmd.Flags().StringVar(&repository, "repository", updater.DefaultRepository, "GitHub repository to fetch releases from")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")
	return cmd
}
