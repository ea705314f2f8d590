package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dualpane/navigator/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage navigator preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the preferences file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := preferencesPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := loadPreferences()
			if err != nil {
				return err
			}
			fmt.Printf("cd_follows_symlinks      = %v\n", prefs.Navigation.CDFollowsSymlinks)
			fmt.Printf("show_hidden_files        = %v\n", prefs.Navigation.ShowHiddenFiles)
			fmt.Printf("refresh_poll_seconds     = %d\n", prefs.Monitor.RefreshPollSeconds)
			fmt.Printf("max_workers              = %d\n", prefs.Executor.MaxWorkers)
			fmt.Printf("shutdown_timeout_seconds = %d\n", prefs.Executor.ShutdownTimeoutSeconds)
			fmt.Printf("volume_poll_seconds      = %d\n", prefs.Volume.PollSeconds)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a preferences file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := preferencesPath()
			if err != nil {
				return err
			}
			if err := config.NewPreferences().Save(path); err != nil {
				return err
			}
			fmt.Printf("Wrote defaults to %s\n", path)
			return nil
		},
	})

	return cmd
}

func preferencesPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPreferencesPath()
}
