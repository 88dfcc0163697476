package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/profiles"
)

var excludeCmd = &cobra.Command{
	Use:   "exclude [profile-id...]",
	Short: "Hide profiles from matching by adding them to the exclude file",
	Args:  cobra.MinimumNArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindExcludeFile(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("")
		defer logger.Sync() //nolint:errcheck

		path := viper.GetString("matching.exclude-file")
		if path == "" {
			logger.Fatal("exclude file is not configured", zap.String("hint", "set matching.exclude-file or pass --exclude-file"))
		}
		reason, _ := cmd.Flags().GetString("reason")

		for _, id := range args {
			if err := profiles.ValidateUserID(id); err != nil {
				logger.Fatal("invalid profile id", zap.String("profile_id", id), zap.Error(err))
			}
			if err := excludeProfile(path, id, reason, logger); err != nil {
				logger.Fatal("excluding profile", zap.Error(err))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(excludeCmd)

	excludeCmd.Flags().StringP("reason", "r", "", "why the profiles are hidden")
	excludeCmd.Flags().StringP("exclude-file", "e", "", "moderation file with profiles hidden from matching")

}

// bindExcludeFile binds the --exclude-file flag of the running command. Several
// commands define it, and viper keeps one binding per key.
func bindExcludeFile(cmd *cobra.Command) {
	viper.BindPFlag("matching.exclude-file", cmd.Flags().Lookup("exclude-file"))
}
