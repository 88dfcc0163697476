package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/matching"
	"github.com/spigell/ikimatch/internal/profiles"
)

const (
	PromptBack          = "back"
	PromptExit          = "exit"
	PromptShowRaw       = "Print result as JSON"
	PromptExcludeResult = "Hide this profile from matching"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match [query]",
	Short: "Run a single match search from the terminal",
	Args:  cobra.MinimumNArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindExcludeFile(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		match(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("user", "u", "", "id of the member running the search (required)")
	matchCmd.Flags().BoolP("interactive", "i", false, "browse the results interactively")
	matchCmd.Flags().Bool("include-excluded", false, "do not apply the moderation exclude file")
	matchCmd.Flags().StringP("exclude-file", "e", "", "moderation file with profiles hidden from matching")
	matchCmd.MarkFlagRequired("user")

}

func match(cmd *cobra.Command, query string) {
	logger := newLogger("stderr")
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redact(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	includeExcluded, _ := cmd.Flags().GetBool("include-excluded")
	interactive, _ := cmd.Flags().GetBool("interactive")
	userID, _ := cmd.Flags().GetString("user")

	ctx := context.Background()
	a, err := buildApp(ctx, config, logger, buildOptions{includeExcluded: includeExcluded})
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer a.Close()

	ctx = matching.WithRequestID(ctx, "cli")
	result, err := a.pipeline.FindMatches(ctx, query, userID)
	if err != nil {
		logger.Error("search failed",
			zap.String("code", string(matching.KindOf(err))),
			zap.Bool("retryable", matching.IsRetryable(err)),
			zap.Error(err),
		)
		a.Close()
		_ = logger.Sync()
		os.Exit(1)
	}

	if !interactive {
		printJSON(result)
		return
	}

	if err := browse(result, config.Matching.ExcludeFile, logger); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func browse(result *matching.Result, excludeFile string, logger *zap.Logger) error {
	if len(result.Raw) == 0 {
		logger.Info("exiting", zap.String("reason", "no matches found"))
		return errExit
	}

	for {
		items := make([]string, 0, len(result.Raw)+2)
		for _, m := range result.Raw {
			tier, _ := matching.TierOf(m.Score)
			items = append(items, fmt.Sprintf("%s %3d %-9s %s", m.ProfileID, m.Score, tier, m.Profile.FullName))
		}
		items = append(items, PromptShowRaw, PromptExit)

		selector := promptui.Select{
			Label: "Choose a match and press ENTER",
			Items: items,
			Size:  10,
		}
		_, selected, err := selector.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptExit:
			return errExit
		case PromptShowRaw:
			printJSON(result)
		default:
			id := strings.Split(selected, " ")[0]
			if err := showMatch(result, id, excludeFile, logger); err != nil {
				return err
			}
		}
	}
}

func showMatch(result *matching.Result, id, excludeFile string, logger *zap.Logger) error {
	var selected *matching.RankedMatch
	for i := range result.Raw {
		if result.Raw[i].ProfileID == id {
			selected = &result.Raw[i]
			break
		}
	}
	if selected == nil {
		return fmt.Errorf("there is no such match %s", id)
	}

	printJSON(selected)

	actions := []string{PromptBack}
	if excludeFile != "" {
		actions = append(actions, PromptExcludeResult)
	}
	actionPrompt := promptui.Select{Label: "Action", Items: actions}
	_, action, err := actionPrompt.Run()
	if err != nil {
		return err
	}
	if action != PromptExcludeResult {
		return nil
	}

	reason := promptui.Prompt{Label: "Reason"}
	text, err := reason.Run()
	if err != nil {
		return err
	}
	return excludeProfile(excludeFile, id, text, logger)
}

// excludeProfile appends id to the moderation file used by the exclude_file filter.
func excludeProfile(path, id, reason string, logger *zap.Logger) error {
	excluded, err := profiles.GetExcludedProfilesFromFile(path)
	if err != nil {
		return fmt.Errorf("read exclude file: %w", err)
	}
	if !excluded.Add(id, reason) {
		logger.Info("profile already excluded", zap.String("profile_id", id))
		return nil
	}
	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("write exclude file: %w", err)
	}
	logger.Info("appended to exclude file", zap.String("filename", path), zap.String("profile_id", id))
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

// redact hides inline secrets before the config is logged.
func redact(c *Config) *Config {
	cp := *c
	if c.Store != nil {
		store := *c.Store
		if store.Supabase != nil {
			sb := *store.Supabase
			sb.ServiceKey = mask(sb.ServiceKey)
			store.Supabase = &sb
		}
		if store.Postgres != nil {
			pg := *store.Postgres
			pg.DSN = mask(pg.DSN)
			store.Postgres = &pg
		}
		cp.Store = &store
	}
	if c.AI != nil {
		aiCfg := *c.AI
		if aiCfg.Gemini != nil {
			g := *aiCfg.Gemini
			g.APIKey = mask(g.APIKey)
			aiCfg.Gemini = &g
		}
		if aiCfg.OpenAI != nil {
			o := *aiCfg.OpenAI
			o.APIKey = mask(o.APIKey)
			aiCfg.OpenAI = &o
		}
		cp.AI = &aiCfg
	}
	if c.Cache != nil {
		cacheCfg := *c.Cache
		cacheCfg.Password = mask(cacheCfg.Password)
		cp.Cache = &cacheCfg
	}
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
