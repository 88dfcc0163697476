package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/logger"
)

const (
	app       = "ikimatch"
	envPrefix = "IKIMATCH"
)

type Config struct {
	Store    *StoreConfig    `mapstructure:"store"`
	Matching *MatchingConfig `mapstructure:"matching"`
	AI       *AIConfig       `mapstructure:"ai"`
	Cache    *CacheConfig    `mapstructure:"cache"`
	Server   *ServerConfig   `mapstructure:"server"`
}

type StoreConfig struct {
	// Backend is one of supabase, postgres or fixture.
	Backend  string          `mapstructure:"backend"`
	Fixture  string          `mapstructure:"fixture"`
	Supabase *SupabaseConfig `mapstructure:"supabase"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
}

type SupabaseConfig struct {
	URL            string `mapstructure:"url"`
	ServiceKey     string `mapstructure:"service-key"`
	ServiceKeyFile string `mapstructure:"service-key-file"`
	PageSize       int    `mapstructure:"page-size"`
	UserAgent      string `mapstructure:"user-agent"`
}

type PostgresConfig struct {
	DSN            string `mapstructure:"dsn"`
	DSNFile        string `mapstructure:"dsn-file"`
	MaxConnections int    `mapstructure:"max-connections"`
	MaxIdle        int    `mapstructure:"max-idle"`
}

type MatchingConfig struct {
	MinScore       int      `mapstructure:"min-score"`
	MaxQueryLength int      `mapstructure:"max-query-length"`
	ExcludeFile    string   `mapstructure:"exclude-file"`
	Intents        []string `mapstructure:"intents"`
}

type AIConfig struct {
	Provider          string        `mapstructure:"provider"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max-retries"`
	Backoff           time.Duration `mapstructure:"backoff"`
	MaxLogLength      int           `mapstructure:"max-log-length"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
	OpenAI            *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenAIConfig struct {
	BaseURL    string `mapstructure:"base-url"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowOrigins   []string      `mapstructure:"allow-origins"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "ikimatch ranks platform members against a free-text search using a language model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ikimatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "supabase")
	v.SetDefault("store.fixture", "")
	v.SetDefault("store.supabase.url", "")
	v.SetDefault("store.supabase.service-key", "")
	v.SetDefault("store.supabase.service-key-file", "")
	v.SetDefault("store.supabase.page-size", 1000)
	v.SetDefault("store.supabase.user-agent", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.dsn-file", "")
	v.SetDefault("store.postgres.max-connections", 10)
	v.SetDefault("store.postgres.max-idle", 5)

	v.SetDefault("matching.min-score", 50)
	v.SetDefault("matching.max-query-length", 500)
	v.SetDefault("matching.exclude-file", "")
	v.SetDefault("matching.intents", []string{})

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.max-retries", 1)
	v.SetDefault("ai.backoff", 2*time.Second)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.requests-per-minute", 0)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.openai.base-url", "")
	v.SetDefault("ai.openai.api-key", "")
	v.SetDefault("ai.openai.api-key-file", "")
	v.SetDefault("ai.openai.model", "google/gemini-2.5-flash")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.prefix", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow-origins", []string{"*"})
	v.SetDefault("server.request-timeout", 90*time.Second)
}

func initConfig() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config everything can come from the environment.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}
	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Store == nil || c.Matching == nil || c.AI == nil || c.Cache == nil || c.Server == nil {
		return errors.New("config sections store, matching, ai, cache and server are required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case "supabase":
		if c.Store.Supabase == nil || strings.TrimSpace(c.Store.Supabase.URL) == "" {
			return errors.New("store.supabase.url is required for the supabase backend")
		}
	case "postgres":
		if c.Store.Postgres == nil {
			return errors.New("store.postgres section is required for the postgres backend")
		}
	case "fixture":
		if strings.TrimSpace(c.Store.Fixture) == "" {
			return errors.New("store.fixture is required for the fixture backend")
		}
	default:
		return errors.New("store.backend must be one of supabase, postgres, fixture")
	}

	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case "gemini":
		if c.AI.Gemini == nil {
			return errors.New("ai.gemini section is required for the gemini provider")
		}
	case "openai":
		if c.AI.OpenAI == nil {
			return errors.New("ai.openai section is required for the openai provider")
		}
	default:
		return errors.New("ai.provider must be one of gemini, openai")
	}

	if c.Matching.MinScore > 100 {
		return errors.New("matching.min-score must not exceed 100")
	}
	if c.AI.MaxRetries < 0 {
		return errors.New("ai.max-retries must not be negative")
	}
	return nil
}

// newLogger builds the command logger. MCP mode passes stderr because stdout
// carries the protocol.
func newLogger(output string) *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: output,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}
