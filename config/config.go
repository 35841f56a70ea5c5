package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhcgn/kakaotalk-to-doc/encode"
	"github.com/dhcgn/kakaotalk-to-doc/filter"
	"github.com/dhcgn/kakaotalk-to-doc/projection"
	"github.com/dhcgn/kakaotalk-to-doc/state"
	"github.com/dhcgn/kakaotalk-to-doc/transcript"
)

// EnvPrefix namespaces environment overrides, e.g. KAKAOTALK_TO_DOC_FORMAT.
const EnvPrefix = "KAKAOTALK_TO_DOC"

// Config captures all options required to convert a transcript.
type Config struct {
	InputPath    string
	OutputDir    string
	Format       encode.Format
	Name         string
	StateDir     string
	StateBackend state.Backend
	UseSession   bool
	SaveState    bool
	LogLevel     string
	LogDir       string
	FontPath     string
	FontFallback bool
	Verify       bool
	Progress     bool
	MaxInputSize int64

	Criteria       filter.Criteria
	Columns        projection.Selection
	IncludeContent []string
	ExcludeContent []string

	overrides map[string]bool
}

// Keys whose explicit values replace the persisted application state.
var overrideKeys = []string{"exclude-system", "date-from", "date-to", "sender", "query", "columns"}

// RegisterFlags attaches all CLI flags to the provided command. Flags are
// persistent so subcommands share them.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Optional YAML config file")
	flags.String("input", "", "Path to the exported KakaoTalk .txt transcript")
	flags.String("output-dir", ".", "Directory the converted document is written to")
	flags.String("format", string(encode.FormatXLSX), "Output format: xlsx, csv, pdf")
	flags.String("name", "", "Output filename stem (defaults to the input name without .txt)")
	flags.String("state-dir", defaultStateDir, "Directory for session and option state")
	flags.String("state-backend", string(state.BackendFile), "State backend: file, sqlite, memory")
	flags.Bool("use-session", false, "Read the transcript stored by the upload command instead of --input")
	flags.Bool("save-state", true, "Persist filter and column options after a conversion")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (logs are also written to stdout)")
	flags.String("font", "", "TrueType/OpenType font for PDF output (defaults to the bundled Go font)")
	flags.Bool("font-fallback", false, "Fall back to fixed-width glyph boxes when the font cannot be loaded")
	flags.Bool("verify", false, "Validate generated PDF documents after writing")
	flags.Bool("progress", false, "Show a progress bar while encoding")
	flags.Int64("max-input-size", transcript.DefaultMaxSize, "Maximum transcript size in bytes")
	flags.Bool("exclude-system", false, "Drop system messages")
	flags.String("date-from", "", "First day to include (YYYY-MM-DD)")
	flags.String("date-to", "", "Last day to include (YYYY-MM-DD)")
	flags.StringArray("sender", nil, "Only include messages from this sender (repeatable); --sender \"\" clears a saved sender filter")
	flags.String("query", "", "Case-insensitive search over sender and content")
	flags.String("columns", "", "Comma-separated columns: date,time,sender,type,content")
	flags.StringArray("include-content", nil, "Regex allow-list applied to message content (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-content", nil, "Regex block-list applied to message content (mutually exclusive with include flags)")

	return nil
}

// LoadConfig layers flags over environment variables, an optional .env file
// and an optional config file, then validates the result.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	format, err := encode.ParseFormat(v.GetString("format"))
	if err != nil {
		return Config{}, err
	}
	dateFrom, err := filter.ParseDay(v.GetString("date-from"))
	if err != nil {
		return Config{}, fmt.Errorf("--date-from: %w", err)
	}
	dateTo, err := filter.ParseDay(v.GetString("date-to"))
	if err != nil {
		return Config{}, fmt.Errorf("--date-to: %w", err)
	}
	columns, err := projection.ParseSelection(v.GetString("columns"))
	if err != nil {
		return Config{}, fmt.Errorf("--columns: %w", err)
	}

	stateDir := v.GetString("state-dir")
	if stateDir == "" {
		stateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		InputPath:    v.GetString("input"),
		OutputDir:    filepath.Clean(v.GetString("output-dir")),
		Format:       format,
		Name:         strings.TrimSpace(v.GetString("name")),
		StateDir:     filepath.Clean(stateDir),
		StateBackend: state.Backend(strings.ToLower(v.GetString("state-backend"))),
		UseSession:   v.GetBool("use-session"),
		SaveState:    v.GetBool("save-state"),
		LogLevel:     logLevel,
		LogDir:       v.GetString("log-dir"),
		FontPath:     v.GetString("font"),
		FontFallback: v.GetBool("font-fallback"),
		Verify:       v.GetBool("verify"),
		Progress:     v.GetBool("progress"),
		MaxInputSize: v.GetInt64("max-input-size"),
		Criteria: filter.Criteria{
			ExcludeSystem: v.GetBool("exclude-system"),
			DateStart:     dateFrom,
			DateEnd:       dateTo,
			Senders:       nonEmpty(v.GetStringSlice("sender")),
			Query:         v.GetString("query"),
		},
		Columns:        columns,
		IncludeContent: nonEmpty(v.GetStringSlice("include-content")),
		ExcludeContent: nonEmpty(v.GetStringSlice("exclude-content")),
		overrides:      make(map[string]bool, len(overrideKeys)),
	}
	for _, key := range overrideKeys {
		cfg.overrides[key] = v.IsSet(key)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if len(cfg.IncludeContent) > 0 && len(cfg.ExcludeContent) > 0 {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}
	if cfg.MaxInputSize <= 0 {
		return fmt.Errorf("--max-input-size must be positive")
	}
	if !cfg.Criteria.DateStart.IsZero() && !cfg.Criteria.DateEnd.IsZero() && cfg.Criteria.DateEnd.Before(cfg.Criteria.DateStart) {
		return fmt.Errorf("--date-to must not be before --date-from")
	}

	switch cfg.StateBackend {
	case state.BackendFile, state.BackendSQLite, state.BackendMemory:
	default:
		return fmt.Errorf("invalid --state-backend: %s", cfg.StateBackend)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

// RequireInput reports an error unless a transcript source is configured.
func (c Config) RequireInput() error {
	if c.InputPath == "" && !c.UseSession {
		return fmt.Errorf("--input or --use-session is required")
	}
	return nil
}

// ApplyOverrides replaces the fields of st that were set explicitly via
// flags, environment or config file.
func (c Config) ApplyOverrides(st state.AppState) state.AppState {
	if c.overrides["exclude-system"] {
		st.Filter.ExcludeSystem = c.Criteria.ExcludeSystem
	}
	if c.overrides["date-from"] {
		st.Filter.DateStart = c.Criteria.DateStart
	}
	if c.overrides["date-to"] {
		st.Filter.DateEnd = c.Criteria.DateEnd
	}
	if c.overrides["sender"] {
		st.Filter.Senders = c.Criteria.Senders
	}
	if c.overrides["query"] {
		st.Filter.Query = c.Criteria.Query
	}
	if c.overrides["columns"] {
		st.Columns = c.Columns
	}
	return st
}

// AppState is the state described by the configuration alone.
func (c Config) AppState() state.AppState {
	return state.AppState{Filter: c.Criteria, Columns: c.Columns}
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kakaotalk-to-doc", "state"), nil
}
