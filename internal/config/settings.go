package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/verte-zerg/hpctrend/internal/model"
	"github.com/verte-zerg/hpctrend/internal/snapshot"
)

// EnvPrefix prefixes every environment override, e.g. HPCTREND_DATA_DIR.
const EnvPrefix = "HPCTREND"

// Defaults reproduce the classic TOP500 trend chart.
const (
	DefaultDataDir     = "data"
	DefaultField       = "r-max"
	DefaultStepMonths  = 6
	DefaultSteps       = 16
	DefaultOutputDir   = "."
	DefaultNameLayout  = "150405"
	DefaultDPI         = 150
	DefaultWidth       = 34.0
	DefaultHeight      = 20.0
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultURLTemplate = "https://www.top500.org/lists/top500/{yyyy}/{mm}/download/TOP500_{yyyy}{mm}.xml"
)

// DefaultRanks are the ranks charted when none are configured.
var DefaultRanks = []int{1, 10, 50, 500}

// DefaultFetchMonths are the TOP500 publication months.
var DefaultFetchMonths = []int{6, 11}

// EnvConfig holds overrides read from the environment.
type EnvConfig struct {
	DataDir    *string  `envconfig:"DATA_DIR"`
	Field      *string  `envconfig:"FIELD"`
	Ranks      []int    `envconfig:"RANKS"`
	StepMonths *int     `envconfig:"STEP_MONTHS"`
	Steps      *int     `envconfig:"STEPS"`
	OutputDir  *string  `envconfig:"OUTPUT_DIR"`
	DPI        *int     `envconfig:"DPI"`
	Width      *float64 `envconfig:"WIDTH"`
	Height     *float64 `envconfig:"HEIGHT"`
	Open       *bool    `envconfig:"OPEN"`
	XLSX       *string  `envconfig:"XLSX"`
	History    *bool    `envconfig:"HISTORY"`
	LogLevel   *string  `envconfig:"LOG_LEVEL"`
	LogFormat  *string  `envconfig:"LOG_FORMAT"`
	Viewer     *string  `envconfig:"VIEWER"`
}

// Settings is the fully resolved configuration.
type Settings struct {
	Run         model.Config
	LogLevel    string `validate:"oneof=trace debug info warn warning error disabled off"`
	LogFormat   string `validate:"oneof=console json"`
	URLTemplate string `validate:"required"`
	FetchMonths []int  `validate:"required,dive,min=1,max=12"`
	Viewer      string
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		Run: model.Config{
			DataDir:      DefaultDataDir,
			DatePattern:  snapshot.DefaultDatePattern,
			DateLayout:   snapshot.DefaultDateLayout,
			Namespace:    model.TOP500Namespace,
			Field:        DefaultField,
			Ranks:        append([]int(nil), DefaultRanks...),
			StepMonths:   DefaultStepMonths,
			Steps:        DefaultSteps,
			OutputDir:    DefaultOutputDir,
			NameLayout:   DefaultNameLayout,
			DPI:          DefaultDPI,
			WidthInches:  DefaultWidth,
			HeightInches: DefaultHeight,
			Open:         true,
			History:      true,
		},
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		URLTemplate: DefaultURLTemplate,
		FetchMonths: append([]int(nil), DefaultFetchMonths...),
	}
}

// LoadEnv reads HPCTREND_* overrides.
func LoadEnv() (EnvConfig, error) {
	var env EnvConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return env, nil
}

// Load resolves defaults, the config file at path, then the environment.
func Load(path string) (Settings, error) {
	file, err := LoadConfig(path)
	if err != nil {
		return Settings{}, err
	}
	env, err := LoadEnv()
	if err != nil {
		return Settings{}, err
	}
	return Resolve(file, env), nil
}

// Resolve layers file and environment values over the defaults.
func Resolve(file FileConfig, env EnvConfig) Settings {
	s := DefaultSettings()
	run := &s.Run

	setString(&run.DataDir, file.Input.Dir)
	setString(&run.DatePattern, file.Input.DatePattern)
	setString(&run.DateLayout, file.Input.DateLayout)
	setString(&run.Namespace, file.Input.Namespace)
	setString(&run.Field, file.Trend.Field)
	setInts(&run.Ranks, file.Trend.Ranks)
	setInt(&run.StepMonths, file.Trend.StepMonths)
	setInt(&run.Steps, file.Trend.Steps)
	setString(&run.OutputDir, file.Output.Dir)
	setString(&run.NameLayout, file.Output.NameLayout)
	setInt(&run.DPI, file.Output.DPI)
	setFloat(&run.WidthInches, file.Output.Width)
	setFloat(&run.HeightInches, file.Output.Height)
	setBool(&run.Open, file.Output.Open)
	setString(&run.XLSXPath, file.Output.XLSX)
	setBool(&run.History, file.History.Enabled)
	setString(&s.LogLevel, file.Log.Level)
	setString(&s.LogFormat, file.Log.Format)
	setString(&s.URLTemplate, file.Fetch.URLTemplate)
	setInts(&s.FetchMonths, file.Fetch.Months)

	setString(&run.DataDir, env.DataDir)
	setString(&run.Field, env.Field)
	setInts(&run.Ranks, env.Ranks)
	setInt(&run.StepMonths, env.StepMonths)
	setInt(&run.Steps, env.Steps)
	setString(&run.OutputDir, env.OutputDir)
	setInt(&run.DPI, env.DPI)
	setFloat(&run.WidthInches, env.Width)
	setFloat(&run.HeightInches, env.Height)
	setBool(&run.Open, env.Open)
	setString(&run.XLSXPath, env.XLSX)
	setBool(&run.History, env.History)
	setString(&s.LogLevel, env.LogLevel)
	setString(&s.LogFormat, env.LogFormat)
	setString(&s.Viewer, env.Viewer)

	s.LogLevel = strings.ToLower(s.LogLevel)
	s.LogFormat = strings.ToLower(s.LogFormat)
	return s
}

// Validate checks settings before a run.
func Validate(s Settings) error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationError(verrs)
		}
		return err
	}
	if _, err := snapshot.DatePattern(s.Run.DatePattern); err != nil {
		return err
	}
	seen := make(map[int]struct{}, len(s.Run.Ranks))
	for _, r := range s.Run.Ranks {
		if _, ok := seen[r]; ok {
			return fmt.Errorf("invalid config: rank %d listed twice", r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

func validationError(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Settings.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func setString(target, value *string) {
	if value != nil {
		*target = *value
	}
}

func setInt(target, value *int) {
	if value != nil {
		*target = *value
	}
}

func setFloat(target, value *float64) {
	if value != nil {
		*target = *value
	}
}

func setBool(target, value *bool) {
	if value != nil {
		*target = *value
	}
}

func setInts(target *[]int, value []int) {
	if len(value) > 0 {
		*target = append([]int(nil), value...)
	}
}
