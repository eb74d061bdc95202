// Package configuration decodes and validates the settings of a run.
package configuration

import (
	"errors"
	"fmt"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Configuration holds all settings.
type Configuration struct {
	Debug    bool
	DryRun   bool   `mapstructure:"dry-run"`
	Output   string `validate:"oneof=yaml json"`
	Location string `validate:"required"`
	Station  string
	Country  string `validate:"required"`
	Language string `validate:"oneof=DL EN RU NL"`
	// NonMetric selects imperial units
	NonMetric bool
	// APIKey is the official PWS owner key. An invalid key is ignored with a warning when the run starts.
	APIKey     string
	Legacy     bool
	Features   Features
	Icons      Icons
	Store      Store
	Slack      Slack
	Prometheus Prometheus
	Schedule   Schedule
}

type Features struct {
	Current bool
	Daily   bool
	Periods bool
	Hourly  bool
}

type Icons struct {
	Set     string
	BaseURL string `mapstructure:"baseURL" validate:"omitempty,url"`
	Format  string `validate:"omitempty,alphanum"`
}

type Store struct {
	Driver string `validate:"oneof=memory file sqlite postgres redis"`
	DSN    string `validate:"required_unless=Driver memory"`
}

type Slack struct {
	Token   string
	Channel string
}

type Prometheus struct {
	Pushgateway string `validate:"omitempty,url"`
	Job         string `validate:"required_with=Pushgateway"`
}

type Schedule struct {
	// Cron is the schedule of the runs. If empty, a random minute of every hour is picked.
	Cron    string
	Timeout time.Duration `validate:"gt=0"`
	// Jitter delays a run by a random duration up to Jitter, if no official key is configured.
	Jitter time.Duration `validate:"gte=0"`
	Addr   string
}

// Arguments are the configuration keys that can be set on the command line.
var Arguments = charmer.Arguments{
	"debug":                  {Default: false, Help: "Log debug messages"},
	"dry-run":                {Default: false, Help: "Write the report to stdout instead of the state store"},
	"output":                 {Default: "yaml", Help: "Format of the dry-run report (yaml|json)"},
	"location":               {Default: "", Help: "Location: city name, airport code, pws:<station> or lat,lon"},
	"station":                {Default: "", Help: "Personal weather station ID"},
	"country":                {Default: "DE", Help: "Country of the location"},
	"language":               {Default: "DL", Help: "Language (DL|EN|RU|NL)"},
	"nonMetric":              {Default: false, Help: "Use imperial units"},
	"apiKey":                 {Default: "", Help: "PWS owner API key"},
	"legacy":                 {Default: false, Help: "Start with the legacy API"},
	"features.current":       {Default: true, Help: "Fetch current conditions"},
	"features.daily":         {Default: true, Help: "Fetch the daily forecast"},
	"features.periods":       {Default: true, Help: "Fetch the day/night period forecast"},
	"features.hourly":        {Default: true, Help: "Fetch the hourly forecast"},
	"icons.set":              {Default: "", Help: "Icon set"},
	"icons.baseURL":          {Default: "", Help: "Base URL of custom icons"},
	"icons.format":           {Default: "", Help: "File extension of custom icons"},
	"store.driver":           {Default: "file", Help: "State store (memory|file|sqlite|postgres|redis)"},
	"store.dsn":              {Default: "wunderground.yaml", Help: "State store location"},
	"slack.token":            {Default: "", Help: "Slack token"},
	"slack.channel":          {Default: "", Help: "Slack channel for notifications"},
	"prometheus.pushgateway": {Default: "", Help: "Prometheus Pushgateway URL"},
	"prometheus.job":         {Default: "wunderground", Help: "Prometheus Pushgateway job name"},
	"schedule.cron":          {Default: "", Help: "Cron schedule of the runs"},
	"schedule.timeout":       {Default: time.Minute, Help: "Maximum duration of a run"},
	"schedule.jitter":        {Default: 30 * time.Second, Help: "Maximum random delay of a run without API key"},
	"schedule.addr":          {Default: ":8080", Help: "Address of the /health and /metrics endpoints"},
}

// SetDefaults sets the default value of each argument.
func SetDefaults(v *viper.Viper) {
	for key, arg := range Arguments {
		v.SetDefault(key, arg.Default)
	}
}

var validate = validator.New()

// Load decodes the configuration and validates it.
func Load(v *viper.Viper) (Configuration, error) {
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return Configuration{}, fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Configuration{}, fmt.Errorf("invalid configuration: %w", describe(err))
	}
	return cfg, nil
}

// describe reduces validation errors to the offending fields.
func describe(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	errs := make([]error, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		errs = append(errs, fmt.Errorf("%s: failed %q check", fieldErr.Namespace(), fieldErr.Tag()))
	}
	return errors.Join(errs...)
}
