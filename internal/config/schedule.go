package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	GatePolicyClosed = "closed"
	GatePolicyOpen   = "open"
)

// ScheduleConfig drives when batch jobs fire and how wide they fan out.
// It is reloaded from schedule.yml without a restart.
type ScheduleConfig struct {
	Timezone          string        `mapstructure:"timezone"`
	RecurringOrderDay int           `mapstructure:"recurringOrderDay"`
	BillingDay        int           `mapstructure:"billingDay"`
	HorizonMonths     int           `mapstructure:"horizonMonths"`
	Workers           int           `mapstructure:"workers"`
	RunInterval       time.Duration `mapstructure:"runInterval"`
	JobTimeout        time.Duration `mapstructure:"jobTimeout"`
	GateTTL           time.Duration `mapstructure:"gateTTL"`
	GatePolicy        string        `mapstructure:"gatePolicy"`
	EnabledJobs       []string      `mapstructure:"enabledJobs"`
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Timezone:          "Asia/Kolkata",
		RecurringOrderDay: 25,
		BillingDay:        1,
		HorizonMonths:     3,
		Workers:           4,
		RunInterval:       time.Hour,
		JobTimeout:        30 * time.Minute,
		GateTTL:           24 * time.Hour,
		GatePolicy:        GatePolicyClosed,
	}
}

// Location resolves the schedule timezone, falling back to UTC.
func (c ScheduleConfig) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c ScheduleConfig) WithDefaults() ScheduleConfig {
	defaults := DefaultScheduleConfig()
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = defaults.Timezone
	}
	if c.RecurringOrderDay <= 0 {
		c.RecurringOrderDay = defaults.RecurringOrderDay
	}
	if c.BillingDay <= 0 {
		c.BillingDay = defaults.BillingDay
	}
	if c.HorizonMonths <= 0 {
		c.HorizonMonths = defaults.HorizonMonths
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.GateTTL <= 0 {
		c.GateTTL = defaults.GateTTL
	}
	if strings.TrimSpace(c.GatePolicy) == "" {
		c.GatePolicy = defaults.GatePolicy
	}
	c.GatePolicy = strings.ToLower(strings.TrimSpace(c.GatePolicy))
	return c
}

type ScheduleConfigHolder struct {
	current atomic.Value // holds ScheduleConfig
}

// NewStaticScheduleConfigHolder returns a holder that never reloads.
func NewStaticScheduleConfigHolder(cfg ScheduleConfig) *ScheduleConfigHolder {
	holder := &ScheduleConfigHolder{}
	holder.current.Store(cfg.WithDefaults())
	return holder
}

func NewScheduleConfigHolder(log *zap.Logger) (*ScheduleConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.schedule")

	v := viper.New()
	v.SetConfigName("schedule")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/dairy")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DAIRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultScheduleConfig()
	v.SetDefault("schedule.timezone", defaults.Timezone)
	v.SetDefault("schedule.recurringOrderDay", defaults.RecurringOrderDay)
	v.SetDefault("schedule.billingDay", defaults.BillingDay)
	v.SetDefault("schedule.horizonMonths", defaults.HorizonMonths)
	v.SetDefault("schedule.workers", defaults.Workers)
	v.SetDefault("schedule.runInterval", defaults.RunInterval)
	v.SetDefault("schedule.jobTimeout", defaults.JobTimeout)
	v.SetDefault("schedule.gateTTL", defaults.GateTTL)
	v.SetDefault("schedule.gatePolicy", defaults.GatePolicy)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeSchedule(v)
	if err != nil {
		return nil, err
	}

	holder := &ScheduleConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeSchedule(v)
			if err != nil {
				log.Warn("schedule config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("schedule config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *ScheduleConfigHolder) Get() ScheduleConfig {
	if h == nil {
		return DefaultScheduleConfig()
	}
	cfg, ok := h.current.Load().(ScheduleConfig)
	if !ok {
		return DefaultScheduleConfig()
	}
	return cfg
}

func decodeSchedule(v *viper.Viper) (ScheduleConfig, error) {
	var cfg ScheduleConfig
	if err := v.UnmarshalKey("schedule", &cfg); err != nil {
		return ScheduleConfig{}, err
	}
	cfg = cfg.WithDefaults()
	if err := validateScheduleConfig(cfg); err != nil {
		return ScheduleConfig{}, err
	}
	return cfg, nil
}

func validateScheduleConfig(cfg ScheduleConfig) error {
	if cfg.RecurringOrderDay < 1 || cfg.RecurringOrderDay > 28 {
		return fmt.Errorf("schedule.recurringOrderDay must be within 1..28, got %d", cfg.RecurringOrderDay)
	}
	if cfg.BillingDay < 1 || cfg.BillingDay > 28 {
		return fmt.Errorf("schedule.billingDay must be within 1..28, got %d", cfg.BillingDay)
	}
	if cfg.HorizonMonths > 12 {
		return fmt.Errorf("schedule.horizonMonths must not exceed 12, got %d", cfg.HorizonMonths)
	}
	switch cfg.GatePolicy {
	case GatePolicyClosed, GatePolicyOpen:
	default:
		return fmt.Errorf("schedule.gatePolicy must be %q or %q, got %q", GatePolicyClosed, GatePolicyOpen, cfg.GatePolicy)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}
