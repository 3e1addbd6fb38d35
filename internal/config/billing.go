package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// BillingModule provides the hot-reloadable billing configuration.
var BillingModule = fx.Provide(NewBillingConfigHolder)

// AgingBucket is one receivables aging band. MaxDays nil means unbounded.
type AgingBucket struct {
	Label   string `mapstructure:"label"`
	MinDays int    `mapstructure:"min_days"`
	MaxDays *int   `mapstructure:"max_days"`
}

// BillingConfig tunes the report and retry behavior of the engine.
type BillingConfig struct {
	AgingBuckets       []AgingBucket `mapstructure:"aging_buckets"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	InvoiceNumPrefix   string        `mapstructure:"invoice_number_prefix"`
	DefaultPaymentTerm int           `mapstructure:"default_payment_term_days"`
}

// DefaultBillingConfig returns the built-in configuration used when no
// billing.yml is mounted.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		AgingBuckets: []AgingBucket{
			{Label: "current", MinDays: 0, MaxDays: intPtr(0)},
			{Label: "1-30", MinDays: 1, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "61-90", MinDays: 61, MaxDays: intPtr(90)},
			{Label: "90+", MinDays: 91, MaxDays: nil},
		},
		RetryAttempts:      3,
		InvoiceNumPrefix:   "INV",
		DefaultPaymentTerm: 30,
	}
}

func intPtr(v int) *int { return &v }

// BillingConfigHolder keeps the most recent billing configuration and swaps
// it atomically when the config file changes on disk.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder loads billing.yml (falling back to defaults) and
// watches it for changes.
func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/voyara")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VOYARA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &BillingConfigHolder{}
	holder.current.Store(DefaultBillingConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return holder, nil
	}

	if err := holder.apply(v, log); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(in fsnotify.Event) {
		if err := holder.apply(v, log); err != nil {
			log.Warn("billing config reload rejected", zap.String("file", in.Name), zap.Error(err))
		}
	})
	v.WatchConfig()

	return holder, nil
}

// Current returns the active billing configuration.
func (h *BillingConfigHolder) Current() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func (h *BillingConfigHolder) apply(v *viper.Viper, log *zap.Logger) error {
	cfg := DefaultBillingConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	log.Info("billing config loaded", zap.Int("aging_buckets", len(cfg.AgingBuckets)))
	return nil
}

func validateBillingConfig(cfg BillingConfig) error {
	if len(cfg.AgingBuckets) == 0 {
		return errors.New("billing config: at least one aging bucket required")
	}
	for _, b := range cfg.AgingBuckets {
		if b.MaxDays != nil && *b.MaxDays < b.MinDays {
			return errors.New("billing config: aging bucket max_days below min_days")
		}
	}
	if cfg.RetryAttempts < 1 {
		return errors.New("billing config: retry_attempts must be >= 1")
	}
	return nil
}
