package dashprefs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dashprefs/pkg/activity"
	"github.com/goliatone/go-dashprefs/pkg/state"
)

// Config holds the tunables of a Store. The zero value of any field falls
// back to DefaultConfig.
type Config struct {
	Domain       string         `yaml:"domain"`
	PersistDelay time.Duration  `yaml:"persist_delay"`
	LoadTimeout  time.Duration  `yaml:"load_timeout"`
	SaveTimeout  time.Duration  `yaml:"save_timeout"`
	Usage        UsageConfig    `yaml:"usage"`
	Sizes        SizeConfig     `yaml:"sizes"`
	Activity     ActivityConfig `yaml:"activity"`
}

// UsageConfig controls the commonly used ranking.
type UsageConfig struct {
	MinCount      int           `yaml:"min_count"`
	Window        time.Duration `yaml:"window"`
	PruneInterval time.Duration `yaml:"prune_interval"`
	// PruneWindow is the retention window; zero means twice Window.
	PruneWindow time.Duration `yaml:"prune_window"`
	Limit       int           `yaml:"limit"`
}

// SizeConfig selects the default size predicate. Rule takes precedence over
// TallDomains when both are set.
type SizeConfig struct {
	Engine      string   `yaml:"engine"`
	Rule        string   `yaml:"rule"`
	TallDomains []string `yaml:"tall_domains"`
}

// ActivityConfig controls activity emission. Events are emitted whenever
// hooks are attached unless Disabled is set.
type ActivityConfig struct {
	Disabled bool     `yaml:"disabled"`
	Channel  string   `yaml:"channel"`
	Verbs    []string `yaml:"verbs"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Domain:       state.DefaultDomain,
		PersistDelay: 500 * time.Millisecond,
		LoadTimeout:  10 * time.Second,
		SaveTimeout:  10 * time.Second,
		Usage: UsageConfig{
			MinCount:      2,
			Window:        24 * time.Hour,
			PruneInterval: time.Hour,
			Limit:         8,
		},
		Activity: ActivityConfig{Channel: activity.DefaultChannel},
	}
}

// ParseConfig decodes YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("dashprefs: parse config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file. A missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("dashprefs: read config %q: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate rejects values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if c.PersistDelay < 0 {
		errs = append(errs, fmt.Errorf("persist_delay must not be negative"))
	}
	if c.Usage.MinCount < 1 {
		errs = append(errs, fmt.Errorf("usage.min_count must be at least 1"))
	}
	if c.Usage.PruneWindow != 0 && c.Usage.PruneWindow < c.Usage.Window {
		errs = append(errs, fmt.Errorf("usage.prune_window %s is shorter than usage.window %s", c.Usage.PruneWindow, c.Usage.Window))
	}
	switch strings.ToLower(c.Sizes.Engine) {
	case "", EngineCEL, EngineExpr, EngineJS:
	default:
		errs = append(errs, fmt.Errorf("sizes.engine %q: %w", c.Sizes.Engine, ErrUnknownEngine))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("dashprefs: invalid config: %w", errors.Join(errs...))
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Domain) == "" {
		c.Domain = def.Domain
	}
	if c.PersistDelay == 0 {
		c.PersistDelay = def.PersistDelay
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = def.LoadTimeout
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = def.SaveTimeout
	}
	if c.Usage.MinCount == 0 {
		c.Usage.MinCount = def.Usage.MinCount
	}
	if c.Usage.Window <= 0 {
		c.Usage.Window = def.Usage.Window
	}
	if c.Usage.PruneInterval <= 0 {
		c.Usage.PruneInterval = def.Usage.PruneInterval
	}
	if c.Usage.Limit <= 0 {
		c.Usage.Limit = def.Usage.Limit
	}
	if strings.TrimSpace(c.Activity.Channel) == "" {
		c.Activity.Channel = def.Activity.Channel
	}
	return c
}

// retention is PruneWindow, or twice Window when unset. It never drops below
// Window, so pruning cannot remove stamps the ranking still counts.
func (u UsageConfig) retention() time.Duration {
	if u.PruneWindow > 0 {
		return max(u.PruneWindow, u.Window)
	}
	return 2 * u.Window
}

// SizeDefault builds the DefaultSize described by the size config.
func (s SizeConfig) SizeDefault(logger *zap.Logger) (DefaultSize, error) {
	if strings.TrimSpace(s.Rule) != "" {
		evaluator, err := NewEvaluator(strings.ToLower(s.Engine), NewMemoryProgramCache(), DefaultFunctions())
		if err != nil {
			return nil, err
		}
		return RuleDefault(evaluator, s.Rule, WithRuleLogger(ZapRuleLogger(logger)))
	}
	if len(s.TallDomains) > 0 {
		return TallDomains(s.TallDomains...), nil
	}
	return RegularByDefault, nil
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	config      Config
	logger      *zap.Logger
	now         func() time.Time
	sizeDefault DefaultSize
	hooks       activity.Hooks
	listeners   []func(ChangeEvent)
	actorID     string
	userID      string
	tenantID    string
}

// WithConfig replaces the store configuration.
func WithConfig(cfg Config) Option {
	return func(sc *storeConfig) {
		sc.config = cfg.withDefaults()
	}
}

// WithLogger sets the structured logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(sc *storeConfig) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// WithClock overrides the time source used for usage timestamps.
func WithClock(now func() time.Time) Option {
	return func(sc *storeConfig) {
		if now != nil {
			sc.now = now
		}
	}
}

// WithSizeDefault sets the default size predicate, overriding Config.Sizes.
func WithSizeDefault(def DefaultSize) Option {
	return func(sc *storeConfig) {
		sc.sizeDefault = def
	}
}

// WithActivityHooks attaches activity hooks notified on every committed
// change. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(sc *storeConfig) {
		sc.hooks = append(sc.hooks, normalized...)
	}
}

// WithActivityIdentity sets the identifiers recorded on emitted activity
// events. Empty values are left unset.
func WithActivityIdentity(actorID, userID, tenantID string) Option {
	return func(sc *storeConfig) {
		sc.actorID = actorID
		sc.userID = userID
		sc.tenantID = tenantID
	}
}

// WithChangeListener registers listener before the first load.
func WithChangeListener(listener func(ChangeEvent)) Option {
	return func(sc *storeConfig) {
		if listener != nil {
			sc.listeners = append(sc.listeners, listener)
		}
	}
}

func applyOptions(opts []Option) storeConfig {
	sc := storeConfig{
		config: DefaultConfig(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&sc)
		}
	}
	if sc.sizeDefault == nil {
		def, err := sc.config.Sizes.SizeDefault(sc.logger)
		if err != nil {
			sc.logger.Warn("size rule unavailable, using regular default",
				zap.String("engine", sc.config.Sizes.Engine), zap.Error(err))
			def = RegularByDefault
		}
		sc.sizeDefault = def
	}
	return sc
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
