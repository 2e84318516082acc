// Package config loads service configuration. Values come from three
// layers, later layers winning: built-in defaults, an optional YAML file
// named by CONFIG_FILE, and environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"signal-enginev1/internal/engine"
)

// Config holds all application configuration.
type Config struct {
	// Infrastructure
	HTTPAddr      string `yaml:"http_addr"`
	MetricsAddr   string `yaml:"metrics_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	SQLitePath    string `yaml:"sqlite_path"`
	LogLevel      string `yaml:"log_level"`

	// Upstream tick feed. Empty FeedURL disables the client; ticks then
	// arrive only through the /ws/stream endpoint.
	FeedURL     string `yaml:"feed_url"`
	Instruments string `yaml:"instruments"` // comma-separated

	// Telegram alerts. Empty token disables the notifier.
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`

	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig mirrors the evaluation knobs in YAML/env form.
type EngineConfig struct {
	PeriodSeconds      int64   `yaml:"period_seconds"`
	LeadSeconds        int64   `yaml:"lead_seconds"`
	LeadEarlyTolerance int64   `yaml:"lead_early_tolerance"`
	LeadLateTolerance  int64   `yaml:"lead_late_tolerance"`
	BlockPeriods       int     `yaml:"block_periods"`
	HistoryLimit       int     `yaml:"history_limit"`
	GlobalSingleOp     bool    `yaml:"global_single_op"`
	MinCandles         int     `yaml:"min_candles"`
	EMAFastSpan        int     `yaml:"ema_fast_span"`
	EMASlowSpan        int     `yaml:"ema_slow_span"`
	RSIPeriod          int     `yaml:"rsi_period"`
	BollLength         int     `yaml:"boll_length"`
	BollMult           float64 `yaml:"boll_mult"`
	ZoneLookback       int     `yaml:"zone_lookback"`
	ZoneProximity      float64 `yaml:"zone_proximity"`
	ZoneTouch          float64 `yaml:"zone_touch"`
	MinConfluences     int     `yaml:"min_confluences"`
	MinProbability     float64 `yaml:"min_probability"`
}

// Load builds the configuration from defaults, CONFIG_FILE, and env vars.
func Load() *Config {
	def := engine.DefaultConfig()
	cfg := &Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		RedisAddr:   "localhost:6379",
		SQLitePath:  "data/signals.db",
		LogLevel:    "info",
		Instruments: "EURUSD",
		Engine: EngineConfig{
			PeriodSeconds:      def.PeriodSeconds,
			LeadSeconds:        def.LeadSeconds,
			LeadEarlyTolerance: def.LeadEarlyTolerance,
			LeadLateTolerance:  def.LeadLateTolerance,
			BlockPeriods:       def.BlockPeriods,
			HistoryLimit:       def.HistoryLimit,
			GlobalSingleOp:     def.GlobalSingleOp,
			MinCandles:         def.Indicator.MinCandles,
			EMAFastSpan:        def.Indicator.FastSpan,
			EMASlowSpan:        def.Indicator.SlowSpan,
			RSIPeriod:          def.Indicator.RSIPeriod,
			BollLength:         def.Indicator.BollLength,
			BollMult:           def.Indicator.BollMult,
			ZoneLookback:       def.Zone.Lookback,
			ZoneProximity:      def.Zone.Proximity,
			ZoneTouch:          def.Confluence.ZoneTouch,
			MinConfluences:     def.Confluence.MinConfluences,
			MinProbability:     def.Confluence.MinProbability,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("[config] cannot read %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("[config] cannot parse %s: %v", path, err)
		}
	}

	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	envStr(&c.HTTPAddr, "HTTP_ADDR")
	envStr(&c.MetricsAddr, "METRICS_ADDR")
	envStr(&c.RedisAddr, "REDIS_ADDR")
	envStr(&c.RedisPassword, "REDIS_PASSWORD")
	envStr(&c.SQLitePath, "SQLITE_PATH")
	envStr(&c.LogLevel, "LOG_LEVEL")
	envStr(&c.FeedURL, "FEED_URL")
	envStr(&c.Instruments, "INSTRUMENTS")
	envStr(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	envStr(&c.TelegramChatID, "TELEGRAM_CHAT_ID")

	e := &c.Engine
	envInt64(&e.PeriodSeconds, "PERIOD_SECONDS")
	envInt64(&e.LeadSeconds, "LEAD_SECONDS")
	envInt64(&e.LeadEarlyTolerance, "LEAD_EARLY_TOLERANCE")
	envInt64(&e.LeadLateTolerance, "LEAD_LATE_TOLERANCE")
	envInt(&e.BlockPeriods, "BLOCK_PERIODS")
	envInt(&e.HistoryLimit, "HISTORY_LIMIT")
	envBool(&e.GlobalSingleOp, "GLOBAL_SINGLE_OP")
	envInt(&e.MinCandles, "MIN_CANDLES")
	envInt(&e.EMAFastSpan, "EMA_FAST_SPAN")
	envInt(&e.EMASlowSpan, "EMA_SLOW_SPAN")
	envInt(&e.RSIPeriod, "RSI_PERIOD")
	envInt(&e.BollLength, "BOLL_LENGTH")
	envFloat(&e.BollMult, "BOLL_MULT")
	envInt(&e.ZoneLookback, "ZONE_LOOKBACK")
	envFloat(&e.ZoneProximity, "ZONE_PROXIMITY")
	envFloat(&e.ZoneTouch, "ZONE_TOUCH")
	envInt(&e.MinConfluences, "MIN_CONFLUENCES")
	envFloat(&e.MinProbability, "MIN_PROBABILITY")
}

// EngineConfig converts the flat knobs into the engine's nested config.
func (c *Config) EngineConfig() engine.Config {
	out := engine.DefaultConfig()
	e := c.Engine
	out.PeriodSeconds = e.PeriodSeconds
	out.LeadSeconds = e.LeadSeconds
	out.LeadEarlyTolerance = e.LeadEarlyTolerance
	out.LeadLateTolerance = e.LeadLateTolerance
	out.BlockPeriods = e.BlockPeriods
	out.HistoryLimit = e.HistoryLimit
	out.GlobalSingleOp = e.GlobalSingleOp
	out.Indicator.MinCandles = e.MinCandles
	out.Indicator.FastSpan = e.EMAFastSpan
	out.Indicator.SlowSpan = e.EMASlowSpan
	out.Indicator.RSIPeriod = e.RSIPeriod
	out.Indicator.BollLength = e.BollLength
	out.Indicator.BollMult = e.BollMult
	out.Zone.Lookback = e.ZoneLookback
	out.Zone.Proximity = e.ZoneProximity
	out.Confluence.ZoneTouch = e.ZoneTouch
	out.Confluence.MinConfluences = e.MinConfluences
	out.Confluence.MinProbability = e.MinProbability
	return out
}

// ParseInstruments splits the comma-separated instrument list.
func (c *Config) ParseInstruments() []string {
	parts := strings.Split(c.Instruments, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("[config] %s: %v", key, err)
		}
		*dst = n
	}
}

func envInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("[config] %s: %v", key, err)
		}
		*dst = n
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("[config] %s: %v", key, err)
		}
		*dst = f
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Fatalf("[config] %s: %v", key, err)
		}
		*dst = b
	}
}
