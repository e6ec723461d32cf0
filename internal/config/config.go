// Package config loads the simulator settings from YAML with ROULETTE_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/engine"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultStartingBalance = "20000000"
	DefaultBaseWager       = "0.0016"
	DefaultLossMultiplier  = "2.0"
	DefaultMaxRounds       = 100_000_000
	DefaultProgressEvery   = 250_000
	DefaultCSVBuffer       = 4096
	DefaultKafkaTopic      = "roulette.rounds"
	DefaultRedisChannel    = "roulette:progress"
	DefaultServerAddr      = ":8080"
	DefaultServerMaxRounds = 1_000_000
	DefaultService         = "roulette-sim"
	DefaultEnv             = "local"
)

type Seeds struct {
	Server        string `yaml:"server"`
	Client        string `yaml:"client"`
	StartNonce    uint64 `yaml:"start_nonce"`
	Random        bool   `yaml:"random"`
	VaultService  string `yaml:"vault_service"`
	VaultFallback string `yaml:"vault_fallback"`
}

// Betting holds money as strings so YAML never rounds through float64.
type Betting struct {
	StartingBalance string `yaml:"starting_balance"`
	BaseWager       string `yaml:"base_wager"`
	LossMultiplier  string `yaml:"loss_multiplier"`
}

type Simulation struct {
	MaxRounds     int    `yaml:"max_rounds"`
	ProgressEvery int    `yaml:"progress_every"`
	StopRule      string `yaml:"stop_rule"`
}

type Output struct {
	CSVPath      string   `yaml:"csv_path"`
	CSVBuffer    int      `yaml:"csv_buffer"`
	SQLitePath   string   `yaml:"sqlite_path"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	RedisAddr    string   `yaml:"redis_addr"`
	RedisChannel string   `yaml:"redis_channel"`
}

type Server struct {
	Addr      string `yaml:"addr"`
	MaxRounds int    `yaml:"max_rounds"`
}

type Log struct {
	Env     string `yaml:"env"`
	Service string `yaml:"service"`
}

// Config is the full settings tree.
type Config struct {
	Seeds      Seeds      `yaml:"seeds"`
	Betting    Betting    `yaml:"betting"`
	Simulation Simulation `yaml:"simulation"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Log        Log        `yaml:"log"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Betting: Betting{
			StartingBalance: DefaultStartingBalance,
			BaseWager:       DefaultBaseWager,
			LossMultiplier:  DefaultLossMultiplier,
		},
		Simulation: Simulation{
			MaxRounds:     DefaultMaxRounds,
			ProgressEvery: DefaultProgressEvery,
		},
		Output: Output{
			CSVBuffer:    DefaultCSVBuffer,
			KafkaTopic:   DefaultKafkaTopic,
			RedisChannel: DefaultRedisChannel,
		},
		Server: Server{
			Addr:      DefaultServerAddr,
			MaxRounds: DefaultServerMaxRounds,
		},
		Log: Log{
			Env:     DefaultEnv,
			Service: DefaultService,
		},
	}
}

// Load reads path when it exists, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = n
		}
	}

	str("ROULETTE_SERVER_SEED", &c.Seeds.Server)
	str("ROULETTE_CLIENT_SEED", &c.Seeds.Client)
	if v, ok := lookup("ROULETTE_START_NONCE"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: ROULETTE_START_NONCE: %v", ErrInvalid, err))
		} else {
			c.Seeds.StartNonce = n
		}
	}
	if v, ok := lookup("ROULETTE_RANDOM_SEEDS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: ROULETTE_RANDOM_SEEDS: %v", ErrInvalid, err))
		} else {
			c.Seeds.Random = b
		}
	}
	str("ROULETTE_VAULT_SERVICE", &c.Seeds.VaultService)
	str("ROULETTE_VAULT_FALLBACK", &c.Seeds.VaultFallback)

	str("ROULETTE_STARTING_BALANCE", &c.Betting.StartingBalance)
	str("ROULETTE_BASE_WAGER", &c.Betting.BaseWager)
	str("ROULETTE_LOSS_MULTIPLIER", &c.Betting.LossMultiplier)

	num("ROULETTE_MAX_ROUNDS", &c.Simulation.MaxRounds)
	num("ROULETTE_PROGRESS_EVERY", &c.Simulation.ProgressEvery)
	str("ROULETTE_STOP_RULE", &c.Simulation.StopRule)

	str("ROULETTE_CSV_PATH", &c.Output.CSVPath)
	num("ROULETTE_CSV_BUFFER", &c.Output.CSVBuffer)
	str("ROULETTE_SQLITE_PATH", &c.Output.SQLitePath)
	if v, ok := lookup("ROULETTE_KAFKA_BROKERS"); ok {
		c.Output.KafkaBrokers = splitList(v)
	}
	str("ROULETTE_KAFKA_TOPIC", &c.Output.KafkaTopic)
	str("ROULETTE_REDIS_ADDR", &c.Output.RedisAddr)
	str("ROULETTE_REDIS_CHANNEL", &c.Output.RedisChannel)

	str("ROULETTE_SERVER_ADDR", &c.Server.Addr)
	num("ROULETTE_SERVER_MAX_ROUNDS", &c.Server.MaxRounds)

	str("ROULETTE_ENV", &c.Log.Env)
	str("ROULETTE_SERVICE", &c.Log.Service)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// BettingConfig parses the money settings.
func (c Config) BettingConfig() (betting.Config, error) {
	var errs []error
	parse := func(name, v string) decimal.Decimal {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: betting.%s %q: %v", ErrInvalid, name, v, err))
		}
		return d
	}
	out := betting.Config{
		StartingBalance: parse("starting_balance", c.Betting.StartingBalance),
		BaseWager:       parse("base_wager", c.Betting.BaseWager),
		LossMultiplier:  parse("loss_multiplier", c.Betting.LossMultiplier),
	}
	if err := errors.Join(errs...); err != nil {
		return betting.Config{}, err
	}
	return out, nil
}

// SimulationConfig builds a runner config for seeds resolved by the caller.
func (c Config) SimulationConfig(seeds engine.Seeds, startNonce uint64) (simulation.Config, error) {
	bc, err := c.BettingConfig()
	if err != nil {
		return simulation.Config{}, err
	}
	return simulation.Config{
		Seeds:         seeds,
		StartNonce:    startNonce,
		MaxRounds:     c.Simulation.MaxRounds,
		ProgressEvery: c.Simulation.ProgressEvery,
		Betting:       bc,
	}, nil
}

// NeedsRandomSeeds reports whether the driver must generate seeds.
func (c Config) NeedsRandomSeeds() bool {
	return c.Seeds.Random || c.Seeds.Server == "" || c.Seeds.Client == ""
}

// Validate reports every invalid field at once. Seeds may be empty; the
// driver generates them.
func (c Config) Validate() error {
	var errs []error
	if bc, err := c.BettingConfig(); err != nil {
		errs = append(errs, err)
	} else if err := bc.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Simulation.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("%w: simulation.max_rounds must be positive, got %d", ErrInvalid, c.Simulation.MaxRounds))
	}
	if c.Simulation.ProgressEvery < 0 {
		errs = append(errs, fmt.Errorf("%w: simulation.progress_every must not be negative", ErrInvalid))
	}
	if c.Output.CSVBuffer <= 0 {
		errs = append(errs, fmt.Errorf("%w: output.csv_buffer must be positive, got %d", ErrInvalid, c.Output.CSVBuffer))
	}
	if len(c.Output.KafkaBrokers) > 0 && c.Output.KafkaTopic == "" {
		errs = append(errs, fmt.Errorf("%w: output.kafka_topic is required with kafka_brokers", ErrInvalid))
	}
	if c.Server.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("%w: server.max_rounds must be positive, got %d", ErrInvalid, c.Server.MaxRounds))
	}
	return errors.Join(errs...)
}
