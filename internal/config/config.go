// Package config provides Viper-based configuration loading for the melee engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TickConfig controls the real-time tick driver.
type TickConfig struct {
	// Interval is the wall-clock period between ticks.
	Interval time.Duration `mapstructure:"interval"`
	// MaxStep caps the game time advanced by a single tick after a stall.
	MaxStep time.Duration `mapstructure:"max_step"`
}

// CombatConfig holds engagement settings shared by every attacker.
type CombatConfig struct {
	// BaseDamage is the default per-attacker damage before weapon bonuses.
	BaseDamage float64 `mapstructure:"base_damage"`
	// HealthEpsilon is the health percentage at or below which a combatant counts as dead.
	HealthEpsilon float64 `mapstructure:"health_epsilon"`
	// AttackTrigger is the animator trigger fired for strikes and abilities.
	AttackTrigger string `mapstructure:"attack_trigger"`
	// DefaultAttackSlot is the override slot strikes and abilities bind clips into.
	DefaultAttackSlot string `mapstructure:"default_attack_slot"`
}

// EffectsConfig holds ability effect settings.
type EffectsConfig struct {
	// ParticleCleanupInterval is how often a spawned particle is polled for completion.
	ParticleCleanupInterval time.Duration `mapstructure:"particle_cleanup_interval"`
}

// ContentConfig locates the YAML and Lua content loaded at startup.
type ContentConfig struct {
	ClipsFile     string `mapstructure:"clips_file"`
	ParticlesFile string `mapstructure:"particles_file"`
	WeaponsDir    string `mapstructure:"weapons_dir"`
	AbilitiesDir  string `mapstructure:"abilities_dir"`
	// ScriptsDir is optional; empty disables scripted abilities.
	ScriptsDir   string `mapstructure:"scripts_dir"`
	ScenarioFile string `mapstructure:"scenario_file"`
}

// ScriptingConfig holds Lua sandbox settings.
type ScriptingConfig struct {
	// InstructionLimit caps opcodes per VM; 0 selects the scripting default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JournalConfig controls persistence of combat events.
type JournalConfig struct {
	// Enabled turns on the PostgreSQL journal. Database settings are only
	// validated when the journal is enabled.
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tick      TickConfig      `mapstructure:"tick"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Effects   EffectsConfig   `mapstructure:"effects"`
	Content   ContentConfig   `mapstructure:"content"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Journal   JournalConfig   `mapstructure:"journal"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateLogging(c.Logging),
		validateTick(c.Tick),
		validateCombat(c.Combat),
		validateEffects(c.Effects),
		validateContent(c.Content),
		validateScripting(c.Scripting),
		validateJournal(c.Journal),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Journal.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateTick(t TickConfig) error {
	var errs []string
	if t.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("tick.interval must be > 0, got %s", t.Interval))
	}
	if t.MaxStep < t.Interval {
		errs = append(errs, fmt.Sprintf("tick.max_step must be >= tick.interval, got %s", t.MaxStep))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.BaseDamage < 0 {
		errs = append(errs, fmt.Sprintf("combat.base_damage must be >= 0, got %v", c.BaseDamage))
	}
	if c.HealthEpsilon <= 0 {
		errs = append(errs, fmt.Sprintf("combat.health_epsilon must be > 0, got %v", c.HealthEpsilon))
	}
	if c.AttackTrigger == "" {
		errs = append(errs, "combat.attack_trigger must not be empty")
	}
	if c.DefaultAttackSlot == "" {
		errs = append(errs, "combat.default_attack_slot must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEffects(e EffectsConfig) error {
	if e.ParticleCleanupInterval <= 0 {
		return fmt.Errorf("effects.particle_cleanup_interval must be > 0, got %s", e.ParticleCleanupInterval)
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.ClipsFile == "" {
		errs = append(errs, "content.clips_file must not be empty")
	}
	if c.ParticlesFile == "" {
		errs = append(errs, "content.particles_file must not be empty")
	}
	if c.WeaponsDir == "" {
		errs = append(errs, "content.weapons_dir must not be empty")
	}
	if c.AbilitiesDir == "" {
		errs = append(errs, "content.abilities_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

func validateJournal(j JournalConfig) error {
	var errs []string
	if j.BufferSize < 1 {
		errs = append(errs, fmt.Sprintf("journal.buffer_size must be >= 1, got %d", j.BufferSize))
	}
	if j.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("journal.batch_size must be >= 1, got %d", j.BatchSize))
	}
	if j.FlushInterval <= 0 {
		errs = append(errs, "journal.flush_interval must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MELEE_ prefix
	v.SetEnvPrefix("MELEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
// Defaults are applied for keys the instance does not set.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tick.interval", "16ms")
	v.SetDefault("tick.max_step", "100ms")

	v.SetDefault("combat.base_damage", 10.0)
	v.SetDefault("combat.health_epsilon", 1e-6)
	v.SetDefault("combat.attack_trigger", "Attack")
	v.SetDefault("combat.default_attack_slot", "DEFAULT ATTACK")

	v.SetDefault("effects.particle_cleanup_interval", "10s")

	v.SetDefault("content.clips_file", "content/clips.yaml")
	v.SetDefault("content.particles_file", "content/particles.yaml")
	v.SetDefault("content.weapons_dir", "content/weapons")
	v.SetDefault("content.abilities_dir", "content/abilities")
	v.SetDefault("content.scripts_dir", "content/scripts/abilities")
	v.SetDefault("content.scenario_file", "content/scenarios/duel.yaml")

	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "melee")
	v.SetDefault("database.password", "melee")
	v.SetDefault("database.name", "melee")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.buffer_size", 1024)
	v.SetDefault("journal.batch_size", 128)
	v.SetDefault("journal.flush_interval", "1s")
}
