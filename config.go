// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const minPasswordLength = 8

// Config is the on-disk engine configuration.
type Config struct {
	// EngineID in hex. Empty generates one under EnterpriseID.
	EngineID        string       `yaml:"engine_id"`
	EnterpriseID    uint32       `yaml:"enterprise_id"`
	EngineBoots     uint32       `yaml:"engine_boots"`
	MaxMessageSize  int32        `yaml:"max_message_size"`
	ReportStrategy  string       `yaml:"report_strategy"`
	EngineCacheSize int          `yaml:"engine_cache_size"`
	TimeWindow      uint32       `yaml:"time_window"`
	LogLevel        string       `yaml:"log_level"`
	Users           []UserConfig `yaml:"users"`
}

// UserConfig is a USM user given either by passwords or, together with
// engine_id, by localized keys in hex.
type UserConfig struct {
	Name         string `yaml:"name"`
	EngineID     string `yaml:"engine_id"`
	AuthProtocol string `yaml:"auth_protocol"`
	AuthPassword string `yaml:"auth_password"`
	AuthKey      string `yaml:"auth_key"`
	PrivProtocol string `yaml:"priv_protocol"`
	PrivPassword string `yaml:"priv_password"`
	PrivKey      string `yaml:"priv_key"`
}

// DefaultConfig returns the values a missing field falls back to.
func DefaultConfig() *Config {
	return &Config{
		EnterpriseID:    DefaultEnterpriseID,
		EngineBoots:     1,
		MaxMessageSize:  DefaultMaxMessageSize,
		ReportStrategy:  ReportStandard.String(),
		EngineCacheSize: DefaultEngineCacheSize,
		TimeWindow:      TimeWindowSeconds,
		LogLevel:        zerolog.InfoLevel.String(),
	}
}

// LoadConfig reads a YAML config over DefaultConfig and validates it.
func LoadConfig(fs afero.Fs, file string) (*Config, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(DefaultSecurityProtocols()); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config against the protocols in p and clamps out
// of range numbers to their defaults.
func (c *Config) Validate(p *SecurityProtocols) error {
	if c.EngineID != "" {
		if _, err := ParseEngineID(c.EngineID); err != nil {
			return err
		}
	}
	if c.EngineBoots >= MaxEngineBoots {
		return fmt.Errorf("engine_boots %d reached maximum", c.EngineBoots)
	}
	if c.MaxMessageSize < MinMessageSize {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.EngineCacheSize <= 0 {
		c.EngineCacheSize = DefaultEngineCacheSize
	}
	if c.TimeWindow == 0 {
		c.TimeWindow = TimeWindowSeconds
	}
	if _, err := ParseReportStrategy(c.ReportStrategy); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Users))
	for i := range c.Users {
		u := &c.Users[i]
		if err := u.validate(p); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		key := u.EngineID + "/" + u.Name
		if seen[key] {
			return fmt.Errorf("users[%d]: duplicate user %q", i, u.Name)
		}
		seen[key] = true
	}
	return nil
}

func (u *UserConfig) validate(p *SecurityProtocols) error {
	if len(u.Name) == 0 {
		return errors.New("USM user name is required")
	}
	if len(u.Name) > 32 {
		return fmt.Errorf("user name %q longer than 32 octets", u.Name)
	}
	if u.PrivProtocol != "" && u.AuthProtocol == "" {
		return errors.New("priv protocol accepted only with auth protocol")
	}
	if u.AuthProtocol != "" {
		if _, ok := p.AuthByName(strings.TrimSpace(u.AuthProtocol)); !ok {
			return fmt.Errorf("unsupported auth protocol: %s", u.AuthProtocol)
		}
	}
	if u.PrivProtocol != "" {
		if _, ok := p.PrivByName(strings.TrimSpace(u.PrivProtocol)); !ok {
			return fmt.Errorf("unsupported priv protocol: %s", u.PrivProtocol)
		}
	}

	localized := u.AuthKey != "" || u.PrivKey != ""
	if localized && u.EngineID == "" {
		return errors.New("localized keys need engine_id")
	}
	if localized && (u.AuthPassword != "" || u.PrivPassword != "") {
		return errors.New("give either passwords or localized keys")
	}
	if !localized {
		if u.AuthProtocol != "" && len(u.AuthPassword) < minPasswordLength {
			return errors.New("auth password too short")
		}
		if u.PrivProtocol != "" && len(u.PrivPassword) < minPasswordLength {
			return errors.New("priv password too short")
		}
	}
	if u.EngineID != "" {
		if _, err := ParseEngineID(u.EngineID); err != nil {
			return err
		}
	}
	return nil
}

// user resolves the config entry. Password users without an engine ID come
// back as Credentials, everything else as a localized User.
func (u *UserConfig) user(p *SecurityProtocols) (*User, *Credentials, error) {
	c := &Credentials{Name: u.Name}
	if u.AuthProtocol != "" {
		c.AuthProtocol, _ = p.AuthByName(strings.TrimSpace(u.AuthProtocol))
	}
	if u.PrivProtocol != "" {
		c.PrivProtocol, _ = p.PrivByName(strings.TrimSpace(u.PrivProtocol))
	}

	if u.AuthKey == "" && u.PrivKey == "" {
		c.AuthPassword = []byte(u.AuthPassword)
		c.PrivPassword = []byte(u.PrivPassword)
		if u.EngineID == "" {
			return nil, c, nil
		}
		engineID, err := ParseEngineID(u.EngineID)
		if err != nil {
			return nil, nil, err
		}
		usr, err := c.Localize(engineID)
		return usr, nil, err
	}

	engineID, err := ParseEngineID(u.EngineID)
	if err != nil {
		return nil, nil, err
	}
	usr := &User{Name: u.Name, EngineID: engineID, AuthProtocol: c.AuthProtocol, PrivProtocol: c.PrivProtocol}
	if usr.AuthKey, err = hex.DecodeString(u.AuthKey); err != nil {
		return nil, nil, fmt.Errorf("user %q auth_key: %w", u.Name, err)
	}
	if usr.PrivKey, err = hex.DecodeString(u.PrivKey); err != nil {
		return nil, nil, fmt.Errorf("user %q priv_key: %w", u.Name, err)
	}
	return usr, nil, usr.validate()
}

// NewEngineFromConfig builds an engine and its user table from cfg. Extra
// options are applied after the ones derived from cfg.
func NewEngineFromConfig(cfg *Config, log zerolog.Logger, options ...Option) (*Engine, error) {
	protocols := DefaultSecurityProtocols()
	if err := cfg.Validate(protocols); err != nil {
		return nil, err
	}

	var engineID []byte
	var err error
	if cfg.EngineID != "" {
		engineID, err = ParseEngineID(cfg.EngineID)
	} else {
		engineID, err = NewEngineID(cfg.EnterpriseID)
	}
	if err != nil {
		return nil, err
	}

	users := NewUserTable()
	for _, uc := range cfg.Users {
		usr, cred, err := uc.user(protocols)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			err = users.AddCredentials(*cred)
		} else {
			err = users.Add(usr)
		}
		if err != nil {
			return nil, err
		}
	}

	if cfg.LogLevel != "" {
		if log, err = SetLogLevel(log, cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	strategy, _ := ParseReportStrategy(cfg.ReportStrategy)

	opts := []Option{
		WithUsers(users),
		WithProtocols(protocols),
		WithLogger(log),
		WithReportStrategy(strategy),
		WithCacheSize(cfg.EngineCacheSize),
		WithMaxMessageSize(cfg.MaxMessageSize),
		WithTimeWindow(cfg.TimeWindow),
	}
	return NewEngine(engineID, cfg.EngineBoots, append(opts, options...)...)
}
