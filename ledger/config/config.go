package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/util/typeutil"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
)

// Config is the ledger server configuration.
type Config struct {
	// Log related config.
	Log log.Config `toml:"log" json:"log"`

	Server ServerConfig `toml:"server" json:"server"`

	Storage StorageConfig `toml:"storage" json:"storage"`

	Ledger LedgerConfig `toml:"ledger" json:"ledger"`

	// For all warnings during parsing.
	WarningMsgs []string `toml:"-" json:"-"`
}

// ServerConfig is the HTTP API configuration.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
	// ShutdownTimeout bounds how long in-flight requests may run after a stop signal.
	ShutdownTimeout typeutil.Duration `toml:"shutdown-timeout" json:"shutdown-timeout"`
	// TransferRetries is how often a transfer request is retried after a failed commit. Zero disables retries.
	TransferRetries uint64 `toml:"transfer-retries" json:"transfer-retries"`
}

// StorageConfig selects the durable store. Options are handed to the engine as properties, for example
// "badger.dir" or "sqlite.db".
type StorageConfig struct {
	Engine  string            `toml:"engine" json:"engine"`
	Options map[string]string `toml:"options" json:"options"`
}

// LedgerConfig tunes the ledger itself.
type LedgerConfig struct {
	// CommitTimeout bounds one durable store commit. A commit that does not finish in time is rolled back.
	CommitTimeout typeutil.Duration `toml:"commit-timeout" json:"commit-timeout"`
	// Seed accounts are created, in order, when the store holds no accounts yet.
	Seed []SeedAccount `toml:"seed" json:"seed"`
}

// SeedAccount is one account created on first start.
type SeedAccount struct {
	Name    string `toml:"name" json:"name"`
	Balance int64  `toml:"balance" json:"balance"`
}

const (
	defaultServerAddr      = "127.0.0.1:9292"
	defaultShutdownTimeout = 5 * time.Second
	defaultEngine          = "badger"
	defaultCommitTimeout   = 3 * time.Second
)

// DefaultSeed is the initial account set of a fresh ledger.
var DefaultSeed = []SeedAccount{
	{Name: "Alice", Balance: 500},
	{Name: "Bob", Balance: 300},
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func adjustString(v *string, defValue string) {
	if len(*v) == 0 {
		*v = defValue
	}
}

func adjustDuration(v *typeutil.Duration, defValue time.Duration) {
	if v.Duration == 0 {
		v.Duration = defValue
	}
}

func NewDefaultConfig() *Config {
	c := &Config{}
	if err := c.Adjust(nil); err != nil {
		panic(err)
	}
	return c
}

func NewTestConfig() *Config {
	c := &Config{
		Storage: StorageConfig{Engine: "memory"},
		Ledger: LedgerConfig{
			CommitTimeout: typeutil.NewDuration(500 * time.Millisecond),
		},
	}
	if err := c.Adjust(nil); err != nil {
		panic(err)
	}
	return c
}

// Load reads the config file at path and adjusts it. Files ending in .yaml or .yml are read as YAML, everything
// else as TOML.
func (c *Config) Load(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return errors.Annotatef(err, "decode %s", path)
		}
		return c.Adjust(nil)
	default:
		meta, err := c.configFromFile(path)
		if err != nil {
			return errors.Annotatef(err, "decode %s", path)
		}
		return c.Adjust(meta)
	}
}

func (c *Config) configFromFile(path string) (*toml.MetaData, error) {
	meta, err := toml.DecodeFile(path, c)
	return &meta, errors.WithStack(err)
}

// Adjust fills unset fields with defaults. meta is nil unless the config was decoded from TOML.
func (c *Config) Adjust(meta *toml.MetaData) error {
	if meta != nil {
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			c.WarningMsgs = append(c.WarningMsgs, "Config contains undefined item: "+strings.Join(keys, ", "))
		}
	}

	adjustString(&c.Log.Level, getLogLevel())
	adjustString(&c.Server.Addr, defaultServerAddr)
	adjustDuration(&c.Server.ShutdownTimeout, defaultShutdownTimeout)
	adjustString(&c.Storage.Engine, defaultEngine)
	if c.Storage.Options == nil {
		c.Storage.Options = make(map[string]string)
	}
	adjustDuration(&c.Ledger.CommitTimeout, defaultCommitTimeout)
	seedDefined := meta != nil && meta.IsDefined("ledger", "seed")
	if len(c.Ledger.Seed) == 0 && !seedDefined {
		c.Ledger.Seed = append([]SeedAccount(nil), DefaultSeed...)
	}
	return c.Validate()
}

// Validate is used to validate if some configurations are right.
func (c *Config) Validate() error {
	if c.Storage.Engine == "" {
		return errors.New("storage engine must be set")
	}
	if c.Ledger.CommitTimeout.Duration <= 0 {
		return errors.Errorf("commit-timeout must be positive, got %v", c.Ledger.CommitTimeout.Duration)
	}
	for i, seed := range c.Ledger.Seed {
		if seed.Name == "" {
			return errors.Errorf("seed account #%d has no name", i+1)
		}
		if seed.Balance < 0 {
			return errors.Errorf("seed account %s has negative balance %d", seed.Name, seed.Balance)
		}
	}
	return nil
}

// StorageProperties returns the engine options as properties. Each override is a "name=value" pair and wins over
// the config file.
func (c *Config) StorageProperties(overrides []string) (*properties.Properties, error) {
	p := properties.LoadMap(c.Storage.Options)
	for _, o := range overrides {
		kv := strings.SplitN(o, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, errors.Errorf("invalid property %q, expect name=value", o)
		}
		if _, _, err := p.Set(kv[0], kv[1]); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return p, nil
}

// SetupLogger installs the logger described by the [log] section.
func (c *Config) SetupLogger() error {
	return log.InitLogger(&c.Log)
}

const redacted = "******"

// String returns the config as JSON with every "*password" storage option redacted.
func (c *Config) String() string {
	cfg := *c
	cfg.Storage.Options = make(map[string]string, len(c.Storage.Options))
	for k, v := range c.Storage.Options {
		if strings.HasSuffix(strings.ToLower(k), "password") {
			v = redacted
		}
		cfg.Storage.Options[k] = v
	}
	data, err := json.Marshal(&cfg)
	if err != nil {
		return "<nil>"
	}
	return string(data)
}
