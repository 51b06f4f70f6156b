// config/config.go
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Gatekeeper    GatekeeperConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr     string
	Password string
	DB       int
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

// GatekeeperConfiguration is the pipeline's own configuration surface:
// registered gates, decision threshold, lock discipline, and the
// per-environment credential scopes.
type GatekeeperConfiguration struct {
	// SeverityThreshold is the lowest severity that blocks a change.
	SeverityThreshold string `validate:"required"`
	// MaxConcurrentGates caps gate parallelism within one run.
	MaxConcurrentGates int `validate:"gte=1"`
	Gates              []GateConfiguration        `validate:"required,min=1,dive"`
	Environments       []EnvironmentConfiguration `validate:"required,min=1,dive"`
	// ExceptionDBPath is the sqlite file backing the exception registry.
	ExceptionDBPath string `validate:"required"`
	// LockNamespace prefixes every per-environment state lock key.
	LockNamespace string `validate:"required"`
	LockTTL       time.Duration
	LockWait      time.Duration
	// MaxCredentialLifetime bounds the requested lifetime of every
	// temporary credential.
	MaxCredentialLifetime time.Duration
	Apply                 ApplyConfiguration
}

// GateConfiguration registers one gate adapter.
type GateConfiguration struct {
	Name string `validate:"required"`
	// Kind selects the adapter: "lint", "secret-scan" or "policy-scan".
	Kind    string `validate:"required,oneof=lint secret-scan policy-scan"`
	Binary  string `validate:"required"`
	Args    []string
	Timeout time.Duration
	// Advisory gates annotate but can never block.
	Advisory bool
	// Requires lists prerequisite gates; a gate whose prerequisite did not
	// pass is skipped with a synthetic ERROR verdict.
	Requires []string
	// SeverityMap translates the tool's severity vocabulary onto the fixed
	// five-level scale. The "default" key covers unmapped values.
	SeverityMap map[string]string
}

// EnvironmentConfiguration binds a target environment to its credential
// scope.
type EnvironmentConfiguration struct {
	Name string `validate:"required"`
	// RoleARN is the sole role the broker may assume for this environment.
	RoleARN string `validate:"required"`
}

// ApplyConfiguration describes how the mutating step is executed.
type ApplyConfiguration struct {
	Binary    string
	PlanArgs  []string
	ApplyArgs []string
	Timeout   time.Duration
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("gatekeeper.severityThreshold", "HIGH")
	viper.SetDefault("gatekeeper.maxConcurrentGates", 4)
	viper.SetDefault("gatekeeper.exceptionDBPath", "gatekeeper.db")
	viper.SetDefault("gatekeeper.lockNamespace", "gatekeeper:lock")
	viper.SetDefault("gatekeeper.lockTTL", "20m")
	viper.SetDefault("gatekeeper.lockWait", "2m")
	viper.SetDefault("gatekeeper.maxCredentialLifetime", "1h")
	viper.SetDefault("gatekeeper.apply.timeout", "15m")
	viper.SetDefault("log.dir", "logging")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return validate(config)
}

// validate rejects a malformed configuration before the pipeline ever
// starts. Cycle detection over the gate graph happens when the runner is
// built, also at startup.
func validate(c *Configuration) error {
	v := validator.New()
	if err := v.Struct(c.Gatekeeper); err != nil {
		return fmt.Errorf("%w: %v", gk_errors.ErrConfigInvalid, err)
	}

	if _, ok := model.ParseSeverity(c.Gatekeeper.SeverityThreshold); !ok {
		return fmt.Errorf("%w: unknown severity threshold %q",
			gk_errors.ErrConfigInvalid, c.Gatekeeper.SeverityThreshold)
	}

	names := make(map[string]bool, len(c.Gatekeeper.Gates))
	for _, g := range c.Gatekeeper.Gates {
		if names[g.Name] {
			return fmt.Errorf("%w: %q", gk_errors.ErrDuplicateGate, g.Name)
		}
		names[g.Name] = true
		for lvl, mapped := range g.SeverityMap {
			if _, ok := model.ParseSeverity(mapped); !ok {
				return fmt.Errorf("%w: gate %q maps %q to unknown severity %q",
					gk_errors.ErrConfigInvalid, g.Name, lvl, mapped)
			}
		}
	}
	for _, g := range c.Gatekeeper.Gates {
		for _, req := range g.Requires {
			if !names[req] {
				return fmt.Errorf("%w: gate %q requires %q",
					gk_errors.ErrUnknownGate, g.Name, req)
			}
		}
	}

	envs := make(map[string]bool, len(c.Gatekeeper.Environments))
	for _, e := range c.Gatekeeper.Environments {
		if envs[e.Name] {
			return fmt.Errorf("%w: duplicate environment %q", gk_errors.ErrConfigInvalid, e.Name)
		}
		envs[e.Name] = true
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
