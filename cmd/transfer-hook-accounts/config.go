package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

const (
	rpcClientJSONRPC  = "jsonrpc"
	rpcClientSolanaGo = "solana-go"
)

// config is the CLI configuration, loaded from an optional config file and
// the environment.
type config struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	RPCEndpoint string `mapstructure:"rpc_endpoint"`

	// RPCClient selects the client used to fetch accounts during
	// resolution: jsonrpc or solana-go.
	RPCClient string `mapstructure:"rpc_client"`

	Commitment string `mapstructure:"commitment"`

	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MaxFetchAttempts uint          `mapstructure:"max_fetch_attempts"`

	// Account fetches permitted per second. Zero disables rate limiting.
	RPCRequestsPerSecond float64 `mapstructure:"rpc_requests_per_second"`

	// Weight budget, in bytes of account data, for the account cache. Zero
	// disables caching.
	AccountCacheBudget int `mapstructure:"account_cache_budget"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
}

var defaultConfig = config{
	LogLevel: "info",

	AppName: "transfer-hook-accounts",

	RPCEndpoint: string(solana.EnvironmentProd),
	RPCClient:   rpcClientJSONRPC,
	Commitment:  "confirmed",

	FetchTimeout:     30 * time.Second,
	MaxFetchAttempts: 3,

	AccountCacheBudget: 1 << 20,
}

func init() {
	bindEnv(viper.GetViper())
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	_ = v.BindEnv("app_name", "APP_NAME")

	_ = v.BindEnv("rpc_endpoint", "SOLANA_RPC_ENDPOINT")
	_ = v.BindEnv("rpc_client", "SOLANA_RPC_CLIENT")
	_ = v.BindEnv("commitment", "SOLANA_COMMITMENT")

	_ = v.BindEnv("fetch_timeout", "FETCH_TIMEOUT")
	_ = v.BindEnv("max_fetch_attempts", "MAX_FETCH_ATTEMPTS")
	_ = v.BindEnv("rpc_requests_per_second", "RPC_REQUESTS_PER_SECOND")

	_ = v.BindEnv("account_cache_budget", "ACCOUNT_CACHE_BUDGET")

	_ = v.BindEnv("new_relic_license_key", "NEW_RELIC_LICENSE_KEY")
}

// loadConfig reads the config file at path, if it exists, and overlays the
// environment on top of the defaults.
func loadConfig(v *viper.Viper, path string) (config, error) {
	if len(path) > 0 {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, errors.Wrapf(err, "failed to load config %s", path)
		}
	}

	c := defaultConfig
	if err := v.Unmarshal(&c); err != nil {
		return config{}, errors.Wrap(err, "failed to unmarshal config")
	}

	return c, c.validate()
}

func (c config) validate() error {
	if len(c.RPCEndpoint) == 0 {
		return errors.New("must specify an rpc endpoint")
	}

	switch c.RPCClient {
	case rpcClientJSONRPC, rpcClientSolanaGo:
	default:
		return errors.Errorf("unknown rpc client: %q", c.RPCClient)
	}

	if _, err := solana.ParseCommitment(c.Commitment); err != nil {
		return err
	}

	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}
	if c.RPCRequestsPerSecond < 0 {
		return errors.New("rpc requests per second must not be negative")
	}
	if c.AccountCacheBudget < 0 {
		return errors.New("account cache budget must not be negative")
	}

	return nil
}
