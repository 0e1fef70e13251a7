// Command transfer-hook-accounts resolves the accounts a Token-2022
// TransferChecked instruction needs when the mint has a transfer hook, and
// prints the assembled instruction.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/transfer-hook-client/pkg/metrics"
	"github.com/code-payments/transfer-hook-client/pkg/rate"
	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/token"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook/fetcher"
)

var (
	configPath = flag.String("config", "", "configuration file path")

	mintFlag        = flag.String("mint", "", "base58 token mint")
	ownerFlag       = flag.String("owner", "", "base58 wallet that owns the source token account")
	destinationFlag = flag.String("destination", "", "base58 wallet receiving the tokens")
	amountFlag      = flag.Uint64("amount", 0, "amount in quarks")
	payerFlag       = flag.String("payer", "", "optional base58 fee payer; when set, an unsigned transaction message is included")
)

func main() {
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "cmd/transfer-hook-accounts")

	cfg, err := loadConfig(viper.GetViper(), *configPath)
	if err != nil {
		logger.WithError(err).Error("invalid config")
		os.Exit(1)
	}

	var metricsProvider *newrelic.Application
	if len(cfg.NewRelicLicenseKey) > 0 {
		metricsProvider, err = newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(cfg.AppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Error("error connecting to new relic")
			os.Exit(1)
		}
		defer metricsProvider.Shutdown(10 * time.Second)
	}

	configureLogger(cfg, metricsProvider)

	if err := run(cfg, metricsProvider); err != nil {
		logger.WithError(err).Error("failed to resolve transfer hook accounts")
		if metricsProvider != nil {
			metricsProvider.Shutdown(10 * time.Second)
		}
		os.Exit(1)
	}
}

func run(cfg config, metricsProvider *newrelic.Application) error {
	mint, err := solana.PublicKeyFromBase58(*mintFlag)
	if err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	owner, err := solana.PublicKeyFromBase58(*ownerFlag)
	if err != nil {
		return errors.Wrap(err, "invalid owner")
	}
	destinationWallet, err := solana.PublicKeyFromBase58(*destinationFlag)
	if err != nil {
		return errors.Wrap(err, "invalid destination")
	}

	var payer ed25519.PublicKey
	if len(*payerFlag) > 0 {
		payer, err = solana.PublicKeyFromBase58(*payerFlag)
		if err != nil {
			return errors.Wrap(err, "invalid payer")
		}
	}

	commitment, err := solana.ParseCommitment(cfg.Commitment)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	if metricsProvider != nil {
		txn := metricsProvider.StartTransaction("transfer-hook-accounts")
		defer txn.End()

		ctx = newrelic.NewContext(ctx, txn)
		ctx = metrics.NewContext(ctx, metricsProvider)
	}

	var rpcClient *rpc.Client
	if cfg.RPCClient == rpcClientSolanaGo || payer != nil {
		rpcClient = rpc.New(cfg.RPCEndpoint)
	}

	accountFetcher := newAccountFetcher(cfg, solana.New(cfg.RPCEndpoint), rpcClient, commitment)

	mintState, tokenProgram, err := transferhook.GetMint(ctx, accountFetcher, mint)
	if err != nil {
		return errors.Wrap(err, "failed to get mint")
	}

	hookProgram, err := mintState.GetTransferHookProgram()
	if err != nil {
		return errors.Wrap(err, "invalid transfer hook extension")
	}

	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":          "cmd/transfer-hook-accounts",
		"mint":          encodeKey(mint),
		"token_program": encodeKey(tokenProgram),
	})
	if hookProgram != nil {
		log.WithField("hook_program", encodeKey(hookProgram)).Info("mint has a transfer hook")
	} else {
		log.Info("mint has no transfer hook")
	}

	source, err := token.GetAssociatedAccountForProgram(owner, mint, tokenProgram)
	if err != nil {
		return errors.Wrap(err, "failed to derive source account")
	}
	destination, err := token.GetAssociatedAccountForProgram(destinationWallet, mint, tokenProgram)
	if err != nil {
		return errors.Wrap(err, "failed to derive destination account")
	}

	ix, err := transferhook.TransferCheckedWithTransferHook(
		ctx,
		accountFetcher,
		tokenProgram,
		source,
		mint,
		destination,
		owner,
		*amountFlag,
		mintState.Decimals,
	)
	if err != nil {
		return err
	}

	out, err := newOutput(ix)
	if err != nil {
		return err
	}
	if payer != nil {
		latest, err := rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentType(commitment.Commitment))
		if err != nil {
			return errors.Wrap(err, "failed to get latest blockhash")
		}

		out.Message, err = compileMessage(ix, payer, latest.Value.Blockhash)
		if err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func newAccountFetcher(cfg config, sc solana.Client, rpcClient *rpc.Client, commitment solana.Commitment) transferhook.AccountFetcher {
	var f transferhook.AccountFetcher
	switch cfg.RPCClient {
	case rpcClientSolanaGo:
		f = fetcher.NewSolanaGoFetcher(rpcClient, commitment, cfg.MaxFetchAttempts)
	default:
		f = fetcher.NewClientFetcher(sc, commitment)
	}

	if cfg.RPCRequestsPerSecond > 0 {
		limiter := rate.NewLocalRateLimiter(xrate.Limit(cfg.RPCRequestsPerSecond))
		f = fetcher.NewRateLimitedFetcher(f, limiter, cfg.RPCEndpoint)
	}

	if cfg.AccountCacheBudget > 0 {
		f = fetcher.NewCachingFetcher(f, cfg.AccountCacheBudget)
	}
	return f
}

func configureLogger(cfg config, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", cfg.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	// Stdout carries the resolved instruction.
	logrus.SetOutput(os.Stderr)
}

func encodeKey(key ed25519.PublicKey) string {
	return base58.Encode(key)
}
