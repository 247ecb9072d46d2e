// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey = "version"

	dbDirKey       = "db-dir"
	genesisFileKey = "genesis-file"
	inboxFileKey   = "inbox-file"
	revealDirKey   = "reveal-dir"

	httpAddrKey = "http-addr"
	logLevelKey = "log-level"

	fuelBudgetKey   = "fuel-budget"
	genesisEpochKey = "genesis-epoch"

	outboxFileKey      = "outbox-file"
	kafkaBrokersKey    = "kafka-brokers"
	receiptTopicKey    = "receipt-topic"
	withdrawalTopicKey = "withdrawal-topic"
	drainIntervalKey   = "drain-interval"
)

func buildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("riftvm", pflag.ContinueOnError)

	fs.Bool(versionKey, false, "if true, prints the version and quits")

	fs.String(dbDirKey, "", "directory for the persistent store; empty runs in memory")
	fs.String(genesisFileKey, "", "JSON file with the genesis epoch and allocations")
	fs.String(inboxFileKey, "", "inbox file with one '<level> <hex operation>' line per entry")
	fs.String(revealDirKey, "", "directory holding reveal preimages named by their root hash")

	fs.String(httpAddrKey, "", "address for the query API; empty disables it")
	fs.String(logLevelKey, "info", "log level: debug, info, warn, error")

	fs.Uint64(fuelBudgetKey, 0, "per-operation fuel budget; 0 uses the default")
	fs.Uint64(genesisEpochKey, 0, "unix seconds anchoring the deterministic clock")

	fs.String(outboxFileKey, "", "file the outbox drains to when no kafka brokers are set")
	fs.StringSlice(kafkaBrokersKey, nil, "kafka brokers to publish outbox messages to")
	fs.String(receiptTopicKey, "", "kafka topic for receipts")
	fs.String(withdrawalTopicKey, "", "kafka topic for withdrawals")
	fs.Duration(drainIntervalKey, 5*time.Second, "how often the relay drains the outbox")

	return fs
}

// getViper binds the flag set into a viper environment so every flag can
// also come from RIFTVM_ prefixed environment variables.
func getViper(args []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("riftvm")
	v.AutomaticEnv()

	fs := buildFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}
