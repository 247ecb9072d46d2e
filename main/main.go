// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	log "github.com/inconshreveable/log15"
	"github.com/spf13/viper"

	"github.com/rift-labs/riftvm/kernel"
	"github.com/rift-labs/riftvm/relay"
	"github.com/rift-labs/riftvm/service"
	"github.com/rift-labs/riftvm/storage"
)

const (
	Name    = "riftvm"
	Version = "1.0.0"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", Name, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v, err := getViper(args)
	if err != nil {
		return err
	}
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", Name, Version)
		return nil
	}

	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))
	logger := log.New("node", Name)

	db, err := openDatabase(v.GetString(dbDirKey), logger)
	if err != nil {
		return err
	}
	store := storage.New(db)
	defer store.Close()

	genesis, err := loadGenesis(v.GetString(genesisFileKey))
	if err != nil {
		return err
	}

	config := kernel.Config{
		FuelBudget:   v.GetUint64(fuelBudgetKey),
		GenesisEpoch: genesis.Epoch,
	}
	if epoch := v.GetUint64(genesisEpochKey); epoch != 0 {
		config.GenesisEpoch = epoch
	}

	var resolver kernel.PayloadResolver
	if dir := v.GetString(revealDirKey); dir != "" {
		resolver = &dirResolver{dir: dir}
	}

	proc := kernel.NewProcessor(store, resolver, config, logger)
	if err := proc.InitGenesis(genesis); err != nil {
		return err
	}

	if inbox := v.GetString(inboxFileKey); inbox != "" {
		if err := processInbox(proc, inbox, logger); err != nil {
			return err
		}
	}

	sink, err := buildSink(v, logger)
	if err != nil {
		return err
	}

	if sink != nil {
		defer sink.Close()
		r := relay.New(proc.Outbox(), sink, logger)
		if err := r.Drain(); err != nil {
			return err
		}
		if addr := v.GetString(httpAddrKey); addr != "" {
			go func() {
				if err := r.Run(context.Background(), v.GetDuration(drainIntervalKey)); err != nil {
					logger.Error("relay stopped", "error", err)
				}
			}()
		}
	}

	if addr := v.GetString(httpAddrKey); addr != "" {
		handler, err := service.NewHTTPHandler(proc)
		if err != nil {
			return err
		}
		logger.Info("serving query API", "addr", addr)
		return http.ListenAndServe(addr, handler)
	}
	return nil
}

func openDatabase(dir string, logger log.Logger) (database.Database, error) {
	if dir == "" {
		logger.Warn("no db-dir set, state is in memory only")
		return memdb.New(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "riftvm.db")
	logger.Info("opening store", "path", path)
	return storage.NewBoltDatabase(path)
}

func loadGenesis(path string) (*kernel.Genesis, error) {
	if path == "" {
		return &kernel.Genesis{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	genesis := &kernel.Genesis{}
	if err := json.Unmarshal(raw, genesis); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}
	return genesis, nil
}

// processInbox replays an inbox file: one "<level> <hex operation>" line
// per entry, levels grouped by consecutive lines and processed in order.
func processInbox(proc *kernel.Processor, path string, logger log.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		level   uint64
		batch   [][]byte
		started bool
	)
	flush := func() error {
		if !started {
			return nil
		}
		receipts, err := proc.ProcessBatch(level, batch)
		if err != nil {
			return err
		}
		logger.Info("level processed", "level", level, "operations", len(batch), "receipts", len(receipts))
		batch = nil
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("malformed inbox line %q", line)
		}
		lineLevel, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed inbox level %q: %w", fields[0], err)
		}
		raw, err := formatting.Decode(formatting.Hex, fields[1])
		if err != nil {
			return fmt.Errorf("malformed inbox entry at level %d: %w", lineLevel, err)
		}

		if started && lineLevel != level {
			if lineLevel < level {
				return fmt.Errorf("inbox levels out of order: %d after %d", lineLevel, level)
			}
			if err := flush(); err != nil {
				return err
			}
		}
		level = lineLevel
		started = true
		batch = append(batch, raw)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

func buildSink(v *viper.Viper, logger log.Logger) (relay.Sink, error) {
	if brokers := v.GetStringSlice(kafkaBrokersKey); len(brokers) > 0 {
		return relay.NewKafkaSink(
			brokers,
			v.GetString(receiptTopicKey),
			v.GetString(withdrawalTopicKey),
			logger,
		)
	}
	if path := v.GetString(outboxFileKey); path != "" {
		return relay.NewFileSink(path)
	}
	return nil, nil
}

// dirResolver serves reveal preimages from files named by their root
// hash. Hash verification stays in the kernel.
type dirResolver struct {
	dir string
}

func (r *dirResolver) Resolve(root ids.ID) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.dir, root.String()))
}
