// Command operator-server composes the leveled-compaction/anti-entropy
// admin surface (internal/api/operator) into a running gin process: one
// Manifest+Pool per configured table, a JWT-gated HTTP surface, and a
// repair SessionRegistry backed by a phi-accrual failure detector.
// Grounded on the teacher's cmd/http-wrapper composition-root shape
// (Load config, build collaborators, SetupRoutes, Run).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ringstore/internal/api/operator"
	"ringstore/internal/auth"
	"ringstore/internal/common"
	"ringstore/internal/config"
	"ringstore/internal/failuredetector"
	"ringstore/internal/manifest"
	"ringstore/internal/messaging"
	"ringstore/internal/repair"
	"ringstore/internal/sstable/block"
	"ringstore/internal/sstable/parquet"
	"ringstore/internal/wire"
)

// sweepInterval is the failure detector's background phi-recompute
// tick. Not yet exposed as a RepairConfig field; a literal default
// matching the teacher's own WAL ticker cadence.
const sweepInterval = time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	storage, err := block.NewFactory().Create(block.Config{
		Type:    cfg.Storage.Backend,
		BaseDir: cfg.Storage.LocalFS.BasePath,
		Options: map[string]string{
			"bucket": cfg.Storage.S3.Bucket,
			"region": cfg.Storage.S3.Region,
		},
	})
	if err != nil {
		log.Fatalf("build storage: %v", err)
	}

	ids := tableIDs()
	if len(ids) == 0 {
		log.Fatal("no tables configured: set RINGSTORE_TABLES to a comma-separated list of <keyspace>.<table>")
	}

	var publisher *messaging.EventPublisher
	if kp, err := messaging.NewKafkaPublisher(&cfg.Kafka); err != nil {
		log.Printf("kafka publisher unavailable, running without event publishing: %v", err)
	} else {
		publisher = messaging.NewEventPublisher(kp, "ringstore-operator")
	}

	tables := make(map[string]operator.TableHandle, len(ids))
	var pools []*manifest.Pool

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, id := range ids {
		m := manifest.New(cfg.Compaction.BaseSSTSizeBytes, cfg.Compaction.L0CompactionTrigger)
		pool := manifest.NewPool(m, storage, id, cfg.Compaction.ParallelWorkers, cfg.Compaction.MaxSSTableSizeBytes, parquet.DefaultWriterConfig())
		pool.SetPersistence(manifest.NewPersistence(storage, m, id, manifest.DefaultPersistenceConfig()))
		if publisher != nil {
			pool.SetEventPublisher(publisher)
		}
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("start compaction pool for %s: %v", id, err)
		}
		pools = append(pools, pool)
		tables[id.String()] = operator.TableHandle{Manifest: m, Pool: pool}
	}
	defer func() {
		for _, p := range pools {
			p.Stop()
		}
	}()

	detector := failuredetector.New(cfg.Repair.ConvictThreshold, sweepInterval)
	defer detector.Stop()

	registry := operator.NewSessionRegistry(
		noopTreeRequester{},
		noopSnapshotRequester{},
		detector,
		func(endpoint string) repair.Streamer { return noopStreamer{} },
		cfg.Repair,
	)
	if publisher != nil {
		registry.SetEventPublisher(publisher)
	}

	authenticator := auth.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer)
	srv := operator.NewServer(auth.NewAuthMiddleware(authenticator), tables, registry)

	addr := fmt.Sprintf("%s:%d", cfg.Operator.Host, cfg.Operator.Port)
	log.Printf("operator listening on %s, serving tables: %s", addr, strings.Join(tableKeys(tables), ", "))
	if err := srv.SetupRoutes().Run(addr); err != nil {
		log.Fatalf("operator server exited: %v", err)
	}
}

func tableKeys(tables map[string]operator.TableHandle) []string {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	return keys
}

// tableIDs parses RINGSTORE_TABLES ("<keyspace>.<table>,<keyspace>.<table>,...")
// into the fixed table set this process serves.
func tableIDs() []common.TableID {
	raw := os.Getenv("RINGSTORE_TABLES")
	if raw == "" {
		return nil
	}
	var ids []common.TableID
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ".", 2)
		if len(parts) != 2 {
			log.Fatalf("invalid RINGSTORE_TABLES entry %q: want <keyspace>.<table>", entry)
		}
		ids = append(ids, common.TableID{Keyspace: common.Keyspace(parts[0]), Table: common.TableName(parts[1])})
	}
	return ids
}

// noopTreeRequester/noopSnapshotRequester/noopStreamer are placeholders
// for the gossip/transport layer repair.Session treats as out of
// scope (see internal/repair's own doc comments); a real deployment
// wires these to the cluster's RPC client instead.
type noopTreeRequester struct{}

func (noopTreeRequester) SendTreeRequest(ctx context.Context, endpoint string, req wire.TreeRequest) error {
	return common.ErrUnavailableError(fmt.Sprintf("no transport configured to reach %s", endpoint))
}

type noopSnapshotRequester struct{}

func (noopSnapshotRequester) SendSnapshotCommand(ctx context.Context, endpoint string, cmd wire.SnapshotCommand) error {
	return common.ErrUnavailableError(fmt.Sprintf("no transport configured to reach %s", endpoint))
}

type noopStreamer struct{}

func (noopStreamer) Stream(ctx context.Context, req wire.SyncRequest) error {
	return common.ErrUnavailableError("no transport configured for row streaming")
}
