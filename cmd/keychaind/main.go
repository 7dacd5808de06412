package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/EthSign/keychain-snap/internal/access"
	"github.com/EthSign/keychain-snap/internal/audit"
	"github.com/EthSign/keychain-snap/internal/crypto"
	"github.com/EthSign/keychain-snap/internal/keychain"
	"github.com/EthSign/keychain-snap/internal/remote"
	"github.com/EthSign/keychain-snap/internal/rpc"
	"github.com/EthSign/keychain-snap/internal/server"
	"github.com/EthSign/keychain-snap/internal/storage"
	"github.com/EthSign/keychain-snap/internal/wallet"
)

func main() {
	logger := log.New(os.Stdout, "[keychaind] ", log.LstdFlags)

	listen := envOr("KEYCHAIN_LISTEN", ":8080")
	dataDir := envOr("KEYCHAIN_DATA_DIR", "./keychain-data")

	store, cleanup, err := newStateStore(dataDir, logger)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer cleanup()

	seed, err := loadSeed(dataDir + "/wallet.seed")
	if err != nil {
		logger.Fatalf("wallet seed: %v", err)
	}
	if err := crypto.LockKey(seed); err != nil {
		logger.Printf("mlock wallet seed: %v", err)
	}
	w := wallet.NewDevWallet(seed, store, logger)
	w.Password = os.Getenv("KEYCHAIN_DEV_PASSWORD")
	w.Choice = envOr("KEYCHAIN_IMPORT_MODE", "merge")

	var ledger, kv remote.LogClient
	if url := os.Getenv("KEYCHAIN_LEDGER_URL"); url != "" {
		ledger = remote.NewLedgerClient(remote.LedgerConfig{
			GatewayURL: url,
			BundlerURL: os.Getenv("KEYCHAIN_BUNDLER_URL"),
			SubmitRate: rate.Limit(1),
		})
	}
	if url := os.Getenv("KEYCHAIN_KV_URL"); url != "" {
		kv = remote.NewKVClient(remote.KVConfig{
			BaseURL: url,
			APIKey:  os.Getenv("KEYCHAIN_KV_API_KEY"),
		})
	}

	svc := keychain.NewService(w, ledger, kv, keychain.WithLogger(logger))
	gate := access.NewGate(w, logger)
	trail := audit.New()
	dispatcher := rpc.NewDispatcher(svc, gate, trail, logger)

	srv, err := server.New(server.Config{TokenTTL: 15 * time.Minute}, dispatcher, trail)
	if err != nil {
		logger.Fatalf("server: %v", err)
	}

	logger.Printf("listening on %s", listen)
	logger.Fatal(http.ListenAndServe(listen, srv.Handler()))
}

func newStateStore(dataDir string, logger *log.Logger) (storage.StateStore, func(), error) {
	uri := os.Getenv("KEYCHAIN_MONGO_URI")
	if uri == "" {
		return storage.NewFileStateStore(dataDir + "/state"), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ms, err := storage.NewMongoStateStore(ctx, uri,
		envOr("KEYCHAIN_MONGO_DB", "keychain"),
		envOr("KEYCHAIN_MONGO_COLL", "state_blobs"))
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("state blobs in mongo %s", uri)
	return ms, func() { _ = ms.Close(context.Background()) }, nil
}

// loadSeed reads the dev wallet seed, creating one on first run.
func loadSeed(path string) ([]byte, error) {
	if b, err := os.ReadFile(path); err == nil {
		return hex.DecodeString(string(b))
	}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0600); err != nil {
		return nil, err
	}
	return seed, nil
}


func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
