package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/vault/api"
	"github.com/ruteri/timelock-vault/interfaces"
)

// HashiVaultStore keeps vault records as KV v2 secrets in HashiCorp Vault.
// Each record is a secret at <mount>/<dataPath>/<address> with a hex "record" field.
type HashiVaultStore struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewHashiVaultStore creates a Vault-backed record store authenticated with token.
// An empty token leaves the client's default (VAULT_TOKEN) in place.
func NewHashiVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*HashiVaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &HashiVaultStore{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

func (b *HashiVaultStore) secretPath(addr interfaces.Address) string {
	if b.dataPath == "" {
		return addr.String()
	}
	return b.dataPath + "/" + addr.String()
}

// Load reads the record secret for addr.
func (b *HashiVaultStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	start := time.Now()
	path := b.secretPath(addr)

	secret, err := b.client.KVv2(b.mountPath).Get(ctx, path)
	if errors.Is(err, api.ErrSecretNotFound) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		b.log.Error("Failed to read from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrRecordNotFound
	}

	encoded, ok := secret.Data["record"].(string)
	if !ok {
		return nil, fmt.Errorf("record key not found in Vault data at %s", path)
	}
	data, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid record encoding in Vault data at %s: %w", path, err)
	}

	b.log.Debug("Loaded record from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

// Save writes a new version of the record secret for addr.
func (b *HashiVaultStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	path := b.secretPath(addr)

	_, err := b.client.KVv2(b.mountPath).Put(ctx, path, map[string]interface{}{
		"record": hexutil.Encode(data),
	})
	if err != nil {
		b.log.Error("Failed to write to Vault", slog.String("path", path), "err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Available checks that Vault is initialized and unsealed.
func (b *HashiVaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}
	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}
	return true
}

func (b *HashiVaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

func (b *HashiVaultStore) LocationURI() string {
	return b.locationURI
}
