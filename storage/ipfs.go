package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/timelock-vault/interfaces"
)

// ipfsShell is the part of the IPFS HTTP API the store uses.
type ipfsShell interface {
	FilesRead(ctx context.Context, path string, options ...shell.FilesOpt) (io.ReadCloser, error)
	FilesWrite(ctx context.Context, path string, data io.Reader, options ...shell.FilesOpt) error
	IsUp() bool
}

// IPFSStore keeps vault records in the mutable file system (MFS) of an IPFS
// node, under root/vaults/<address>.
type IPFSStore struct {
	shell       ipfsShell
	host        string
	port        string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSStore creates an IPFS record store talking to the node API at host:port.
func NewIPFSStore(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSStore, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	if root == "" || root == "/" {
		root = "/timelock-vault"
	}

	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	store := newIPFSStore(sh, root, log)
	store.host, store.port = host, port
	store.locationURI = fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, root, timeout)
	return store, nil
}

func newIPFSStore(sh ipfsShell, root string, log *slog.Logger) *IPFSStore {
	return &IPFSStore{
		shell:       sh,
		root:        path.Clean("/" + root),
		log:         log,
		locationURI: "ipfs://" + root,
	}
}

// Load reads the record file for addr.
func (b *IPFSStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	start := time.Now()
	filePath := b.recordPath(addr)

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, interfaces.ErrRecordNotFound
		}
		if !b.shell.IsUp() {
			return nil, interfaces.ErrBackendUnavailable
		}
		b.log.Error("Failed to read record from IPFS",
			slog.String("path", filePath),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read record from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read record from IPFS: %w", err)
	}

	b.log.Debug("Loaded record from IPFS",
		slog.String("path", filePath),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

// Save writes the record file for addr, truncating any previous content.
func (b *IPFSStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	filePath := b.recordPath(addr)

	err := b.shell.FilesWrite(ctx, filePath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		if !b.shell.IsUp() {
			return interfaces.ErrBackendUnavailable
		}
		return fmt.Errorf("failed to write record to IPFS: %w", err)
	}

	b.log.Debug("Saved record to IPFS", slog.String("path", filePath))
	return nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSStore) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSStore) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

func (b *IPFSStore) LocationURI() string {
	return b.locationURI
}

func (b *IPFSStore) recordPath(addr interfaces.Address) string {
	return path.Join(b.root, "vaults", addr.String())
}
