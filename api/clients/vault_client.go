package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/timelock-vault/api"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/ruteri/timelock-vault/vault"
	"github.com/stretchr/testify/mock"
)

// VaultClient implements api.VaultProvider over HTTP.
type VaultClient struct {
	// ServerAddr is the base URL of the vault server
	ServerAddr string

	// HTTPClient defaults to a client with a 30 second timeout
	HTTPClient *http.Client
}

// NewVaultClient creates a client for the server at addr.
func NewVaultClient(addr string) *VaultClient {
	return &VaultClient{
		ServerAddr: strings.TrimRight(addr, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx response of the vault server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vault server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("vault server returned %d: %s", e.StatusCode, e.Message)
}

// Process submits a signed operation.
func (c *VaultClient) Process(req *api.ProcessRequest) (*vault.Result, error) {
	var res vault.Result
	if err := c.do(http.MethodPost, "/api/vault/process", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetVault returns the vault record of owner.
func (c *VaultClient) GetVault(owner interfaces.Address) (*api.VaultResponse, error) {
	var res api.VaultResponse
	if err := c.do(http.MethodGet, "/api/vault/"+owner.String(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetQuote returns the early-exit fee owner would pay now.
func (c *VaultClient) GetQuote(owner interfaces.Address) (*api.QuoteResponse, error) {
	var res api.QuoteResponse
	if err := c.do(http.MethodGet, "/api/vault/"+owner.String()+"/quote", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetEnvironment returns the server's active environment.
func (c *VaultClient) GetEnvironment() (*api.EnvironmentResponse, error) {
	var res api.EnvironmentResponse
	if err := c.do(http.MethodGet, "/api/environment", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Airdrop requests development funds.
func (c *VaultClient) Airdrop(req *api.AirdropRequest) (*api.AirdropResponse, error) {
	var res api.AirdropResponse
	if err := c.do(http.MethodPost, "/api/devnet/airdrop", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *VaultClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.ServerAddr+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{StatusCode: resp.StatusCode}
		}
		var errResp api.ErrorResponse
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error != "" {
			return &Error{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &Error{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response of %s: %w", path, err)
	}
	return nil
}

// MockVaultProvider implements a mock api.VaultProvider for testing.
type MockVaultProvider struct {
	mock.Mock
}

func (m *MockVaultProvider) Process(req *api.ProcessRequest) (*vault.Result, error) {
	args := m.Called(req)
	return args.Get(0).(*vault.Result), args.Error(1)
}

func (m *MockVaultProvider) GetVault(owner interfaces.Address) (*api.VaultResponse, error) {
	args := m.Called(owner)
	return args.Get(0).(*api.VaultResponse), args.Error(1)
}

func (m *MockVaultProvider) GetQuote(owner interfaces.Address) (*api.QuoteResponse, error) {
	args := m.Called(owner)
	return args.Get(0).(*api.QuoteResponse), args.Error(1)
}

func (m *MockVaultProvider) GetEnvironment() (*api.EnvironmentResponse, error) {
	args := m.Called()
	return args.Get(0).(*api.EnvironmentResponse), args.Error(1)
}
