package vault

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Well-known program identifiers of the settlement ledgers.
var (
	SystemProgramID     = interfaces.MustAddress("11111111111111111111111111111111")
	TokenProgramID      = interfaces.MustAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedProgramID = interfaces.MustAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	// DefaultProgramID identifies the vault program itself.
	DefaultProgramID = interfaces.MustAddress("5r1opauU9WwB9CwS1dhgWYgYYrdpfbovQngEM5pFqChG")
)

const (
	// SeedLabel is the fixed first seed of every vault address.
	SeedLabel = "vault"

	// DefaultLockDuration is the lock period applied by Initialize and Deposit.
	DefaultLockDuration = 30 * 24 * time.Hour

	// DefaultEntryFee is the protocol entry fee in native base units. It is also
	// the basis of the early-exit fee.
	DefaultEntryFee uint64 = 100_000_000

	// DefaultBaseFeeRate is the early-exit fee fraction charged at day zero.
	DefaultBaseFeeRate = "0.75"
)

var ErrInvalidEnvironment = errors.New("invalid environment")

// Environment holds every deployment-specific constant used by the processor.
// One Environment is selected at start-up and never changes afterwards.
type Environment struct {
	Name string `json:"name"`

	ProgramID           interfaces.Address `json:"program_id"`
	TokenProgramID      interfaces.Address `json:"token_program_id"`
	NativeProgramID     interfaces.Address `json:"native_program_id"`
	AssociatedProgramID interfaces.Address `json:"associated_program_id"`

	Assets        []interfaces.Address `json:"assets"`
	FeeRecipients []interfaces.Address `json:"fee_recipients"`

	LockDuration time.Duration   `json:"lock_duration"`
	EntryFee     uint64          `json:"entry_fee"`
	BaseFeeRate  decimal.Decimal `json:"base_fee_rate"`

	// Faucet enables the development airdrop endpoint.
	Faucet bool `json:"faucet"`
}

func baseEnvironment(name string) Environment {
	return Environment{
		Name:                name,
		ProgramID:           DefaultProgramID,
		TokenProgramID:      TokenProgramID,
		NativeProgramID:     SystemProgramID,
		AssociatedProgramID: AssociatedProgramID,
		LockDuration:        DefaultLockDuration,
		EntryFee:            DefaultEntryFee,
		BaseFeeRate:         decimal.RequireFromString(DefaultBaseFeeRate),
	}
}

// Mainnet returns the production environment.
func Mainnet() Environment {
	env := baseEnvironment("mainnet")
	env.Assets = []interfaces.Address{interfaces.MustAddress("3PKZCeF6RVw6sAGqCV5BGCATE1gu3bPceWXhfasapXVS")}
	env.FeeRecipients = []interfaces.Address{interfaces.MustAddress("5zaUUZWoXaWt2Ht5NNQZuQXyfaQKDLyQoESn6BXvVzBd")}
	return env
}

// Devnet returns the development environment. It enables the faucet.
func Devnet() Environment {
	env := baseEnvironment("devnet")
	env.Assets = []interfaces.Address{interfaces.MustAddress("AQYzQ3ZS9tXjhYMuVQ8tGoZMVV5DSuucaJB16mzXic9d")}
	env.FeeRecipients = []interfaces.Address{interfaces.MustAddress("8jHMkdtKK4CCn4ep6Hponmk1ik7ofUNS9bX9qSuiRcN5")}
	env.Faucet = true
	return env
}

// EnvironmentByName returns a built-in environment.
func EnvironmentByName(name string) (Environment, error) {
	switch name {
	case "mainnet":
		return Mainnet(), nil
	case "devnet":
		return Devnet(), nil
	default:
		return Environment{}, fmt.Errorf("%w: unknown environment %q", ErrInvalidEnvironment, name)
	}
}

// LoadEnvironment reads a YAML environment file. Fields missing from the file
// keep the values of the built-in environment named by its "name" key, or of
// devnet when the name is not a built-in one.
func LoadEnvironment(path string) (Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Environment{}, fmt.Errorf("failed to read environment file: %w", err)
	}
	return ParseEnvironment(data)
}

// ParseEnvironment decodes and validates a YAML environment document.
func ParseEnvironment(data []byte) (Environment, error) {
	var named struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &named); err != nil {
		return Environment{}, fmt.Errorf("%w: %v", ErrInvalidEnvironment, err)
	}

	env, err := EnvironmentByName(named.Name)
	if err != nil {
		env = Devnet()
		env.Faucet = false
	}

	var doc environmentDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Environment{}, fmt.Errorf("%w: %v", ErrInvalidEnvironment, err)
	}
	if err := doc.applyTo(&env); err != nil {
		return Environment{}, err
	}

	if err := env.Validate(); err != nil {
		return Environment{}, err
	}
	return env, nil
}

// environmentDocument is the YAML shape. Addresses and rates are strings so
// that absent keys can be told apart from zero values.
type environmentDocument struct {
	Name                string   `yaml:"name"`
	ProgramID           string   `yaml:"program_id"`
	TokenProgramID      string   `yaml:"token_program_id"`
	NativeProgramID     string   `yaml:"native_program_id"`
	AssociatedProgramID string   `yaml:"associated_program_id"`
	Assets              []string `yaml:"assets"`
	FeeRecipients       []string `yaml:"fee_recipients"`
	LockDuration        string   `yaml:"lock_duration"`
	EntryFee            *uint64  `yaml:"entry_fee"`
	BaseFeeRate         string   `yaml:"base_fee_rate"`
	Faucet              *bool    `yaml:"faucet"`
}

func (doc *environmentDocument) applyTo(env *Environment) error {
	if doc.Name != "" {
		env.Name = doc.Name
	}

	ids := []struct {
		raw string
		dst *interfaces.Address
	}{
		{doc.ProgramID, &env.ProgramID},
		{doc.TokenProgramID, &env.TokenProgramID},
		{doc.NativeProgramID, &env.NativeProgramID},
		{doc.AssociatedProgramID, &env.AssociatedProgramID},
	}
	for _, id := range ids {
		if id.raw == "" {
			continue
		}
		addr, err := interfaces.NewAddressFromBase58(id.raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEnvironment, err)
		}
		*id.dst = addr
	}

	var err error
	if doc.Assets != nil {
		if env.Assets, err = parseAddressList(doc.Assets); err != nil {
			return err
		}
	}
	if doc.FeeRecipients != nil {
		if env.FeeRecipients, err = parseAddressList(doc.FeeRecipients); err != nil {
			return err
		}
	}

	if doc.LockDuration != "" {
		if env.LockDuration, err = time.ParseDuration(doc.LockDuration); err != nil {
			return fmt.Errorf("%w: lock_duration: %v", ErrInvalidEnvironment, err)
		}
	}
	if doc.EntryFee != nil {
		env.EntryFee = *doc.EntryFee
	}
	if doc.BaseFeeRate != "" {
		if env.BaseFeeRate, err = decimal.NewFromString(doc.BaseFeeRate); err != nil {
			return fmt.Errorf("%w: base_fee_rate: %v", ErrInvalidEnvironment, err)
		}
	}
	if doc.Faucet != nil {
		env.Faucet = *doc.Faucet
	}
	return nil
}

func parseAddressList(raw []string) ([]interfaces.Address, error) {
	res := make([]interfaces.Address, 0, len(raw))
	for _, s := range raw {
		addr, err := interfaces.NewAddressFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEnvironment, err)
		}
		res = append(res, addr)
	}
	return res, nil
}

// Validate checks that the environment is usable by a processor.
func (env *Environment) Validate() error {
	if env.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEnvironment)
	}
	if env.ProgramID.IsZero() || env.TokenProgramID.IsZero() || env.AssociatedProgramID.IsZero() {
		return fmt.Errorf("%w: program identifiers must be set", ErrInvalidEnvironment)
	}
	if len(env.Assets) == 0 || len(env.FeeRecipients) == 0 {
		return fmt.Errorf("%w: allow-lists must not be empty", ErrInvalidEnvironment)
	}
	if env.LockDuration < 0 {
		return fmt.Errorf("%w: negative lock duration", ErrInvalidEnvironment)
	}
	// The early-exit fee counts whole days, so maturity must fall on a day boundary.
	if env.LockDuration%(24*time.Hour) != 0 {
		return fmt.Errorf("%w: lock duration %s is not a whole number of days", ErrInvalidEnvironment, env.LockDuration)
	}
	if env.BaseFeeRate.IsNegative() || env.BaseFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: base fee rate %s outside [0, 1]", ErrInvalidEnvironment, env.BaseFeeRate)
	}
	return nil
}

// LockSeconds returns the configured lock duration in whole seconds.
func (env *Environment) LockSeconds() int64 {
	return int64(env.LockDuration / time.Second)
}
