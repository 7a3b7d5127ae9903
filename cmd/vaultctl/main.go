package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ruteri/timelock-vault/api"
	"github.com/ruteri/timelock-vault/api/clients"
	"github.com/ruteri/timelock-vault/cmd/flags"
	"github.com/ruteri/timelock-vault/cryptoutils"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/ruteri/timelock-vault/vault"
	"github.com/urfave/cli/v2"
)

var flagAmount = &cli.Uint64Flag{
	Name:  "amount",
	Usage: "amount in base units",
}

var flagOwner = &cli.StringFlag{
	Name:  "owner",
	Usage: "base58 owner address; defaults to the keypair's address",
}

var flagToken = &cli.BoolFlag{
	Name:  "token",
	Usage: "airdrop the environment's first asset instead of the native currency",
}

// submit signs and sends one operation for kp, deriving its accounts from the
// server's environment.
func submit(provider api.VaultProvider, kp *cryptoutils.Keypair, op vault.Operation, now time.Time) (*vault.Result, error) {
	envResp, err := provider.GetEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not fetch environment: %w", err)
	}
	env := envResp.Environment()
	if len(env.Assets) == 0 || len(env.FeeRecipients) == 0 {
		return nil, errors.New("server environment has empty allow-lists")
	}

	accts, err := vault.AccountsFor(&env, kp.Address())
	if err != nil {
		return nil, err
	}
	return provider.Process(api.NewProcessRequest(kp, op, accts, now))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadKeypair(cCtx *cli.Context) (*cryptoutils.Keypair, error) {
	return cryptoutils.LoadKeypair(cCtx.String(flags.KeypairFileFlag.Name))
}

func ownerAddress(cCtx *cli.Context) (interfaces.Address, error) {
	if s := cCtx.String(flagOwner.Name); s != "" {
		return interfaces.NewAddressFromBase58(s)
	}
	kp, err := loadKeypair(cCtx)
	if err != nil {
		return interfaces.Address{}, err
	}
	return kp.Address(), nil
}

func operationCommand(name, usage string, kind vault.OperationKind, withAmount bool) *cli.Command {
	cmdFlags := []cli.Flag{flags.ServerAddrFlag, flags.KeypairFileFlag}
	if withAmount {
		cmdFlags = append(cmdFlags, flagAmount)
	}
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: cmdFlags,
		Action: func(cCtx *cli.Context) error {
			kp, err := loadKeypair(cCtx)
			if err != nil {
				return err
			}
			op := vault.Operation{Kind: kind}
			if withAmount {
				op.Amount = cCtx.Uint64(flagAmount.Name)
			}

			client := clients.NewVaultClient(cCtx.String(flags.ServerAddrFlag.Name))
			res, err := submit(client, kp, op, time.Now())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "vaultctl",
		Usage: "Manage a time-locked token vault",
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "generate an owner keypair",
				Flags: []cli.Flag{flags.KeypairFileFlag},
				Action: func(cCtx *cli.Context) error {
					path := cCtx.String(flags.KeypairFileFlag.Name)
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("refusing to overwrite existing keypair %s", path)
					}
					kp, err := cryptoutils.GenerateKeypair()
					if err != nil {
						return err
					}
					if err := cryptoutils.SaveKeypair(path, kp); err != nil {
						return err
					}
					fmt.Println(kp.Address())
					return nil
				},
			},
			{
				Name:  "address",
				Usage: "print the owner, vault and holding addresses",
				Flags: []cli.Flag{flags.KeypairFileFlag, flagOwner, flags.EnvironmentFlag, flags.EnvironmentFileFlag},
				Action: func(cCtx *cli.Context) error {
					owner, err := ownerAddress(cCtx)
					if err != nil {
						return err
					}
					var env vault.Environment
					if path := cCtx.String(flags.EnvironmentFileFlag.Name); path != "" {
						env, err = vault.LoadEnvironment(path)
					} else {
						env, err = vault.EnvironmentByName(cCtx.String(flags.EnvironmentFlag.Name))
					}
					if err != nil {
						return err
					}
					accts, err := vault.AccountsFor(&env, owner)
					if err != nil {
						return err
					}
					return printJSON(accts)
				},
			},
			operationCommand("initialize", "create the vault, optionally locking --amount", vault.OpInitialize, true),
			operationCommand("deposit", "lock --amount more and restart the lock", vault.OpDeposit, true),
			operationCommand("withdraw", "withdraw everything, paying the early-exit fee", vault.OpWithdraw, false),
			operationCommand("release", "withdraw everything after maturity", vault.OpRelease, false),
			operationCommand("extend", "no-op kept for older clients", vault.OpExtend, false),
			{
				Name:  "show",
				Usage: "print the vault record",
				Flags: []cli.Flag{flags.ServerAddrFlag, flags.KeypairFileFlag, flagOwner},
				Action: func(cCtx *cli.Context) error {
					owner, err := ownerAddress(cCtx)
					if err != nil {
						return err
					}
					res, err := clients.NewVaultClient(cCtx.String(flags.ServerAddrFlag.Name)).GetVault(owner)
					if err != nil {
						return err
					}
					return printJSON(res)
				},
			},
			{
				Name:  "quote",
				Usage: "print the fee of withdrawing now",
				Flags: []cli.Flag{flags.ServerAddrFlag, flags.KeypairFileFlag, flagOwner},
				Action: func(cCtx *cli.Context) error {
					owner, err := ownerAddress(cCtx)
					if err != nil {
						return err
					}
					res, err := clients.NewVaultClient(cCtx.String(flags.ServerAddrFlag.Name)).GetQuote(owner)
					if err != nil {
						return err
					}
					return printJSON(res)
				},
			},
			{
				Name:  "airdrop",
				Usage: "request development funds",
				Flags: []cli.Flag{flags.ServerAddrFlag, flags.KeypairFileFlag, flagOwner, flagAmount, flagToken},
				Action: func(cCtx *cli.Context) error {
					owner, err := ownerAddress(cCtx)
					if err != nil {
						return err
					}
					client := clients.NewVaultClient(cCtx.String(flags.ServerAddrFlag.Name))
					req := &api.AirdropRequest{Owner: owner, Amount: cCtx.Uint64(flagAmount.Name)}
					if cCtx.Bool(flagToken.Name) {
						envResp, err := client.GetEnvironment()
						if err != nil {
							return err
						}
						if len(envResp.Assets) == 0 {
							return errors.New("server environment has no assets")
						}
						req.Asset = &envResp.Assets[0]
					}
					res, err := client.Airdrop(req)
					if err != nil {
						return err
					}
					return printJSON(res)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
