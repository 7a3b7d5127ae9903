/*
Package clients provides the HTTP client of the vault API.

VaultClient implements api.VaultProvider. Requests are signed by the caller
with api.NewProcessRequest; the client only transports them.

	client := clients.NewVaultClient("http://127.0.0.1:8080")
	envResp, err := client.GetEnvironment()
	env := envResp.Environment()
	accts, err := vault.AccountsFor(&env, kp.Address())
	res, err := client.Process(api.NewProcessRequest(kp, vault.Operation{Kind: vault.OpDeposit, Amount: 10}, accts, time.Now()))

Non-2xx responses are returned as *Error carrying the HTTP status and the
failure code reported by the server.
*/
package clients
