package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via LAND_RPC_URL or --rpc
var rpcAuthToken = os.Getenv("LAND_RPC_TOKEN")
var idempotencyKey string

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	rest := args[1:]
	switch command {
	case "generate-key":
		generateKey(rest)
	case "token":
		issueToken(rest)
	case "register":
		runAssetsRegister(rest)
	case "verify":
		runAssetsSetFlag(rest, "assets_setVerified")
	case "activate":
		runAssetsSetFlag(rest, "assets_setActive")
	case "unfreeze":
		requireArgs(rest, 2, "unfreeze <caller> <assetId>")
		doCall("assets_unfreeze", map[string]interface{}{
			"caller": rest[0], "assetId": mustUint(rest[1]),
		})
	case "mint":
		requireArgs(rest, 4, "mint <caller> <assetId> <holder> <amount>")
		doCall("assets_mint", map[string]interface{}{
			"caller": rest[0], "assetId": mustUint(rest[1]), "holder": rest[2], "amount": rest[3],
		})
	case "transfer":
		requireArgs(rest, 4, "transfer <from> <to> <assetId> <amount>")
		doCall("assets_transfer", map[string]interface{}{
			"from": rest[0], "to": rest[1], "assetId": mustUint(rest[2]), "amount": rest[3],
		})
	case "balance":
		requireArgs(rest, 2, "balance <holder> <assetId>")
		doCall("assets_balanceOf", map[string]interface{}{
			"holder": rest[0], "assetId": mustUint(rest[1]),
		})
	case "asset":
		requireArgs(rest, 1, "asset <assetId>")
		doCall("assets_get", map[string]interface{}{"assetId": mustUint(rest[0])})
	case "assets":
		doCall("assets_list", nil)
	case "list", "buy", "cancel", "listing", "listings", "set-fee", "fee-policy":
		runMarketCommand(command, rest)
	case "deposit", "claim", "claim-batch", "claimable", "pool", "emergency-withdraw", "set-revenue-policy":
		runRevenueCommand(command, rest)
	case "funds", "send", "fund":
		runBankCommand(command, rest)
	case "pause", "resume", "pauses", "grant-role", "revoke-role", "role-members":
		runSystemCommand(command, rest)
	case "events":
		runEventsCommand(rest)
	case "history":
		requireArgs(rest, 1, "history <assetId> [type] [after] [limit]")
		params := map[string]interface{}{"assetId": mustUint(rest[0])}
		if len(rest) > 1 {
			params["type"] = rest[1]
		}
		if len(rest) > 2 {
			params["after"] = mustUint(rest[2])
		}
		if len(rest) > 3 {
			params["limit"] = mustUint(rest[3])
		}
		doCall("events_byAsset", params)
	case "audit-run":
		doCall("audit_run", nil)
	case "audit-latest":
		doCall("audit_latest", nil)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: landledger-cli [--rpc <url>] [--token <jwt>] [--idempotency-key <key>] <command> [args]

Key management:
  generate-key <path>                               Generate an admin keystore
  token <subject> [ttl]                             Issue an operator JWT (LAND_RPC_SECRET)

Assets:
  register <caller> <symbol> <name> <maxShares> [metadataURI]
  verify <caller> <assetId> <true|false>
  activate <caller> <assetId> <true|false>
  unfreeze <caller> <assetId>
  mint <caller> <assetId> <holder> <amount>
  transfer <from> <to> <assetId> <amount>
  balance <holder> <assetId>
  asset <assetId>
  assets

Marketplace:
  list <seller> <assetId> <shares> <pricePerShare>
  buy <buyer> <listingId> <shares> <offeredFunds>
  cancel <caller> <listingId>
  listing <listingId>
  listings [assetId]
  set-fee <caller> <feeBps> <recipient>
  fee-policy

Revenue:
  deposit <from> <assetId> <amount>
  claim <holder> <assetId>
  claim-batch <holder> <assetId>[,<assetId>...]
  claimable <holder> <assetId>
  pool <assetId>
  emergency-withdraw <caller> <assetId> <recipient>
  set-revenue-policy <caller> <minDepositIntervalSeconds>

Funds:
  funds <address>
  send <from> <to> <amount>
  fund <caller> <to> <amount>

Administration:
  pause <caller> <module> | resume <caller> <module> | pauses
  grant-role <caller> <role> <address> | revoke-role <caller> <role> <address>
  role-members <role>
  events [cursor] [limit]
  history <assetId> [type] [after] [limit]
  audit-run | audit-latest`)
}

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("LAND_RPC_URL")); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func applyGlobalFlags(args []string) ([]string, error) {
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			i++
			rpcEndpoint = args[i]
		case "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--token requires a value")
			}
			i++
			rpcAuthToken = args[i]
		case "--idempotency-key":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--idempotency-key requires a value")
			}
			i++
			idempotencyKey = args[i]
		default:
			remaining = append(remaining, args[i])
		}
	}
	return remaining, nil
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data,omitempty"`
	} `json:"error"`
}

func postRPC(method string, params interface{}) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		payload["params"] = []json.RawMessage{encoded}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	decoded := rpcResponse{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("malformed response (HTTP %d): %s", resp.StatusCode, raw)
	}
	if decoded.Error != nil {
		if decoded.Error.Data != "" {
			return nil, fmt.Errorf("%s: %s (code %d)", decoded.Error.Message, decoded.Error.Data, decoded.Error.Code)
		}
		return nil, fmt.Errorf("%s (code %d)", decoded.Error.Message, decoded.Error.Code)
	}
	return decoded.Result, nil
}

// doCall posts the request and pretty-prints the result or exits on failure.
func doCall(method string, params interface{}) {
	result, err := postRPC(method, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

func requireArgs(args []string, count int, usage string) {
	if len(args) < count {
		fmt.Fprintf(os.Stderr, "Usage: landledger-cli %s\n", usage)
		os.Exit(1)
	}
}

func mustUint(value string) uint64 {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid number %q\n", value)
		os.Exit(1)
	}
	return parsed
}

func mustBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid boolean %q\n", value)
		os.Exit(1)
		return false
	}
}
