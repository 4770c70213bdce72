// conflux-deploy uploads the profit-sharing contract, instantiates it, and
// seeds it with an initial deposit. Hardcoded constants, raw stdout; meant to
// be run once against a fresh chain, not operated.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"conflux/internal/ledger"
	"conflux/internal/wallet"
	"conflux/internal/wallet/bridge"
)

const (
	chainID       = "pulsar-3"
	bridgeURL     = "http://127.0.0.1:8545"
	wasmPath      = "./contract.wasm.gz"
	contractLabel = "conflux-ai"
	seedDeposit   = 1_000_000
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := bridge.New(bridge.Config{BaseURL: bridgeURL, Timeout: 60 * time.Second})
	if err != nil {
		log.Fatalf("bridge client: %v", err)
	}
	if _, ok := client.Capability(ctx); !ok {
		log.Fatalf("signing bridge at %s is not ready", bridgeURL)
	}
	if err := client.Enable(ctx, chainID); err != nil {
		log.Fatalf("enable %s: %v", chainID, err)
	}
	signer, err := client.OfflineSigner(chainID)
	if err != nil {
		log.Fatalf("offline signer: %v", err)
	}
	accounts, err := signer.Accounts(ctx)
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}
	if len(accounts) == 0 {
		log.Fatal("bridge returned no accounts")
	}
	sender := accounts[0].Address
	fmt.Println("Deployer address:", sender)

	codeID, err := storeCode(ctx, signer, sender)
	if err != nil {
		log.Fatalf("store code: %v", err)
	}
	fmt.Println("codeId:", codeID)

	contractAddress, err := instantiate(ctx, signer, sender, codeID)
	if err != nil {
		log.Fatalf("instantiate: %v", err)
	}
	fmt.Println("Contract Address:", contractAddress)

	outcome, err := deposit(ctx, signer, sender, contractAddress, seedDeposit)
	if err != nil {
		log.Fatalf("deposit: %v", err)
	}
	fmt.Printf("Deposit Transaction: hash=%s code=%d gas=%d\n", outcome.Hash, outcome.Code, outcome.GasUsed)
}

func storeCode(ctx context.Context, signer wallet.Signer, sender string) (uint64, error) {
	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		return 0, err
	}
	msg, err := json.Marshal(map[string]any{
		"store_code": map[string]any{
			"wasm_byte_code": base64.StdEncoding.EncodeToString(wasm),
			"source":         "",
			"builder":        "",
		},
	})
	if err != nil {
		return 0, err
	}
	outcome, err := signer.SignAndBroadcast(ctx, wallet.TxRequest{
		Sender:   sender,
		Msg:      msg,
		GasLimit: ledger.GasStoreCode,
	})
	if err != nil {
		return 0, err
	}
	fmt.Printf("Store Transaction: hash=%s code=%d gas=%d\n", outcome.Hash, outcome.Code, outcome.GasUsed)
	if outcome.Code != 0 {
		return 0, fmt.Errorf("store code rejected: %s", outcome.RawLog)
	}
	return ledger.CodeIDFromLog(outcome.RawLog)
}

func instantiate(ctx context.Context, signer wallet.Signer, sender string, codeID uint64) (string, error) {
	msg, err := json.Marshal(map[string]any{
		"instantiate": map[string]any{
			"code_id":  codeID,
			"init_msg": map[string]any{"total_deposit": 0},
			"label":    contractLabel,
		},
	})
	if err != nil {
		return "", err
	}
	outcome, err := signer.SignAndBroadcast(ctx, wallet.TxRequest{
		Sender:   sender,
		Msg:      msg,
		GasLimit: ledger.GasInstantiate,
	})
	if err != nil {
		return "", err
	}
	if outcome.Code != 0 {
		return "", fmt.Errorf("instantiate rejected: %s", outcome.RawLog)
	}
	return ledger.ContractAddressFromLog(outcome.RawLog)
}

func deposit(ctx context.Context, signer wallet.Signer, sender, contractAddress string, amount uint64) (wallet.TxOutcome, error) {
	msg, err := json.Marshal(map[string]any{
		"deposit": map[string]any{"amount": amount},
	})
	if err != nil {
		return wallet.TxOutcome{}, err
	}
	outcome, err := signer.SignAndBroadcast(ctx, wallet.TxRequest{
		Sender:          sender,
		ContractAddress: contractAddress,
		Msg:             msg,
		GasLimit:        ledger.GasExecute,
	})
	if err != nil {
		return wallet.TxOutcome{}, err
	}
	if outcome.Code != 0 {
		return wallet.TxOutcome{}, fmt.Errorf("deposit rejected: %s", outcome.RawLog)
	}
	return outcome, nil
}
