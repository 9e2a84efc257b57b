// Package txsubmit constructs and submits EIP-1559 keeper transactions,
// including the fee-too-low retry ladder grounded on
// original_source/oracle/keeper/utils.py's submit_update,
// get_transaction_params, get_high_priority_tx_params, and
// _calc_high_priority_fee.
package txsubmit

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethgo "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/oracle-keeper/validator/pkg/apperrors"
	"github.com/oracle-keeper/validator/pkg/chainutil"
	"github.com/oracle-keeper/validator/pkg/ethereum"
)

// attemptsWithDefaultGas mirrors submit_update's ATTEMPTS_WITH_DEFAULT_GAS.
const attemptsWithDefaultGas = 5

// feeTooLowCode is the JSON-RPC error code providers return when a
// transaction's fee cap is below the current base fee.
const feeTooLowCode = -32010

// Config carries the network-wide fee parameters read from pkg/config.
type Config struct {
	MaxFeePerGasGwei            int64
	MinEffectivePriorityFeeGwei int64
	SecondsPerBlock             time.Duration
	ConfirmationBlocks          int64
	Timeout                     time.Duration
}

// Submit builds and sends an EIP-1559 transaction calling the given
// contract method, escalating to a high-priority fee if the default fee
// is rejected five times in a row with "fee too low".
func Submit(ctx context.Context, client *ethereum.Client, privateKey *ecdsa.PrivateKey, to common.Address, data []byte, cfg Config) (*types.Receipt, error) {
	fromAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	var tx *types.Transaction
	var err error
	for attempt := 0; attempt < attemptsWithDefaultGas; attempt++ {
		tx, err = buildAndSend(ctx, client, privateKey, fromAddress, to, data, cfg, false)
		if err == nil {
			break
		}
		if !isFeeTooLow(err) {
			return nil, apperrors.Wrap(apperrors.KindContractRejected, err)
		}
		if attempt < attemptsWithDefaultGas-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.SecondsPerBlock):
			}
		}
	}
	if err != nil {
		tx, err = buildAndSend(ctx, client, privateKey, fromAddress, to, data, cfg, true)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindContractRejected, fmt.Errorf("txsubmit: high-priority submit failed: %w", err))
		}
	}

	receiptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return awaitConfirmed(receiptCtx, client, tx.Hash(), cfg.ConfirmationBlocks)
}

func buildAndSend(ctx context.Context, client *ethereum.Client, privateKey *ecdsa.PrivateKey, from, to common.Address, data []byte, cfg Config, highPriority bool) (*types.Transaction, error) {
	nonce, err := client.GetNonce(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("txsubmit: nonce: %w", err)
	}

	latest, err := client.GetLatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("txsubmit: latest block: %w", err)
	}
	baseFee := latest.BaseFee()
	if baseFee == nil {
		return nil, errors.New("txsubmit: chain does not report EIP-1559 base fee")
	}

	var priorityFee *big.Int
	if highPriority {
		priorityFee, err = highPriorityFee(ctx, client, cfg)
	} else {
		priorityFee, err = defaultPriorityFee(ctx, client, cfg)
	}
	if err != nil {
		return nil, err
	}

	maxFeePerGas := new(big.Int).Add(priorityFee, new(big.Int).Mul(baseFee, big.NewInt(2)))

	gasLimit, err := client.EstimateGas(ctx, ethgo.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("txsubmit: estimate gas: %w", err)
	}
	gasLimit += gasLimit / 10 // 10% headroom

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   client.GetChainID(),
		Nonce:     nonce,
		GasTipCap: priorityFee,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(client.GetChainID()), privateKey)
	if err != nil {
		return nil, fmt.Errorf("txsubmit: sign: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func defaultPriorityFee(ctx context.Context, client *ethereum.Client, cfg Config) (*big.Int, error) {
	suggested, err := client.GetClient().SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("txsubmit: suggest tip cap: %w", err)
	}
	maxFee := chainutil.GweiToWei(cfg.MaxFeePerGasGwei)
	if suggested.Cmp(maxFee) > 0 {
		return maxFee, nil
	}
	return suggested, nil
}

// highPriorityFee reproduces _calc_high_priority_fee: the mean of the
// per-block 80th percentile rewards across the last 10 blocks, rounded to
// the nearest 10^8 wei once it exceeds 1 gwei, and floored at the
// configured minimum effective priority fee.
func highPriorityFee(ctx context.Context, client *ethereum.Client, cfg Config) (*big.Int, error) {
	history, err := client.FeeHistory(ctx, 10, []float64{80})
	if err != nil {
		return nil, fmt.Errorf("txsubmit: fee history: %w", err)
	}
	if len(history.Reward) == 0 {
		return nil, errors.New("txsubmit: empty fee history")
	}

	sum := big.NewInt(0)
	for _, r := range history.Reward {
		if len(r) > 0 {
			sum.Add(sum, r[0])
		}
	}
	mean := new(big.Int).Div(sum, big.NewInt(int64(len(history.Reward))))

	oneGwei := chainutil.GweiToWei(1)
	if mean.Cmp(oneGwei) > 0 {
		// round to the nearest 10^8 wei (halves round up)
		step := big.NewInt(100000000)
		half := new(big.Int).Div(step, big.NewInt(2))
		mean = new(big.Int).Mul(new(big.Int).Div(new(big.Int).Add(mean, half), step), step)
	}

	minFee := chainutil.GweiToWei(cfg.MinEffectivePriorityFeeGwei)
	if cfg.MinEffectivePriorityFeeGwei > 0 && minFee.Cmp(mean) > 0 {
		return minFee, nil
	}
	return mean, nil
}

func isFeeTooLow(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == feeTooLowCode
	}
	return strings.Contains(err.Error(), "fee too low") || strings.Contains(err.Error(), "FeeTooLow")
}

// awaitConfirmed waits for the transaction to be mined, then polls until
// the chain head is confirmationBlocks past the mined block, matching
// wait_for_transaction's 15-second poll loop.
func awaitConfirmed(ctx context.Context, client *ethereum.Client, txHash common.Hash, confirmationBlocks int64) (*types.Receipt, error) {
	receipt, err := pollReceipt(ctx, client, txHash)
	if err != nil {
		return nil, err
	}

	confirmationBlock := receipt.BlockNumber.Int64() + confirmationBlocks
	for {
		current, err := client.GetLatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("txsubmit: latest block number: %w", err)
		}
		if confirmationBlock <= current {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(15 * time.Second):
		}
	}
}

func pollReceipt(ctx context.Context, client *ethereum.Client, txHash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethgo.NotFound) {
			return nil, fmt.Errorf("txsubmit: receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
