package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps the go-ethereum client for one network
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
	mu      sync.RWMutex
}

// NewClient dials rpcURL and verifies the node answers for its chain id
func NewClient(rpcURL string) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id from %s: %w", rpcURL, err)
	}

	return &Client{
		client:  client,
		chainID: chainID,
	}, nil
}

// Close closes the underlying client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Close()
}

// ChainID returns the chain ID reported by the node at dial time
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// CallContract executes a read-only contract call at the latest block
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.CallContract(ctx, msg, nil)
}

// BlockNumber returns the current block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.BlockNumber(ctx)
}

// BalanceAt returns the native coin balance of account at the latest block
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.BalanceAt(ctx, account, nil)
}

// EstimateGas estimates the gas required for a transaction
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.EstimateGas(ctx, msg)
}

// SuggestGasPrice suggests a gas price based on recent blocks
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.SuggestGasPrice(ctx)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.PendingNonceAt(ctx, account)
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound while it is pending
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.TransactionReceipt(ctx, hash)
}

// Multicall performs several contract calls concurrently and returns their
// results in order. Used to read a pair's token0, reserves and LP supply in
// one round.
func (c *Client) Multicall(ctx context.Context, calls []ethereum.CallMsg) ([][]byte, error) {
	results := make([][]byte, len(calls))
	errs := make([]error, len(calls))
	var wg sync.WaitGroup

	// Limit concurrent calls to prevent overwhelming the RPC
	semaphore := make(chan struct{}, 10)

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, msg ethereum.CallMsg) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result, err := c.CallContract(ctx, msg)
			results[idx] = result
			errs[idx] = err
		}(i, call)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("call %d: %w", i, err)
		}
	}

	return results, nil
}
