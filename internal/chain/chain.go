package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

var (
	// ErrDisabled is returned when no RPC endpoint is configured
	ErrDisabled = errors.New("chain client disabled")
	// ErrPending is returned when a transaction has no receipt yet
	ErrPending = errors.New("transaction pending")
)

// Receipt is the settled outcome of a transaction
type Receipt struct {
	Success     bool
	BlockNumber int64
}

// Client reads wallet balances and transaction receipts over JSON-RPC
type Client struct {
	eth     *ethclient.Client
	timeout time.Duration
}

// Dial connects to rpcURL. An empty URL returns a disabled client.
func Dial(ctx context.Context, rpcURL string, timeout time.Duration) (*Client, error) {
	if rpcURL == "" {
		return &Client{}, nil
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	return &Client{eth: eth, timeout: timeout}, nil
}

// Enabled reports whether an endpoint is configured
func (c *Client) Enabled() bool {
	return c != nil && c.eth != nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c.Enabled() {
		c.eth.Close()
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Balance returns the native balance of address in ether units
func (c *Client) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !c.Enabled() {
		return decimal.Zero, ErrDisabled
	}
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address %q", address)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	wei, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return WeiToEther(wei), nil
}

// Receipt returns the receipt for a transaction hash, or ErrPending
func (c *Client) Receipt(ctx context.Context, txHash string) (*Receipt, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	r, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return &Receipt{
		Success:     r.Status == types.ReceiptStatusSuccessful,
		BlockNumber: r.BlockNumber.Int64(),
	}, nil
}

// ChainID returns the network's chain id
func (c *Client) ChainID(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, ErrDisabled
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id.Int64(), nil
}

// WeiToEther converts a wei amount into an 18-decimal ether value
func WeiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}
