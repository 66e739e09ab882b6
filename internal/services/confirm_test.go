package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/models"
)

type fakeReceipts struct {
	enabled  bool
	receipts map[string]*chain.Receipt
	errs     map[string]error
}

func (f *fakeReceipts) Enabled() bool { return f.enabled }

func (f *fakeReceipts) Receipt(ctx context.Context, hash string) (*chain.Receipt, error) {
	if err, ok := f.errs[hash]; ok {
		return nil, err
	}
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, chain.ErrPending
}

func TestLifecycle_ConfirmPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.userWithWallet(t)

	for _, hash := range []string{"0x01", "0x02", "0x03", "0x04"} {
		_, err := f.life.CreateCommitment(ctx, userID, CreateCommitmentRequest{
			Type: models.CommitmentReading, StakeAmount: dec("1"), TargetValue: 5, StakeTxHash: hash,
		})
		require.NoError(t, err)
	}

	receipts := &fakeReceipts{
		enabled: true,
		receipts: map[string]*chain.Receipt{
			"0x01": {Success: true, BlockNumber: 10},
			"0x02": {Success: false, BlockNumber: 11},
		},
		errs: map[string]error{"0x04": errors.New("rpc unreachable")},
	}

	res, err := f.life.ConfirmPending(ctx, receipts, 10)
	require.NoError(t, err)
	assert.Equal(t, ConfirmResult{Checked: 4, Confirmed: 1, Failed: 1, Pending: 2}, *res)

	txs, err := f.life.ListTransactions(ctx, userID, 10)
	require.NoError(t, err)
	byHash := map[string]models.Transaction{}
	for _, tx := range txs {
		byHash[tx.Hash] = tx
	}
	assert.Equal(t, models.TransactionConfirmed, byHash["0x01"].Status)
	require.NotNil(t, byHash["0x01"].BlockNumber)
	assert.Equal(t, int64(10), *byHash["0x01"].BlockNumber)
	assert.Equal(t, models.TransactionFailed, byHash["0x02"].Status)
	assert.Equal(t, models.TransactionPending, byHash["0x03"].Status)
	assert.Equal(t, models.TransactionPending, byHash["0x04"].Status)

	res, err = f.life.ConfirmPending(ctx, receipts, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
}

func TestLifecycle_ConfirmPendingDisabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.life.ConfirmPending(context.Background(), &fakeReceipts{}, 10)
	assert.ErrorIs(t, err, chain.ErrDisabled)

	_, err = f.life.ConfirmPending(context.Background(), nil, 10)
	assert.ErrorIs(t, err, chain.ErrDisabled)
}
