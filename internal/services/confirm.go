package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/models"
	"go.uber.org/zap"
)

// ReceiptReader fetches transaction receipts from the chain
type ReceiptReader interface {
	Enabled() bool
	Receipt(ctx context.Context, txHash string) (*chain.Receipt, error)
}

// ConfirmResult counts what a confirmation pass settled
type ConfirmResult struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// ConfirmPending polls receipts for pending transactions and records the
// settled ones. Lookup failures leave the transaction pending.
func (l *Lifecycle) ConfirmPending(ctx context.Context, receipts ReceiptReader, limit int) (*ConfirmResult, error) {
	if receipts == nil || !receipts.Enabled() {
		return nil, chain.ErrDisabled
	}

	pending, err := l.ListPendingTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	res := &ConfirmResult{Checked: len(pending)}
	for _, t := range pending {
		r, err := receipts.Receipt(ctx, t.Hash)
		if err != nil {
			if !errors.Is(err, chain.ErrPending) {
				l.logger.Warn("failed to fetch receipt", zap.String("tx_hash", t.Hash), zap.Error(err))
			}
			res.Pending++
			continue
		}

		status := models.TransactionConfirmed
		if !r.Success {
			status = models.TransactionFailed
		}
		block := r.BlockNumber
		if _, err := l.UpdateTransactionStatus(ctx, t.Hash, status, &block); err != nil {
			l.logger.Warn("failed to update transaction", zap.String("tx_hash", t.Hash), zap.Error(err))
			res.Pending++
			continue
		}

		if r.Success {
			res.Confirmed++
		} else {
			res.Failed++
		}
	}
	return res, nil
}
