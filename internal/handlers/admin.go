package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/services"
	"go.uber.org/zap"
)

// AdminHandler exposes operator actions behind the admin API key
type AdminHandler struct {
	lifecycle    *services.Lifecycle
	orchestrator *services.Orchestrator
	receipts     services.ReceiptReader
	confirmBatch int
	logger       *zap.Logger
}

// NewAdminHandler creates a new admin handler. receipts may be nil.
func NewAdminHandler(lifecycle *services.Lifecycle, orchestrator *services.Orchestrator, receipts services.ReceiptReader, confirmBatch int, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		lifecycle:    lifecycle,
		orchestrator: orchestrator,
		receipts:     receipts,
		confirmBatch: confirmBatch,
		logger:       logger,
	}
}

// TransactionStatusRequest reports an on-chain outcome for a transaction
type TransactionStatusRequest struct {
	TxHash      string                   `json:"tx_hash" binding:"required"`
	Status      models.TransactionStatus `json:"status" binding:"required"`
	BlockNumber *int64                   `json:"block_number"`
}

// Sweep runs the attestation sweep synchronously
func (h *AdminHandler) Sweep(c *gin.Context) {
	results, err := h.orchestrator.SweepActiveCommitments(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	attested, failed := 0, 0
	for _, r := range results {
		switch {
		case !r.Success:
			failed++
		case r.Attested:
			attested++
		}
	}
	if results == nil {
		results = []services.SweepResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": len(results),
		"attested":  attested,
		"failed":    failed,
		"results":   results,
	})
}

// Expire fails every overdue ACTIVE commitment
func (h *AdminHandler) Expire(c *gin.Context) {
	results, err := h.lifecycle.ExpireOverdue(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": len(results), "results": results})
}

// Confirm polls receipts for pending transactions
func (h *AdminHandler) Confirm(c *gin.Context) {
	res, err := h.lifecycle.ConfirmPending(c.Request.Context(), h.receipts, h.confirmBatch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateTransactionStatus records a confirmation or failure reported by a webhook
func (h *AdminHandler) UpdateTransactionStatus(c *gin.Context) {
	var req TransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tx, err := h.lifecycle.UpdateTransactionStatus(c.Request.Context(), req.TxHash, req.Status, req.BlockNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
