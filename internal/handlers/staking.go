package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/services"
	"go.uber.org/zap"
)

// StakingHandler serves wallets, commitments, pods and transactions
type StakingHandler struct {
	accounts     *services.AccountService
	lifecycle    *services.Lifecycle
	orchestrator *services.Orchestrator
	logger       *zap.Logger
}

// NewStakingHandler creates a new staking handler
func NewStakingHandler(accounts *services.AccountService, lifecycle *services.Lifecycle, orchestrator *services.Orchestrator, logger *zap.Logger) *StakingHandler {
	return &StakingHandler{accounts: accounts, lifecycle: lifecycle, orchestrator: orchestrator, logger: logger}
}

// TxHashRequest carries an optional on-chain transaction hash
type TxHashRequest struct {
	TxHash string `json:"tx_hash"`
}

// JoinPodRequest carries the member's stake transaction
type JoinPodRequest struct {
	StakeTxHash string `json:"stake_tx_hash"`
}

// ============ Wallet ============

// ConnectWallet links or replaces the caller's wallet
func (h *StakingHandler) ConnectWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.ConnectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	wallet, err := h.accounts.ConnectWallet(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// GetWallet returns the caller's wallet and balance
func (h *StakingHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	info, err := h.accounts.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ============ Commitments ============

// CreateCommitment opens a personal commitment
func (h *StakingHandler) CreateCommitment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.CreateCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	commitment, err := h.lifecycle.CreateCommitment(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, commitment)
}

// ListCommitments lists the caller's commitments, optionally by ?status=
func (h *StakingHandler) ListCommitments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var status *models.CommitmentStatus
	if s := c.Query("status"); s != "" {
		st := models.CommitmentStatus(s)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &st
	}

	commitments, err := h.lifecycle.ListCommitments(c.Request.Context(), userID, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if commitments == nil {
		commitments = []models.Commitment{}
	}
	c.JSON(http.StatusOK, gin.H{"commitments": commitments})
}

// GetCommitment returns one of the caller's commitments
func (h *StakingHandler) GetCommitment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	commitment, err := h.lifecycle.GetCommitment(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

// CheckProgress compares live progress to the last attested value
func (h *StakingHandler) CheckProgress(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	check, err := h.orchestrator.CheckOwnProgress(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// Attest signs the caller's current progress when it has moved
func (h *StakingHandler) Attest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	res, err := h.orchestrator.GenerateOwnAttestation(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"attested": false, "message": "no new progress to attest"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attested": true, "attestation": res})
}

// Claim records the reward claim of a completed commitment
func (h *StakingHandler) Claim(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req TxHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	commitment, err := h.lifecycle.Claim(c.Request.Context(), userID, id, req.TxHash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

// Fail forfeits one of the caller's overdue commitments
func (h *StakingHandler) Fail(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req TxHashRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	if _, err := h.lifecycle.GetCommitment(ctx, userID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	commitment, err := h.lifecycle.Fail(ctx, id, req.TxHash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

// Refund returns the stake of a commitment whose pod never started
func (h *StakingHandler) Refund(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req TxHashRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	commitment, err := h.lifecycle.Refund(c.Request.Context(), userID, id, req.TxHash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

// Summary returns progress details and daily activity for a commitment
func (h *StakingHandler) Summary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	summary, err := h.lifecycle.Summary(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Attestations lists a commitment's attestations, newest first
func (h *StakingHandler) Attestations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	attestations, err := h.lifecycle.ListAttestations(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if attestations == nil {
		attestations = []models.Attestation{}
	}
	c.JSON(http.StatusOK, gin.H{"attestations": attestations})
}

// ============ Pods ============

// CreatePod opens a new pod owned by the caller
func (h *StakingHandler) CreatePod(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.CreatePodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pod, err := h.lifecycle.CreatePod(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, pod)
}

// ListPods lists pods by ?status=, open by default
func (h *StakingHandler) ListPods(c *gin.Context) {
	status := models.PodStatus(c.DefaultQuery("status", string(models.PodOpen)))
	switch status {
	case models.PodOpen, models.PodActive, models.PodCompleted, models.PodFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	pods, err := h.lifecycle.ListPods(c.Request.Context(), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if pods == nil {
		pods = []models.Pod{}
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

// GetPod returns a pod with its members
func (h *StakingHandler) GetPod(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	pod, err := h.lifecycle.GetPod(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pod)
}

// JoinPod stakes the caller into an open pod
func (h *StakingHandler) JoinPod(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req JoinPodRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	membership, commitment, err := h.lifecycle.JoinPod(c.Request.Context(), userID, id, req.StakeTxHash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"membership": membership, "commitment": commitment})
}

// StartPod activates a pod once it has enough members
func (h *StakingHandler) StartPod(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	pod, err := h.lifecycle.StartPod(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pod)
}

// ============ Transactions, pool, dashboard ============

// ListTransactions returns the caller's transactions, ?limit= defaults to 50
func (h *StakingHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	txs, err := h.lifecycle.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// ScholarshipPool returns the pool balance
func (h *StakingHandler) ScholarshipPool(c *gin.Context) {
	pool, err := h.lifecycle.ScholarshipPool(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

// Dashboard summarises the caller's staking activity
func (h *StakingHandler) Dashboard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	dashboard, err := h.lifecycle.Dashboard(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
