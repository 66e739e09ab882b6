package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/config"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/services"
	"github.com/studystake/coordinator/internal/signer"
	"github.com/studystake/coordinator/internal/storage"
	"go.uber.org/zap"
)

func TestBuildWiresServices(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Staking.RewardMultiplier = 2

	client, err := chain.Dial(ctx, "", time.Second)
	require.NoError(t, err)
	s, err := signer.New("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	ledger := storage.NewMemory()
	activity := storage.NewMemoryActivity()
	a := Build(cfg, zap.NewNop(), ledger, activity, client, s)
	defer a.Close()

	user, err := a.Accounts.Register(ctx, services.RegisterRequest{Email: "a@example.com", Password: "securepassword123"})
	require.NoError(t, err)
	_, err = a.Accounts.ConnectWallet(ctx, user.ID, services.ConnectWalletRequest{Address: "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"})
	require.NoError(t, err)

	c, err := a.Lifecycle.CreateCommitment(ctx, user.ID, services.CreateCommitmentRequest{
		Type:        models.CommitmentWriting,
		StakeAmount: decimal.RequireFromString("1.5"),
		TargetValue: 1,
	})
	require.NoError(t, err)
	activity.Add(user.ID, models.ActivityWriting, time.Now().Add(time.Second))

	sc, err := a.Scheduler()
	require.NoError(t, err)
	require.NoError(t, sc.RunNow(ctx, "sweep"))
	require.NoError(t, sc.RunNow(ctx, "confirm"))

	got, err := ledger.GetCommitment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommitmentCompleted, got.Status)
	require.NotNil(t, got.RewardAmount)
	assert.Equal(t, "3", got.RewardAmount.String())

	// balance lookups are skipped while the chain is disabled
	info, err := a.Accounts.GetWallet(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, info.Balance)

	_, err = a.Accounts.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestBuildAppliesPodDuration(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Staking.DefaultPodDuration = 7

	client, err := chain.Dial(ctx, "", 0)
	require.NoError(t, err)
	s, err := signer.New("")
	require.NoError(t, err)

	a := Build(cfg, zap.NewNop(), storage.NewMemory(), storage.NewMemoryActivity(), client, s)
	pod, err := a.Lifecycle.CreatePod(ctx, uuid.New(), services.CreatePodRequest{
		Name:        "weekly readers",
		Type:        models.CommitmentReading,
		TargetValue: 3,
		StakeAmount: decimal.RequireFromString("0.25"),
		MinMembers:  1,
		MaxMembers:  4,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, pod.DurationDays)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scheduler.SweepSpec = "every so often"

	client, err := chain.Dial(context.Background(), "", 0)
	require.NoError(t, err)
	s, err := signer.New("")
	require.NoError(t, err)

	a := Build(cfg, zap.NewNop(), storage.NewMemory(), storage.NewMemoryActivity(), client, s)
	_, err = a.Scheduler()
	assert.Error(t, err)
}
