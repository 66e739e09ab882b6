package main

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/signer"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := rootCmd()
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	return root.Execute()
}

func TestSignerAddress(t *testing.T) {
	t.Setenv("ATTESTATION_PRIVATE_KEY", "")
	assert.ErrorIs(t, execute(t, "signer-address"), signer.ErrNotConfigured)

	t.Setenv("ATTESTATION_PRIVATE_KEY", testKey)
	assert.NoError(t, execute(t, "signer-address"))
}

func TestExplicitMissingConfigFails(t *testing.T) {
	err := execute(t, "signer-address", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	s, err := signer.New(testKey)
	require.NoError(t, err)

	const user = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	hash := "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
	sig, err := s.Sign(context.Background(), 9, user, 4, hash)
	require.NoError(t, err)

	args := []string{"verify",
		"--commitment", "9",
		"--address", user,
		"--progress", strconv.Itoa(4),
		"--hash", hash,
		"--signature", sig.Signature,
	}

	assert.NoError(t, execute(t, append(args, "--expect", s.Address())...))
	assert.Error(t, execute(t, append(args, "--expect", user)...))

	tampered := append([]string{}, args...)
	tampered[6] = "5"
	assert.Error(t, execute(t, append(tampered, "--expect", s.Address())...))
}
