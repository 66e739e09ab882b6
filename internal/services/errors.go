package services

import (
	"context"
	"errors"

	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/signer"
)

// ErrorKind groups failures by how a caller should react to them
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindInvalidState
	KindPreconditionFailed
	KindDependencyUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindDependencyUnavailable:
		return "dependency_unavailable"
	}
	return "unknown"
}

var (
	ErrCommitmentNotFound  = errors.New("commitment not found")
	ErrPodNotFound         = errors.New("pod not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrInvalidState   = errors.New("invalid commitment state")
	ErrAlreadyClaimed = errors.New("reward already claimed")

	ErrDeadlineNotPassed   = errors.New("commitment deadline has not passed")
	ErrPodNotOpen          = errors.New("pod is not open")
	ErrPodFull             = errors.New("pod is full")
	ErrAlreadyMember       = errors.New("already a member of this pod")
	ErrInsufficientMembers = errors.New("not enough members to start pod")
	ErrNotRefundable       = errors.New("commitment is not refundable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("user already exists")
	ErrWalletTaken         = errors.New("wallet already linked to another user")
	ErrNotPodCreator       = errors.New("only the pod creator can start it")

	ErrSignerNotConfigured   = signer.ErrNotConfigured
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// kinds is checked in order, so an error wrapping sentinels of several
// kinds takes the first match
var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrCommitmentNotFound, KindNotFound},
	{ErrPodNotFound, KindNotFound},
	{ErrWalletNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrTransactionNotFound, KindNotFound},

	{ErrInvalidState, KindInvalidState},
	{ErrAlreadyClaimed, KindInvalidState},

	{ErrDeadlineNotPassed, KindPreconditionFailed},
	{ErrPodNotOpen, KindPreconditionFailed},
	{ErrPodFull, KindPreconditionFailed},
	{ErrAlreadyMember, KindPreconditionFailed},
	{ErrInsufficientMembers, KindPreconditionFailed},
	{ErrNotRefundable, KindPreconditionFailed},
	{ErrInvalidInput, KindPreconditionFailed},
	{ErrInvalidCredentials, KindPreconditionFailed},
	{ErrEmailTaken, KindPreconditionFailed},
	{ErrWalletTaken, KindPreconditionFailed},
	{ErrNotPodCreator, KindPreconditionFailed},

	{ErrSignerNotConfigured, KindDependencyUnavailable},
	{ErrDependencyUnavailable, KindDependencyUnavailable},
	{chain.ErrDisabled, KindDependencyUnavailable},
	{context.DeadlineExceeded, KindDependencyUnavailable},
}

// Kind classifies err by walking its wrap chain
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Retryable reports whether err is a dependency failure worth retrying
func Retryable(err error) bool {
	return Kind(err) == KindDependencyUnavailable
}
