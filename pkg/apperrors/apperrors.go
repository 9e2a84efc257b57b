// Package apperrors defines the error taxonomy shared by every component:
// transient network failures, cross-indexer divergence, invalid upstream
// data, on-chain contract rejection, and fatal configuration errors.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry/routing decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransientNetwork
	KindIndexerDivergence
	KindInvalidUpstream
	KindContractRejected
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindIndexerDivergence:
		return "indexer_divergence"
	case KindInvalidUpstream:
		return "invalid_upstream"
	case KindContractRejected:
		return "contract_rejected"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrTransientNetwork  = errors.New("apperrors: transient network failure")
	ErrIndexerDivergence = errors.New("apperrors: indexers did not reach consensus")
	ErrInvalidUpstream   = errors.New("apperrors: upstream data failed validation")
	ErrContractRejected  = errors.New("apperrors: on-chain call reverted or was rejected")
	ErrFatal             = errors.New("apperrors: unrecoverable configuration or startup error")
)

// Wrap tags err with kind so Classify can recover it later, preserving the
// original error for errors.Is/errors.As via %w.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch kind {
	case KindTransientNetwork:
		sentinel = ErrTransientNetwork
	case KindIndexerDivergence:
		sentinel = ErrIndexerDivergence
	case KindInvalidUpstream:
		sentinel = ErrInvalidUpstream
	case KindContractRejected:
		sentinel = ErrContractRejected
	case KindFatal:
		sentinel = ErrFatal
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Classify inspects err against the known sentinels and returns its Kind,
// or KindUnknown if none match.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrTransientNetwork):
		return KindTransientNetwork
	case errors.Is(err, ErrIndexerDivergence):
		return KindIndexerDivergence
	case errors.Is(err, ErrInvalidUpstream):
		return KindInvalidUpstream
	case errors.Is(err, ErrContractRejected):
		return KindContractRejected
	case errors.Is(err, ErrFatal):
		return KindFatal
	default:
		return KindUnknown
	}
}

// Retryable reports whether a tick loop should retry this error rather
// than surface it as a hard failure.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTransientNetwork, KindIndexerDivergence:
		return true
	default:
		return false
	}
}
