package xrpl

import "strings"

// EngineResult is the ledger's classification of a submitted transaction.
type EngineResult string

// Engine result codes the lifecycle manager branches on.
const (
	ResultSuccess      EngineResult = "tesSUCCESS"
	ResultNoPermission EngineResult = "tecNO_PERMISSION" // finish before FinishAfter
	ResultNoTarget     EngineResult = "tecNO_TARGET"     // escrow entry already gone
	ResultUnknown      EngineResult = "unknown"
)

func (r EngineResult) Success() bool {
	return r == ResultSuccess
}

// Retryable reports whether the rejection is transient from the caller's
// point of view: too early, or the target entry vanished (typically because
// a concurrent finish already consumed it).
func (r EngineResult) Retryable() bool {
	return r == ResultNoPermission || r == ResultNoTarget
}

// Final reports whether the code means the transaction can never validate,
// so there is no point polling for it.
func (r EngineResult) Final() bool {
	s := string(r)
	return strings.HasPrefix(s, "tem") || strings.HasPrefix(s, "tef")
}

func (r EngineResult) String() string {
	return string(r)
}
