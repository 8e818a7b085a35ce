package contract

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/PixelPet-dev/xlayerslot/errors"
)

// classifyRPCError maps a raw node error into a stable application error
// so callers can branch on code instead of matching node-specific strings.
func classifyRPCError(err error, method string) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrTimeout, method+" timed out")
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}

	var rpcErr rpc.Error
	if stderrors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case 4001:
			return errors.Wrap(err, errors.ErrUserRejected, "transaction rejected in wallet")
		case 4902:
			return errors.Wrap(err, errors.ErrNetworkMismatch, "chain not available in wallet")
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"):
		return errors.WrapWithDebug(err, errors.ErrContractReverted,
			"contract rejected the call", revertReason(err))
	case strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
		return errors.Wrap(err, errors.ErrUserRejected, "transaction rejected in wallet")
	case strings.Contains(msg, "insufficient funds"):
		return errors.Wrap(err, errors.ErrInsufficientFunds, "insufficient funds for gas and value")
	case strings.Contains(msg, "nonce too low") || strings.Contains(msg, "replacement transaction"):
		return errors.Wrap(err, errors.ErrBusy, "a conflicting transaction is pending")
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return errors.Wrap(err, errors.ErrTimeout, method+" timed out")
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "503"):
		return errors.Wrap(err, errors.ErrRpcUnavailable, "rpc node unavailable")
	}

	return errors.Wrap(err, errors.ErrRpcUnavailable, method+" failed")
}

// revertReason extracts the human-readable reason string a node appends
// after "execution reverted:", if any.
func revertReason(err error) string {
	msg := err.Error()
	const marker = "execution reverted"
	idx := strings.Index(strings.ToLower(msg), marker)
	if idx < 0 {
		return msg
	}
	reason := msg[idx+len(marker):]
	reason = strings.TrimLeft(reason, ":, ")
	if reason == "" {
		return "execution reverted"
	}
	return reason
}
