package txsubmit

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
)

type fakeRPCError struct {
	code int
	msg  string
}

func (e fakeRPCError) Error() string  { return e.msg }
func (e fakeRPCError) ErrorCode() int { return e.code }

var _ rpc.Error = fakeRPCError{}

func TestIsFeeTooLowDetectsRPCErrorCode(t *testing.T) {
	err := fakeRPCError{code: feeTooLowCode, msg: "rejected"}
	if !isFeeTooLow(err) {
		t.Error("expected an rpc.Error with the fee-too-low code to be detected")
	}
}

func TestIsFeeTooLowDetectsMessageSubstring(t *testing.T) {
	if !isFeeTooLow(errors.New("execution reverted: fee too low")) {
		t.Error("expected a plain error containing 'fee too low' to be detected")
	}
	if !isFeeTooLow(errors.New("replacement transaction underpriced: FeeTooLow")) {
		t.Error("expected a plain error containing 'FeeTooLow' to be detected")
	}
}

func TestIsFeeTooLowRejectsUnrelatedErrors(t *testing.T) {
	if isFeeTooLow(errors.New("nonce too low")) {
		t.Error("did not expect an unrelated error to be classified as fee-too-low")
	}
	if isFeeTooLow(fakeRPCError{code: -32000, msg: "execution reverted"}) {
		t.Error("did not expect an unrelated rpc error code to be classified as fee-too-low")
	}
}
