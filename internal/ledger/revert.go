package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	stringArgs     = abi.Arguments{{Type: mustType("string")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// RevertError is a contract-level failure carrying Error(string) data.
type RevertError struct {
	Reason string
	Data   []byte
	err    error
}

// Revert builds a RevertError for reason.
func Revert(reason string) *RevertError {
	return &RevertError{Reason: reason, Data: EncodeRevert(reason)}
}

// Revertf is Revert with formatting.
func Revertf(format string, args ...any) *RevertError {
	return Revert(fmt.Sprintf(format, args...))
}

// RevertWith builds a RevertError that also matches sentinel with errors.Is.
func RevertWith(sentinel error, reason string) *RevertError {
	r := Revert(reason)
	r.err = sentinel
	return r
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.err
}

// EncodeRevert produces the standard Error(string) encoding of reason.
func EncodeRevert(reason string) []byte {
	packed, err := stringArgs.Pack(reason)
	if err != nil {
		return nil
	}
	out := make([]byte, 0, len(revertSelector)+len(packed))
	out = append(out, revertSelector...)
	return append(out, packed...)
}

// DecodeRevert extracts the reason from Error(string) data.
func DecodeRevert(data []byte) (string, bool) {
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", false
	}
	return reason, true
}

// RevertData returns the returned data that err would produce in a failed
// call. Errors that are not reverts are encoded from their message.
func RevertData(err error) []byte {
	if err == nil {
		return nil
	}
	var re *RevertError
	if errors.As(err, &re) {
		return re.Data
	}
	return EncodeRevert(err.Error())
}
