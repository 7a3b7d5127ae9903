package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/ruteri/timelock-vault/interfaces"
)

// OperationKind is the tag byte of an operation payload.
type OperationKind uint8

const (
	OpInitialize OperationKind = iota
	OpDeposit
	OpWithdraw
	OpRelease
	OpExtend
)

func (k OperationKind) String() string {
	switch k {
	case OpInitialize:
		return "initialize"
	case OpDeposit:
		return "deposit"
	case OpWithdraw:
		return "withdraw"
	case OpRelease:
		return "release"
	case OpExtend:
		return "extend"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Operation is a decoded operation payload.
type Operation struct {
	Kind   OperationKind
	Amount uint64
}

// EncodeOperation serializes op. Initialize and Deposit carry an 8-byte
// little-endian amount; every other kind is the tag byte alone.
func EncodeOperation(op Operation) []byte {
	switch op.Kind {
	case OpInitialize, OpDeposit:
		buf := make([]byte, 9)
		buf[0] = byte(op.Kind)
		binary.LittleEndian.PutUint64(buf[1:], op.Amount)
		return buf
	default:
		return []byte{byte(op.Kind)}
	}
}

// DecodeOperation parses an operation payload. The amount of Initialize may be
// omitted and then defaults to zero.
func DecodeOperation(data []byte) (Operation, error) {
	if len(data) == 0 {
		return Operation{}, fmt.Errorf("%w: empty payload", interfaces.ErrMalformedRequest)
	}

	op := Operation{Kind: OperationKind(data[0])}
	rest := data[1:]

	switch op.Kind {
	case OpInitialize:
		if len(rest) == 0 {
			return op, nil
		}
		fallthrough
	case OpDeposit:
		if len(rest) != 8 {
			return Operation{}, fmt.Errorf("%w: %s amount must be 8 bytes, got %d", interfaces.ErrMalformedRequest, op.Kind, len(rest))
		}
		op.Amount = binary.LittleEndian.Uint64(rest)
	case OpWithdraw, OpRelease, OpExtend:
		if len(rest) != 0 {
			return Operation{}, fmt.Errorf("%w: unexpected %d trailing bytes", interfaces.ErrMalformedRequest, len(rest))
		}
	default:
		return Operation{}, fmt.Errorf("%w: unknown operation tag %d", interfaces.ErrMalformedRequest, data[0])
	}

	return op, nil
}

// EncodeVault serializes v into its fixed 58-byte layout:
//
//	owner(32) | lock_duration(i64) | amount_locked(u64) | deposit_timestamp(i64) | is_locked(1) | nonce(1)
//
// Integers are little-endian.
func EncodeVault(v *interfaces.Vault) []byte {
	buf := make([]byte, interfaces.VaultRecordSize)
	copy(buf[0:32], v.Owner[:])
	binary.LittleEndian.PutUint64(buf[32:40], uint64(v.LockDuration))
	binary.LittleEndian.PutUint64(buf[40:48], v.AmountLocked)
	binary.LittleEndian.PutUint64(buf[48:56], uint64(v.DepositTimestamp))
	if v.IsLocked {
		buf[56] = 1
	}
	buf[57] = v.Nonce
	return buf
}

// DecodeVault parses a record produced by EncodeVault.
func DecodeVault(data []byte) (*interfaces.Vault, error) {
	if len(data) != interfaces.VaultRecordSize {
		return nil, fmt.Errorf("%w: record must be %d bytes, got %d", interfaces.ErrMalformedRequest, interfaces.VaultRecordSize, len(data))
	}

	v := &interfaces.Vault{
		LockDuration:     int64(binary.LittleEndian.Uint64(data[32:40])),
		AmountLocked:     binary.LittleEndian.Uint64(data[40:48]),
		DepositTimestamp: int64(binary.LittleEndian.Uint64(data[48:56])),
		Nonce:            data[57],
	}
	copy(v.Owner[:], data[0:32])

	switch data[56] {
	case 0:
	case 1:
		v.IsLocked = true
	default:
		return nil, fmt.Errorf("%w: invalid lock flag %d", interfaces.ErrMalformedRequest, data[56])
	}

	return v, nil
}
