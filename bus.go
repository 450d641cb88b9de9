package airmon

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// AddressableTransactor performs a write followed by a read as one bus
// transaction (repeated start, no stop in between). Some sensors drop the
// register pointer when the two halves are sent as separate transactions.
type AddressableTransactor interface {
	TxToAddr(ctx context.Context, address byte, w, r []byte) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
	AddressableTransactor
}
