package driver

import "encoding/hex"

// RawBlock is the byte block returned by one bus read. It cannot be modified
// once captured.
type RawBlock struct {
	data []byte
}

func NewRawBlock(b []byte) RawBlock {
	return RawBlock{data: append([]byte(nil), b...)}
}

func (r RawBlock) Len() int {
	return len(r.data)
}

// Byte returns byte i of the block, or 0 if the block is shorter.
func (r RawBlock) Byte(i int) byte {
	if i < 0 || i >= len(r.data) {
		return 0
	}
	return r.data[i]
}

// Bytes returns a copy of the block.
func (r RawBlock) Bytes() []byte {
	return append([]byte(nil), r.data...)
}

func (r RawBlock) String() string {
	return hex.EncodeToString(r.data)
}
