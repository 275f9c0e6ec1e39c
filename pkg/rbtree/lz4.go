package rbtree

import (
	"bytes"
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Leading tag of every packed block.
const (
	blockRaw byte = iota
	blockLZ4
)

// CompressUInt32Slice compresses a slice of uint32-s with LZ4. Input that LZ4
// cannot shrink, such as very short columns, is stored verbatim.
func CompressUInt32Slice(data []uint32) []byte {
	buf := new(bytes.Buffer)

	writeErr := binary.Write(buf, binary.LittleEndian, data)
	if writeErr != nil {
		return nil
	}

	compressed := make([]byte, 1+lz4.CompressBlockBound(buf.Len()))

	written, err := lz4.CompressBlock(buf.Bytes(), compressed[1:], nil)
	if err != nil || written == 0 {
		return append([]byte{blockRaw}, buf.Bytes()...)
	}

	compressed[0] = blockLZ4

	return compressed[:1+written]
}

// DecompressUInt32Slice decompresses a slice of uint32-s previously packed by
// CompressUInt32Slice. `result` must be preallocated.
func DecompressUInt32Slice(data []byte, result []uint32) {
	if len(data) == 0 {
		return
	}

	decompressed := data[1:]

	if data[0] == blockLZ4 {
		decompressed = make([]byte, len(result)*uint32ByteSize)

		_, err := lz4.UncompressBlock(data[1:], decompressed)
		if err != nil {
			return
		}
	}

	readErr := binary.Read(bytes.NewReader(decompressed), binary.LittleEndian, result)
	if readErr != nil {
		return
	}
}

// DeltaEncodeUInt32Slice replaces each element with the difference from its
// predecessor, in place. The first element is left unchanged. Sorted handle
// lists become small repetitive values that LZ4 packs well.
func DeltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// DeltaDecodeUInt32Slice performs a prefix-sum to restore original values from
// deltas produced by DeltaEncodeUInt32Slice. The operation is performed in place.
func DeltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
