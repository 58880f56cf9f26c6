package buffer

import (
	"encoding/binary"

	"github.com/pierrec/lz4"
	"github.com/tryfix/kjoin/errdefs"
)

// blockHeaderSize [compressed length LE int32][original length LE int32]
const blockHeaderSize = 8

// blockCompressor writes LZ4 blocks. A block whose compressed length equals its original
// length holds the raw bytes, lz4 output is only kept when it is strictly smaller.
type blockCompressor struct {
	hashTable []int
}

func newBlockCompressor() *blockCompressor {
	return &blockCompressor{hashTable: make([]int, 1<<16)}
}

func (c *blockCompressor) compress(src []byte) ([]byte, error) {
	dst := make([]byte, blockHeaderSize+lz4.CompressBlockBound(len(src)))

	n, err := lz4.CompressBlock(src, dst[blockHeaderSize:], c.hashTable)
	if err != nil {
		return nil, err
	}

	if n == 0 || n >= len(src) {
		n = copy(dst[blockHeaderSize:], src)
	}

	binary.LittleEndian.PutUint32(dst[0:], uint32(n))
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(src)))

	return dst[:blockHeaderSize+n], nil
}

// originalLength reads the decompressed size from a block header.
func originalLength(src []byte) (int, error) {
	if len(src) < blockHeaderSize {
		return 0, errdefs.DataCorruption(`block of %d bytes has no header`, len(src))
	}

	return int(int32(binary.LittleEndian.Uint32(src[4:]))), nil
}

// decompress decodes one block from src into dst[dstOff:] and returns the decoded length.
func decompress(src []byte, dst []byte, dstOff int) (int, error) {
	if len(src) < blockHeaderSize {
		return 0, errdefs.DataCorruption(`block of %d bytes has no header`, len(src))
	}

	compressedLen := int(int32(binary.LittleEndian.Uint32(src[0:])))
	originalLen := int(int32(binary.LittleEndian.Uint32(src[4:])))
	if originalLen < 0 ||
		compressedLen < 0 ||
		(originalLen == 0 && compressedLen != 0) ||
		(originalLen != 0 && compressedLen == 0) {
		return 0, errdefs.DataCorruption(`input is corrupted, invalid length`)
	}

	if len(dst)-dstOff < originalLen {
		return 0, errdefs.InsufficientBuffer(`buffer of %d bytes too small for %d`, len(dst)-dstOff, originalLen)
	}

	if len(src)-blockHeaderSize < compressedLen {
		return 0, errdefs.DataCorruption(`source data is not integral for decompression`)
	}

	payload := src[blockHeaderSize : blockHeaderSize+compressedLen]
	if compressedLen == originalLen {
		return copy(dst[dstOff:], payload), nil
	}

	n, err := lz4.UncompressBlock(payload, dst[dstOff:dstOff+originalLen])
	if err != nil {
		return 0, errdefs.DataCorruptionWithCause(err, `input is corrupted`)
	}

	if n != originalLen {
		return 0, errdefs.DataCorruption(`input is corrupted, expected %d bytes got %d`, originalLen, n)
	}

	return n, nil
}
