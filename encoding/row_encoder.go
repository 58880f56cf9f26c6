/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package encoding

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/tryfix/errors"
	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
)

const (
	tagNull byte = iota
	tagInt64
	tagFloat64
	tagString
	tagBytes
	tagFalse
	tagTrue
)

// RowEncoder encodes data.Row values as [arity uvarint] followed by one [tag][payload] per field.
// Integers are zig-zag varints, floats 8 byte little endian, strings and bytes length prefixed.
type RowEncoder struct{}

func NewRowEncoder() Encoder {
	return RowEncoder{}
}

func (RowEncoder) Encode(v interface{}) ([]byte, error) {
	row, ok := v.(data.Row)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected data.Row`, reflect.TypeOf(v))
	}

	return AppendRow(make([]byte, 0, 16*len(row)), row)
}

func (RowEncoder) Decode(byt []byte) (interface{}, error) {
	row, n, err := ReadRow(byt)
	if err != nil {
		return nil, err
	}

	if n != len(byt) {
		return nil, errdefs.DataCorruption(`%d trailing bytes after row`, len(byt)-n)
	}

	return row, nil
}

// AppendRow appends the encoded row to dst.
func AppendRow(dst []byte, row data.Row) ([]byte, error) {
	dst = binary.AppendUvarint(dst, uint64(len(row)))
	for i, f := range row {
		switch v := f.(type) {
		case nil:
			dst = append(dst, tagNull)
		case int64:
			dst = append(dst, tagInt64)
			dst = binary.AppendVarint(dst, v)
		case int:
			dst = append(dst, tagInt64)
			dst = binary.AppendVarint(dst, int64(v))
		case float64:
			dst = append(dst, tagFloat64)
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
		case string:
			dst = append(dst, tagString)
			dst = binary.AppendUvarint(dst, uint64(len(v)))
			dst = append(dst, v...)
		case []byte:
			dst = append(dst, tagBytes)
			dst = binary.AppendUvarint(dst, uint64(len(v)))
			dst = append(dst, v...)
		case bool:
			if v {
				dst = append(dst, tagTrue)
			} else {
				dst = append(dst, tagFalse)
			}
		default:
			return nil, errors.Errorf(`unsupported field [%d] of type [%v]`, i, reflect.TypeOf(f))
		}
	}

	return dst, nil
}

// ReadRow decodes one row from the head of src and returns the number of bytes consumed.
func ReadRow(src []byte) (data.Row, int, error) {
	arity, n := binary.Uvarint(src)
	if n <= 0 {
		return nil, 0, errdefs.DataCorruption(`invalid row arity`)
	}

	if arity > uint64(len(src)) {
		return nil, 0, errdefs.DataCorruption(`row arity %d exceeds %d available bytes`, arity, len(src))
	}

	pos := n
	row := make(data.Row, arity)
	for i := range row {
		if pos >= len(src) {
			return nil, 0, errdefs.DataCorruption(`row truncated at field %d`, i)
		}

		tag := src[pos]
		pos++
		switch tag {
		case tagNull:
		case tagFalse:
			row[i] = false
		case tagTrue:
			row[i] = true
		case tagInt64:
			v, l := binary.Varint(src[pos:])
			if l <= 0 {
				return nil, 0, errdefs.DataCorruption(`invalid int field %d`, i)
			}
			row[i] = v
			pos += l
		case tagFloat64:
			if len(src)-pos < 8 {
				return nil, 0, errdefs.DataCorruption(`float field %d truncated`, i)
			}
			row[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[pos:]))
			pos += 8
		case tagString, tagBytes:
			size, l := binary.Uvarint(src[pos:])
			if l <= 0 {
				return nil, 0, errdefs.DataCorruption(`invalid length for field %d`, i)
			}
			pos += l
			if uint64(len(src)-pos) < size {
				return nil, 0, errdefs.DataCorruption(`field %d claims %d bytes, %d available`, i, size, len(src)-pos)
			}
			payload := src[pos : pos+int(size)]
			if tag == tagString {
				row[i] = string(payload)
			} else {
				row[i] = append([]byte(nil), payload...)
			}
			pos += int(size)
		default:
			return nil, 0, errdefs.DataCorruption(`unknown field tag %d`, tag)
		}
	}

	return row, pos, nil
}
