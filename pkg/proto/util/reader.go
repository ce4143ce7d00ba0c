package util

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

// DefaultMaxStringSize is the string size cap for fields
// without a tighter per-field limit.
const DefaultMaxStringSize = 32767

func ReadString(rd io.Reader) (string, error) {
	return ReadStringMax(rd, DefaultMaxStringSize)
}

func ReadStringMax(rd io.Reader, max int) (string, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return "", err
	}
	return readStringMax(rd, max, length)
}

func readStringMax(rd io.Reader, max, length int) (string, error) {
	if length < 0 {
		return "", errors.New("length of string must not be negative")
	}
	if length > max*4 { // *4 since an UTF8 character has up to 4 bytes
		return "", fmt.Errorf("bad string length (got %d, max. %d)", length, max)
	}
	str := make([]byte, length)
	_, err := io.ReadFull(rd, str)
	if err != nil {
		return "", err
	}
	return string(str), nil
}

func ReadStringArray(rd io.Reader) ([]string, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return nil, err
	}
	a := make([]string, 0, length)
	for i := 0; i < length; i++ {
		s, err := ReadString(rd)
		if err != nil {
			return nil, err
		}
		a = append(a, s)
	}
	return a, nil
}

func ReadBytes(rd io.Reader) ([]byte, error) {
	return ReadBytesLen(rd, bufio.MaxScanTokenSize)
}

func ReadBytesLen(rd io.Reader, maxLength int) (bytes []byte, err error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return
	}
	if length < 0 {
		err = fmt.Errorf("decode, bytes/string length is < 0: %d", length)
		return
	}
	if length > maxLength {
		err = fmt.Errorf("decode, bytes/string length %d is above given maximum: %d", length, maxLength)
		return
	}
	bytes = make([]byte, length)
	_, err = io.ReadFull(rd, bytes)
	return
}

// ReadRawBytes reads all remaining bytes without a length prefix.
func ReadRawBytes(rd io.Reader) ([]byte, error) {
	return io.ReadAll(rd)
}

func ReadVarInt(r io.Reader) (result int, err error) {
	if br, ok := r.(io.ByteReader); ok {
		var n uint32
		for i := 0; ; i++ {
			sec, err := br.ReadByte()
			if err != nil {
				return 0, err
			}

			n |= uint32(sec&0x7F) << uint32(7*i)

			if i >= 5 {
				return 0, errors.New("decode: VarInt is too big")
			} else if sec&0x80 == 0 {
				break
			}
		}
		return int(int32(n)), nil
	}

	var bytes byte = 0
	var b byte
	var uresult uint32 = 0
	for {
		b, err = ReadUint8(r)
		if err != nil {
			return
		}
		uresult |= uint32(b&0x7F) << uint32(bytes*7)
		bytes++
		if bytes > 5 {
			err = errors.New("decode: VarInt is too big")
			return
		}
		if (b & 0x80) == 0x80 {
			continue
		}
		break
	}
	result = int(int32(uresult))
	return
}

// ReadVarIntReturnN reads a varint and additionally
// returns the number of bytes read.
func ReadVarIntReturnN(r io.Reader) (result int, n int, err error) {
	var b byte
	var uresult uint32 = 0
	for {
		b, err = ReadUint8(r)
		if err != nil {
			return 0, n, err
		}
		uresult |= uint32(b&0x7F) << uint32(n*7)
		n++
		if n > 5 {
			return 0, n, errors.New("decode: VarInt is too big")
		}
		if (b & 0x80) != 0x80 {
			break
		}
	}
	return int(int32(uresult)), n, nil
}

func ReadVarLong(r io.Reader) (result int64, err error) {
	var bytes byte = 0
	var b byte
	var uresult uint64 = 0
	for {
		b, err = ReadUint8(r)
		if err != nil {
			return
		}
		uresult |= uint64(b&0x7F) << uint64(bytes*7)
		bytes++
		if bytes > 10 {
			err = errors.New("decode: VarLong is too big")
			return
		}
		if (b & 0x80) != 0x80 {
			break
		}
	}
	result = int64(uresult)
	return
}

func ReadBool(reader io.Reader) (val bool, err error) {
	uval, err := ReadUint8(reader)
	if err != nil {
		return
	}
	val = uval != 0
	return
}

func ReadInt8(reader io.Reader) (val int8, err error) {
	uval, err := ReadUint8(reader)
	val = int8(uval)
	return
}

func ReadUint8(reader io.Reader) (val uint8, err error) {
	if br, ok := reader.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	_, err = io.ReadFull(reader, buf[:1])
	val = buf[0]
	return
}

func ReadByte(reader io.Reader) (val byte, err error) {
	return ReadUint8(reader)
}

func ReadInt16(reader io.Reader) (val int16, err error) {
	uval, err := ReadUint16(reader)
	val = int16(uval)
	return
}

func ReadUint16(reader io.Reader) (val uint16, err error) {
	var buf [2]byte
	_, err = io.ReadFull(reader, buf[:2])
	val = binary.BigEndian.Uint16(buf[:2])
	return
}

func ReadInt32(reader io.Reader) (val int32, err error) {
	uval, err := ReadUint32(reader)
	val = int32(uval)
	return
}

func ReadInt(reader io.Reader) (int, error) {
	val, err := ReadInt32(reader)
	return int(val), err
}

func ReadUint32(reader io.Reader) (val uint32, err error) {
	var buf [4]byte
	_, err = io.ReadFull(reader, buf[:4])
	val = binary.BigEndian.Uint32(buf[:4])
	return
}

func ReadInt64(reader io.Reader) (val int64, err error) {
	uval, err := ReadUint64(reader)
	val = int64(uval)
	return
}

func ReadUint64(reader io.Reader) (val uint64, err error) {
	var buf [8]byte
	_, err = io.ReadFull(reader, buf[:8])
	val = binary.BigEndian.Uint64(buf[:8])
	return
}

func ReadFloat32(reader io.Reader) (val float32, err error) {
	uval, err := ReadUint32(reader)
	val = math.Float32frombits(uval)
	return
}

func ReadFloat64(reader io.Reader) (val float64, err error) {
	uval, err := ReadUint64(reader)
	val = math.Float64frombits(uval)
	return
}

func ReadUUID(rd io.Reader) (id uuid.UUID, err error) {
	most, err := ReadUint64(rd)
	if err != nil {
		return
	}
	least, err := ReadUint64(rd)
	if err != nil {
		return
	}
	binary.BigEndian.PutUint64(id[:8], most)
	binary.BigEndian.PutUint64(id[8:], least)
	return
}
