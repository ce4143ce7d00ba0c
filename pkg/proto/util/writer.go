package util

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

func WriteString(writer io.Writer, val string) (err error) {
	return WriteBytes(writer, []byte(val))
}

func WriteVarInt(writer io.Writer, val int) (err error) {
	uval := uint32(val)
	for uval >= 0x80 {
		err = WriteUint8(writer, byte(uval)|0x80)
		if err != nil {
			return
		}
		uval >>= 7
	}
	err = WriteUint8(writer, byte(uval))
	return
}

// WriteVarIntN writes a varint and returns the number of bytes written.
func WriteVarIntN(writer io.Writer, val int) (n int, err error) {
	uval := uint32(val)
	for uval >= 0x80 {
		err = WriteUint8(writer, byte(uval)|0x80)
		if err != nil {
			return
		}
		n++
		uval >>= 7
	}
	err = WriteUint8(writer, byte(uval))
	if err != nil {
		return
	}
	return n + 1, nil
}

func WriteVarLong(writer io.Writer, val int64) (err error) {
	uval := uint64(val)
	for uval >= 0x80 {
		err = WriteUint8(writer, byte(uval)|0x80)
		if err != nil {
			return
		}
		uval >>= 7
	}
	err = WriteUint8(writer, byte(uval))
	return
}

func WriteBool(writer io.Writer, val bool) (err error) {
	if val {
		err = WriteUint8(writer, 1)
	} else {
		err = WriteUint8(writer, 0)
	}
	return
}

// equal to WriteUint8
func WriteInt8(writer io.Writer, val int8) (err error) {
	return WriteUint8(writer, uint8(val))
}

// equal to WriteByte
func WriteUint8(writer io.Writer, val uint8) (err error) {
	var buf [1]byte
	buf[0] = val
	_, err = writer.Write(buf[:1])
	return
}

// equal to WriteUint8
func WriteByte(writer io.Writer, val byte) (err error) {
	return WriteUint8(writer, val)
}

func WriteInt16(writer io.Writer, val int16) (err error) {
	return WriteUint16(writer, uint16(val))
}

func WriteUint16(writer io.Writer, val uint16) (err error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:2], val)
	_, err = writer.Write(buf[:2])
	return
}

func WriteInt32(writer io.Writer, val int32) (err error) {
	return WriteUint32(writer, uint32(val))
}

func WriteInt(writer io.Writer, val int) (err error) {
	return WriteInt32(writer, int32(val))
}

func WriteUint32(writer io.Writer, val uint32) (err error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:4], val)
	_, err = writer.Write(buf[:4])
	return
}

func WriteInt64(writer io.Writer, val int64) (err error) {
	return WriteUint64(writer, uint64(val))
}

func WriteUint64(writer io.Writer, val uint64) (err error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:8], val)
	_, err = writer.Write(buf[:8])
	return
}

func WriteFloat32(writer io.Writer, val float32) (err error) {
	return WriteUint32(writer, math.Float32bits(val))
}

func WriteFloat64(writer io.Writer, val float64) (err error) {
	return WriteUint64(writer, math.Float64bits(val))
}

func WriteBytes(wr io.Writer, b []byte) (err error) {
	err = WriteVarInt(wr, len(b))
	if err != nil {
		return err
	}
	_, err = wr.Write(b)
	return err
}

// WriteRawBytes writes a raw stream of bytes with no length prefix.
func WriteRawBytes(wr io.Writer, b []byte) (err error) {
	_, err = wr.Write(b)
	return err
}

func WriteStrings(wr io.Writer, a []string) error {
	err := WriteVarInt(wr, len(a))
	if err != nil {
		return err
	}
	for _, s := range a {
		err = WriteString(wr, s)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteUUID is encoded as an unsigned 128-bit integer (two unsigned
// 64-bit integers: the most significant and then the least significant).
func WriteUUID(wr io.Writer, id uuid.UUID) error {
	err := WriteUint64(wr, binary.BigEndian.Uint64(id[:8]))
	if err != nil {
		return err
	}
	return WriteUint64(wr, binary.BigEndian.Uint64(id[8:]))
}

// WriteInt64Array writes a length-prefixed packed long array.
func WriteInt64Array(wr io.Writer, a []int64) error {
	err := WriteVarInt(wr, len(a))
	if err != nil {
		return err
	}
	for _, v := range a {
		err = WriteInt64(wr, v)
		if err != nil {
			return err
		}
	}
	return nil
}
