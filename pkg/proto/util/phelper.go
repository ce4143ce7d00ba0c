package util

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

// Recover is a helper function to recover from a panic and set the error pointer to the recovered error.
// If the panic is not an error, it will be re-panicked.
//
// Usage:
//
//	func fn() (err error) {
//		defer Recover(&err)
//		// code that may panic(err)
//	}
func Recover(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = e
		} else {
			panic(r)
		}
	}
}

// RecoverFunc is a helper function to recover from a panic and set the error pointer to the recovered error.
// If the panic is not an error, it will be re-panicked.
//
// Usage:
//
//	return RecoverFunc(func() error {
//		// code that may panic(err)
//	})
func RecoverFunc(fn func() error) (err error) {
	defer Recover(&err)
	return fn()
}

type PReader struct {
	r io.Reader
}

func PanicReader(r io.Reader) *PReader {
	return &PReader{r}
}

func (r *PReader) VarInt(i *int) {
	PVarInt(r.r, i)
}

func (r *PReader) VarLong(i *int64) {
	v, err := ReadVarLong(r.r)
	if err != nil {
		panic(err)
	}
	*i = v
}

func (r *PReader) String(s *string) {
	PReadString(r.r, s)
}

func (r *PReader) StringMax(s *string, max int) {
	PReadStringMax(r.r, s, max)
}

func (r *PReader) Uint8(i *uint8) {
	PReadUint8(r.r, i)
}

func (r *PReader) Int8(i *int8) {
	v, err := ReadInt8(r.r)
	if err != nil {
		panic(err)
	}
	*i = v
}

func (r *PReader) Bytes(b *[]byte) {
	PReadBytes(r.r, b)
}

func (r *PReader) Bool(b *bool) {
	PReadBool(r.r, b)
}
func (r *PReader) Ok() bool {
	var ok bool
	PReadBool(r.r, &ok)
	return ok
}

func (r *PReader) Int16(i *int16) {
	v, err := ReadInt16(r.r)
	if err != nil {
		panic(err)
	}
	*i = v
}

func (r *PReader) Int32(i *int32) {
	v, err := ReadInt32(r.r)
	if err != nil {
		panic(err)
	}
	*i = v
}

func (r *PReader) Int64(i *int64) {
	PReadInt64(r.r, i)
}

func (r *PReader) Int(i *int) {
	PReadInt(r.r, i)
}

func (r *PReader) Float32(f *float32) {
	PReadFloat32(r.r, f)
}

func (r *PReader) Float64(f *float64) {
	v, err := ReadFloat64(r.r)
	if err != nil {
		panic(err)
	}
	*f = v
}

func (r *PReader) Byte(b *byte) {
	PReadByte(r.r, b)
}

func (r *PReader) UUID(id *uuid.UUID) {
	v, err := ReadUUID(r.r)
	if err != nil {
		panic(err)
	}
	*id = v
}

func PReadInt(r io.Reader, i *int) {
	v, err := ReadInt(r)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadInt64(r io.Reader, i *int64) {
	v, err := ReadInt64(r)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadBool(r io.Reader, b *bool) {
	v, err := ReadBool(r)
	if err != nil {
		panic(err)
	}
	*b = v
}

func PVarInt(rd io.Reader, i *int) {
	v, err := ReadVarInt(rd)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadString(rd io.Reader, s *string) {
	v, err := ReadString(rd)
	if err != nil {
		panic(err)
	}
	*s = v
}

func PReadStringMax(rd io.Reader, s *string, max int) {
	v, err := ReadStringMax(rd, max)
	if err != nil {
		panic(err)
	}
	*s = v
}

func PReadUint8(rd io.Reader, i *uint8) {
	v, err := ReadUint8(rd)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadBytes(rd io.Reader, b *[]byte) {
	v, err := ReadBytes(rd)
	if err != nil {
		panic(err)
	}
	*b = v
}

func PReadByte(rd io.Reader, b *byte) {
	v, err := ReadByte(rd)
	if err != nil {
		panic(err)
	}
	*b = v
}

func PReadFloat32(rd io.Reader, f *float32) {
	v, err := ReadFloat32(rd)
	if err != nil {
		panic(err)
	}
	*f = v
}

type PWriter struct {
	w io.Writer
}

func PanicWriter(w io.Writer) *PWriter {
	return &PWriter{w}
}

func (w *PWriter) VarInt(i int) {
	PWriteVarInt(w.w, i)
}

func (w *PWriter) VarLong(i int64) {
	if err := WriteVarLong(w.w, i); err != nil {
		panic(err)
	}
}

func (w *PWriter) String(s string) {
	PWriteString(w.w, s)
}

func (w *PWriter) Bytes(b []byte) {
	PWriteBytes(w.w, b)
}

func (w *PWriter) RawBytes(b []byte) {
	if err := WriteRawBytes(w.w, b); err != nil {
		panic(err)
	}
}

func (w *PWriter) Bool(b bool) bool {
	PWriteBool(w.w, b)
	return b
}

func (w *PWriter) Int8(i int8) {
	if err := WriteInt8(w.w, i); err != nil {
		panic(err)
	}
}

func (w *PWriter) Int16(i int16) {
	if err := WriteInt16(w.w, i); err != nil {
		panic(err)
	}
}

func (w *PWriter) Int32(i int32) {
	if err := WriteInt32(w.w, i); err != nil {
		panic(err)
	}
}

func (w *PWriter) Int64(i int64) {
	PWriteInt64(w.w, i)
}

func (w *PWriter) Int(i int) {
	PWriteInt(w.w, i)
}

func (w *PWriter) Byte(b byte) {
	PWriteByte(w.w, b)
}

func (w *PWriter) Float32(f float32) {
	PWriteFloat32(w.w, f)
}

func (w *PWriter) Float64(f float64) {
	if err := WriteFloat64(w.w, f); err != nil {
		panic(err)
	}
}

func (w *PWriter) Strings(s []string) {
	if err := WriteStrings(w.w, s); err != nil {
		panic(err)
	}
}

func (w *PWriter) UUID(id uuid.UUID) {
	if err := WriteUUID(w.w, id); err != nil {
		panic(err)
	}
}

func (w *PWriter) NBT(n NBT, protocol proto.Protocol) {
	if err := WriteNetworkNBT(w.w, protocol, n); err != nil {
		panic(err)
	}
}

func (w *PWriter) Int64Array(a []int64) {
	if err := WriteInt64Array(w.w, a); err != nil {
		panic(err)
	}
}

func PWriteByte(w io.Writer, b byte) {
	if err := WriteByte(w, b); err != nil {
		panic(err)
	}
}

func PWriteInt(w io.Writer, i int) {
	if err := WriteInt(w, i); err != nil {
		panic(err)
	}
}

func PWriteInt64(w io.Writer, i int64) {
	if err := WriteInt64(w, i); err != nil {
		panic(err)
	}
}

func PWriteBool(w io.Writer, b bool) {
	if err := WriteBool(w, b); err != nil {
		panic(err)
	}
}

func PWriteVarInt(wr io.Writer, i int) {
	if err := WriteVarInt(wr, i); err != nil {
		panic(err)
	}
}
func PWriteString(wr io.Writer, s string) {
	if err := WriteString(wr, s); err != nil {
		panic(err)
	}
}
func PWriteBytes(wr io.Writer, b []byte) {
	if err := WriteBytes(wr, b); err != nil {
		panic(err)
	}
}

func PWriteFloat32(wr io.Writer, f float32) {
	if err := WriteFloat32(wr, f); err != nil {
		panic(err)
	}
}
