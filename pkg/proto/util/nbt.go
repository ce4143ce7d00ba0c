package util

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// NBT is a named binary tag aka compound binary tag.
type NBT map[string]any

func (b NBT) Int32(name string) (ret int32, ok bool) {
	var val any
	if val, ok = b[name]; ok {
		ret, ok = val.(int32)
	}
	return
}

func (b NBT) Int64(name string) (ret int64, ok bool) {
	var val any
	if val, ok = b[name]; ok {
		ret, ok = val.(int64)
	}
	return
}

func (b NBT) String(name string) (ret string, ok bool) {
	var val any
	if val, ok = b[name]; ok {
		ret, ok = val.(string)
	}
	return
}

func (b NBT) NBT(name string) (ret NBT, ok bool) {
	var val any
	if val, ok = b[name]; ok {
		ret, ok = val.(map[string]any)
		if !ok {
			ret, ok = val.(NBT)
		}
	}
	return
}

func (b NBT) List(name string) (ret []NBT, ok bool) {
	var val any
	if val, ok = b[name]; ok {
		var l []any
		l, ok = val.([]any)
		if !ok {
			ret, ok = val.([]NBT)
			return
		}
		var n NBT
		for _, e := range l {
			n, ok = e.(map[string]any)
			if ok {
				ret = append(ret, n)
			}
		}
	}
	return
}

func ReadNBT(rd io.Reader) (NBT, error) {
	v := NBT{}
	err := NewNBTDecoder(rd).Decode(&v)
	return v, err
}

func NewNBTDecoder(r io.Reader) *nbt.Decoder {
	return nbt.NewDecoderWithEncoding(r, nbt.BigEndian)
}

func NewNBTEncoder(w io.Writer) *nbt.Encoder {
	return nbt.NewEncoderWithEncoding(w, nbt.BigEndian)
}

// WriteNBT writes the compound with an empty root name (the pre-1.20.2
// network form of a root compound).
func WriteNBT(w io.Writer, nbt NBT) error {
	return NewNBTEncoder(w).Encode(map[string]any(nbt))
}

// WriteNetworkNBT writes the compound in the network form of the given
// protocol version. Since 1.20.2 the root compound is written without a
// name: the two name-length bytes following the compound type id are
// omitted, so we splice them out of the regular encoding.
func WriteNetworkNBT(w io.Writer, protocol proto.Protocol, n NBT) error {
	if protocol.Lower(version.Minecraft_1_20_2) {
		return WriteNBT(w, n)
	}
	var buf bytes.Buffer
	if err := WriteNBT(&buf, n); err != nil {
		return err
	}
	b := buf.Bytes()
	if len(b) < 3 {
		return fmt.Errorf("encoded nbt compound too short: %d bytes", len(b))
	}
	if _, err := w.Write(b[:1]); err != nil { // compound type id
		return err
	}
	_, err := w.Write(b[3:]) // skip the empty root name length
	return err
}

func (b NBT) Write(w io.Writer) error {
	return WriteNBT(w, b)
}
