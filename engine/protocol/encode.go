package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// Encode serialises cmd into its wire form.
//
// Parameters:
//   - cmd: the command to encode
//
// Returns:
//   - []byte: opcode, payload and path bytes
//   - error: an error wrapping common.ErrProtocolViolation if the path length is out of range
func Encode(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(cmd.Opcode()))

	var err error
	switch c := cmd.(type) {
	case MeshCreate:
		err = writePath(&buf, cmd.Opcode(), c.MeshID, c.Path)
	case *MeshCreate:
		err = writePath(&buf, cmd.Opcode(), c.MeshID, c.Path)
	case TextureCreate:
		err = writePath(&buf, cmd.Opcode(), c.TextureID, c.Path)
	case *TextureCreate:
		err = writePath(&buf, cmd.Opcode(), c.TextureID, c.Path)
	default:
		err = binary.Write(&buf, binary.LittleEndian, cmd)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCommand encodes cmd and writes it to w in a single Write call.
func WriteCommand(w io.Writer, cmd Command) error {
	b, err := Encode(cmd)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write %s: %w", cmd.Opcode(), err)
	}
	return nil
}

func writePath(buf *bytes.Buffer, op Opcode, id int32, path string) error {
	if len(path) == 0 || len(path) > MaxPathLen {
		return fmt.Errorf("%s: path length %d outside [1, %d]: %w",
			op, len(path), MaxPathLen, common.ErrProtocolViolation)
	}
	hdr := pathHeader{ID: id, PathLen: uint32(len(path))}
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	buf.WriteString(path)
	return nil
}
