package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// ErrDisconnect is returned when the client closed its end of the stream or sent OpNul.
var ErrDisconnect = errors.New("client disconnected")

// Decoder reads commands from a client stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	if br, ok := r.(*bufio.Reader); ok {
		return &Decoder{r: br}
	}
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode blocks until one whole command has been read.
//
// Returns:
//   - Command: the decoded command
//   - error: ErrDisconnect on end of stream before an opcode or on OpNul; an error wrapping
//     common.ErrProtocolViolation for unknown opcodes, truncated payloads and bad path lengths;
//     any other read error as is
func (d *Decoder) Decode() (Command, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrDisconnect
		}
		return nil, fmt.Errorf("failed to read opcode: %w", err)
	}

	op := Opcode(b)
	switch op {
	case OpNul:
		return nil, ErrDisconnect
	case OpConfigure:
		return decodeFixed[Configure](d.r, op)
	case OpMeshCreate:
		id, path, err := d.readPath(op)
		if err != nil {
			return nil, err
		}
		return MeshCreate{MeshID: id, Path: path}, nil
	case OpMeshSetShader:
		return decodeFixed[MeshSetShader](d.r, op)
	case OpMeshBindTexture:
		return decodeFixed[MeshBindTexture](d.r, op)
	case OpMeshTransform:
		return decodeFixed[MeshTransform](d.r, op)
	case OpMeshDelete:
		return decodeFixed[MeshDelete](d.r, op)
	case OpPointLightCreate:
		return decodeFixed[PointLightCreate](d.r, op)
	case OpPointLightTransform:
		return decodeFixed[PointLightTransform](d.r, op)
	case OpPointLightSetColour:
		return decodeFixed[PointLightSetColour](d.r, op)
	case OpPointLightDelete:
		return decodeFixed[PointLightDelete](d.r, op)
	case OpTextureCreate:
		id, path, err := d.readPath(op)
		if err != nil {
			return nil, err
		}
		return TextureCreate{TextureID: id, Path: path}, nil
	case OpTextureDelete:
		return decodeFixed[TextureDelete](d.r, op)
	case OpViewpointTransform:
		return decodeFixed[ViewpointTransform](d.r, op)
	default:
		return nil, fmt.Errorf("unknown opcode %d: %w", b, common.ErrProtocolViolation)
	}
}

// ReadCommand decodes a single command from r. Bytes read past the command are lost, so streams
// carrying more than one command should use a Decoder.
func ReadCommand(r io.Reader) (Command, error) {
	return NewDecoder(r).Decode()
}

func decodeFixed[T Command](r io.Reader, op Opcode) (Command, error) {
	var cmd T
	if err := binary.Read(r, binary.LittleEndian, &cmd); err != nil {
		return nil, payloadError(op, err)
	}
	return cmd, nil
}

func (d *Decoder) readPath(op Opcode) (int32, string, error) {
	var hdr pathHeader
	if err := binary.Read(d.r, binary.LittleEndian, &hdr); err != nil {
		return 0, "", payloadError(op, err)
	}
	if hdr.PathLen == 0 || hdr.PathLen > MaxPathLen {
		return 0, "", fmt.Errorf("%s: path length %d outside [1, %d]: %w",
			op, hdr.PathLen, MaxPathLen, common.ErrProtocolViolation)
	}

	buf := make([]byte, hdr.PathLen)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return 0, "", payloadError(op, err)
	}
	return hdr.ID, string(buf), nil
}

// payloadError classifies a failed payload read. A stream that ends inside a command is a
// protocol violation; anything else is passed through.
func payloadError(op Opcode, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: truncated payload: %w", op, common.ErrProtocolViolation)
	}
	return fmt.Errorf("%s: failed to read payload: %w", op, err)
}
