// Package protocol defines the binary command stream spoken between clients and the render server.
//
// Every command is a one byte opcode followed by a fixed size little-endian payload. Mesh and
// texture creation append a four byte path length and that many raw path bytes.
package protocol

import "fmt"

// Opcode tags a command and selects the payload that follows it on the wire.
type Opcode uint8

const (
	// OpNul is the no-op opcode. Receiving it means the client is disconnecting.
	OpNul Opcode = iota
	OpConfigure
	OpMeshCreate
	OpMeshSetShader
	OpMeshBindTexture
	OpMeshTransform
	OpMeshDelete
	OpPointLightCreate
	OpPointLightTransform
	OpPointLightSetColour
	OpPointLightDelete
	OpTextureCreate
	OpTextureDelete
	OpViewpointTransform

	opCount
)

// MaxPathLen is the largest asset path a client may send.
const MaxPathLen = 4096

// Version is the protocol version this server speaks.
const (
	VersionMajor uint32 = 1
	VersionMinor uint32 = 0
)

var opcodeNames = [opCount]string{
	OpNul:                 "NUL",
	OpConfigure:           "CONFIGURE",
	OpMeshCreate:          "MESH_CREATE",
	OpMeshSetShader:       "MESH_SET_SHADER",
	OpMeshBindTexture:     "MESH_BIND_TEXTURE",
	OpMeshTransform:       "MESH_TRANSFORM",
	OpMeshDelete:          "MESH_DELETE",
	OpPointLightCreate:    "POINT_LIGHT_CREATE",
	OpPointLightTransform: "POINT_LIGHT_TRANSFORM",
	OpPointLightSetColour: "POINT_LIGHT_SET_COLOUR",
	OpPointLightDelete:    "POINT_LIGHT_DELETE",
	OpTextureCreate:       "TEXTURE_CREATE",
	OpTextureDelete:       "TEXTURE_DELETE",
	OpViewpointTransform:  "VIEWPOINT_TRANSFORM",
}

// Valid reports whether o is a known opcode.
func (o Opcode) Valid() bool {
	return o < opCount
}

func (o Opcode) String() string {
	if !o.Valid() {
		return fmt.Sprintf("OPCODE(%d)", uint8(o))
	}
	return opcodeNames[o]
}
