package protocol

// Command is one decoded client command.
type Command interface {
	// Opcode returns the opcode the command is sent with.
	Opcode() Opcode
}

// Configure announces the protocol version the client speaks.
type Configure struct {
	Major uint32
	Minor uint32
}

// MeshCreate imports the asset at Path and stores it as mesh MeshID.
type MeshCreate struct {
	MeshID int32
	Path   string
}

// MeshSetShader selects the shader a mesh is drawn with.
type MeshSetShader struct {
	MeshID int32
	Shader uint32
}

// MeshBindTexture makes mesh MeshID sample texture TextureID in render pass Target.
type MeshBindTexture struct {
	MeshID    int32
	TextureID int32
	Target    uint32
}

// MeshTransform sets the model transform of a mesh. Rotation is in radians about X, Y and Z.
type MeshTransform struct {
	MeshID   int32
	Location [3]float32
	Rotation [3]float32
	Scale    [3]float32
}

// MeshDelete destroys a mesh.
type MeshDelete struct {
	MeshID int32
}

// PointLightCreate adds a point light.
type PointLightCreate struct {
	LightID   int32
	Location  [3]float32
	Colour    [3]float32
	Intensity float32
	Distance  float32
}

// PointLightTransform moves a point light.
type PointLightTransform struct {
	LightID  int32
	Location [3]float32
}

// PointLightSetColour changes the colour and intensity of a point light.
type PointLightSetColour struct {
	LightID   int32
	Colour    [3]float32
	Intensity float32
}

// PointLightDelete removes a point light.
type PointLightDelete struct {
	LightID int32
}

// TextureCreate imports the image at Path and stores it as texture TextureID.
type TextureCreate struct {
	TextureID int32
	Path      string
}

// TextureDelete destroys a texture. Meshes sampling it fall back to the default texture.
type TextureDelete struct {
	TextureID int32
}

// ViewpointTransform places the scene's camera at Eye looking at Centre with a vertical field of
// view of FOV radians.
type ViewpointTransform struct {
	Eye    [3]float32
	Centre [3]float32
	FOV    float32
}

func (Configure) Opcode() Opcode           { return OpConfigure }
func (MeshCreate) Opcode() Opcode          { return OpMeshCreate }
func (MeshSetShader) Opcode() Opcode       { return OpMeshSetShader }
func (MeshBindTexture) Opcode() Opcode     { return OpMeshBindTexture }
func (MeshTransform) Opcode() Opcode       { return OpMeshTransform }
func (MeshDelete) Opcode() Opcode          { return OpMeshDelete }
func (PointLightCreate) Opcode() Opcode    { return OpPointLightCreate }
func (PointLightTransform) Opcode() Opcode { return OpPointLightTransform }
func (PointLightSetColour) Opcode() Opcode { return OpPointLightSetColour }
func (PointLightDelete) Opcode() Opcode    { return OpPointLightDelete }
func (TextureCreate) Opcode() Opcode       { return OpTextureCreate }
func (TextureDelete) Opcode() Opcode       { return OpTextureDelete }
func (ViewpointTransform) Opcode() Opcode  { return OpViewpointTransform }

// pathHeader is the fixed part of MeshCreate and TextureCreate on the wire.
type pathHeader struct {
	ID      int32
	PathLen uint32
}
