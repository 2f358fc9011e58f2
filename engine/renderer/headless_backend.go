package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Call is one recorded backend call of a headless backend.
type Call struct {
	Op      string
	Mesh    MeshHandle
	Texture TextureHandle
	Slot    int
	Pass    uint32
}

type headlessMesh struct {
	vertexCount int
	indexCount  int
	format      common.IndexFormat
	uniforms    []mgl32.Mat4
	bindings    [][MaxPasses]TextureHandle
}

type headlessTexture struct {
	width     uint32
	height    uint32
	mipLevels uint32
}

type headlessViewpoint struct {
	view []mgl32.Mat4
	proj []mgl32.Mat4
}

type headlessBackendImpl struct {
	mu *sync.Mutex

	framesInFlight int
	aspect         float32
	closeAfter     int
	failures       map[string]error

	nextHandle     uint64
	defaultTexture TextureHandle

	meshes     map[MeshHandle]*headlessMesh
	textures   map[TextureHandle]headlessTexture
	viewpoints map[ViewpointHandle]*headlessViewpoint

	calls     []Call
	presented int
	lastFrame []SceneFrame
	closed    bool
}

// HeadlessBackend is a Backend that keeps every resource in memory and draws nothing.
// It records each call so the server can run without a GPU and tests can inspect what was done.
// Safe for concurrent use.
type HeadlessBackend interface {
	Backend

	// Calls returns a copy of the recorded calls in order.
	Calls() []Call

	// ResetCalls clears the call log.
	ResetCalls()

	// LiveMeshes returns the number of meshes not yet destroyed.
	LiveMeshes() int

	// LiveTextures returns the number of textures not yet destroyed, the default texture excluded.
	LiveTextures() int

	// LiveViewpoints returns the number of viewpoints not yet destroyed.
	LiveViewpoints() int

	// MeshInfo returns the vertex count, index count and index format a mesh was created with.
	MeshInfo(h MeshHandle) (vertexCount, indexCount int, format common.IndexFormat, ok bool)

	// MeshBinding returns the texture bound to a mesh in one slot and pass.
	MeshBinding(h MeshHandle, slot int, pass uint32) (TextureHandle, bool)

	// MeshUniform returns the model matrix last written to one slot of a mesh.
	MeshUniform(h MeshHandle, slot int) (mgl32.Mat4, bool)

	// TextureInfo returns the size and mip level count a texture was created with.
	TextureInfo(h TextureHandle) (width, height, mipLevels uint32, ok bool)

	// ViewpointMatrices returns the view and projection last written to one slot of a viewpoint.
	ViewpointMatrices(h ViewpointHandle, slot int) (view, proj mgl32.Mat4, ok bool)

	// Presented returns the number of frames presented.
	Presented() int

	// LastFrame returns the scene frames of the last submission.
	LastFrame() []SceneFrame

	// SetAspectRatio changes the reported aspect ratio, as a window resize would.
	SetAspectRatio(aspect float32)
}

var _ HeadlessBackend = &headlessBackendImpl{}

// NewHeadlessBackend creates a headless backend with a 1x1 default texture.
//
// Parameters:
//   - options: functional options to configure the backend
//
// Returns:
//   - HeadlessBackend: the new backend
func NewHeadlessBackend(options ...HeadlessBuilderOption) HeadlessBackend {
	b := &headlessBackendImpl{
		mu:             &sync.Mutex{},
		framesInFlight: DefaultFramesInFlight,
		aspect:         16.0 / 9.0,
		failures:       make(map[string]error),
		meshes:         make(map[MeshHandle]*headlessMesh),
		textures:       make(map[TextureHandle]headlessTexture),
		viewpoints:     make(map[ViewpointHandle]*headlessViewpoint),
	}
	for _, option := range options {
		option(b)
	}
	b.defaultTexture = TextureHandle(b.handle())
	b.textures[b.defaultTexture] = headlessTexture{width: 1, height: 1, mipLevels: 1}
	return b
}

func (b *headlessBackendImpl) FramesInFlight() int {
	return b.framesInFlight
}

func (b *headlessBackendImpl) CreateMesh(mesh common.MergedMesh) (MeshHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("CreateMesh"); err != nil {
		return 0, err
	}
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return 0, fmt.Errorf("mesh has no geometry: %w", common.ErrBackendFailure)
	}

	h := MeshHandle(b.handle())
	m := &headlessMesh{
		vertexCount: len(mesh.Vertices),
		indexCount:  len(mesh.Indices),
		format:      mesh.Format,
		uniforms:    make([]mgl32.Mat4, b.framesInFlight),
		bindings:    make([][MaxPasses]TextureHandle, b.framesInFlight),
	}
	for slot := range b.framesInFlight {
		m.uniforms[slot] = mgl32.Ident4()
		for pass := range MaxPasses {
			m.bindings[slot][pass] = b.defaultTexture
		}
	}
	b.meshes[h] = m
	b.record(Call{Op: "CreateMesh", Mesh: h})
	return h, nil
}

func (b *headlessBackendImpl) WriteMeshUniform(h MeshHandle, slot int, model mgl32.Mat4) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("WriteMeshUniform"); err != nil {
		return err
	}
	m, ok := b.meshes[h]
	if !ok {
		return fmt.Errorf("unknown mesh %d", h)
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	m.uniforms[slot] = model
	b.record(Call{Op: "WriteMeshUniform", Mesh: h, Slot: slot})
	return nil
}

func (b *headlessBackendImpl) BindMeshTexture(h MeshHandle, slot int, pass uint32, tex TextureHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("BindMeshTexture"); err != nil {
		return err
	}
	m, ok := b.meshes[h]
	if !ok {
		return fmt.Errorf("unknown mesh %d", h)
	}
	if _, ok := b.textures[tex]; !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if pass >= MaxPasses {
		return fmt.Errorf("pass %d out of range [0, %d)", pass, MaxPasses)
	}
	m.bindings[slot][pass] = tex
	b.record(Call{Op: "BindMeshTexture", Mesh: h, Texture: tex, Slot: slot, Pass: pass})
	return nil
}

func (b *headlessBackendImpl) DestroyMesh(h MeshHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.meshes, h)
	b.record(Call{Op: "DestroyMesh", Mesh: h})
}

func (b *headlessBackendImpl) CreateTexture(img *common.ImportedImage, mipLevels uint32) (TextureHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("CreateTexture"); err != nil {
		return 0, err
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return 0, fmt.Errorf("empty image: %w", common.ErrBackendFailure)
	}

	h := TextureHandle(b.handle())
	b.textures[h] = headlessTexture{width: img.Width, height: img.Height, mipLevels: max(mipLevels, 1)}
	b.record(Call{Op: "CreateTexture", Texture: h})
	return h, nil
}

func (b *headlessBackendImpl) DestroyTexture(h TextureHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h == b.defaultTexture {
		return
	}
	delete(b.textures, h)
	b.record(Call{Op: "DestroyTexture", Texture: h})
}

func (b *headlessBackendImpl) DefaultTexture() TextureHandle {
	return b.defaultTexture
}

func (b *headlessBackendImpl) CreateViewpoint() (ViewpointHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("CreateViewpoint"); err != nil {
		return 0, err
	}
	h := ViewpointHandle(b.handle())
	b.viewpoints[h] = &headlessViewpoint{
		view: make([]mgl32.Mat4, b.framesInFlight),
		proj: make([]mgl32.Mat4, b.framesInFlight),
	}
	b.record(Call{Op: "CreateViewpoint"})
	return h, nil
}

func (b *headlessBackendImpl) WriteViewpoint(h ViewpointHandle, slot int, view, proj mgl32.Mat4) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	vp, ok := b.viewpoints[h]
	if !ok {
		return fmt.Errorf("unknown viewpoint %d", h)
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	vp.view[slot] = view
	vp.proj[slot] = proj
	b.record(Call{Op: "WriteViewpoint", Slot: slot})
	return nil
}

func (b *headlessBackendImpl) DestroyViewpoint(h ViewpointHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.viewpoints, h)
	b.record(Call{Op: "DestroyViewpoint"})
}

func (b *headlessBackendImpl) AspectRatio() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aspect
}

func (b *headlessBackendImpl) WaitForFrameSlot(slot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("WaitForFrameSlot"); err != nil {
		return err
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	b.record(Call{Op: "WaitForFrameSlot", Slot: slot})
	return nil
}

func (b *headlessBackendImpl) SubmitFrame(frames []SceneFrame, slot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail("SubmitFrame"); err != nil {
		return err
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	b.lastFrame = make([]SceneFrame, len(frames))
	copy(b.lastFrame, frames)
	b.record(Call{Op: "SubmitFrame", Slot: slot})
	return nil
}

func (b *headlessBackendImpl) PresentFrame() PresentResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return PresentResult{ShouldClose: true}
	}
	b.presented++
	b.record(Call{Op: "PresentFrame"})
	if b.closeAfter > 0 && b.presented >= b.closeAfter {
		return PresentResult{OK: true, ShouldClose: true}
	}
	return PresentResult{OK: true}
}

func (b *headlessBackendImpl) RecreateSurface() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "RecreateSurface"})
	return nil
}

func (b *headlessBackendImpl) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *headlessBackendImpl) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *headlessBackendImpl) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *headlessBackendImpl) LiveMeshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.meshes)
}

func (b *headlessBackendImpl) LiveTextures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.textures) - 1
}

func (b *headlessBackendImpl) LiveViewpoints() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewpoints)
}

func (b *headlessBackendImpl) MeshInfo(h MeshHandle) (int, int, common.IndexFormat, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meshes[h]
	if !ok {
		return 0, 0, 0, false
	}
	return m.vertexCount, m.indexCount, m.format, true
}

func (b *headlessBackendImpl) MeshBinding(h MeshHandle, slot int, pass uint32) (TextureHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meshes[h]
	if !ok || slot < 0 || slot >= len(m.bindings) || pass >= MaxPasses {
		return 0, false
	}
	return m.bindings[slot][pass], true
}

func (b *headlessBackendImpl) MeshUniform(h MeshHandle, slot int) (mgl32.Mat4, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meshes[h]
	if !ok || slot < 0 || slot >= len(m.uniforms) {
		return mgl32.Mat4{}, false
	}
	return m.uniforms[slot], true
}

func (b *headlessBackendImpl) TextureInfo(h TextureHandle) (uint32, uint32, uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.textures[h]
	return t.width, t.height, t.mipLevels, ok
}

func (b *headlessBackendImpl) ViewpointMatrices(h ViewpointHandle, slot int) (mgl32.Mat4, mgl32.Mat4, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	vp, ok := b.viewpoints[h]
	if !ok || slot < 0 || slot >= len(vp.view) {
		return mgl32.Mat4{}, mgl32.Mat4{}, false
	}
	return vp.view[slot], vp.proj[slot], true
}

func (b *headlessBackendImpl) Presented() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presented
}

func (b *headlessBackendImpl) LastFrame() []SceneFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SceneFrame, len(b.lastFrame))
	copy(out, b.lastFrame)
	return out
}

func (b *headlessBackendImpl) SetAspectRatio(aspect float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aspect = aspect
}

// handle returns the next unused handle value. Caller must hold the mutex or be the constructor.
func (b *headlessBackendImpl) handle() uint64 {
	b.nextHandle++
	return b.nextHandle
}

// record appends c to the call log. Caller must hold the mutex.
func (b *headlessBackendImpl) record(c Call) {
	b.calls = append(b.calls, c)
}

// fail returns the injected failure for op. Frame operations fail as a lost device, everything
// else as an allocation failure. Caller must hold the mutex.
func (b *headlessBackendImpl) fail(op string) error {
	err, ok := b.failures[op]
	if !ok {
		return nil
	}
	kind := common.ErrBackendFailure
	switch op {
	case "WaitForFrameSlot", "SubmitFrame":
		kind = common.ErrBackendLost
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

func (b *headlessBackendImpl) checkSlot(slot int) error {
	if slot < 0 || slot >= b.framesInFlight {
		return fmt.Errorf("slot %d out of range [0, %d)", slot, b.framesInFlight)
	}
	return nil
}
