package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// viewpointUniformSize is the view matrix followed by the projection matrix.
const viewpointUniformSize = 128

type wgpuMesh struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   uint32
	indexFormat  wgpu.IndexFormat

	// one of each per frame slot
	uniforms   []*wgpu.Buffer
	bindGroups []*wgpu.BindGroup
	bindings   [][MaxPasses]TextureHandle
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

type wgpuViewpoint struct {
	cameras    []*wgpu.Buffer
	lights     []*wgpu.Buffer
	bindGroups []*wgpu.BindGroup
}

type wgpuBackendImpl struct {
	mu  *sync.Mutex
	cfg rendererConfig
	win window.Window

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat    wgpu.TextureFormat
	width, height    uint32
	msaaTextureView  *wgpu.TextureView
	depthTextureView *wgpu.TextureView
	surfaceStale     bool

	pipeline    *wgpu.RenderPipeline
	frameLayout *wgpu.BindGroupLayout
	meshLayout  *wgpu.BindGroupLayout

	// surface texture acquired by SubmitFrame, released by PresentFrame
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// last submission per frame slot
	submissions []wgpu.SubmissionIndex
	submitted   []bool

	nextHandle     uint64
	defaultTexture TextureHandle
	meshes         map[MeshHandle]*wgpuMesh
	textures       map[TextureHandle]*wgpuTexture
	viewpoints     map[ViewpointHandle]*wgpuViewpoint
	closed         bool
}

var _ Backend = &wgpuBackendImpl{}

func newWGPUBackend(win window.Window, sh shader.Shader, cfg rendererConfig) (Backend, error) {
	b := &wgpuBackendImpl{
		mu:          &sync.Mutex{},
		cfg:         cfg,
		win:         win,
		instance:    wgpu.CreateInstance(nil),
		submissions: make([]wgpu.SubmissionIndex, cfg.framesInFlight),
		submitted:   make([]bool, cfg.framesInFlight),
		meshes:      make(map[MeshHandle]*wgpuMesh),
		textures:    make(map[TextureHandle]*wgpuTexture),
		viewpoints:  make(map[ViewpointHandle]*wgpuViewpoint),
	}
	b.surface = b.instance.CreateSurface(win.SurfaceDescriptor())

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w: %w", common.ErrBackendLost, err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Render Server Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w: %w", common.ErrBackendLost, err)
	}
	b.device = d
	b.queue = d.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return nil, fmt.Errorf("surface reports no formats: %w", common.ErrBackendLost)
	}
	b.surfaceFormat = capabilities.Formats[0]
	if err := b.configureSurface(); err != nil {
		return nil, err
	}

	if err := b.createPipeline(sh); err != nil {
		return nil, fmt.Errorf("failed to create mesh pipeline: %w: %w", common.ErrBackendLost, err)
	}

	b.defaultTexture, err = b.createTexture(common.SolidImage(1, 1, [4]byte{255, 0, 255, 255}), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create default texture: %w", err)
	}
	return b, nil
}

// configureSurface (re)configures the swapchain and the MSAA and depth targets at the window's
// framebuffer size. A zero-sized window (minimised) leaves the surface stale.
func (b *wgpuBackendImpl) configureSurface() error {
	width, height := b.win.Width(), b.win.Height()
	if width <= 0 || height <= 0 {
		b.surfaceStale = true
		return nil
	}
	b.width, b.height = uint32(width), uint32(height)

	presentMode := wgpu.PresentModeFifo
	if b.cfg.presentMode == PresentModeUncapped {
		presentMode = wgpu.PresentModeImmediate
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       b.width,
		Height:      b.height,
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}

	count := uint32(b.cfg.sampleCount)
	size := wgpu.Extent3D{Width: b.width, Height: b.height, DepthOrArrayLayers: 1}
	if count > 1 {
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("failed to create MSAA texture: %w: %w", common.ErrBackendLost, err)
		}
		if b.msaaTextureView, err = msaaTexture.CreateView(nil); err != nil {
			return fmt.Errorf("failed to create MSAA view: %w: %w", common.ErrBackendLost, err)
		}
	}

	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth texture: %w: %w", common.ErrBackendLost, err)
	}
	if b.depthTextureView, err = depthTexture.CreateView(nil); err != nil {
		return fmt.Errorf("failed to create depth view: %w: %w", common.ErrBackendLost, err)
	}

	b.surfaceStale = false
	return nil
}

func (b *wgpuBackendImpl) createPipeline(sh shader.Shader) error {
	module, err := b.device.CreateShaderModule(sh.Module())
	if err != nil {
		return err
	}

	descriptors := sh.BindGroupLayoutDescriptors()
	frameDesc, meshDesc := descriptors[0], descriptors[1]
	frameDesc.Label = "Frame Bind Group Layout"
	meshDesc.Label = "Mesh Bind Group Layout"
	if b.frameLayout, err = b.device.CreateBindGroupLayout(&frameDesc); err != nil {
		return fmt.Errorf("failed to create bind group layout for group 0: %w", err)
	}
	if b.meshLayout, err = b.device.CreateBindGroupLayout(&meshDesc); err != nil {
		return fmt.Errorf("failed to create bind group layout for group 1: %w", err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            sh.Key(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.frameLayout, b.meshLayout},
	})
	if err != nil {
		return err
	}

	b.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  sh.Key() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: sh.VertexEntryPoint(),
			Buffers:    sh.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: sh.FragmentEntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.cfg.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	return err
}

func (b *wgpuBackendImpl) FramesInFlight() int {
	return b.cfg.framesInFlight
}

func (b *wgpuBackendImpl) CreateMesh(mesh common.MergedMesh) (MeshHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return 0, fmt.Errorf("mesh has no geometry: %w", common.ErrBackendFailure)
	}

	m := &wgpuMesh{
		indexCount:  uint32(len(mesh.Indices)),
		indexFormat: wgpu.IndexFormatUint16,
		uniforms:    make([]*wgpu.Buffer, b.cfg.framesInFlight),
		bindGroups:  make([]*wgpu.BindGroup, b.cfg.framesInFlight),
		bindings:    make([][MaxPasses]TextureHandle, b.cfg.framesInFlight),
	}
	if mesh.Format == common.IndexFormatUint32 {
		m.indexFormat = wgpu.IndexFormatUint32
	}

	var err error
	vertexData := common.SliceToBytes(mesh.Vertices)
	if m.vertexBuffer, err = b.uploadBuffer("Vertex Buffer", vertexData, wgpu.BufferUsageVertex); err != nil {
		return 0, err
	}
	indexData := mesh.IndexBytes()
	// WriteBuffer sizes must be a multiple of 4.
	if pad := len(indexData) % 4; pad != 0 {
		indexData = append(indexData, make([]byte, 4-pad)...)
	}
	if m.indexBuffer, err = b.uploadBuffer("Index Buffer", indexData, wgpu.BufferUsageIndex); err != nil {
		b.releaseMesh(m)
		return 0, err
	}

	identity := mgl32.Ident4()
	for slot := range b.cfg.framesInFlight {
		if m.uniforms[slot], err = b.uploadBuffer("Model Uniform", common.SliceToBytes(identity[:]), wgpu.BufferUsageUniform); err != nil {
			b.releaseMesh(m)
			return 0, err
		}
		for pass := range MaxPasses {
			m.bindings[slot][pass] = b.defaultTexture
		}
		if m.bindGroups[slot], err = b.meshBindGroup(m.uniforms[slot], b.textures[b.defaultTexture]); err != nil {
			b.releaseMesh(m)
			return 0, err
		}
	}

	h := MeshHandle(b.handle())
	b.meshes[h] = m
	return h, nil
}

func (b *wgpuBackendImpl) WriteMeshUniform(h MeshHandle, slot int, model mgl32.Mat4) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meshes[h]
	if !ok {
		return fmt.Errorf("unknown mesh %d", h)
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	b.queue.WriteBuffer(m.uniforms[slot], 0, common.SliceToBytes(model[:]))
	return nil
}

func (b *wgpuBackendImpl) BindMeshTexture(h MeshHandle, slot int, pass uint32, tex TextureHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meshes[h]
	if !ok {
		return fmt.Errorf("unknown mesh %d", h)
	}
	t, ok := b.textures[tex]
	if !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if pass >= MaxPasses {
		return fmt.Errorf("pass %d out of range [0, %d)", pass, MaxPasses)
	}

	group, err := b.meshBindGroup(m.uniforms[slot], t)
	if err != nil {
		return err
	}
	if m.bindGroups[slot] != nil {
		m.bindGroups[slot].Release()
	}
	m.bindGroups[slot] = group
	m.bindings[slot][pass] = tex
	return nil
}

func (b *wgpuBackendImpl) DestroyMesh(h MeshHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.meshes[h]; ok {
		b.releaseMesh(m)
		delete(b.meshes, h)
	}
}

func (b *wgpuBackendImpl) CreateTexture(img *common.ImportedImage, mipLevels uint32) (TextureHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createTexture(img, mipLevels)
}

func (b *wgpuBackendImpl) createTexture(img *common.ImportedImage, mipLevels uint32) (TextureHandle, error) {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return 0, fmt.Errorf("empty image: %w", common.ErrBackendFailure)
	}
	mipLevels = max(mipLevels, 1)

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "Mesh Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              img.Width,
			Height:             img.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: mipLevels,
		SampleCount:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create texture: %w: %w", common.ErrBackendFailure, err)
	}

	for level, data := range img.MipChain(mipLevels) {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			data.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  data.Width * 4,
				RowsPerImage: data.Height,
			},
			&wgpu.Extent3D{
				Width:              data.Width,
				Height:             data.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("failed to create texture view: %w: %w", common.ErrBackendFailure, err)
	}
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Mesh Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   float32(mipLevels),
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return 0, fmt.Errorf("failed to create sampler: %w: %w", common.ErrBackendFailure, err)
	}

	h := TextureHandle(b.handle())
	b.textures[h] = &wgpuTexture{texture: tex, view: view, sampler: samp}
	return h, nil
}

func (b *wgpuBackendImpl) DestroyTexture(h TextureHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h == b.defaultTexture {
		return
	}
	if t, ok := b.textures[h]; ok {
		t.release()
		delete(b.textures, h)
	}
}

func (b *wgpuBackendImpl) DefaultTexture() TextureHandle {
	return b.defaultTexture
}

func (b *wgpuBackendImpl) CreateViewpoint() (ViewpointHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.cfg.framesInFlight
	vp := &wgpuViewpoint{
		cameras:    make([]*wgpu.Buffer, n),
		lights:     make([]*wgpu.Buffer, n),
		bindGroups: make([]*wgpu.BindGroup, n),
	}
	for slot := range n {
		var err error
		if vp.cameras[slot], err = b.uploadBuffer("Viewpoint Uniform", make([]byte, viewpointUniformSize), wgpu.BufferUsageUniform); err != nil {
			vp.release()
			return 0, err
		}
		if vp.lights[slot], err = b.uploadBuffer("Light Uniform", light.MarshalLights(nil), wgpu.BufferUsageUniform); err != nil {
			vp.release()
			return 0, err
		}
		vp.bindGroups[slot], err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  "Frame Bind Group",
			Layout: b.frameLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: vp.cameras[slot], Offset: 0, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: vp.lights[slot], Offset: 0, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			vp.release()
			return 0, fmt.Errorf("failed to create frame bind group: %w: %w", common.ErrBackendFailure, err)
		}
	}

	h := ViewpointHandle(b.handle())
	b.viewpoints[h] = vp
	return h, nil
}

func (b *wgpuBackendImpl) WriteViewpoint(h ViewpointHandle, slot int, view, proj mgl32.Mat4) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	vp, ok := b.viewpoints[h]
	if !ok {
		return fmt.Errorf("unknown viewpoint %d", h)
	}
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	data := make([]byte, 0, viewpointUniformSize)
	data = append(data, common.SliceToBytes(view[:])...)
	data = append(data, common.SliceToBytes(proj[:])...)
	b.queue.WriteBuffer(vp.cameras[slot], 0, data)
	return nil
}

func (b *wgpuBackendImpl) DestroyViewpoint(h ViewpointHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if vp, ok := b.viewpoints[h]; ok {
		vp.release()
		delete(b.viewpoints, h)
	}
}

func (b *wgpuBackendImpl) AspectRatio() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.height == 0 {
		return 1
	}
	return float32(b.width) / float32(b.height)
}

func (b *wgpuBackendImpl) WaitForFrameSlot(slot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if !b.submitted[slot] {
		return nil
	}
	b.device.Poll(true, &wgpu.WrappedSubmissionIndex{
		Queue:           b.queue,
		SubmissionIndex: b.submissions[slot],
	})
	b.submitted[slot] = false
	return nil
}

func (b *wgpuBackendImpl) SubmitFrame(frames []SceneFrame, slot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkSlot(slot); err != nil {
		return err
	}
	if b.surfaceStale {
		return nil
	}
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented: %w", common.ErrBackendLost)
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		// Out of date or lost: present reports it and the server recreates the surface.
		common.Logger().Debug("surface texture unavailable", "error", err)
		b.surfaceStale = true
		return nil
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("failed to create surface view: %w: %w", common.ErrBackendLost, err)
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return fmt.Errorf("failed to create command encoder: %w: %w", common.ErrBackendLost, err)
	}

	colour := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpClear,
		StoreOp: wgpu.StoreOpStore,
		ClearValue: wgpu.Color{
			R: b.cfg.clearColor[0], G: b.cfg.clearColor[1], B: b.cfg.clearColor[2], A: b.cfg.clearColor[3],
		},
	}
	if b.msaaTextureView != nil {
		colour.View = b.msaaTextureView
		colour.ResolveTarget = view
		colour.StoreOp = wgpu.StoreOpDiscard
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{colour},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})

	pass.SetPipeline(b.pipeline)
	for _, frame := range frames {
		vp, ok := b.viewpoints[frame.Viewpoint]
		if !ok {
			continue
		}
		b.queue.WriteBuffer(vp.lights[slot], 0, light.MarshalLights(frame.Lights))
		pass.SetBindGroup(0, vp.bindGroups[slot], nil)
		for _, h := range frame.Meshes {
			m, ok := b.meshes[h]
			if !ok {
				continue
			}
			pass.SetBindGroup(1, m.bindGroups[slot], nil)
			pass.SetVertexBuffer(0, m.vertexBuffer, 0, wgpu.WholeSize)
			pass.SetIndexBuffer(m.indexBuffer, m.indexFormat, 0, wgpu.WholeSize)
			pass.DrawIndexed(m.indexCount, 1, 0, 0, 0)
		}
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return fmt.Errorf("failed to finish command encoder: %w: %w", common.ErrBackendLost, err)
	}
	b.submissions[slot] = b.queue.Submit(commandBuffer)
	b.submitted[slot] = true
	commandBuffer.Release()

	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuBackendImpl) PresentFrame() PresentResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result PresentResult
	if b.frameSurface != nil {
		b.surface.Present()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameView = nil
		b.frameSurface = nil
		result.OK = true
	}

	if b.closed || !b.win.PollEvents() {
		result.ShouldClose = true
	}
	if b.win.TakeResize() || b.surfaceStale {
		result.ShouldRecreateSurface = true
	}
	return result
}

func (b *wgpuBackendImpl) RecreateSurface() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configureSurface()
}

func (b *wgpuBackendImpl) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for slot := range b.submitted {
		if b.submitted[slot] {
			b.device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: b.queue, SubmissionIndex: b.submissions[slot]})
		}
	}
	for h, m := range b.meshes {
		b.releaseMesh(m)
		delete(b.meshes, h)
	}
	for h, t := range b.textures {
		t.release()
		delete(b.textures, h)
	}
	for h, vp := range b.viewpoints {
		vp.release()
		delete(b.viewpoints, h)
	}
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	b.pipeline.Release()
	b.frameLayout.Release()
	b.meshLayout.Release()
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
	return b.win.Close()
}

// uploadBuffer creates a buffer of the given usage (plus CopyDst) holding data.
func (b *wgpuBackendImpl) uploadBuffer(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(len(data)),
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w: %w", label, common.ErrBackendFailure, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (b *wgpuBackendImpl) meshBindGroup(uniform *wgpu.Buffer, t *wgpuTexture) (*wgpu.BindGroup, error) {
	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Mesh Bind Group",
		Layout: b.meshLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniform, Offset: 0, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: t.view},
			{Binding: 2, Sampler: t.sampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh bind group: %w: %w", common.ErrBackendFailure, err)
	}
	return group, nil
}

func (b *wgpuBackendImpl) releaseMesh(m *wgpuMesh) {
	for _, g := range m.bindGroups {
		if g != nil {
			g.Release()
		}
	}
	for _, u := range m.uniforms {
		if u != nil {
			u.Release()
		}
	}
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
	}
}

func (t *wgpuTexture) release() {
	t.sampler.Release()
	t.view.Release()
	t.texture.Release()
}

func (vp *wgpuViewpoint) release() {
	for _, g := range vp.bindGroups {
		if g != nil {
			g.Release()
		}
	}
	for _, buf := range vp.cameras {
		if buf != nil {
			buf.Release()
		}
	}
	for _, buf := range vp.lights {
		if buf != nil {
			buf.Release()
		}
	}
}

func (b *wgpuBackendImpl) handle() uint64 {
	b.nextHandle++
	return b.nextHandle
}

func (b *wgpuBackendImpl) checkSlot(slot int) error {
	if slot < 0 || slot >= b.cfg.framesInFlight {
		return fmt.Errorf("slot %d out of range [0, %d)", slot, b.cfg.framesInFlight)
	}
	return nil
}
