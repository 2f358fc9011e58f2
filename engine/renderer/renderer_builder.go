package renderer

// rendererConfig is the configuration collected from builder options before the GPU backend is created.
type rendererConfig struct {
	framesInFlight       int
	presentMode          PresentMode
	sampleCount          MSAASampleCount
	forceFallbackAdapter bool
	clearColor           [4]float64
}

// RendererBuilderOption is a functional option applied to the WebGPU backend during construction via NewRenderer.
type RendererBuilderOption func(*rendererConfig)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count. The default is MSAAOff.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.sampleCount = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithFramesInFlight sets the number of frame slots. Values below 1 are ignored.
//
// Parameters:
//   - n: the number of frame slots
//
// Returns:
//   - RendererBuilderOption: a function that applies the frame slot option
func WithFramesInFlight(n int) RendererBuilderOption {
	return func(c *rendererConfig) {
		if n > 0 {
			c.framesInFlight = n
		}
	}
}

// WithClearColor sets the colour the frame is cleared to before scenes are drawn.
//
// Parameters:
//   - r, g, b, a: colour components in [0, 1]
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear colour option
func WithClearColor(r, g, b, a float64) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.clearColor = [4]float64{r, g, b, a}
	}
}

// HeadlessBuilderOption is a functional option applied to a headless backend via NewHeadlessBackend.
type HeadlessBuilderOption func(*headlessBackendImpl)

// WithHeadlessFramesInFlight sets the number of frame slots of a headless backend. Values below 1 are ignored.
func WithHeadlessFramesInFlight(n int) HeadlessBuilderOption {
	return func(b *headlessBackendImpl) {
		if n > 0 {
			b.framesInFlight = n
		}
	}
}

// WithHeadlessAspectRatio sets the aspect ratio the headless backend reports. Non-positive values are ignored.
func WithHeadlessAspectRatio(aspect float32) HeadlessBuilderOption {
	return func(b *headlessBackendImpl) {
		if aspect > 0 {
			b.aspect = aspect
		}
	}
}

// WithCloseAfter makes PresentFrame report ShouldClose once n frames have been presented.
// Zero presents forever.
func WithCloseAfter(n int) HeadlessBuilderOption {
	return func(b *headlessBackendImpl) {
		b.closeAfter = max(n, 0)
	}
}

// WithFailure makes every call of the named backend operation fail with err. Frame operations wrap
// common.ErrBackendLost, allocations wrap common.ErrBackendFailure.
//
// Parameters:
//   - op: the method name, e.g. "CreateMesh" or "SubmitFrame"
//   - err: the cause to report
//
// Returns:
//   - HeadlessBuilderOption: a function that applies the failure injection
func WithFailure(op string, err error) HeadlessBuilderOption {
	return func(b *headlessBackendImpl) {
		b.failures[op] = err
	}
}
