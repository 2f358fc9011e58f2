package common

import "github.com/go-gl/mathgl/mgl32"

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// Sphere bounds a mesh in its local space.
type Sphere struct {
	Centre mgl32.Vec3
	Radius float32
}

// ExtractFrustum extracts frustum planes from a combined projection * view matrix using the
// Gribb/Hartmann method. The near plane assumes the [0, 1] depth range produced by Projection.
//
// Parameters:
//   - viewProj: the column-major projection * view matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFrom(r3.Add(r0))
	f.Planes[FrustumRight] = planeFrom(r3.Sub(r0))
	f.Planes[FrustumBottom] = planeFrom(r3.Add(r1))
	f.Planes[FrustumTop] = planeFrom(r3.Sub(r1))
	f.Planes[FrustumNear] = planeFrom(r2)
	f.Planes[FrustumFar] = planeFrom(r3.Sub(r2))
	return f
}

// planeFrom normalizes a plane so that the normal has unit length.
func planeFrom(v mgl32.Vec4) Plane {
	p := Plane{Normal: mgl32.Vec3{v[0], v[1], v[2]}, Distance: v[3]}
	if length := p.Normal.Len(); length > 0 {
		p.Normal = p.Normal.Mul(1 / length)
		p.Distance /= length
	}
	return p
}

// IntersectsSphere reports whether any part of the sphere lies inside the frustum.
func (f Frustum) IntersectsSphere(centre mgl32.Vec3, radius float32) bool {
	for _, p := range f.Planes {
		if p.Normal.Dot(centre)+p.Distance < -radius {
			return false
		}
	}
	return true
}

// BoundingSphere returns a sphere around every vertex, centred on their bounding box.
func BoundingSphere(vertices []Vertex) Sphere {
	if len(vertices) == 0 {
		return Sphere{}
	}
	lo := mgl32.Vec3(vertices[0].Position)
	hi := lo
	for _, v := range vertices[1:] {
		for i := range 3 {
			lo[i] = min(lo[i], v.Position[i])
			hi[i] = max(hi[i], v.Position[i])
		}
	}
	centre := lo.Add(hi).Mul(0.5)
	var radius float32
	for _, v := range vertices {
		radius = max(radius, mgl32.Vec3(v.Position).Sub(centre).Len())
	}
	return Sphere{Centre: centre, Radius: radius}
}

// Transform moves the sphere into the space of model. The radius grows with the largest axis
// scale, so rotated and non-uniformly scaled bounds stay conservative.
func (s Sphere) Transform(model mgl32.Mat4) Sphere {
	centre := mgl32.TransformCoordinate(s.Centre, model)
	scale := max(model.Col(0).Vec3().Len(), model.Col(1).Vec3().Len(), model.Col(2).Vec3().Len())
	return Sphere{Centre: centre, Radius: s.Radius * scale}
}
