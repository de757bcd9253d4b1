package loaders

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// paramReader reads directive parameters and keeps the first error
type paramReader struct {
	ps  PBRTParams
	err error
}

func (r *paramReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

// float returns the first of names that is present, or def
func (r *paramReader) float(def float64, names ...string) float64 {
	for _, name := range names {
		if _, ok := r.ps[name]; ok {
			v, err := r.ps.Float(name, def)
			r.keep(err)
			return v
		}
	}
	return def
}

func (r *paramReader) spectrum(def core.Vec3, names ...string) core.Vec3 {
	for _, name := range names {
		if _, ok := r.ps[name]; ok {
			v, err := r.ps.Spectrum(name, def)
			r.keep(err)
			return v
		}
	}
	return def
}

func (r *paramReader) point(name string, def core.Vec3) core.Vec3 {
	v, err := r.ps.Point(name, def)
	r.keep(err)
	return v
}

// roughness maps pbrt's microfacet roughness to perceptual roughness.
// Remapped values are alpha², raw values are alpha.
func (r *paramReader) roughness(def float64) float64 {
	rough := def
	if _, ok := r.ps["roughness"]; ok {
		rough = r.float(def, "roughness")
	} else if _, ok := r.ps["uroughness"]; ok {
		u := r.float(def, "uroughness")
		rough = (u + r.float(u, "vroughness")) / 2
	}
	if rough < 0 {
		r.keep(fmt.Errorf("negative roughness %v", rough))
		return 0
	}
	alpha := rough
	if r.ps.Bool("remaproughness", true) {
		alpha = math.Sqrt(rough)
	}
	return math.Min(math.Sqrt(alpha), 1)
}

// ior reads a scalar index of refraction. Named glass spectra use the
// default.
func (r *paramReader) ior(def float64) float64 {
	for _, name := range []string{"eta", "index"} {
		if p, ok := r.ps[name]; ok && p.Type == "spectrum" {
			return def
		}
	}
	eta := r.float(def, "eta", "index")
	if eta <= 0 {
		r.keep(fmt.Errorf("index of refraction %v must be positive", eta))
	}
	return eta
}

// metalReflectance holds normal incidence reflectance for the named metal
// spectra
var metalReflectance = map[string]core.Vec3{
	"Ag":   core.NewVec3(0.97, 0.96, 0.91),
	"Al":   core.NewVec3(0.91, 0.92, 0.92),
	"Au":   core.NewVec3(1.00, 0.78, 0.34),
	"Cu":   core.NewVec3(0.96, 0.64, 0.54),
	"CuZn": core.NewVec3(0.94, 0.87, 0.64),
}

// conductorColor resolves a conductor's tint from an explicit reflectance,
// a named metal or a complex index of refraction. Copper is the default.
func (p *pbrtParser) conductorColor(tok pbrtToken, r *paramReader) core.Vec3 {
	if _, ok := r.ps["reflectance"]; ok {
		return r.spectrum(core.Splat(0.9), "reflectance")
	}
	eta, ok := r.ps["eta"]
	if !ok || eta.Type == "spectrum" {
		element := "Cu"
		if ok && len(eta.Values) == 1 {
			// Names look like metal-Au-eta
			parts := strings.Split(eta.Values[0], "-")
			if len(parts) == 3 {
				element = parts[1]
			}
		}
		c, known := metalReflectance[element]
		if !known {
			p.warnf(tok, "unknown metal %q rendered as copper", element)
			c = metalReflectance["Cu"]
		}
		return c
	}

	n := r.spectrum(core.Splat(1.5), "eta")
	k := r.spectrum(core.Vec3{}, "k")
	f0 := func(n, k float64) float64 {
		return ((n-1)*(n-1) + k*k) / ((n+1)*(n+1) + k*k)
	}
	return core.NewVec3(f0(n.X, k.X), f0(n.Y, k.Y), f0(n.Z, k.Z))
}

// material converts a pbrt-v3 or pbrt-v4 material. Unsupported kinds
// render as a mid gray diffuse.
func (p *pbrtParser) material(tok pbrtToken, kind string, ps PBRTParams) (material.Material, error) {
	for _, name := range slices.Sorted(maps.Keys(ps)) {
		if ps[name].Type == "texture" {
			p.warnf(tok, "texture for %q of %s material replaced by its default", name, kind)
		}
	}

	r := &paramReader{ps: ps}
	var m material.Material
	switch kind {
	case "diffuse", "matte":
		m = material.NewDiffuse(r.spectrum(core.Splat(0.5), "reflectance", "Kd"))
	case "coateddiffuse", "plastic", "substrate":
		m = material.Material{
			Albedo:    r.spectrum(core.Splat(0.5), "reflectance", "Kd"),
			Specular:  material.DefaultSpecular,
			Roughness: r.roughness(0.1),
			IOR:       1,
		}
	case "conductor", "metal":
		m = material.NewMetal(p.conductorColor(tok, r), r.roughness(0))
	case "mirror":
		m = material.NewMetal(r.spectrum(core.Splat(0.9), "Kr"), 0)
	case "dielectric", "glass", "thindielectric":
		m = material.NewGlass(r.ior(1.5), r.roughness(0))
	case "disney":
		m = material.Material{
			Albedo:    r.spectrum(core.Splat(0.5), "color"),
			Specular:  material.DefaultSpecular,
			Roughness: r.float(0.5, "roughness"),
			Metalness: r.float(0, "metallic"),
			IOR:       1,
		}
		if r.float(0, "spectrans") > 0 {
			m.IOR = r.ior(1.5)
		}
	default:
		p.warnf(tok, "unsupported material %q rendered as gray diffuse", kind)
		m = material.NewDiffuse(core.Splat(0.5))
	}
	if r.err != nil {
		return material.Material{}, r.err
	}
	if err := m.Validate(); err != nil {
		return material.Material{}, err
	}
	return m, nil
}

func (p *pbrtParser) areaLight(tok pbrtToken, d pbrtDirective) error {
	if d.args[0] != "diffuse" {
		p.warnf(tok, "unsupported area light %q", d.args[0])
		return nil
	}
	r := &paramReader{ps: d.params}
	radiance := r.spectrum(core.Splat(1), "L").MultiplyVec(r.spectrum(core.Splat(1), "scale"))
	if r.err != nil {
		return r.err
	}
	p.state.areaLight = p.addMaterial("diffuse light", material.NewEmissive(radiance))
	return nil
}

// light converts a LightSource under the current transform
func (p *pbrtParser) light(tok pbrtToken, d pbrtDirective) error {
	r := &paramReader{ps: d.params}
	xf := p.state.ctm
	scale := r.spectrum(core.Splat(1), "scale")

	var l lights.Light
	switch kind := d.args[0]; kind {
	case "point":
		from := r.point("from", core.Vec3{})
		l = lights.NewPointLight(xf.TransformPoint(from), r.spectrum(core.Splat(1), "I").MultiplyVec(scale))
	case "spot":
		from := r.point("from", core.Vec3{})
		to := r.point("to", core.NewVec3(0, 0, 1))
		cone := r.float(30, "coneangle")
		l = lights.NewSpotLight(xf.TransformPoint(from), xf.TransformPoint(to),
			r.spectrum(core.Splat(1), "I").MultiplyVec(scale), cone)
	case "distant":
		from := r.point("from", core.Vec3{})
		to := r.point("to", core.NewVec3(0, 0, 1))
		l = lights.NewDirectionalLight(xf.TransformDirection(to.Subtract(from)),
			r.spectrum(core.Splat(1), "L").MultiplyVec(scale))
	case "infinite":
		if name := d.params.String("filename", ""); name != "" {
			p.warnf(tok, "environment map %q replaced by a uniform sky", name)
		}
		l = lights.NewAmbientLight(r.spectrum(core.Splat(1), "L").MultiplyVec(scale))
	default:
		p.warnf(tok, "unsupported light %q", kind)
		return nil
	}
	if r.err != nil {
		return r.err
	}
	p.lights = append(p.lights, l)
	return nil
}

// shape converts a Shape into an object space mesh and places it
func (p *pbrtParser) shape(tok pbrtToken, d pbrtDirective) error {
	var (
		mesh *geometry.Mesh
		err  error
	)
	switch kind := d.args[0]; kind {
	case "trianglemesh":
		mesh, err = triangleMesh(d.params)
	case "loopsubdiv":
		p.warnf(tok, "loopsubdiv rendered as its control mesh")
		mesh, err = triangleMesh(d.params)
	case "bilinearmesh":
		mesh, err = bilinearMesh(d.params)
	case "plymesh":
		mesh, err = p.plyMesh(d.params)
	case "sphere":
		r := &paramReader{ps: d.params}
		radius := r.float(1, "radius")
		if r.err == nil && radius <= 0 {
			r.keep(fmt.Errorf("sphere radius %v must be positive", radius))
		}
		mesh, err = geometry.NewSphere(core.Vec3{}, radius, 16, 32, 0), r.err
	case "disk":
		mesh, err = diskMesh(d.params)
	default:
		p.warnf(tok, "unsupported shape %q", kind)
		return nil
	}
	if err != nil {
		return err
	}
	p.addShape(mesh)
	return nil
}

func triangleMesh(ps PBRTParams) (*geometry.Mesh, error) {
	positions, err := ps.Vec3s("P")
	if err != nil {
		return nil, err
	}
	indices, err := ps.Ints("indices")
	if err != nil {
		return nil, err
	}
	if indices == nil && len(positions) == 3 {
		indices = []int{0, 1, 2}
	}
	normals, err := ps.Vec3s("N")
	if err != nil {
		return nil, err
	}
	return checkedMesh("trianglemesh", positions, normals, indices)
}

// bilinearMesh splits every patch (p00, p10, p01, p11) into two triangles
// facing (p10 - p00) × (p01 - p00)
func bilinearMesh(ps PBRTParams) (*geometry.Mesh, error) {
	positions, err := ps.Vec3s("P")
	if err != nil {
		return nil, err
	}
	patches, err := ps.Ints("indices")
	if err != nil {
		return nil, err
	}
	if patches == nil && len(positions) == 4 {
		patches = []int{0, 1, 2, 3}
	}
	if len(patches)%4 != 0 {
		return nil, fmt.Errorf("bilinearmesh has %d indices, not a multiple of 4", len(patches))
	}
	normals, err := ps.Vec3s("N")
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(patches)/4*6)
	for i := 0; i < len(patches); i += 4 {
		p00, p10, p01, p11 := patches[i], patches[i+1], patches[i+2], patches[i+3]
		indices = append(indices, p00, p10, p11, p00, p11, p01)
	}
	return checkedMesh("bilinearmesh", positions, normals, indices)
}

func checkedMesh(name string, positions, normals []core.Vec3, indices []int) (*geometry.Mesh, error) {
	mesh := &geometry.Mesh{Name: name, Positions: positions, Normals: normals, Indices: indices}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if mesh.NumTriangles() == 0 {
		return nil, fmt.Errorf("%s has no faces", name)
	}
	return mesh, nil
}

// diskMesh fans a disk of the given radius at height z, facing +Z
func diskMesh(ps PBRTParams) (*geometry.Mesh, error) {
	r := &paramReader{ps: ps}
	radius := r.float(1, "radius")
	height := r.float(0, "height")
	if r.err != nil {
		return nil, r.err
	}
	if radius <= 0 {
		return nil, fmt.Errorf("disk radius %v must be positive", radius)
	}

	const segments = 32
	mesh := &geometry.Mesh{Name: "disk", Positions: []core.Vec3{core.NewVec3(0, 0, height)}}
	for i := 0; i < segments; i++ {
		s, c := math.Sincos(2 * math.Pi * float64(i) / segments)
		mesh.Positions = append(mesh.Positions, core.NewVec3(radius*c, radius*s, height))
		mesh.Indices = append(mesh.Indices, 0, 1+i, 1+(i+1)%segments)
	}
	return mesh, nil
}

// plyMesh reads the PLY file named by the filename parameter
func (p *pbrtParser) plyMesh(ps PBRTParams) (*geometry.Mesh, error) {
	name := ps.String("filename", "")
	if name == "" {
		return nil, errors.New("plymesh without a filename")
	}
	if p.fsys == nil || !fs.ValidPath(name) {
		return nil, fmt.Errorf("cannot open %q", name)
	}
	f, err := p.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	model, err := ReadPLY(f)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", name, err)
	}
	return model.Mesh, nil
}
