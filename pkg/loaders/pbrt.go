package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// PBRTCamera is the view set up by a scene file's LookAt and Camera
// directives
type PBRTCamera struct {
	Eye, LookAt, Up core.Vec3
	FOV             float64 // Degrees

	// pbrt cameras put image right along Up × forward
	LeftHanded bool
}

// PBRTScene is a pbrt-v3 or pbrt-v4 scene flattened into a single model
// and a list of lights. Shapes under an AreaLightSource carry emissive
// materials.
type PBRTScene struct {
	Camera *PBRTCamera // nil when the file sets up no camera
	Model  *Model
	Lights []lights.Light

	// Warnings lists what was skipped, one entry per directive
	Warnings []string
}

// LoadPBRT reads a pbrt scene file. Include, Import and plymesh paths are
// resolved relative to the file's directory.
func LoadPBRT(filename string) (*PBRTScene, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PBRT file: %w", err)
	}
	defer file.Close()

	scene, err := ReadPBRT(file, os.DirFS(filepath.Dir(filename)))
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", filename, err)
	}
	scene.Model.Mesh.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return scene, nil
}

// ReadPBRT parses pbrt scene text. Referenced files are opened from fsys,
// which may be nil for self-contained scenes.
func ReadPBRT(r io.Reader, fsys fs.FS) (*PBRTScene, error) {
	p := newPBRTParser(fsys)
	p.lexers = append(p.lexers, newPBRTLexer(r, "scene"))
	for {
		tok, err := p.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if err := p.directive(tok); err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %s: %w", ErrMalformed, tok.file, tok.line, tok.text, err)
		}
	}
	return p.finish()
}

var errUnexpectedEOF = errors.New("unexpected end of file")

type pbrtToken struct {
	text   string
	quoted bool
	file   string
	line   int
}

func (t pbrtToken) is(s string) bool {
	return !t.quoted && t.text == s
}

type pbrtLexer struct {
	r    *bufio.Reader
	file string
	line int
}

func newPBRTLexer(r io.Reader, file string) *pbrtLexer {
	return &pbrtLexer{r: bufio.NewReader(r), file: file, line: 1}
}

func (lx *pbrtLexer) token(text string, quoted bool) pbrtToken {
	return pbrtToken{text: text, quoted: quoted, file: lx.file, line: lx.line}
}

// next returns the following token, or io.EOF at the end of input.
// Brackets are tokens of their own and quoted strings lose their quotes.
func (lx *pbrtLexer) next() (pbrtToken, error) {
	for {
		c, err := lx.r.ReadByte()
		if err != nil {
			return pbrtToken{}, err
		}
		switch c {
		case '\n':
			lx.line++
		case ' ', '\t', '\r':
		case '#':
			if _, err := lx.r.ReadString('\n'); err != nil {
				return pbrtToken{}, err
			}
			lx.line++
		case '[', ']':
			return lx.token(string(c), false), nil
		case '"':
			s, err := lx.r.ReadString('"')
			if err != nil || strings.ContainsRune(s, '\n') {
				return pbrtToken{}, fmt.Errorf("%s:%d: unterminated string", lx.file, lx.line)
			}
			return lx.token(s[:len(s)-1], true), nil
		default:
			var sb strings.Builder
			sb.WriteByte(c)
			for {
				c, err := lx.r.ReadByte()
				if err == io.EOF {
					break
				}
				if err != nil {
					return pbrtToken{}, err
				}
				if strings.IndexByte(" \t\r\n#[]\"", c) >= 0 {
					lx.r.UnreadByte()
					break
				}
				sb.WriteByte(c)
			}
			return lx.token(sb.String(), false), nil
		}
	}
}

// PBRTParam is one typed directive parameter such as "rgb L" [1 1 1]
type PBRTParam struct {
	Type   string
	Values []string
}

// PBRTParams maps parameter names to their values
type PBRTParams map[string]PBRTParam

func (ps PBRTParams) Float(name string, def float64) (float64, error) {
	p, ok := ps[name]
	if !ok {
		return def, nil
	}
	if len(p.Values) != 1 {
		return 0, fmt.Errorf("parameter %q wants one value, got %d", name, len(p.Values))
	}
	return strconv.ParseFloat(p.Values[0], 64)
}

func (ps PBRTParams) Floats(name string) ([]float64, error) {
	p, ok := ps[name]
	if !ok {
		return nil, nil
	}
	out := make([]float64, len(p.Values))
	for i, s := range p.Values {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

func (ps PBRTParams) Ints(name string) ([]int, error) {
	p, ok := ps[name]
	if !ok {
		return nil, nil
	}
	out := make([]int, len(p.Values))
	for i, s := range p.Values {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

// Vec3s reads a flat list of triples, as used by point3 and normal arrays
func (ps PBRTParams) Vec3s(name string) ([]core.Vec3, error) {
	vals, err := ps.Floats(name)
	if err != nil {
		return nil, err
	}
	if len(vals)%3 != 0 {
		return nil, fmt.Errorf("parameter %q has %d values, not a multiple of 3", name, len(vals))
	}
	out := make([]core.Vec3, len(vals)/3)
	for i := range out {
		out[i] = core.NewVec3(vals[i*3], vals[i*3+1], vals[i*3+2])
	}
	return out, nil
}

func (ps PBRTParams) Point(name string, def core.Vec3) (core.Vec3, error) {
	if _, ok := ps[name]; !ok {
		return def, nil
	}
	vs, err := ps.Vec3s(name)
	if err != nil {
		return core.Vec3{}, err
	}
	if len(vs) != 1 {
		return core.Vec3{}, fmt.Errorf("parameter %q wants one point", name)
	}
	return vs[0], nil
}

func (ps PBRTParams) String(name, def string) string {
	p, ok := ps[name]
	if !ok || len(p.Values) == 0 {
		return def
	}
	return p.Values[0]
}

func (ps PBRTParams) Bool(name string, def bool) bool {
	switch ps.String(name, "") {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}

// Spectrum reads a color given as rgb, a blackbody temperature or a
// single float. Named spectra fall back to def.
func (ps PBRTParams) Spectrum(name string, def core.Vec3) (core.Vec3, error) {
	p, ok := ps[name]
	if !ok {
		return def, nil
	}
	vals, err := ps.Floats(name)
	switch p.Type {
	case "rgb", "color":
		if err != nil || len(vals) != 3 {
			return core.Vec3{}, fmt.Errorf("parameter %q wants three floats", name)
		}
		return core.NewVec3(vals[0], vals[1], vals[2]), nil
	case "blackbody":
		if err != nil || len(vals) == 0 {
			return core.Vec3{}, fmt.Errorf("parameter %q wants a temperature", name)
		}
		c := lights.ColorTemperature(vals[0])
		if len(vals) > 1 {
			c = c.Multiply(vals[1])
		}
		return c, nil
	case "float":
		if err != nil || len(vals) != 1 {
			return core.Vec3{}, fmt.Errorf("parameter %q wants one float", name)
		}
		return core.Splat(vals[0]), nil
	default:
		return def, nil
	}
}

// pbrtDirective holds the leading quoted arguments and parameter list of
// a directive
type pbrtDirective struct {
	args   []string
	params PBRTParams
}

// pbrtState is the graphics state saved by AttributeBegin
type pbrtState struct {
	ctm       core.Mat4
	material  int // Slot in the model's material table, -1 for the default
	areaLight int // Emissive slot for shapes, -1 outside area lights
	reverse   bool
}

type pbrtObject struct {
	name string
	mesh *geometry.Mesh
}

type pbrtParser struct {
	fsys   fs.FS
	lexers []*pbrtLexer
	peeked *pbrtToken

	state   pbrtState
	stack   []pbrtState
	coords  map[string]core.Mat4
	named   map[string]int
	objects map[string]*geometry.Mesh
	object  *pbrtObject // Open ObjectBegin block

	camera *PBRTCamera
	mesh   *geometry.Mesh
	model  *Model
	lights []lights.Light
	warn   []string
}

func newPBRTParser(fsys fs.FS) *pbrtParser {
	return &pbrtParser{
		fsys:    fsys,
		state:   pbrtState{ctm: core.Identity(), material: -1, areaLight: -1},
		coords:  make(map[string]core.Mat4),
		named:   make(map[string]int),
		objects: make(map[string]*geometry.Mesh),
		mesh:    &geometry.Mesh{},
		model:   &Model{},
	}
}

// next returns the following token across included files
func (p *pbrtParser) next() (pbrtToken, error) {
	if p.peeked != nil {
		tok := *p.peeked
		p.peeked = nil
		return tok, nil
	}
	for len(p.lexers) > 0 {
		tok, err := p.lexers[len(p.lexers)-1].next()
		if err == io.EOF {
			p.lexers = p.lexers[:len(p.lexers)-1]
			continue
		}
		return tok, err
	}
	return pbrtToken{}, io.EOF
}

func (p *pbrtParser) peek() (pbrtToken, error) {
	if p.peeked == nil {
		tok, err := p.next()
		if err != nil {
			return tok, err
		}
		p.peeked = &tok
	}
	return *p.peeked, nil
}

func (p *pbrtParser) warnf(tok pbrtToken, format string, args ...any) {
	p.warn = append(p.warn, fmt.Sprintf("%s:%d: ", tok.file, tok.line)+fmt.Sprintf(format, args...))
}

// quoted reads one quoted string argument
func (p *pbrtParser) quoted() (string, error) {
	tok, err := p.next()
	if err == io.EOF {
		return "", errUnexpectedEOF
	}
	if err != nil {
		return "", err
	}
	if !tok.quoted {
		return "", fmt.Errorf("expected a quoted string, got %q", tok.text)
	}
	return tok.text, nil
}

// numbers reads n bare numbers, optionally wrapped in brackets
func (p *pbrtParser) numbers(n int) ([]float64, error) {
	tok, err := p.peek()
	if err != nil && err != io.EOF {
		return nil, err
	}
	bracketed := err == nil && tok.is("[")
	if bracketed {
		p.next()
	}
	out := make([]float64, n)
	for i := range out {
		tok, err := p.next()
		if err == io.EOF {
			return nil, errUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if out[i], err = strconv.ParseFloat(tok.text, 64); err != nil || tok.quoted {
			return nil, fmt.Errorf("expected %d numbers, got %q", n, tok.text)
		}
	}
	if bracketed {
		if tok, err := p.next(); err != nil || !tok.is("]") {
			return nil, errors.New("missing ]")
		}
	}
	return out, nil
}

// params reads "type name" value pairs up to the next directive
func (p *pbrtParser) params() (PBRTParams, error) {
	ps := make(PBRTParams)
	for {
		tok, err := p.peek()
		if err == io.EOF || (err == nil && !tok.quoted) {
			return ps, nil
		}
		if err != nil {
			return nil, err
		}
		p.next()

		decl := strings.Fields(tok.text)
		if len(decl) != 2 {
			return nil, fmt.Errorf("bad parameter declaration %q", tok.text)
		}
		values, err := p.values()
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", decl[1], err)
		}
		ps[decl[1]] = PBRTParam{Type: decl[0], Values: values}
	}
}

// values reads a single value or a bracketed list
func (p *pbrtParser) values() ([]string, error) {
	tok, err := p.next()
	if err == io.EOF {
		return nil, errUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	if !tok.is("[") {
		return []string{tok.text}, nil
	}
	var out []string
	for {
		tok, err := p.next()
		if err == io.EOF {
			return nil, errUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if tok.is("]") {
			return out, nil
		}
		out = append(out, tok.text)
	}
}

// read parses the quoted arguments and parameters of a directive. A
// negative nargs takes every quoted argument that is not a parameter
// declaration.
func (p *pbrtParser) read(nargs int) (pbrtDirective, error) {
	var d pbrtDirective
	for i := 0; i < nargs; i++ {
		arg, err := p.quoted()
		if err != nil {
			return d, err
		}
		d.args = append(d.args, arg)
	}
	for nargs < 0 {
		tok, err := p.peek()
		if err != nil || !tok.quoted || strings.ContainsAny(tok.text, " \t") {
			break
		}
		p.next()
		d.args = append(d.args, tok.text)
	}
	var err error
	d.params, err = p.params()
	return d, err
}

func (p *pbrtParser) transform(m core.Mat4) {
	p.state.ctm = p.state.ctm.Mul(m)
}

func (p *pbrtParser) directive(tok pbrtToken) error {
	if tok.quoted || tok.is("[") || tok.is("]") {
		return fmt.Errorf("expected a directive, got %q", tok.text)
	}

	switch tok.text {
	case "WorldBegin":
		if p.camera == nil {
			if err := p.setCamera(tok, pbrtDirective{args: []string{"perspective"}, params: PBRTParams{}}); err != nil {
				return err
			}
		}
		p.coords["world"] = core.Identity()
		p.state.ctm = core.Identity()
	case "WorldEnd":
	case "AttributeBegin", "TransformBegin":
		p.stack = append(p.stack, p.state)
	case "AttributeEnd", "TransformEnd":
		if len(p.stack) == 0 {
			return errors.New("no matching begin")
		}
		saved := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if tok.text == "TransformEnd" {
			p.state.ctm = saved.ctm
		} else {
			p.state = saved
		}
	case "Identity":
		p.state.ctm = core.Identity()
	case "Translate":
		v, err := p.numbers(3)
		if err != nil {
			return err
		}
		p.transform(core.NewTranslation(core.NewVec3(v[0], v[1], v[2])))
	case "Scale":
		v, err := p.numbers(3)
		if err != nil {
			return err
		}
		p.transform(core.NewScale(core.NewVec3(v[0], v[1], v[2])))
	case "Rotate":
		v, err := p.numbers(4)
		if err != nil {
			return err
		}
		p.transform(core.NewRotation(v[0], core.NewVec3(v[1], v[2], v[3])))
	case "LookAt":
		v, err := p.numbers(9)
		if err != nil {
			return err
		}
		m, err := lookAt(core.NewVec3(v[0], v[1], v[2]), core.NewVec3(v[3], v[4], v[5]), core.NewVec3(v[6], v[7], v[8]))
		if err != nil {
			return err
		}
		p.transform(m)
	case "Transform", "ConcatTransform":
		v, err := p.numbers(16)
		if err != nil {
			return err
		}
		// Column-major in the file
		var m core.Mat4
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				m[row*4+col] = v[col*4+row]
			}
		}
		if tok.text == "Transform" {
			p.state.ctm = m
		} else {
			p.transform(m)
		}
	case "CoordinateSystem", "CoordSysTransform":
		name, err := p.quoted()
		if err != nil {
			return err
		}
		if tok.text == "CoordinateSystem" {
			p.coords[name] = p.state.ctm
		} else if m, ok := p.coords[name]; ok {
			p.state.ctm = m
		} else {
			p.warnf(tok, "unknown coordinate system %q", name)
		}
	case "ReverseOrientation":
		p.state.reverse = !p.state.reverse
	case "Camera":
		d, err := p.read(1)
		if err != nil {
			return err
		}
		return p.setCamera(tok, d)
	case "Material":
		d, err := p.read(1)
		if err != nil {
			return err
		}
		m, err := p.material(tok, d.args[0], d.params)
		if err != nil {
			return err
		}
		p.state.material = p.addMaterial(d.args[0], m)
	case "MakeNamedMaterial":
		d, err := p.read(1)
		if err != nil {
			return err
		}
		m, err := p.material(tok, d.params.String("type", ""), d.params)
		if err != nil {
			return err
		}
		p.named[d.args[0]] = p.addMaterial(d.args[0], m)
	case "NamedMaterial":
		name, err := p.quoted()
		if err != nil {
			return err
		}
		slot, ok := p.named[name]
		if !ok {
			return fmt.Errorf("unknown material %q", name)
		}
		p.state.material = slot
	case "AreaLightSource":
		d, err := p.read(1)
		if err != nil {
			return err
		}
		return p.areaLight(tok, d)
	case "LightSource":
		d, err := p.read(1)
		if err != nil {
			return err
		}
		return p.light(tok, d)
	case "Shape":
		d, err := p.read(1)
		if err != nil {
			return err
		}
		return p.shape(tok, d)
	case "ObjectBegin":
		name, err := p.quoted()
		if err != nil {
			return err
		}
		if p.object != nil {
			return fmt.Errorf("object %q opened inside %q", name, p.object.name)
		}
		p.stack = append(p.stack, p.state)
		p.object = &pbrtObject{name: name, mesh: &geometry.Mesh{}}
	case "ObjectEnd":
		if p.object == nil || len(p.stack) == 0 {
			return errors.New("no matching ObjectBegin")
		}
		p.objects[p.object.name] = p.object.mesh
		p.object = nil
		p.state = p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
	case "ObjectInstance":
		name, err := p.quoted()
		if err != nil {
			return err
		}
		obj, ok := p.objects[name]
		if !ok {
			return fmt.Errorf("unknown object %q", name)
		}
		p.mesh.Append(obj.Transform(p.state.ctm), 0)
	case "Include", "Import":
		name, err := p.quoted()
		if err != nil {
			return err
		}
		return p.include(name)
	case "Texture":
		if _, err := p.read(3); err != nil {
			return err
		}
		p.warnf(tok, "textures are not supported")
	case "Film", "Sampler", "Integrator", "PixelFilter", "Accelerator", "ColorSpace",
		"MakeNamedMedium", "MediumInterface", "Option", "Attribute":
		// Render settings come from the command line
		if _, err := p.read(-1); err != nil {
			return err
		}
	default:
		return errors.New("unknown directive")
	}
	return nil
}

// include pushes a lexer for a file named relative to the scene
func (p *pbrtParser) include(name string) error {
	if p.fsys == nil || !fs.ValidPath(name) {
		return fmt.Errorf("cannot open %q", name)
	}
	data, err := fs.ReadFile(p.fsys, name)
	if err != nil {
		return err
	}
	p.lexers = append(p.lexers, newPBRTLexer(strings.NewReader(string(data)), name))
	return nil
}

// lookAt returns the world to camera transform of a camera at eye
func lookAt(eye, target, up core.Vec3) (core.Mat4, error) {
	dir := target.Subtract(eye).Normalize()
	right := up.Normalize().Cross(dir)
	if right.Length() < 1e-9 {
		return core.Mat4{}, errors.New("up vector is parallel to the view direction")
	}
	right = right.Normalize()
	newUp := dir.Cross(right)
	cameraToWorld := core.Mat4{
		right.X, newUp.X, dir.X, eye.X,
		right.Y, newUp.Y, dir.Y, eye.Y,
		right.Z, newUp.Z, dir.Z, eye.Z,
		0, 0, 0, 1,
	}
	m, _ := cameraToWorld.Inverse()
	return m, nil
}

// setCamera records the camera at the current transform, which maps world
// space to camera space
func (p *pbrtParser) setCamera(tok pbrtToken, d pbrtDirective) error {
	cameraToWorld, ok := p.state.ctm.Inverse()
	if !ok {
		return errors.New("camera transform is singular")
	}
	if d.args[0] != "perspective" {
		p.warnf(tok, "%s camera rendered as perspective", d.args[0])
	}
	fov, err := d.params.Float("fov", 90)
	if err != nil {
		return err
	}
	if fov <= 0 || fov >= 180 {
		return fmt.Errorf("fov %v outside (0, 180)", fov)
	}

	eye := cameraToWorld.TransformPoint(core.Vec3{})
	p.camera = &PBRTCamera{
		Eye:        eye,
		LookAt:     eye.Add(cameraToWorld.TransformDirection(core.NewVec3(0, 0, 1))),
		Up:         cameraToWorld.TransformDirection(core.NewVec3(0, 1, 0)),
		FOV:        fov,
		LeftHanded: cameraToWorld.Determinant() > 0,
	}
	p.coords["camera"] = cameraToWorld
	return nil
}

func (p *pbrtParser) addMaterial(name string, m material.Material) int {
	p.model.Materials = append(p.model.Materials, m)
	p.model.MaterialNames = append(p.model.MaterialNames, name)
	return len(p.model.Materials) - 1
}

// addShape places an object space mesh under the current graphics state
func (p *pbrtParser) addShape(mesh *geometry.Mesh) {
	slot := p.state.material
	if p.state.areaLight >= 0 {
		slot = p.state.areaLight
	}
	mesh.FaceMaterials = make([]int, mesh.NumTriangles())
	for i := range mesh.FaceMaterials {
		mesh.FaceMaterials[i] = slot
	}
	if p.state.reverse {
		mesh.FlipWinding()
	}
	world := mesh.Transform(p.state.ctm)
	if p.object != nil {
		p.object.mesh.Append(world, 0)
		return
	}
	p.mesh.Append(world, 0)
}

func (p *pbrtParser) finish() (*PBRTScene, error) {
	if len(p.stack) > 0 {
		return nil, fmt.Errorf("%w: %d unclosed AttributeBegin", ErrMalformed, len(p.stack))
	}
	if p.mesh.NumTriangles() == 0 {
		return nil, fmt.Errorf("%w: no shapes", ErrMalformed)
	}
	if err := p.mesh.Validate(); err != nil {
		return nil, err
	}
	p.model.Mesh = p.mesh
	return &PBRTScene{
		Camera:   p.camera,
		Model:    p.model,
		Lights:   p.lights,
		Warnings: p.warn,
	}, nil
}
