package loaders

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// MTLMaterial holds the raw values of one newmtl block
type MTLMaterial struct {
	Name      string
	Diffuse   core.Vec3 // Kd
	Specular  core.Vec3 // Ks
	Emissive  core.Vec3 // Ke
	IOR       float64   // Ni
	Shininess float64   // Ns
	Dissolve  float64   // d
	Illum     int
}

// A block that omits d stays dielectric, and one that omits Ns is fully rough
func newMTLMaterial(name string) *MTLMaterial {
	return &MTLMaterial{Name: name, IOR: 1, Shininess: 1}
}

// Material converts the MTL parameters to a BSDF material. Colors are
// linearized with gamma 2.2 and scaled by the illumination model number,
// which acts as an intensity multiplier.
func (m *MTLMaterial) Material() material.Material {
	k := float64(m.Illum)
	if k <= 0 {
		k = 1
	}
	return material.Material{
		Albedo:    m.Diffuse.Pow(2.2).Multiply(k),
		Specular:  m.Specular.Pow(2.2).Multiply(k * 0.04),
		Emissive:  m.Emissive.Multiply(k / (4 * math.Pi)),
		Metalness: core.Saturate(m.Dissolve),
		Roughness: math.Max(0.1, core.Saturate(m.Shininess)),
		IOR:       m.IOR,
	}
}

// ReadMTL parses a material library. Unknown statements are ignored.
func ReadMTL(r io.Reader) ([]*MTLMaterial, error) {
	var (
		materials []*MTLMaterial
		current   *MTLMaterial
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(stripComment(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: newmtl without a name", lineNo)
			}
			current = newMTLMaterial(strings.Join(fields[1:], " "))
			materials = append(materials, current)
			continue
		}
		if current == nil {
			continue
		}

		var err error
		switch fields[0] {
		case "Kd":
			current.Diffuse, err = parseVec3(fields[1:])
		case "Ks":
			current.Specular, err = parseVec3(fields[1:])
		case "Ke":
			current.Emissive, err = parseVec3(fields[1:])
		case "Ni":
			current.IOR, err = parseFloat(fields[1:])
		case "Ns":
			current.Shininess, err = parseFloat(fields[1:])
		case "d":
			current.Dissolve, err = parseFloat(fields[1:])
		case "illum":
			var v float64
			v, err = parseFloat(fields[1:])
			current.Illum = int(v)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", lineNo, fields[0], err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("while reading material library: %w", err)
	}
	return materials, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseFloat(fields []string) (float64, error) {
	if len(fields) < 1 {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// parseVec3 accepts one value (replicated) or three
func parseVec3(fields []string) (core.Vec3, error) {
	if len(fields) < 3 {
		v, err := parseFloat(fields)
		return core.Splat(v), err
	}
	var c [3]float64
	for i := range c {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return core.Vec3{}, err
		}
		c[i] = v
	}
	return core.NewVec3(c[0], c[1], c[2]), nil
}
