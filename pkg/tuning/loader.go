// Package tuning loads the YAML tuning file into af.ParamSource, the narrow
// view the AF core reads its constants from. It is the only place in the
// module that knows the on-disk document shape.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raphaelscholle/libcamera-opensource/pkg/af"
)

// Node wraps a decoded YAML mapping node and implements af.ParamSource.
type Node struct {
	n *yaml.Node
}

// Load reads and parses a tuning file from path, rooted under the given
// top-level algorithm key (e.g. "rpi.af"), matching libcamera's
// one-tuning-file-many-algorithms layout.
func Load(path, algorithm string) (af.ParamSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tuning: read %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("tuning: parse %s: %w", path, err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}

	top := Node{n: doc}
	algo, ok := top.Sub(algorithm)
	if !ok {
		return nil, fmt.Errorf("tuning: %s: no %q section", path, algorithm)
	}
	return algo, nil
}

func (p Node) child(name string) (*yaml.Node, bool) {
	if p.n == nil || p.n.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(p.n.Content); i += 2 {
		if p.n.Content[i].Value == name {
			return p.n.Content[i+1], true
		}
	}
	return nil, false
}

// Has implements af.ParamSource.
func (p Node) Has(name string) bool {
	_, ok := p.child(name)
	return ok
}

// Float implements af.ParamSource.
func (p Node) Float(name string) (float64, bool) {
	c, ok := p.child(name)
	if !ok || c.Kind != yaml.ScalarNode {
		return 0, false
	}
	var v float64
	if err := c.Decode(&v); err != nil {
		return 0, false
	}
	return v, true
}

// Uint implements af.ParamSource.
func (p Node) Uint(name string) (uint, bool) {
	c, ok := p.child(name)
	if !ok || c.Kind != yaml.ScalarNode {
		return 0, false
	}
	var v uint
	if err := c.Decode(&v); err != nil {
		return 0, false
	}
	return v, true
}

// Sub implements af.ParamSource.
func (p Node) Sub(name string) (af.ParamSource, bool) {
	c, ok := p.child(name)
	if !ok || c.Kind != yaml.MappingNode {
		return nil, false
	}
	return Node{n: c}, true
}

// Points implements af.ParamSource, reading a "map" list of [x, y] pairs.
func (p Node) Points(name string) ([][2]float64, bool) {
	c, ok := p.child(name)
	if !ok || c.Kind != yaml.SequenceNode {
		return nil, false
	}
	pts := make([][2]float64, 0, len(c.Content))
	for _, item := range c.Content {
		var pair []float64
		if err := item.Decode(&pair); err != nil || len(pair) != 2 {
			return nil, false
		}
		pts = append(pts, [2]float64{pair[0], pair[1]})
	}
	if len(pts) == 0 {
		return nil, false
	}
	return pts, true
}
