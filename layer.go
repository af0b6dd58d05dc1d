package lattice

import "fmt"

// Layer identifies one of the five rendering layers that make up a
// composed visual. The set is closed: the compositor stacks exactly
// these layers, back to front.
type Layer uint8

const (
	// LayerBackground is the rearmost layer.
	LayerBackground Layer = iota

	// LayerShadow sits between background and content.
	LayerShadow

	// LayerContent is the primary layer and the default keystone.
	LayerContent

	// LayerHighlight sits above content.
	LayerHighlight

	// LayerAccent is the frontmost layer.
	LayerAccent

	layerCount
)

// Layers returns all layers in back-to-front stacking order.
func Layers() []Layer {
	return []Layer{LayerBackground, LayerShadow, LayerContent, LayerHighlight, LayerAccent}
}

// String returns the layer name used in profiles and configuration.
func (l Layer) String() string {
	switch l {
	case LayerBackground:
		return "background"
	case LayerShadow:
		return "shadow"
	case LayerContent:
		return "content"
	case LayerHighlight:
		return "highlight"
	case LayerAccent:
		return "accent"
	default:
		return fmt.Sprintf("Layer(%d)", uint8(l))
	}
}

// Valid reports whether l is one of the five defined layers.
func (l Layer) Valid() bool { return l < layerCount }

// ParseLayer converts a layer name back to a Layer.
// It is the inverse of String for the five defined layers.
func ParseLayer(s string) (Layer, error) {
	switch s {
	case "background":
		return LayerBackground, nil
	case "shadow":
		return LayerShadow, nil
	case "content":
		return LayerContent, nil
	case "highlight":
		return LayerHighlight, nil
	case "accent":
		return LayerAccent, nil
	default:
		return 0, fmt.Errorf("lattice: unknown layer %q", s)
	}
}
