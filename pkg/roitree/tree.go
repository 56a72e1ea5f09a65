// Package roitree implements ordered, arbitrarily nested ROI trees. Leaf
// nodes hold mask predicates; collection nodes hold a server ROIData whose
// shapes mirror the node's children.
package roitree

import (
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/omero"
)

// Node is a tree node. The parent link is navigational only.
type Node interface {
	Data() any
	Parent() Node
	SetParent(parent Node)
	Children() []Node
	AddChildren(children ...Node)
}

// Tree is the root of a ROI tree. Its Data is always nil.
type Tree interface {
	Node
	AddROIs(preds ...geom.Predicate)
}

// DefaultNode is a plain node carrying arbitrary data.
type DefaultNode struct {
	data     any
	parent   Node
	children []Node
}

func NewNode(data any) *DefaultNode {
	return &DefaultNode{data: data}
}

func (n *DefaultNode) Data() any              { return n.data }
func (n *DefaultNode) Parent() Node           { return n.parent }
func (n *DefaultNode) SetParent(parent Node)  { n.parent = parent }
func (n *DefaultNode) Children() []Node       { return copyNodes(n.children) }
func (n *DefaultNode) AddChildren(cs ...Node) { n.children = attach(n, n.children, cs) }

// DefaultTree is an in-memory Tree.
type DefaultTree struct {
	children []Node
}

func NewTree() *DefaultTree {
	return &DefaultTree{}
}

func (t *DefaultTree) Data() any              { return nil }
func (t *DefaultTree) Parent() Node           { return nil }
func (t *DefaultTree) SetParent(Node)         {}
func (t *DefaultTree) Children() []Node       { return copyNodes(t.children) }
func (t *DefaultTree) AddChildren(cs ...Node) { t.children = attach(t, t.children, cs) }

// AddROIs appends one leaf per predicate.
func (t *DefaultTree) AddROIs(preds ...geom.Predicate) {
	for _, p := range preds {
		t.AddChildren(NewNode(p))
	}
}

// CollectionNode wraps a server ROIData. Adding a child holding a
// server-backed mask also adds its shape to the ROIData.
type CollectionNode struct {
	roi      *omero.ROIData
	parent   Node
	children []Node
}

// NewCollectionNode wraps roi without creating children for its shapes.
func NewCollectionNode(roi *omero.ROIData) *CollectionNode {
	return &CollectionNode{roi: roi}
}

// CollectionNodeFromShapes wraps roi with one leaf per existing shape.
func CollectionNodeFromShapes(roi *omero.ROIData) *CollectionNode {
	n := &CollectionNode{roi: roi}
	for _, s := range roi.Shapes() {
		leaf := NewNode(omero.NewShapeMask(s))
		leaf.SetParent(n)
		n.children = append(n.children, leaf)
	}
	return n
}

func (n *CollectionNode) Data() any               { return n.roi }
func (n *CollectionNode) ROIData() *omero.ROIData { return n.roi }
func (n *CollectionNode) Parent() Node            { return n.parent }
func (n *CollectionNode) SetParent(parent Node)   { n.parent = parent }
func (n *CollectionNode) Children() []Node        { return copyNodes(n.children) }

func (n *CollectionNode) AddChildren(cs ...Node) {
	for _, c := range cs {
		if sm, ok := c.Data().(*omero.ShapeMask); ok && sm.Shape().ROI() != n.roi {
			n.roi.AddShape(sm.Shape())
		}
	}
	n.children = attach(n, n.children, cs)
}

// Walk visits the descendants of n depth-first in child order. Returning an
// error from fn stops the walk.
func Walk(n Node, fn func(Node) error) error {
	for _, c := range n.Children() {
		if err := fn(c); err != nil {
			return err
		}
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Predicates returns every predicate held below n in depth-first order.
func Predicates(n Node) []geom.Predicate {
	var out []geom.Predicate
	Walk(n, func(c Node) error {
		if p, ok := c.Data().(geom.Predicate); ok {
			out = append(out, p)
		}
		return nil
	})
	return out
}

func attach(parent Node, list, children []Node) []Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.SetParent(parent)
		list = append(list, c)
	}
	return list
}

func copyNodes(ns []Node) []Node {
	out := make([]Node, len(ns))
	copy(out, ns)
	return out
}
