// Package node defines the closed set of form schema node shapes.
//
// A schema is a tree of nodes. Every node is exactly one of Text, Condition,
// Element, Component or Input; Input is further tagged by an InputKind that
// must be known to the Registry used to parse it. Keys a variant does not
// recognise are kept in the node's Extra map so nothing read from the wire is
// lost on the way back out.
package node
