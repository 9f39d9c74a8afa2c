// Package scene is an in-memory implementation of target.Store.
//
// A scene is a tree of blocks. Each block owns attributes (cty values),
// named sub-blocks and ordered collections of named member blocks, mirroring
// how a host application exposes its data model: `scene.render` is a
// sub-block, `objects["Cube"]` is a collection member.
//
// The store backs the command line tool, where the scene is loaded from the
// document, and serves as the fake target store in tests.
package scene
