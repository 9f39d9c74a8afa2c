// Package nodetree models the node graph a user builds in the host document.
//
// A Tree holds typed, uniquely named nodes. Each node has an ordered list of
// input sockets; a socket is either unlinked or linked to exactly one
// producing node. The engine only reads the tree. The single exception is the
// warning annotation, which is UI state attached to a node so a failed
// operation can be shown where it originated.
package nodetree
