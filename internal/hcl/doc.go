// Package hcl loads rendergraph documents written in HCL into the
// format-agnostic config.Document model, and writes scene snapshots back out
// in the same syntax.
package hcl
