// Package taskdata holds the per-pass aggregation of override data and the
// record schemas of every override category.
//
// Task data maps a category to a payload; a payload maps the name of each
// contributing node to its validated parameter record. A category is present
// only when at least one node supplied data for it. Task data is rebuilt on
// every pass and never cached.
package taskdata
