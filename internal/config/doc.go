// Package config defines the format-agnostic document model and the Loader
// interface that fills it. A document carries the node graph, the scene the
// graph is applied to and the script texts. Concrete loaders, such as the HCL
// one, live in separate packages.
package config
