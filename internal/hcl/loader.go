package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
)

// ErrNoDocuments is returned when none of the given paths yields a .hcl file.
var ErrNoDocuments = errors.New("no .hcl documents found")

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL document loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes all possible top-level blocks from any file.
type fileRoot struct {
	Documents []*documentBlock `hcl:"document,block"`
	Nodes     []*nodeBlock     `hcl:"node,block"`
	Texts     []*textBlock     `hcl:"text,block"`
	Scenes    []*sceneBlock    `hcl:"scene,block"`
}

type documentBlock struct {
	Filepath string `hcl:"filepath,optional"`
}

type nodeBlock struct {
	Type string   `hcl:"type,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type textBlock struct {
	Name string `hcl:"name,label"`
	Body string `hcl:"body"`
}

type sceneBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Load parses every .hcl file under paths and merges them into one document.
// Paths may be files, directories or doublestar glob patterns. Later files
// override the document path and scene attributes of earlier ones.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Document, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, strings.Join(paths, ", "))
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	doc := &config.Document{Scene: config.NewBlock()}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.decodeFile(hclFile.Body, doc); err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
		doc.Sources = append(doc.Sources, file)
	}

	logger.Debug("HCL loading complete.", "nodes", len(doc.Nodes), "texts", len(doc.Texts), "document", doc.Path)
	return doc, nil
}

func (l *Loader) decodeFile(body hcl.Body, doc *config.Document) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return diags
	}
	for _, d := range root.Documents {
		doc.Path = d.Filepath
	}
	for _, nb := range root.Nodes {
		n, err := decodeNode(nb)
		if err != nil {
			return err
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, t := range root.Texts {
		doc.Texts = append(doc.Texts, &config.Text{Name: t.Name, Body: t.Body})
	}
	for _, s := range root.Scenes {
		b, err := decodeScene(s.Body)
		if err != nil {
			return err
		}
		doc.Scene.Merge(b)
	}
	return nil
}

// findAllHCLFiles expands globs and walks all given paths, returning a flat,
// de-duplicated list of .hcl files.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if filepath.Ext(p) != ".hcl" {
			return
		}
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, pattern := range paths {
		expanded := []string{pattern}
		if strings.ContainsAny(pattern, "*?[{") {
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid document pattern %s: %w", pattern, err)
			}
			expanded = matches
		}

		for _, path := range expanded {
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue // A configured path that does not exist is not an error.
				}
				return nil, fmt.Errorf("error accessing path %s: %w", path, err)
			}
			if !info.IsDir() {
				add(path)
				continue
			}
			err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() {
					add(p)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return allFiles, nil
}
