// Package template expands output path templates.
//
// Tokens are matched left to right in a single pass over the template, so a
// substituted value is never scanned for tokens again:
//
//	$camera  active camera name (left as is when there is no camera)
//	$engine  render engine identifier
//	$res     {width}x{height}
//	$label   task label
//	$vl      active view layer
//	$V       task version
//	$F<N>    current frame zero-padded to N digits
//	$T{fmt}  current time formatted with strftime verbs, plus %f, %s and %G
//	$blend   document file name without extension
package template

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Untitled is the whole result of a template using $blend when the document
// has no backing file.
const Untitled = "untitled"

var tokenPattern = regexp.MustCompile(`\$(?:camera|engine|res|label|vl|V|F\d|T\{[^}]*\}|blend)`)

// timeOptions adds the verbs of Python's strftime that the library lacks.
var timeOptions = []strftime.Option{
	strftime.WithMicroseconds('f'),
	strftime.WithUnixSeconds('s'),
	strftime.WithSpecification('G', strftime.AppendFunc(appendISOYear)),
}

func appendISOYear(b []byte, t time.Time) []byte {
	year, _ := t.ISOWeek()
	return strconv.AppendInt(b, int64(year), 10)
}

// Context is the live scene state templates read from.
type Context struct {
	// Camera is the active camera name, "" when the scene has none.
	Camera    string
	Engine    string
	ResX      int
	ResY      int
	Label     string
	ViewLayer string
	Version   string
	Frame     int
	// DocPath is the path of the document file, "" for an unsaved document.
	DocPath string
	// Now is the single instant every $T token is formatted with.
	Now time.Time
}

// Rule is an output path rule: the base path whose directory receives the
// output, and the file name template.
type Rule struct {
	Path   string
	Format string
}

// Expand substitutes every token of format. A $T token whose format cannot
// be compiled is kept verbatim; Check reports it.
func Expand(format string, c Context) string {
	if c.DocPath == "" && hasToken(format, "$blend") {
		return Untitled
	}
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	return tokenPattern.ReplaceAllStringFunc(format, func(tok string) string {
		switch {
		case tok == "$camera":
			if c.Camera == "" {
				return tok
			}
			return c.Camera
		case tok == "$engine":
			return c.Engine
		case tok == "$res":
			return fmt.Sprintf("%dx%d", c.ResX, c.ResY)
		case tok == "$label":
			return c.Label
		case tok == "$vl":
			return c.ViewLayer
		case tok == "$V":
			return c.Version
		case tok == "$blend":
			base := filepath.Base(c.DocPath)
			return strings.TrimSuffix(base, filepath.Ext(base))
		case strings.HasPrefix(tok, "$F"):
			width, _ := strconv.Atoi(tok[2:])
			return fmt.Sprintf("%0*d", width, c.Frame)
		default:
			formatted, err := strftime.Format(tok[3:len(tok)-1], now, timeOptions...)
			if err != nil {
				return tok
			}
			return formatted
		}
	})
}

// Check reports the $T formats of format that cannot be compiled.
func Check(format string) error {
	var errs []error
	for _, tok := range tokenPattern.FindAllString(format, -1) {
		if !strings.HasPrefix(tok, "$T{") {
			continue
		}
		if _, err := strftime.New(tok[3:len(tok)-1], timeOptions...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tok, err))
		}
	}
	return errors.Join(errs...)
}

func hasToken(format, token string) bool {
	for _, tok := range tokenPattern.FindAllString(format, -1) {
		if tok == token {
			return true
		}
	}
	return false
}

// Directory returns the directory outputs of rule go to. Without a rule, or
// with an empty base path, it is the document's own directory, or "" for an
// unsaved document.
func Directory(rule *Rule, c Context) string {
	if rule == nil || rule.Path == "" {
		if c.DocPath == "" {
			return ""
		}
		return dir(c.DocPath) + "/"
	}
	return dir(rule.Path)
}

// Resolve returns the full output path of rule. Without a rule no token is
// substituted and only the directory is returned.
func Resolve(rule *Rule, c Context) string {
	d := Directory(rule, c)
	if rule == nil {
		return d
	}
	return join(d, Expand(rule.Format, c))
}

func dir(p string) string {
	if !strings.ContainsRune(p, '/') {
		return ""
	}
	return filepath.Dir(p)
}

func join(d, name string) string {
	switch {
	case d == "", strings.HasPrefix(name, "/"):
		return name
	case strings.HasSuffix(d, "/"):
		return d + name
	default:
		return d + "/" + name
	}
}
