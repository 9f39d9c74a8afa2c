// Package compare implements the write-only-if-changed primitive every
// category applier goes through. Writes to the target can trigger expensive
// recomputation in the host, so an unchanged value is never written back.
package compare

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Stats counts the outcomes of Apply calls.
type Stats struct {
	// Writes is the number of attributes that were changed.
	Writes int
	// Skips is the number of attributes that already held the desired value.
	Skips int
	// Missing is the number of attributes absent from the target.
	Missing int
}

// Comparer applies desired values to a target store. It is not safe for
// concurrent use; a pass owns its comparer.
type Comparer struct {
	store  target.Store
	parser *locator.Cache
	stats  Stats
	dryRun bool
}

// Option configures a Comparer.
type Option func(*Comparer)

// WithLocatorCache shares a locator parse cache across comparers.
func WithLocatorCache(c *locator.Cache) Option {
	return func(cmp *Comparer) { cmp.parser = c }
}

// WithDryRun makes the comparer count and log writes without performing them.
func WithDryRun() Option {
	return func(cmp *Comparer) { cmp.dryRun = true }
}

// New creates a comparer over store.
func New(store target.Store, opts ...Option) *Comparer {
	c := &Comparer{store: store}
	for _, opt := range opts {
		opt(c)
	}
	if c.parser == nil {
		c.parser = locator.NewCache()
	}
	return c
}

// Store returns the underlying target store.
func (c *Comparer) Store() target.Store {
	return c.store
}

// Locators returns the locator cache used by the comparer.
func (c *Comparer) Locators() *locator.Cache {
	return c.parser
}

// Stats returns the counters accumulated so far.
func (c *Comparer) Stats() Stats {
	return c.stats
}

// Apply writes want into attr of h unless the current value already equals
// it. It reports whether a write happened. An attribute missing from the
// target is logged and skipped; a value that cannot be stored in the
// attribute is returned as an error.
func (c *Comparer) Apply(ctx context.Context, h target.Handle, attr string, want cty.Value) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	cur, err := c.store.Get(h, attr)
	if err != nil {
		if errors.Is(err, target.ErrNoAttribute) {
			c.stats.Missing++
			logger.Info("Attribute not found, skipping.", "path", h.Path(), "attr", attr)
			return false, nil
		}
		return false, err
	}

	if ty := cur.Type(); ty != cty.DynamicPseudoType && !want.Type().Equals(ty) {
		converted, err := convert.Convert(want, ty)
		if err != nil {
			return false, fmt.Errorf("%w: %s.%s expects %s, got %s", target.ErrTypeMismatch, h.Path(), attr, ty.FriendlyName(), want.Type().FriendlyName())
		}
		want = converted
	}

	if Equal(cur, want) {
		c.stats.Skips++
		return false, nil
	}

	if !c.dryRun {
		if err := c.store.Set(h, attr, want); err != nil {
			if errors.Is(err, target.ErrNoAttribute) {
				c.stats.Missing++
				logger.Info("Attribute not found, skipping.", "path", h.Path(), "attr", attr)
				return false, nil
			}
			return false, err
		}
	}
	c.stats.Writes++
	logger.Debug("Attribute set.", "path", h.Path(), "attr", attr, "value", Format(want))
	return true, nil
}

// ApplyLocator resolves an attribute locator and applies want to it. Failing
// to resolve the owning handle is returned as an error.
func (c *Comparer) ApplyLocator(ctx context.Context, loc locator.Locator, want cty.Value) (bool, error) {
	h, attr, err := target.Lookup(c.store, loc)
	if err != nil {
		return false, err
	}
	return c.Apply(ctx, h, attr, want)
}

// ApplyPath parses raw as an attribute locator and applies want to it.
func (c *Comparer) ApplyPath(ctx context.Context, raw string, want cty.Value) (bool, error) {
	loc, err := c.parser.Parse(raw)
	if err != nil {
		return false, err
	}
	return c.ApplyLocator(ctx, loc, want)
}

// Equal reports whether two values are equal by value. Unknown values are
// never equal.
func Equal(a, b cty.Value) bool {
	if !a.IsWhollyKnown() || !b.IsWhollyKnown() {
		return false
	}
	eq := a.Equals(b)
	return eq.IsKnown() && eq.True()
}

// Format renders a value compactly for logs and messages.
func Format(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	if !v.IsWhollyKnown() {
		return "(unknown)"
	}
	raw, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return v.GoString()
	}
	return string(raw)
}
