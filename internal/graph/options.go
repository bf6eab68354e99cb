package graph

import "github.com/roach88/nestwrite/internal/ir"

type buildOptions struct {
	bareVerb ir.Verb
	strict   bool
}

// Option configures Build.
type Option func(*buildOptions)

// WithBareVerb sets the verb of a bare persisted reference: one with no
// method, attributes or relationships. The default is ir.VerbLink;
// ir.VerbUpdate re-saves the target, re-running storage validation.
func WithBareVerb(v ir.Verb) Option {
	return func(o *buildOptions) {
		o.bareVerb = v
	}
}

// WithStrictReferences requires every linkage, persisted ones included, to
// have a matching included fragment.
func WithStrictReferences() Option {
	return func(o *buildOptions) {
		o.strict = true
	}
}
