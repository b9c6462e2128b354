package generator

// Options selects the generator build mode. It is an immutable value built
// once per invocation and passed to Build; flags are derived from it, never
// accumulated, so each flag appears at most once.
type Options struct {
	Incremental bool
	Drafts      bool
	Watch       bool
	// Extra arguments appended after the mode flags.
	Extra []string
}

// WithDrafts returns a copy of o with draft posts enabled.
func (o Options) WithDrafts() Options {
	o.Drafts = true
	o.Extra = append([]string(nil), o.Extra...)
	return o
}

// Args returns the generator command line (without the command itself).
func (o Options) Args() []string {
	args := []string{"build"}
	if o.Incremental {
		args = append(args, "--incremental")
	}
	if o.Drafts {
		args = append(args, "--drafts")
	}
	if o.Watch {
		args = append(args, "--watch")
	}
	return append(args, o.Extra...)
}
