// Package chain is the mutable configuration vocabulary handed to the
// compiler: entries, output, named rules, named plugins, minimizers and the
// dev-server block. Rules and plugins are addressed by name so that later
// customization can find and change what earlier assembly produced.
package chain

// Plugin is a named compiler plugin with its constructor arguments.
type Plugin struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Args []any  `json:"args,omitempty"`
}

// Use sets the plugin kind and constructor arguments.
func (p *Plugin) Use(kind string, args ...any) *Plugin {
	p.Kind = kind
	p.Args = args
	return p
}

// Tap replaces the constructor arguments with fn's result.
func (p *Plugin) Tap(fn func(args []any) []any) *Plugin {
	p.Args = fn(p.Args)
	return p
}

func (p *Plugin) clone() *Plugin {
	args := make([]any, len(p.Args))
	for i, a := range p.Args {
		args[i] = cloneAny(a)
	}
	return &Plugin{Name: p.Name, Kind: p.Kind, Args: args}
}

// Config is the assembled, not yet finalized configuration.
type Config struct {
	Mode      string
	Devtool   string
	Output    map[string]any
	Resolve   map[string]any
	DevServer map[string]any
	Minimize  bool

	entries    ordered[[]string]
	rules      ordered[*Rule]
	plugins    ordered[*Plugin]
	minimizers ordered[*Plugin]
}

// New returns an empty configuration.
func New() *Config {
	return &Config{
		Output:    make(map[string]any),
		Resolve:   make(map[string]any),
		DevServer: make(map[string]any),
	}
}

// Entry returns the files of the named entry point.
func (c *Config) Entry(name string) []string {
	files, _ := c.entries.get(name)
	return files
}

// SetEntry replaces the files of the named entry point.
func (c *Config) SetEntry(name string, files ...string) *Config {
	c.entries.set(name, append([]string(nil), files...))
	return c
}

// AddEntry appends files to the named entry point.
func (c *Config) AddEntry(name string, files ...string) *Config {
	existing, _ := c.entries.get(name)
	c.entries.set(name, append(append([]string(nil), existing...), files...))
	return c
}

// DeleteEntry removes the named entry point.
func (c *Config) DeleteEntry(name string) *Config {
	c.entries.delete(name)
	return c
}

// EntryNames returns entry point names in declared order.
func (c *Config) EntryNames() []string { return c.entries.names() }

// Rule returns the named rule, creating it if needed.
func (c *Config) Rule(name string) *Rule {
	if r, ok := c.rules.get(name); ok {
		return r
	}
	r := newRule(name)
	c.rules.set(name, r)
	return r
}

// HasRule reports whether the named rule exists.
func (c *Config) HasRule(name string) bool {
	_, ok := c.rules.get(name)
	return ok
}

// DeleteRule removes the named rule.
func (c *Config) DeleteRule(name string) *Config {
	c.rules.delete(name)
	return c
}

// Rules returns the rules in declared order.
func (c *Config) Rules() []*Rule { return c.rules.values() }

// Plugin returns the named plugin, creating it if needed.
func (c *Config) Plugin(name string) *Plugin {
	if p, ok := c.plugins.get(name); ok {
		return p
	}
	p := &Plugin{Name: name}
	c.plugins.set(name, p)
	return p
}

// HasPlugin reports whether the named plugin exists.
func (c *Config) HasPlugin(name string) bool {
	_, ok := c.plugins.get(name)
	return ok
}

// DeletePlugin removes the named plugin.
func (c *Config) DeletePlugin(name string) *Config {
	c.plugins.delete(name)
	return c
}

// Plugins returns the plugins in declared order.
func (c *Config) Plugins() []*Plugin { return c.plugins.values() }

// Minimizer returns the named minimizer plugin, creating it if needed.
func (c *Config) Minimizer(name string) *Plugin {
	if p, ok := c.minimizers.get(name); ok {
		return p
	}
	p := &Plugin{Name: name}
	c.minimizers.set(name, p)
	return p
}

// DeleteMinimizer removes the named minimizer.
func (c *Config) DeleteMinimizer(name string) *Config {
	c.minimizers.delete(name)
	return c
}

// Minimizers returns the minimizers in declared order.
func (c *Config) Minimizers() []*Plugin { return c.minimizers.values() }

// Route returns the processing steps path goes through, in execution order.
func (c *Config) Route(path string) []Step {
	return route(c.rules.values(), path)
}

// ToConfig finalizes the configuration. The result is a deep copy: changes
// made to c afterwards are not visible through it.
func (c *Config) ToConfig() *Finalized {
	f := &Finalized{
		Mode:      c.Mode,
		Devtool:   c.Devtool,
		Entry:     make(map[string][]string, c.entries.len()),
		Output:    cloneMap(c.Output),
		Resolve:   cloneMap(c.Resolve),
		DevServer: cloneMap(c.DevServer),
		Optimization: Optimization{
			Minimize: c.Minimize,
		},
		entryOrder: c.entries.names(),
	}
	for _, name := range c.entries.names() {
		files, _ := c.entries.get(name)
		f.Entry[name] = append([]string(nil), files...)
	}
	for _, r := range c.rules.values() {
		f.Module.Rules = append(f.Module.Rules, r.clone())
	}
	for _, p := range c.plugins.values() {
		f.Plugins = append(f.Plugins, p.clone())
	}
	for _, p := range c.minimizers.values() {
		f.Optimization.Minimizer = append(f.Optimization.Minimizer, p.clone())
	}
	return f
}
