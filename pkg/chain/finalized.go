package chain

// Finalized is the configuration handed to the compiler. It is produced by
// Config.ToConfig and is not modified afterwards.
type Finalized struct {
	Mode         string              `json:"mode"`
	Devtool      string              `json:"devtool"`
	Entry        map[string][]string `json:"entry"`
	Output       map[string]any      `json:"output"`
	Module       Module              `json:"module"`
	Plugins      []*Plugin           `json:"plugins"`
	Optimization Optimization        `json:"optimization"`
	Resolve      map[string]any      `json:"resolve,omitempty"`
	DevServer    map[string]any      `json:"devServer,omitempty"`

	entryOrder []string
}

// Module holds the rule set.
type Module struct {
	Rules []*Rule `json:"rules"`
}

// Optimization holds the minification policy.
type Optimization struct {
	Minimize  bool      `json:"minimize"`
	Minimizer []*Plugin `json:"minimizer,omitempty"`
}

// EntryNames returns entry point names in declared order.
func (f *Finalized) EntryNames() []string {
	return append([]string(nil), f.entryOrder...)
}

// Rule returns the named top-level rule.
func (f *Finalized) Rule(name string) (*Rule, bool) {
	for _, r := range f.Module.Rules {
		if r.name == name {
			return r, true
		}
	}
	return nil, false
}

// Plugin returns the named plugin.
func (f *Finalized) Plugin(name string) (*Plugin, bool) {
	for _, p := range f.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Route returns the processing steps path goes through, in execution order.
func (f *Finalized) Route(path string) []Step {
	return route(f.Module.Rules, path)
}

// Step is one loader application in a routed pipeline.
type Step struct {
	// Rule is the rule name, suffixed with "/<variant>" for oneOf variants.
	Rule   string
	Stage  Stage
	Use    string
	Loader string
}

var stageOrder = []Stage{StagePre, StageNormal, StagePost}

// route runs pre rules, then normal rules, then post rules. Within a stage
// rules keep their declared order and each rule's uses keep theirs.
func route(rules []*Rule, path string) []Step {
	var steps []Step
	for _, stage := range stageOrder {
		for _, r := range rules {
			if r.Enforce != stage || !r.Applies(path) {
				continue
			}
			selected, ok := r.Select(path)
			if !ok {
				continue
			}
			name := r.name
			if selected != r {
				name += "/" + selected.name
			}
			for _, u := range selected.Uses() {
				steps = append(steps, Step{Rule: name, Stage: stage, Use: u.Name, Loader: u.Loader})
			}
		}
	}
	return steps
}
