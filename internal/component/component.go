package component

// Installable is anything the executor can install: both static Component
// definitions and the runtime-assembled Service helper satisfy it.
type Installable interface {
	Name() string
	Phase() Phase
	Ops() []Op
}

// Component is a named, phase-tagged, immutable sequence of operations.
type Component struct {
	CompName  string
	CompPhase Phase
	CompOps   []Op
}

func (c Component) Name() string { return c.CompName }
func (c Component) Phase() Phase { return c.CompPhase }
func (c Component) Ops() []Op    { return c.CompOps }

// New builds a Component.
func New(name string, phase Phase, ops ...Op) Component {
	return Component{CompName: name, CompPhase: phase, CompOps: ops}
}

// Service is a small ergonomic builder for the common "binary + units +
// enable" shape, generating its Ops dynamically instead of as a static
// slice literal.
type Service struct {
	SvcName   string
	SvcPhase  Phase
	Binaries  []string
	UnitFiles []string
	Enables   []OpEnable
	Extra     []Op
}

func (s Service) Name() string { return s.SvcName }
func (s Service) Phase() Phase { return s.SvcPhase }

func (s Service) Ops() []Op {
	ops := make([]Op, 0, len(s.Binaries)+len(s.UnitFiles)+len(s.Enables)+len(s.Extra)+1)
	if len(s.Binaries) > 0 {
		ops = append(ops, Bins(s.Binaries...))
	}
	if len(s.UnitFiles) > 0 {
		ops = append(ops, Units(s.UnitFiles...))
	}
	for _, e := range s.Enables {
		ops = append(ops, e)
	}
	ops = append(ops, s.Extra...)
	return ops
}
