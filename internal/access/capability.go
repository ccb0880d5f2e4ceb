package access

// Capability is the set of actions allowed on one resource. The three flags
// are independent: Editar does not imply Ver.
type Capability struct {
	Ver     bool `json:"ver"`
	Editar  bool `json:"editar"`
	Excluir bool `json:"excluir"`
}

// Action names one capability flag.
type Action string

const (
	ActionView   Action = "ver"
	ActionEdit   Action = "editar"
	ActionDelete Action = "excluir"
)

var (
	denyAll  = Capability{}
	allowAll = Capability{Ver: true, Editar: true, Excluir: true}
)

// Allows reports whether the capability grants action.
func (c Capability) Allows(a Action) bool {
	switch a {
	case ActionView:
		return c.Ver
	case ActionEdit:
		return c.Editar
	case ActionDelete:
		return c.Excluir
	default:
		return false
	}
}

// None reports whether every flag is false.
func (c Capability) None() bool {
	return c == denyAll
}
