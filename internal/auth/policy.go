package auth

// Resource names an entity class the application exposes.
type Resource string

const (
	ResourceAlunos      Resource = "alunos"
	ResourceProfessores Resource = "professores"
	ResourceCursos      Resource = "cursos"
	ResourceTurmas      Resource = "turmas"
	ResourceMatriculas  Resource = "matriculas"
	ResourceNotas       Resource = "notas"
	ResourceUsuarios    Resource = "usuarios"
	ResourceRelatorios  Resource = "relatorios"
)

// Action names an operation on a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions enumerates every known action, in presentation order.
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

type actionSet map[Action]bool

func allow(actions ...Action) actionSet {
	set := make(actionSet, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

func allowAll() actionSet {
	return allow(ActionView, ActionCreate, ActionEdit, ActionDelete)
}

// capabilities is the static matrix loaded once at process start. Absent
// entries deny; Can makes that explicit instead of relying on zero values
// read through nil maps.
var capabilities = map[Role]map[Resource]actionSet{
	RoleAdmin: {
		ResourceAlunos:      allowAll(),
		ResourceProfessores: allowAll(),
		ResourceCursos:      allowAll(),
		ResourceTurmas:      allowAll(),
		ResourceMatriculas:  allowAll(),
		ResourceNotas:       allowAll(),
		ResourceUsuarios:    allowAll(),
		ResourceRelatorios:  allowAll(),
	},
	RoleSecretaria: {
		ResourceAlunos:      allow(ActionView, ActionCreate, ActionEdit),
		ResourceProfessores: allow(ActionView, ActionCreate, ActionEdit),
		ResourceCursos:      allow(ActionView, ActionCreate, ActionEdit),
		ResourceTurmas:      allow(ActionView, ActionCreate, ActionEdit),
		ResourceMatriculas:  allow(ActionView, ActionCreate, ActionEdit),
		ResourceRelatorios:  allow(ActionView),
	},
	RoleProfessor: {
		ResourceAlunos:     allow(ActionView),
		ResourceCursos:     allow(ActionView),
		ResourceTurmas:     allow(ActionView, ActionEdit),
		ResourceMatriculas: allow(ActionView),
		ResourceNotas:      allow(ActionView, ActionCreate, ActionEdit),
	},
	RoleAluno: {
		ResourceTurmas:     allow(ActionView),
		ResourceMatriculas: allow(ActionView),
		ResourceNotas:      allow(ActionView),
	},
}

// Can reports whether the role may perform the action on the resource.
// Unknown roles, resources and actions deny.
func Can(action Action, resource Resource, role Role) bool {
	byResource, ok := capabilities[role]
	if !ok {
		return false
	}
	actions, ok := byResource[resource]
	if !ok {
		return false
	}
	allowed, ok := actions[action]
	if !ok {
		return false
	}
	return allowed
}

// AllActions returns the allowed/denied flag for every known action on the
// resource, for UI affordances.
func AllActions(resource Resource, role Role) map[Action]bool {
	out := make(map[Action]bool, len(Actions))
	for _, action := range Actions {
		out[action] = Can(action, resource, role)
	}
	return out
}
