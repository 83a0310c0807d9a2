package auth

import "testing"

func TestCanMatrix(t *testing.T) {
	cases := []struct {
		action   Action
		resource Resource
		role     Role
		want     bool
	}{
		{ActionDelete, ResourceAlunos, RoleAdmin, true},
		{ActionDelete, ResourceAlunos, RoleSecretaria, false},
		{ActionCreate, ResourceAlunos, RoleSecretaria, true},
		{ActionEdit, ResourceTurmas, RoleSecretaria, true},
		{ActionView, ResourceTurmas, RoleAluno, true},
		{ActionEdit, ResourceTurmas, RoleAluno, false},
		{ActionView, ResourceTurmas, RoleProfessor, true},
		{ActionEdit, ResourceTurmas, RoleProfessor, true},
		{ActionDelete, ResourceTurmas, RoleProfessor, false},
		{ActionCreate, ResourceNotas, RoleProfessor, true},
		{ActionView, ResourceUsuarios, RoleSecretaria, false},
		{ActionDelete, ResourceUsuarios, RoleAdmin, true},
	}
	for _, tc := range cases {
		if got := Can(tc.action, tc.resource, tc.role); got != tc.want {
			t.Fatalf("Can(%s, %s, %s)=%v, want %v", tc.action, tc.resource, tc.role, got, tc.want)
		}
	}
}

func TestCanFailsClosed(t *testing.T) {
	for _, action := range Actions {
		if Can(action, ResourceAlunos, Role("")) {
			t.Fatalf("empty role must deny %s", action)
		}
		if Can(action, ResourceAlunos, Role("COORDENADOR")) {
			t.Fatalf("unknown role must deny %s", action)
		}
	}
	if Can(Action("export"), ResourceAlunos, RoleAdmin) {
		t.Fatalf("unknown action must deny even for admin")
	}
	if Can(ActionView, Resource("salas"), RoleAdmin) {
		t.Fatalf("unknown resource must deny even for admin")
	}
}

func TestAllActions(t *testing.T) {
	got := AllActions(ResourceTurmas, RoleProfessor)
	want := map[Action]bool{
		ActionView:   true,
		ActionCreate: false,
		ActionEdit:   true,
		ActionDelete: false,
	}
	for action, allowed := range want {
		if got[action] != allowed {
			t.Fatalf("AllActions(turmas, PROFESSOR)[%s]=%v, want %v", action, got[action], allowed)
		}
	}
	if len(got) != len(Actions) {
		t.Fatalf("expected an entry per action, got %v", got)
	}
}
