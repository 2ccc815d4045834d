package models

import "testing"

func TestRoleClearanceOrdering(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		want     bool
	}{
		{"regular lacks cashier", RoleRegular, RoleCashier, false},
		{"cashier has cashier", RoleCashier, RoleCashier, true},
		{"cashier lacks manager", RoleCashier, RoleManager, false},
		{"manager has cashier", RoleManager, RoleCashier, true},
		{"manager has manager", RoleManager, RoleManager, true},
		{"manager lacks superuser", RoleManager, RoleSuperuser, false},
		{"superuser has everything", RoleSuperuser, RoleRegular, true},
		{"unknown role has nothing", Role("admin"), RoleRegular, false},
		{"unknown requirement never met", RoleSuperuser, Role("root"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.HasClearance(tt.required); got != tt.want {
				t.Errorf("HasClearance(%q, %q) = %v, want %v", tt.role, tt.required, got, tt.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleRegular, RoleCashier, RoleManager, RoleSuperuser} {
		if !role.Valid() {
			t.Errorf("Valid(%q) = false, want true", role)
		}
	}
	for _, role := range []Role{"", "admin", "Regular", "CASHIER"} {
		if role.Valid() {
			t.Errorf("Valid(%q) = true, want false", role)
		}
	}
}

func TestValidUtorid(t *testing.T) {
	tests := []struct {
		utorid string
		want   bool
	}{
		{"johndoe1", true},
		{"ABCD1234", true},
		{"00000000", true},
		{"short", false},
		{"waytoolong", false},
		{"john doe", false},
		{"john-doe", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidUtorid(tt.utorid); got != tt.want {
			t.Errorf("ValidUtorid(%q) = %v, want %v", tt.utorid, got, tt.want)
		}
	}
}
