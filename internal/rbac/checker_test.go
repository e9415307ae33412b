package rbac

import (
	"context"
	"testing"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(RolePermissions)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "attempt:create", true},
		{"student", "exam:create", false},
		{"student", "review:approve", false},
		{"instructor", "exam:publish", true},
		{"instructor", "review:approve", true},
		{"instructor", "attempt:create", false},
		{"admin", "exam:create", true},
		{"admin", "review:return", true},
		{"admin", "anything:at-all", true},
		{"", "exam:view", false},
		{"unknown", "exam:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCheckerAny(t *testing.T) {
	c := NewChecker(RolePermissions)
	if !c.Any("student", "attempt:view-own", "attempt:view-all") {
		t.Fatal("student should match view-own")
	}
	if c.Any("student", "review:approve", "review:return") {
		t.Fatal("student must not match review perms")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if RoleFromContext(ctx) != "" || SubjectFromContext(ctx) != "" {
		t.Fatal("empty context must yield empty principal")
	}
	ctx = WithSubject(WithRole(ctx, "instructor"), "teach-1")
	if RoleFromContext(ctx) != "instructor" {
		t.Fatalf("role = %q", RoleFromContext(ctx))
	}
	if SubjectFromContext(ctx) != "teach-1" {
		t.Fatalf("subject = %q", SubjectFromContext(ctx))
	}
}
