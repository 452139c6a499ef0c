package application

import (
	"errors"
	"testing"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	owner := Principal{ID: "owner-1", Role: RoleOwner}
	member := Principal{ID: "member-1", Role: RoleMember}

	tests := []struct {
		name      string
		principal Principal
		action    Action
		resource  Resource
		wantErr   error
	}{
		{name: "anonymous cannot create", principal: Principal{}, action: ActionCreateClassroom, wantErr: ErrUnauthenticated},
		{name: "unknown role is unauthenticated", principal: Principal{ID: "x"}, action: ActionListClassrooms, wantErr: ErrUnauthenticated},
		{name: "owner creates", principal: owner, action: ActionCreateClassroom},
		{name: "member cannot create", principal: member, action: ActionCreateClassroom, wantErr: ErrForbidden},
		{name: "owner lists", principal: owner, action: ActionListClassrooms},
		{name: "member lists", principal: member, action: ActionListClassrooms},
		{name: "member views", principal: member, action: ActionViewClassroom},
		{name: "member joins", principal: member, action: ActionJoinClassroom},
		{name: "owner cannot join", principal: owner, action: ActionJoinClassroom, wantErr: ErrForbidden},
		{name: "member token with the owner subject cannot join", principal: member, action: ActionJoinClassroom, resource: Resource{OwnsClassroom: true, TargetID: "member-1"}, wantErr: ErrForbidden},
		{name: "member leaves self", principal: member, action: ActionLeaveClassroom, resource: Resource{TargetID: "member-1"}},
		{name: "member cannot leave for another", principal: member, action: ActionLeaveClassroom, resource: Resource{TargetID: "member-2"}, wantErr: ErrForbidden},
		{name: "owner cannot leave", principal: owner, action: ActionLeaveClassroom, resource: Resource{TargetID: "owner-1"}, wantErr: ErrForbidden},
		{name: "owning owner removes member", principal: owner, action: ActionRemoveMember, resource: Resource{OwnsClassroom: true, TargetID: "member-1"}},
		{name: "other owner cannot remove member", principal: owner, action: ActionRemoveMember, resource: Resource{OwnsClassroom: false, TargetID: "member-1"}, wantErr: ErrForbidden},
		{name: "member cannot remove member", principal: member, action: ActionRemoveMember, resource: Resource{OwnsClassroom: true, TargetID: "member-2"}, wantErr: ErrForbidden},
		{name: "owning owner updates", principal: owner, action: ActionUpdateClassroom, resource: Resource{OwnsClassroom: true}},
		{name: "other owner cannot update", principal: owner, action: ActionUpdateClassroom, wantErr: ErrForbidden},
		{name: "owning owner deletes", principal: owner, action: ActionDeleteClassroom, resource: Resource{OwnsClassroom: true}},
		{name: "member cannot delete", principal: member, action: ActionDeleteClassroom, resource: Resource{OwnsClassroom: true}, wantErr: ErrForbidden},
		{name: "unknown action is denied", principal: owner, action: Action(99), wantErr: ErrForbidden},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			decision := Authorize(tc.principal, tc.action, tc.resource)
			if decision.Reason == "" {
				t.Fatalf("expected a reason for every decision")
			}
			if tc.wantErr == nil {
				if !decision.Allowed || decision.Err != nil {
					t.Fatalf("expected allow, got %+v", decision)
				}
				return
			}
			if decision.Allowed {
				t.Fatalf("expected deny, got allow (%s)", decision.Reason)
			}
			if !errors.Is(decision.Err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, decision.Err)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"owner":   RoleOwner,
		"Teacher": RoleOwner,
		"member":  RoleMember,
		" nisit ": RoleMember,
	}
	for value, want := range cases {
		got, ok := ParseRole(value)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q) = %v, %v; want %v", value, got, ok, want)
		}
	}

	if _, ok := ParseRole("admin"); ok {
		t.Fatalf("expected admin to be rejected")
	}
}
