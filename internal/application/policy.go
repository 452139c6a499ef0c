package application

import "fmt"

// Action names an operation the policy can rule on.
type Action int

const (
	ActionCreateClassroom Action = iota + 1
	ActionListClassrooms
	ActionViewClassroom
	ActionJoinClassroom
	ActionLeaveClassroom
	ActionRemoveMember
	ActionUpdateClassroom
	ActionDeleteClassroom
)

func (a Action) String() string {
	switch a {
	case ActionCreateClassroom:
		return "create_classroom"
	case ActionListClassrooms:
		return "list_classrooms"
	case ActionViewClassroom:
		return "view_classroom"
	case ActionJoinClassroom:
		return "join_classroom"
	case ActionLeaveClassroom:
		return "leave_classroom"
	case ActionRemoveMember:
		return "remove_member"
	case ActionUpdateClassroom:
		return "update_classroom"
	case ActionDeleteClassroom:
		return "delete_classroom"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Resource carries the state-dependent facts an action is judged against.
// OwnsClassroom must come from the store, never from the request.
type Resource struct {
	OwnsClassroom bool
	// TargetID is the principal whose membership the action affects.
	TargetID string
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
	// Err is ErrUnauthenticated or ErrForbidden when Allowed is false.
	Err error
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(kind error, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Err: newServiceError(kind, reason)}
}

// Authorize decides whether principal may perform action on resource. It has
// no side effects and reads nothing outside its arguments.
func Authorize(principal Principal, action Action, resource Resource) Decision {
	if !principal.Authenticated() {
		return deny(ErrUnauthenticated, "authentication required")
	}

	switch action {
	case ActionCreateClassroom:
		if principal.Role != RoleOwner {
			return deny(ErrForbidden, "only owners can create classrooms")
		}
		return allow("owner may create classrooms")

	case ActionListClassrooms:
		switch principal.Role {
		case RoleOwner:
			return allow("owner lists owned classrooms")
		case RoleMember:
			return allow("member lists joined classrooms")
		}
		return deny(ErrForbidden, "role cannot list classrooms")

	case ActionViewClassroom:
		return allow("authenticated principals may view classrooms")

	case ActionJoinClassroom:
		if principal.Role != RoleMember {
			return deny(ErrForbidden, "only members can join classrooms")
		}
		if resource.OwnsClassroom {
			return deny(ErrForbidden, "owners cannot join their own classroom")
		}
		return allow("member may join by code")

	case ActionLeaveClassroom:
		if principal.Role != RoleMember {
			return deny(ErrForbidden, "only members can leave classrooms")
		}
		if resource.TargetID != principal.ID {
			return deny(ErrForbidden, "members can only leave on their own behalf")
		}
		return allow("member may leave")

	case ActionRemoveMember:
		if principal.Role != RoleOwner {
			return deny(ErrForbidden, "only owners can remove members")
		}
		if !resource.OwnsClassroom {
			return deny(ErrForbidden, "you do not own this classroom")
		}
		return allow("owner manages own classroom")

	case ActionUpdateClassroom, ActionDeleteClassroom:
		if principal.Role != RoleOwner {
			return deny(ErrForbidden, "only owners can modify classrooms")
		}
		if !resource.OwnsClassroom {
			return deny(ErrForbidden, "you do not own this classroom")
		}
		return allow("owner modifies own classroom")
	}

	return deny(ErrForbidden, "action is not permitted")
}
