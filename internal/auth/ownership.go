package auth

import (
	"fmt"

	"github.com/sakif/group-study/internal/apperror"
)

// Action names the mutation an ownership check guards. It only shapes the
// rejection message.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Authorize is the ownership rule for mutating writes: the requester identity
// supplied with the request must equal the owner identity stored on the
// resource.
//
// It is pure. Repositories call it after loading the stored owner and before
// issuing the write, so existence is always established first: a missing
// resource is NotFound, an existing one owned by someone else is Unauthorized.
func Authorize(action Action, owner, requester string) error {
	if requester == "" || owner != requester {
		return apperror.Unauthorized(fmt.Sprintf("You are not authorized to %s this assignment", action))
	}
	return nil
}

// OwnerCheck binds Authorize to one requester and action, in the shape the
// repositories accept.
func OwnerCheck(action Action, requester string) func(owner string) error {
	return func(owner string) error {
		return Authorize(action, owner, requester)
	}
}
