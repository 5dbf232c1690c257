package commands

import (
	"context"

	"github.com/dwallet-network/dwallet-node/admin"
)

// AdminCommand defines the interface expected for admin command handlers.
type AdminCommand interface {
	// Validator is responsible for validating that the input forms a valid request.
	// By convention, Validator may set the ValidatorData field on the request, and
	// this will persist when the request is passed to Handler.
	// Returns admin.InvalidAdminReqError for invalid requests.
	Validator(request *admin.CommandRequest) error
	// Handler is responsible for handling the request. It applies any state
	// changes associated with the request and returns any values which should
	// be displayed to the initiator of the request.
	Handler(ctx context.Context, request *admin.CommandRequest) (interface{}, error)
}

// Register adds command to runner under name. It returns false if name is taken.
func Register(runner *admin.CommandRunner, name string, command AdminCommand) bool {
	return runner.RegisterValidator(name, command.Validator) &&
		runner.RegisterHandler(name, command.Handler)
}
