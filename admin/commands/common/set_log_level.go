package common

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/admin"
	"github.com/dwallet-network/dwallet-node/admin/commands"
)

var _ commands.AdminCommand = (*SetLogLevelCommand)(nil)

// SetLogLevelCommand changes the global log level of the node.
type SetLogLevelCommand struct{}

func NewSetLogLevelCommand() *SetLogLevelCommand {
	return &SetLogLevelCommand{}
}

func (s *SetLogLevelCommand) Handler(_ context.Context, req *admin.CommandRequest) (interface{}, error) {
	level := req.ValidatorData.(zerolog.Level)
	previous := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(level)

	return map[string]any{
		"oldValue": previous.String(),
		"newValue": level.String(),
	}, nil
}

// Validator validates the request.
// Returns admin.InvalidAdminReqError for invalid/malformed requests.
func (s *SetLogLevelCommand) Validator(req *admin.CommandRequest) error {
	value, ok := req.Data.(string)
	if !ok {
		return admin.NewInvalidAdminReqFormatError("expected string, got %T", req.Data)
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return admin.NewInvalidAdminReqParameterError("level", err.Error(), value)
	}
	if level == zerolog.NoLevel {
		return admin.NewInvalidAdminReqParameterError("level", "level must be set", value)
	}
	req.ValidatorData = level
	return nil
}
