// Package epoch holds admin commands reporting the epoch and role of the node.
package epoch

import (
	"context"
	"sort"

	"github.com/dwallet-network/dwallet-node/admin"
	"github.com/dwallet-network/dwallet-node/admin/commands"
	"github.com/dwallet-network/dwallet-node/engine/epochmgr"
	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// ValidatorState is the read-only view of the epoch orchestrator used by the commands.
type ValidatorState interface {
	IsValidator() bool
	CurrentEpoch() dwallet.EpochID
	ValidatorComponents() *epochmgr.ValidatorComponents
}

var _ ValidatorState = (*epochmgr.Engine)(nil)

// noData accepts requests without payload.
func noData(req *admin.CommandRequest) error {
	if req.Data != nil {
		return admin.NewInvalidAdminReqFormatError("command takes no data, got %T", req.Data)
	}
	return nil
}

var (
	_ commands.AdminCommand = (*IsValidatorCommand)(nil)
	_ commands.AdminCommand = (*CurrentEpochCommand)(nil)
	_ commands.AdminCommand = (*LowScoringAuthoritiesCommand)(nil)
)

// IsValidatorCommand reports whether the node currently runs validator components.
type IsValidatorCommand struct {
	state ValidatorState
}

func NewIsValidatorCommand(state ValidatorState) *IsValidatorCommand {
	return &IsValidatorCommand{state: state}
}

func (c *IsValidatorCommand) Handler(context.Context, *admin.CommandRequest) (interface{}, error) {
	return map[string]any{
		"validator": c.state.IsValidator(),
		"epoch":     uint64(c.state.CurrentEpoch()),
	}, nil
}

func (c *IsValidatorCommand) Validator(req *admin.CommandRequest) error {
	return noData(req)
}

// CurrentEpochCommand reports the epoch of the current epoch store.
type CurrentEpochCommand struct {
	state ValidatorState
}

func NewCurrentEpochCommand(state ValidatorState) *CurrentEpochCommand {
	return &CurrentEpochCommand{state: state}
}

func (c *CurrentEpochCommand) Handler(context.Context, *admin.CommandRequest) (interface{}, error) {
	return map[string]any{
		"epoch": uint64(c.state.CurrentEpoch()),
	}, nil
}

func (c *CurrentEpochCommand) Validator(req *admin.CommandRequest) error {
	return noData(req)
}

// LowScoringAuthoritiesCommand lists the authorities currently scored low by consensus,
// together with their scores. Fullnodes report an empty list.
type LowScoringAuthoritiesCommand struct {
	state ValidatorState
}

func NewLowScoringAuthoritiesCommand(state ValidatorState) *LowScoringAuthoritiesCommand {
	return &LowScoringAuthoritiesCommand{state: state}
}

func (c *LowScoringAuthoritiesCommand) Handler(context.Context, *admin.CommandRequest) (interface{}, error) {
	authorities := []map[string]any{}
	comps := c.state.ValidatorComponents()
	if comps == nil {
		return map[string]any{"validator": false, "authorities": authorities}, nil
	}

	scores := comps.LowScoring.Load()
	names := make([]dwallet.AuthorityName, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})
	for _, name := range names {
		authorities = append(authorities, map[string]any{
			"authority": name.String(),
			"score":     scores[name],
		})
	}

	return map[string]any{
		"validator":   true,
		"epoch":       uint64(comps.Epoch),
		"authorities": authorities,
	}, nil
}

func (c *LowScoringAuthoritiesCommand) Validator(req *admin.CommandRequest) error {
	return noData(req)
}

// Register adds all epoch commands to runner.
func Register(runner *admin.CommandRunner, state ValidatorState) {
	commands.Register(runner, "is-validator", NewIsValidatorCommand(state))
	commands.Register(runner, "current-epoch", NewCurrentEpochCommand(state))
	commands.Register(runner, "low-scoring-authorities", NewLowScoringAuthoritiesCommand(state))
}
