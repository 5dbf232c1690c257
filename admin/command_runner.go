package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dwallet-network/dwallet-node/module/component"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
)

const (
	// RunCommandPath is the endpoint commands are posted to.
	RunCommandPath = "/admin/run_command"

	CommandRunnerShutdownTimeout = 5 * time.Second
)

// CommandRequest is a single invocation of an admin command.
type CommandRequest struct {
	// Data is the decoded JSON payload of the request.
	Data any
	// ValidatorData may be set by the validator and is passed on to the handler.
	ValidatorData any
}

// CommandHandler executes a validated request and returns the output for the caller.
type CommandHandler func(ctx context.Context, request *CommandRequest) (interface{}, error)

// CommandValidator checks a request before it is handled. It must return an
// InvalidAdminReqError for malformed requests.
type CommandValidator func(request *CommandRequest) error

type runCommandRequest struct {
	CommandName string          `json:"commandName"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type runCommandResponse struct {
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// CommandRunner serves registered admin commands over HTTP.
type CommandRunner struct {
	component.Component

	log    zerolog.Logger
	server *http.Server

	mu         sync.RWMutex
	handlers   map[string]CommandHandler
	validators map[string]CommandValidator
}

func NewCommandRunner(log zerolog.Logger, address string) *CommandRunner {
	r := &CommandRunner{
		log:        log.With().Str("component", "admin_command_runner").Str("address", address).Logger(),
		handlers:   make(map[string]CommandHandler),
		validators: make(map[string]CommandValidator),
	}
	r.server = &http.Server{
		Addr:         address,
		Handler:      r.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	r.Component = component.NewComponentManagerBuilder().
		AddWorker(r.serve).
		AddWorker(r.shutdownOnCancel).
		Build()

	return r
}

// RegisterHandler registers handler for command. It returns false if the command already
// has a handler.
func (r *CommandRunner) RegisterHandler(command string, handler CommandHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[command]; ok {
		return false
	}
	r.handlers[command] = handler
	return true
}

// RegisterValidator registers validator for command. It returns false if the command already
// has a validator.
func (r *CommandRunner) RegisterValidator(command string, validator CommandValidator) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.validators[command]; ok {
		return false
	}
	r.validators[command] = validator
	return true
}

// Router returns the HTTP routes of the runner.
func (r *CommandRunner) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Methods(http.MethodPost).Path(RunCommandPath).Name("RunCommand").HandlerFunc(r.handleRunCommand)
	return router
}

// RunCommand validates and executes command.
// Expected errors during normal operations:
//   - admin.ErrCommandNotFound if no handler is registered for command
//   - admin.InvalidAdminReqError if the request failed validation
func (r *CommandRunner) RunCommand(ctx context.Context, command string, data any) (interface{}, error) {
	r.mu.RLock()
	handler, ok := r.handlers[command]
	validator := r.validators[command]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", command, ErrCommandNotFound)
	}

	req := &CommandRequest{Data: data}
	if validator != nil {
		err := validator(req)
		if err != nil {
			return nil, err
		}
	}
	return handler(ctx, req)
}

func (r *CommandRunner) handleRunCommand(w http.ResponseWriter, req *http.Request) {
	var body runCommandRequest
	err := json.NewDecoder(req.Body).Decode(&body)
	if err != nil {
		r.respond(w, http.StatusBadRequest, runCommandResponse{Error: fmt.Sprintf("could not decode request: %v", err)})
		return
	}

	var data any
	if len(body.Data) > 0 {
		err = json.Unmarshal(body.Data, &data)
		if err != nil {
			r.respond(w, http.StatusBadRequest, runCommandResponse{Error: fmt.Sprintf("could not decode data: %v", err)})
			return
		}
	}

	log := r.log.With().Str("command", body.CommandName).Logger()
	output, err := r.RunCommand(req.Context(), body.CommandName, data)
	switch {
	case err == nil:
		log.Info().Msg("admin command executed")
		r.respond(w, http.StatusOK, runCommandResponse{Output: output})
	case errors.Is(err, ErrCommandNotFound):
		r.respond(w, http.StatusNotFound, runCommandResponse{Error: err.Error()})
	case IsInvalidAdminReqError(err):
		log.Warn().Err(err).Msg("invalid admin request")
		r.respond(w, http.StatusBadRequest, runCommandResponse{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("admin command failed")
		r.respond(w, http.StatusInternalServerError, runCommandResponse{Error: err.Error()})
	}
}

func (r *CommandRunner) respond(w http.ResponseWriter, status int, response runCommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not write admin response")
	}
}

func (r *CommandRunner) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	listener, err := net.Listen("tcp", r.server.Addr)
	if err != nil {
		ctx.Throw(fmt.Errorf("could not listen on admin address: %w", err))
		return
	}
	ready()
	r.log.Info().Msg("admin server started")

	err = r.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		ctx.Throw(fmt.Errorf("admin server failed: %w", err))
	}
}

func (r *CommandRunner) shutdownOnCancel(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), CommandRunnerShutdownTimeout)
	defer cancel()
	err := r.server.Shutdown(shutdownCtx)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not shut down admin server")
	}
}
