package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/kkkkikiki/portal/internal/assistant"
)

const (
	// AssistantServiceName is the fully-qualified name of the assistant service
	AssistantServiceName = "portal.v1.AssistantService"

	RespondProcedure = "/" + AssistantServiceName + "/Respond"
)

// AssistantServer answers free-text questions
type AssistantServer struct {
	responder *assistant.Responder
	validate  *validator.Validate
}

// NewAssistantServer creates a new AssistantServer instance
func NewAssistantServer(responder *assistant.Responder) *AssistantServer {
	return &AssistantServer{responder: responder, validate: newValidator()}
}

// NewAssistantServiceHandler builds an HTTP handler serving the assistant procedures
func NewAssistantServiceHandler(s *AssistantServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{JSONCodec()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(RespondProcedure, connect.NewUnaryHandler(RespondProcedure, s.Respond, opts...))
	return "/" + AssistantServiceName + "/", mux
}

// Respond returns the assistant's reply. Only a missing message field is an error.
func (s *AssistantServer) Respond(
	ctx context.Context,
	req *connect.Request[RespondRequest],
) (*connect.Response[RespondResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, validationError("respond", err)
	}

	text := s.responder.Respond(ctx, *req.Msg.Message)
	return connect.NewResponse(&RespondResponse{ResponseText: text}), nil
}
