// Package service exposes the turn engine as the DraftTurnService Connect API.
package service

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
)

const ServiceName = "draftturns.v1.DraftTurnService"

const (
	CreateDraftProcedure      = "/" + ServiceName + "/CreateDraft"
	StartPhaseProcedure       = "/" + ServiceName + "/StartPhase"
	ClaimProcedure            = "/" + ServiceName + "/Claim"
	ForceRecoverProcedure     = "/" + ServiceName + "/ForceRecover"
	GetPublicStateProcedure   = "/" + ServiceName + "/GetPublicState"
	BeginPickPhaseProcedure   = "/" + ServiceName + "/BeginPickPhase"
	ResetDraftProcedure       = "/" + ServiceName + "/ResetDraft"
	SetSelectionPoolProcedure = "/" + ServiceName + "/SetSelectionPool"
)

// TurnEngine is what the service needs from the engine.
type TurnEngine interface {
	CreateDraft(ctx context.Context, draft models.Draft, participants []uuid.UUID) (*models.Draft, error)
	StartPhase(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error)
	Claim(ctx context.Context, req engine.ClaimRequest) (*engine.ClaimResult, error)
	ForceRecover(ctx context.Context, draftID uuid.UUID) (*engine.RecoverResult, error)
	BeginPickPhase(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error)
	ResetDraft(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error)
}

// StateReader serves public state reads, possibly from a cache.
type StateReader interface {
	GetPublicState(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error)
}

// SelectionPools stores what automatic picks may choose from.
type SelectionPools interface {
	SetSelectionPool(ctx context.Context, draftID uuid.UUID, selections []uuid.UUID) error
}

type Service struct {
	engine TurnEngine
	states StateReader
	pools  SelectionPools
}

type Option func(*Service)

// WithSelectionPools enables SetSelectionPool; without it the procedure is unimplemented.
func WithSelectionPools(p SelectionPools) Option {
	return func(s *Service) { s.pools = p }
}

func NewService(eng TurnEngine, states StateReader, opts ...Option) *Service {
	s := &Service{engine: eng, states: states}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler mounts every procedure and returns the path prefix to register it under.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateDraftProcedure, connect.NewUnaryHandler(CreateDraftProcedure, svc.CreateDraft, opts...))
	mux.Handle(StartPhaseProcedure, connect.NewUnaryHandler(StartPhaseProcedure, svc.StartPhase, opts...))
	mux.Handle(ClaimProcedure, connect.NewUnaryHandler(ClaimProcedure, svc.Claim, opts...))
	mux.Handle(ForceRecoverProcedure, connect.NewUnaryHandler(ForceRecoverProcedure, svc.ForceRecover, opts...))
	mux.Handle(GetPublicStateProcedure, connect.NewUnaryHandler(GetPublicStateProcedure, svc.GetPublicState, opts...))
	mux.Handle(BeginPickPhaseProcedure, connect.NewUnaryHandler(BeginPickPhaseProcedure, svc.BeginPickPhase, opts...))
	mux.Handle(ResetDraftProcedure, connect.NewUnaryHandler(ResetDraftProcedure, svc.ResetDraft, opts...))
	mux.Handle(SetSelectionPoolProcedure, connect.NewUnaryHandler(SetSelectionPoolProcedure, svc.SetSelectionPool, opts...))
	return "/" + ServiceName + "/", mux
}

func (s *Service) CreateDraft(ctx context.Context, req *connect.Request[CreateDraftRequest]) (*connect.Response[CreateDraftResponse], error) {
	draft, participants, err := req.Msg.toModel()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	created, err := s.engine.CreateDraft(ctx, draft, participants)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CreateDraftResponse{Draft: *created}), nil
}

func (s *Service) StartPhase(ctx context.Context, req *connect.Request[DraftRequest]) (*connect.Response[StateResponse], error) {
	return s.stateCall(ctx, req.Msg, s.engine.StartPhase)
}

func (s *Service) GetPublicState(ctx context.Context, req *connect.Request[DraftRequest]) (*connect.Response[StateResponse], error) {
	return s.stateCall(ctx, req.Msg, s.states.GetPublicState)
}

func (s *Service) BeginPickPhase(ctx context.Context, req *connect.Request[DraftRequest]) (*connect.Response[StateResponse], error) {
	return s.stateCall(ctx, req.Msg, s.engine.BeginPickPhase)
}

func (s *Service) ResetDraft(ctx context.Context, req *connect.Request[DraftRequest]) (*connect.Response[StateResponse], error) {
	return s.stateCall(ctx, req.Msg, s.engine.ResetDraft)
}

func (s *Service) Claim(ctx context.Context, req *connect.Request[ClaimRequest]) (*connect.Response[ClaimResponse], error) {
	claim, err := req.Msg.toEngine()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	res, err := s.engine.Claim(ctx, claim)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ClaimResponse{Claim: res.Claim, State: res.State}), nil
}

func (s *Service) ForceRecover(ctx context.Context, req *connect.Request[DraftRequest]) (*connect.Response[ForceRecoverResponse], error) {
	draftID, err := parseID("draft_id", req.Msg.DraftID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	res, err := s.engine.ForceRecover(ctx, draftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ForceRecoverResponse{Skipped: res.Skipped, Claim: res.Claim, State: res.State}), nil
}

func (s *Service) SetSelectionPool(ctx context.Context, req *connect.Request[SetSelectionPoolRequest]) (*connect.Response[SetSelectionPoolResponse], error) {
	if s.pools == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("selection pools are not configured"))
	}
	draftID, selections, err := req.Msg.parse()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if _, err := s.states.GetPublicState(ctx, draftID); err != nil {
		return nil, toConnectError(err)
	}
	if err := s.pools.SetSelectionPool(ctx, draftID, selections); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SetSelectionPoolResponse{Count: len(selections)}), nil
}

func (s *Service) stateCall(ctx context.Context, msg *DraftRequest, fn func(context.Context, uuid.UUID) (*engine.PublicState, error)) (*connect.Response[StateResponse], error) {
	draftID, err := parseID("draft_id", msg.DraftID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	st, err := fn(ctx, draftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StateResponse{State: *st}), nil
}
