package service

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
)

// Client calls DraftTurnService over HTTP.
type Client struct {
	createDraft    *connect.Client[CreateDraftRequest, CreateDraftResponse]
	startPhase     *connect.Client[DraftRequest, StateResponse]
	claim          *connect.Client[ClaimRequest, ClaimResponse]
	forceRecover   *connect.Client[DraftRequest, ForceRecoverResponse]
	getPublicState *connect.Client[DraftRequest, StateResponse]
	beginPickPhase *connect.Client[DraftRequest, StateResponse]
	resetDraft     *connect.Client[DraftRequest, StateResponse]
	setPool        *connect.Client[SetSelectionPoolRequest, SetSelectionPoolResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		createDraft:    connect.NewClient[CreateDraftRequest, CreateDraftResponse](httpClient, baseURL+CreateDraftProcedure, opts...),
		startPhase:     connect.NewClient[DraftRequest, StateResponse](httpClient, baseURL+StartPhaseProcedure, opts...),
		claim:          connect.NewClient[ClaimRequest, ClaimResponse](httpClient, baseURL+ClaimProcedure, opts...),
		forceRecover:   connect.NewClient[DraftRequest, ForceRecoverResponse](httpClient, baseURL+ForceRecoverProcedure, opts...),
		getPublicState: connect.NewClient[DraftRequest, StateResponse](httpClient, baseURL+GetPublicStateProcedure, opts...),
		beginPickPhase: connect.NewClient[DraftRequest, StateResponse](httpClient, baseURL+BeginPickPhaseProcedure, opts...),
		resetDraft:     connect.NewClient[DraftRequest, StateResponse](httpClient, baseURL+ResetDraftProcedure, opts...),
		setPool:        connect.NewClient[SetSelectionPoolRequest, SetSelectionPoolResponse](httpClient, baseURL+SetSelectionPoolProcedure, opts...),
	}
}

func (c *Client) CreateDraft(ctx context.Context, req *CreateDraftRequest) (*CreateDraftResponse, error) {
	res, err := c.createDraft.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) StartPhase(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error) {
	return callState(ctx, c.startPhase, draftID)
}

// GetPublicState makes Client usable wherever a StateReader is expected.
func (c *Client) GetPublicState(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error) {
	return callState(ctx, c.getPublicState, draftID)
}

func (c *Client) BeginPickPhase(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error) {
	return callState(ctx, c.beginPickPhase, draftID)
}

func (c *Client) ResetDraft(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error) {
	return callState(ctx, c.resetDraft, draftID)
}

func (c *Client) Claim(ctx context.Context, req *ClaimRequest) (*ClaimResponse, error) {
	res, err := c.claim.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) ForceRecover(ctx context.Context, draftID uuid.UUID) (*ForceRecoverResponse, error) {
	res, err := c.forceRecover.CallUnary(ctx, connect.NewRequest(&DraftRequest{DraftID: draftID.String()}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) SetSelectionPool(ctx context.Context, req *SetSelectionPoolRequest) (*SetSelectionPoolResponse, error) {
	res, err := c.setPool.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func callState(ctx context.Context, client *connect.Client[DraftRequest, StateResponse], draftID uuid.UUID) (*engine.PublicState, error) {
	res, err := client.CallUnary(ctx, connect.NewRequest(&DraftRequest{DraftID: draftID.String()}))
	if err != nil {
		return nil, err
	}
	return &res.Msg.State, nil
}
