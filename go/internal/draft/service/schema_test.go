package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/grpcreflect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/mcdev12/draftturns/go/internal/draft/service"
)

func TestSchema_DescribesEveryProcedure(t *testing.T) {
	files, err := service.Schema()
	require.NoError(t, err)

	d, err := files.FindDescriptorByName(service.ServiceName)
	require.NoError(t, err)
	sd, ok := d.(protoreflect.ServiceDescriptor)
	require.True(t, ok)

	var procedures []string
	for i := 0; i < sd.Methods().Len(); i++ {
		procedures = append(procedures, "/"+service.ServiceName+"/"+string(sd.Methods().Get(i).Name()))
	}
	assert.ElementsMatch(t, []string{
		service.CreateDraftProcedure,
		service.StartPhaseProcedure,
		service.ClaimProcedure,
		service.ForceRecoverProcedure,
		service.GetPublicStateProcedure,
		service.BeginPickPhaseProcedure,
		service.ResetDraftProcedure,
		service.SetSelectionPoolProcedure,
	}, procedures)
}

// Every message the handlers send or accept must decode against its schema type,
// which rejects unknown field names.
func TestSchema_MatchesJSONWire(t *testing.T) {
	files, err := service.Schema()
	require.NoError(t, err)

	cases := map[string]any{
		"CreateDraftRequest": service.CreateDraftRequest{
			LeagueID:          "8f14e45f-ceea-467a-9575-1c5a9a5c2f11",
			Phase:             "derby",
			OrderingMode:      "snake",
			Rounds:            2,
			TimePerTurnSec:    30,
			TimeoutPolicy:     "skip",
			PickSkipPlacement: "front",
			ShuffleOrder:      true,
			Participants:      []string{"a", "b"},
		},
		"CreateDraftResponse":      service.CreateDraftResponse{},
		"DraftRequest":             service.DraftRequest{DraftID: "d"},
		"StateResponse":            service.StateResponse{},
		"ClaimRequest":             service.ClaimRequest{DraftID: "d", RosterID: "r", Unit: 3, SelectionID: "s"},
		"ClaimResponse":            service.ClaimResponse{},
		"ForceRecoverResponse":     service.ForceRecoverResponse{},
		"SetSelectionPoolRequest":  service.SetSelectionPoolRequest{DraftID: "d", Selections: []string{"x", "y"}},
		"SetSelectionPoolResponse": service.SetSelectionPoolResponse{Count: 2},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := files.FindDescriptorByName(protoreflect.FullName("draftturns.v1." + name))
			require.NoError(t, err)
			md, ok := d.(protoreflect.MessageDescriptor)
			require.True(t, ok)

			data, err := json.Marshal(msg)
			require.NoError(t, err)
			assert.NoError(t, protojson.Unmarshal(data, dynamicpb.NewMessage(md)), string(data))
		})
	}
}

func TestReflection_ServesDraftTurnService(t *testing.T) {
	reflector, err := service.NewReflector()
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	srv := httptest.NewUnstartedServer(mux)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	stream := grpcreflect.NewClient(srv.Client(), srv.URL).NewStream(context.Background())
	defer stream.Close()

	names, err := stream.ListServices()
	require.NoError(t, err)
	assert.Contains(t, names, protoreflect.FullName(service.ServiceName))

	files, err := stream.FileContainingSymbol(service.ServiceName)
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.GetName())
	}
	assert.Contains(t, paths, service.SchemaPath)
	assert.Contains(t, paths, "google/protobuf/struct.proto")
}
