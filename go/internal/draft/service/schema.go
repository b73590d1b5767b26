package service

import (
	"fmt"
	"sync"

	"connectrpc.com/grpcreflect"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SchemaPath is the file DraftTurnService is described in.
const SchemaPath = "draftturns/v1/draft_turns.proto"

const structMessage = ".google.protobuf.Struct"

// Schema describes the JSON the service speaks as proto3. Field json names match the
// struct tags in messages.go; nested engine and model values are google.protobuf.Struct.
var Schema = sync.OnceValues(func() (*protoregistry.Files, error) {
	fd, err := protodesc.NewFile(schemaFile(), protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", SchemaPath, err)
	}
	files := new(protoregistry.Files)
	if err := files.RegisterFile(structpb.File_google_protobuf_struct_proto); err != nil {
		return nil, fmt.Errorf("failed to register struct.proto: %w", err)
	}
	if err := files.RegisterFile(fd); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", SchemaPath, err)
	}
	return files, nil
})

// NewReflector serves Schema over gRPC server reflection.
func NewReflector() (*grpcreflect.Reflector, error) {
	files, err := Schema()
	if err != nil {
		return nil, err
	}
	return grpcreflect.NewReflector(
		grpcreflect.NamerFunc(func() []string { return []string{ServiceName} }),
		grpcreflect.WithDescriptorResolver(files),
	), nil
}

func schemaFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(SchemaPath),
		Package:    proto.String("draftturns.v1"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/struct.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			message("CreateDraftRequest",
				scalar("league_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("phase", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("ordering_mode", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("rounds", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("time_per_turn_sec", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("timeout_policy", 6, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("pick_skip_placement", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("shuffle_order", 8, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				repeated("participants", 9),
			),
			message("CreateDraftResponse", object("draft", 1)),
			message("DraftRequest", scalar("draft_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("StateResponse", object("state", 1)),
			message("ClaimRequest",
				scalar("draft_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("roster_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("unit", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("selection_id", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			),
			message("ClaimResponse", object("claim", 1), object("state", 2)),
			message("ForceRecoverResponse", object("skipped", 1), object("claim", 2), object("state", 3)),
			message("SetSelectionPoolRequest",
				scalar("draft_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				repeated("selections", 2),
			),
			message("SetSelectionPoolResponse", scalar("count", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("DraftTurnService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("CreateDraft", "CreateDraftRequest", "CreateDraftResponse"),
				method("StartPhase", "DraftRequest", "StateResponse"),
				method("Claim", "ClaimRequest", "ClaimResponse"),
				method("ForceRecover", "DraftRequest", "ForceRecoverResponse"),
				method("GetPublicState", "DraftRequest", "StateResponse"),
				method("BeginPickPhase", "DraftRequest", "StateResponse"),
				method("ResetDraft", "DraftRequest", "StateResponse"),
				method("SetSelectionPool", "SetSelectionPoolRequest", "SetSelectionPoolResponse"),
			},
		}},
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func repeated(name string, number int32) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func object(name string, number int32) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(structMessage)
	return f
}

func method(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(".draftturns.v1." + input),
		OutputType: proto.String(".draftturns.v1." + output),
	}
}
