package job

import (
	"testing"

	"github.com/muaviaUsmani/bananas/internal/serialization"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// protoJob self-encodes via serialization.Serializer's protobuf format,
// exercising codec.go's format-prefix detection in mergeAttemptFields.
type protoJob struct {
	Value string
}

func (j *protoJob) Name() string       { return "ProtoEcho" }
func (j *protoJob) Handle() error      { return nil }
func (j *protoJob) MaxTries() uint     { return 3 }
func (j *protoJob) RetryIfError() bool { return true }

func (j *protoJob) Encode() ([]byte, error) {
	return serialization.NewProtobufSerializer().Marshal(wrapperspb.String(j.Value))
}

func (j *protoJob) Decode(data []byte) error {
	msg := &wrapperspb.StringValue{}
	if err := serialization.NewProtobufSerializer().Unmarshal(data, msg); err != nil {
		return err
	}
	j.Value = msg.GetValue()
	return nil
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	r := NewRegistry()
	if err := Register(r, "Echo", func() *EchoJob { return &EchoJob{} }); err != nil {
		t.Fatalf("register: %v", err)
	}

	original := NewEchoJob("hello")
	env, err := Encode("Echo", original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.ClassName != "Echo" {
		t.Errorf("expected className Echo, got %s", env.ClassName)
	}
	if env.UUID == "" {
		t.Error("expected a non-empty uuid")
	}

	restored, err := Decode(r, env, 1, original.MaxTries())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	echoed, ok := restored.(*EchoJob)
	if !ok {
		t.Fatalf("expected *EchoJob, got %T", restored)
	}
	if echoed.Message != original.Message {
		t.Errorf("expected message %q, got %q", original.Message, echoed.Message)
	}
	if echoed.Tries != 1 {
		t.Errorf("expected tries=1 injected by Decode, got %d", echoed.Tries)
	}
	if echoed.MaxAttempts != original.MaxTries() {
		t.Errorf("expected maxtries=%d, got %d", original.MaxTries(), echoed.MaxAttempts)
	}
}

func TestEncodeDecode_ProtobufPayloadSkipsAttemptMerge(t *testing.T) {
	r := NewRegistry()
	if err := Register(r, "ProtoEcho", func() *protoJob { return &protoJob{} }); err != nil {
		t.Fatalf("register: %v", err)
	}

	original := &protoJob{Value: "hello-proto"}
	env, err := Encode("ProtoEcho", original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !DefaultSerializer.IsProtobuf(env.Data) {
		t.Fatal("expected protobuf-prefixed data")
	}

	restored, err := Decode(r, env, 7, 9)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	echoed, ok := restored.(*protoJob)
	if !ok {
		t.Fatalf("expected *protoJob, got %T", restored)
	}
	if echoed.Value != original.Value {
		t.Errorf("expected value %q, got %q", original.Value, echoed.Value)
	}
}

func TestDecode_UnknownClassName(t *testing.T) {
	r := NewRegistry()
	_, err := Decode(r, Envelope{ClassName: "Nope", Data: []byte(`{}`)}, 0, 3)
	if err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestDecode_MalformedData(t *testing.T) {
	r := NewRegistry()
	if err := Register(r, "Echo", func() *EchoJob { return &EchoJob{} }); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := Decode(r, Envelope{ClassName: "Echo", Data: []byte(`not json`)}, 0, 3)
	if err == nil {
		t.Fatal("expected malformed payload error")
	}
	if _, ok := err.(*ErrMalformedPayload); !ok {
		t.Errorf("expected *ErrMalformedPayload, got %T", err)
	}
}
