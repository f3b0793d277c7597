package job

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/muaviaUsmani/bananas/internal/serialization"
)

// DefaultSerializer detects the format of a job's encoded data sub-object.
// Jobs that self-encode as protobuf (format-byte prefix 0x01, written by
// the job's own Encode via serialization.Serializer.MarshalWithFormat) own
// their tries/maxtries fields directly and are decoded unchanged; JSON
// payloads (prefixed or legacy unprefixed) get tries/maxtries merged in
// transparently, per spec's tries/maxtries-in-data contract.
var DefaultSerializer = serialization.NewJSONSerializer()

// attemptFields is the shape merged into data before Decode, per spec.
type attemptFields struct {
	Tries    uint `json:"tries"`
	MaxTries uint `json:"maxtries"`
}

// Encode renders j as a fresh envelope: className is the registered name,
// uuid is freshly generated, and data is the job's own state.
func Encode(name string, j Job) (Envelope, error) {
	data, err := j.Encode()
	if err != nil {
		return Envelope{}, fmt.Errorf("job: encode %q: %w", name, err)
	}

	return Envelope{
		ClassName: name,
		UUID:      uuid.NewString(),
		Data:      data,
	}, nil
}

// Decode looks up env.ClassName in the registry, instantiates a fresh job,
// injects tries/maxtries into the data, and restores its state. The
// returned job always sees its authoritative attempt count.
func Decode(registry *Registry, env Envelope, tries, maxTries uint) (Job, error) {
	j, err := registry.Instance(env.ClassName)
	if err != nil {
		return nil, err
	}

	data, err := mergeAttemptFields(env.Data, tries, maxTries)
	if err != nil {
		return nil, &ErrMalformedPayload{Reason: err.Error()}
	}

	if err := j.Decode(data); err != nil {
		return nil, &ErrMalformedPayload{Reason: err.Error()}
	}

	return j, nil
}

// mergeAttemptFields overlays {"tries","maxtries"} onto a JSON data object,
// starting from {} when data is empty; data that is not a JSON object is
// an error. Protobuf
// payloads are left untouched: a protobuf job owns its tries/maxtries as
// real message fields and round-trips them through its own Encode/Decode.
// A JSON format-byte prefix is dropped, so the result is plain JSON.
func mergeAttemptFields(data []byte, tries, maxTries uint) ([]byte, error) {
	if len(data) > 0 && DefaultSerializer.IsProtobuf(data) {
		return data, nil
	}
	if len(data) > 0 && data[0] == byte(serialization.FormatJSON) {
		data = data[1:]
	}

	fields := map[string]json.RawMessage{}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("data is not a JSON object: %w", err)
		}
	}

	triesBytes, err := json.Marshal(tries)
	if err != nil {
		return nil, err
	}
	maxTriesBytes, err := json.Marshal(maxTries)
	if err != nil {
		return nil, err
	}

	fields["tries"] = triesBytes
	fields["maxtries"] = maxTriesBytes

	return json.Marshal(fields)
}
