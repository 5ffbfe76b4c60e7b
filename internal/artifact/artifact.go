// Package artifact defines the compiled-artifact container: an opaque
// byte sequence a caller may persist or transmit, and the only thing
// that crosses from the backend compiler to the runtime loader.
//
// Layout: 4-byte magic, 1-byte format version, a little-endian u32
// metadata length, JSON metadata (target name and per-function ABI),
// then the backend-specific payload. The format version is checked on
// decode; compiler/runtime skew surfaces as a decode failure, there is
// no compatibility negotiation.
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/tensorvm/tcbridge/internal/ir"
)

var magic = []byte("TCAF")

// FormatVersion is the container version this build reads and writes.
const FormatVersion = 1

// FuncABI describes one exported function's calling contract.
//
// ParamOffsets/ResultOffsets are populated only by targets with a
// linear-memory ABI (wasm); they give the static byte offset of each
// value buffer.
type FuncABI struct {
	Name          string     `json:"name"`
	LinkName      string     `json:"link_name"`
	Params        []ir.Shape `json:"params,omitempty"`
	Results       []ir.Shape `json:"results,omitempty"`
	ParamOffsets  []uint32   `json:"param_offsets,omitempty"`
	ResultOffsets []uint32   `json:"result_offsets,omitempty"`
}

type metadata struct {
	Target    string    `json:"target"`
	Functions []FuncABI `json:"functions"`
}

// Artifact is a decoded compiled artifact. Immutable once produced.
type Artifact struct {
	Target  string
	Funcs   []FuncABI
	Payload []byte
}

// ABI looks up a function's ABI by its source-level name.
func (a *Artifact) ABI(name string) (FuncABI, bool) {
	for _, f := range a.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return FuncABI{}, false
}

// FunctionNames returns the source-level names of all exported
// functions, in artifact order.
func (a *Artifact) FunctionNames() []string {
	names := make([]string, len(a.Funcs))
	for i, f := range a.Funcs {
		names[i] = f.Name
	}
	return names
}

// Encode serializes the artifact to its container form.
func (a *Artifact) Encode() ([]byte, error) {
	meta, err := json.Marshal(metadata{Target: a.Target, Functions: a.Funcs})
	if err != nil {
		return nil, fmt.Errorf("encode artifact metadata: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(FormatVersion)
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(meta)))
	buf.Write(lenBytes[:])
	buf.Write(meta)
	buf.Write(a.Payload)
	return buf.Bytes(), nil
}

// Decode parses a container. Malformed input, a foreign magic, or an
// unknown format version all fail; the payload itself is not
// validated here.
func Decode(data []byte) (*Artifact, error) {
	if len(data) < len(magic)+1+4 {
		return nil, fmt.Errorf("artifact too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, fmt.Errorf("not a compiled artifact (bad magic)")
	}
	if v := data[4]; v != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact format version %d (this runtime reads %d)", v, FormatVersion)
	}
	metaLen := binary.LittleEndian.Uint32(data[5:9])
	rest := data[9:]
	if uint32(len(rest)) < metaLen {
		return nil, fmt.Errorf("truncated artifact metadata")
	}
	var meta metadata
	if err := json.Unmarshal(rest[:metaLen], &meta); err != nil {
		return nil, fmt.Errorf("decode artifact metadata: %w", err)
	}
	return &Artifact{
		Target:  meta.Target,
		Funcs:   meta.Functions,
		Payload: rest[metaLen:],
	}, nil
}
