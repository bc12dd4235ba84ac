package cli

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/heap"
	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

// Input formats readValue recognizes.
const (
	InputDescriptor = "descriptor"
	InputIPC        = "ipc"
)

// ValueInfo summarizes a value for inspect and store output.
type ValueInfo struct {
	Name   string `json:"name,omitempty"`
	Input  string `json:"input,omitempty"`
	Type   string `json:"type"`
	QType  k.Type `json:"qtype"`
	Len    int64  `json:"len"`
	Source string `json:"source,omitempty"`
	Q      string `json:"q"`
	Hash   string `json:"hash,omitempty"`
}

func describe(v kval.Value) ValueInfo {
	info := ValueInfo{
		Type:  codec.TypeName(v),
		QType: v.Type(),
		Len:   v.Len(),
		Q:     kval.Format(v),
	}
	if ev, ok := v.(kval.Enum); ok {
		info.Source = ev.Source
	}
	// foreign values have no hash
	if h, err := codec.Hash(v); err == nil {
		info.Hash = h
	}
	return info
}

// isIPC reports whether data carries an uncompressed little-endian IPC
// header whose length matches the message.
func isIPC(data []byte) bool {
	return len(data) >= 8 &&
		data[0] == 1 &&
		data[2] == 0 &&
		int(binary.LittleEndian.Uint32(data[4:])) == len(data)
}

// readValue loads the value in path, either a descriptor or an IPC message.
// IPC carries no enum sources, so enumSource names the domain of an enum
// read that way. The value is cloned off the runtime before returning.
func readValue(rt *heap.Runtime, path, enumSource string) (kval.Value, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if !isIPC(data) {
		v, err := codec.ParseValue(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return v, InputDescriptor, nil
	}

	raw, err := rt.Deserialize(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	defer rt.Unref(raw)
	return kval.Clone(kval.FromK(raw, enumSource)), InputIPC, nil
}

// defineEnums registers each "name=sym1,sym2" domain with rt.
func defineEnums(rt *heap.Runtime, specs []string) (map[string][]string, error) {
	domains := make(map[string][]string, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid enum %q: want name=sym1,sym2", spec)
		}
		var syms []string
		if list != "" {
			syms = strings.Split(list, ",")
		}
		if err := rt.DefineEnum(name, syms); err != nil {
			return nil, fmt.Errorf("enum %s: %w", name, err)
		}
		domains[name] = syms
	}
	return domains, nil
}
