package store

import (
	"strconv"

	"github.com/roach88/kbind/internal/kval"
)

// IPC drops enum sources. A top-level enum keeps its source in
// entries.enum_source; enums below it are recorded by path in
// entries.enum_sources. A path joins steps with "/": a compound item by its
// index, a dictionary's keys as "k" and values as "v". A table is walked as
// its dictionary, so column i of a table is "v/i".

func childPath(path, step string) string {
	if path == "" {
		return step
	}
	return path + "/" + step
}

// enumSources maps the path of every nested enum with a source to that
// source. The result is never nil.
func enumSources(v kval.Value) map[string]string {
	out := map[string]string{}
	collectSources(v, "", out)
	return out
}

func collectSources(v kval.Value, path string, out map[string]string) {
	switch x := v.(type) {
	case kval.Enum:
		if path != "" && x.Source != "" {
			out[path] = x.Source
		}
	case kval.CompoundList:
		for i, item := range x {
			collectSources(item, childPath(path, strconv.Itoa(i)), out)
		}
	case kval.Dict:
		collectSources(x.Keys(), childPath(path, "k"), out)
		collectSources(x.Values(), childPath(path, "v"), out)
	case kval.Table:
		collectSources(x.Dict(), path, out)
	}
}

// attachSources returns v with the recorded sources set on its nested
// enums. Enums that already carry a source keep it.
func attachSources(v kval.Value, path string, sources map[string]string) (kval.Value, error) {
	switch x := v.(type) {
	case kval.Enum:
		if src, ok := sources[path]; ok && x.Source == "" {
			x.Source = src
		}
		return x, nil
	case kval.CompoundList:
		out := make(kval.CompoundList, len(x))
		for i, item := range x {
			child, err := attachSources(item, childPath(path, strconv.Itoa(i)), sources)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	case kval.Dict:
		return attachDict(x, path, sources)
	case kval.Table:
		d, err := attachDict(x.Dict(), path, sources)
		if err != nil {
			return nil, err
		}
		return kval.NewTable(d)
	}
	return v, nil
}

func attachDict(d kval.Dict, path string, sources map[string]string) (kval.Dict, error) {
	keys, err := attachSources(d.Keys(), childPath(path, "k"), sources)
	if err != nil {
		return kval.Dict{}, err
	}
	values, err := attachSources(d.Values(), childPath(path, "v"), sources)
	if err != nil {
		return kval.Dict{}, err
	}
	out, err := kval.NewDict(keys, values)
	if err != nil {
		return kval.Dict{}, err
	}
	if d.Sorted() {
		out = out.AsSorted()
	}
	return out, nil
}
