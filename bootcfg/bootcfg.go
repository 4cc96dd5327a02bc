// Package bootcfg reads an optional boot configuration blob, encoded
// as TOML, that overrides the kernel's compiled-in resource ceilings
// (limits.Default) without a recompile. Grounded on the pack's
// TOML-based service configuration convention
// (other_examples/manifests/*/go.mod all carry github.com/BurntSushi/toml),
// since no kept teacher or original_source file itself configures a
// kernel this way.
package bootcfg

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"vanadinite/kernerr"
	"vanadinite/limits"
)

// Raw is the on-disk shape of a boot configuration blob; a field left
// unset (zero) does not override the corresponding compiled-in
// default.
type Raw struct {
	Frames       int64 `toml:"frames"`
	HeapBytes    int64 `toml:"heap_bytes"`
	Vmspaces     int64 `toml:"vmspaces"`
	Capabilities int64 `toml:"capabilities"`
}

// Load parses blob as TOML and applies any set field on top of
// limits.Default(). An empty blob yields the unmodified defaults.
func Load(blob []byte) (*limits.Kernel, error) {
	k := limits.Default()
	if len(blob) == 0 {
		return k, nil
	}

	var raw Raw
	if _, err := toml.NewDecoder(bytes.NewReader(blob)).Decode(&raw); err != nil {
		return nil, kernerr.Wrap(kernerr.InvalidArgument, err, "bootcfg: parse")
	}

	if raw.Frames != 0 {
		k.Frames = limits.Atomic(raw.Frames)
	}
	if raw.HeapBytes != 0 {
		k.HeapBytes = limits.Atomic(raw.HeapBytes)
	}
	if raw.Vmspaces != 0 {
		k.Vmspaces = limits.Atomic(raw.Vmspaces)
	}
	if raw.Capabilities != 0 {
		k.Capabilities = limits.Atomic(raw.Capabilities)
	}
	return k, nil
}
