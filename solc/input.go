// Package solc models the Solidity compiler's standard JSON interface and
// the local build artifacts produced from it. Verification resubmits the
// compiler input that produced a matched artifact, so the model must
// round-trip the schema without reordering fields or coercing values.
package solc

import "encoding/json"

// CompilerInput is the standard JSON input of a compilation run.
type CompilerInput struct {
	Language string                   `json:"language"`
	Sources  map[string]SourceContent `json:"sources"`
	Settings Settings                 `json:"settings"`
}

// SourceContent holds one source file's literal content.
type SourceContent struct {
	Content string `json:"content"`
}

// Settings mirrors the standard JSON settings object. Sub-objects this
// system never touches are kept raw so they survive round-trips verbatim.
type Settings struct {
	StopAfter       string                          `json:"stopAfter,omitempty"`
	Remappings      []string                        `json:"remappings,omitempty"`
	Optimizer       *Optimizer                      `json:"optimizer,omitempty"`
	EVMVersion      string                          `json:"evmVersion,omitempty"`
	ViaIR           *bool                           `json:"viaIR,omitempty"`
	Debug           json.RawMessage                 `json:"debug,omitempty"`
	Metadata        json.RawMessage                 `json:"metadata,omitempty"`
	Libraries       map[string]map[string]string    `json:"libraries,omitempty"`
	OutputSelection map[string]map[string][]string  `json:"outputSelection,omitempty"`
	ModelChecker    json.RawMessage                 `json:"modelChecker,omitempty"`
}

// Optimizer mirrors settings.optimizer.
type Optimizer struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Runs    *int            `json:"runs,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Clone returns a deep copy of the input.
func (i *CompilerInput) Clone() *CompilerInput {
	out := &CompilerInput{
		Language: i.Language,
		Sources:  make(map[string]SourceContent, len(i.Sources)),
		Settings: i.Settings,
	}
	for name, src := range i.Sources {
		out.Sources[name] = src
	}

	if i.Settings.Remappings != nil {
		out.Settings.Remappings = append([]string(nil), i.Settings.Remappings...)
	}
	if i.Settings.Optimizer != nil {
		opt := *i.Settings.Optimizer
		out.Settings.Optimizer = &opt
	}
	if i.Settings.ViaIR != nil {
		viaIR := *i.Settings.ViaIR
		out.Settings.ViaIR = &viaIR
	}
	if i.Settings.Libraries != nil {
		out.Settings.Libraries = cloneLibraries(i.Settings.Libraries)
	}
	if i.Settings.OutputSelection != nil {
		sel := make(map[string]map[string][]string, len(i.Settings.OutputSelection))
		for file, contracts := range i.Settings.OutputSelection {
			inner := make(map[string][]string, len(contracts))
			for name, outputs := range contracts {
				inner[name] = append([]string(nil), outputs...)
			}
			sel[file] = inner
		}
		out.Settings.OutputSelection = sel
	}

	return out
}

// WithLibraries returns a copy of the input whose settings carry the given
// library address table, replacing any previous one.
func (i *CompilerInput) WithLibraries(libraries map[string]map[string]string) *CompilerInput {
	out := i.Clone()
	if len(libraries) == 0 {
		return out
	}
	out.Settings.Libraries = cloneLibraries(libraries)
	return out
}

func cloneLibraries(libraries map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(libraries))
	for file, names := range libraries {
		inner := make(map[string]string, len(names))
		for name, addr := range names {
			inner[name] = addr
		}
		out[file] = inner
	}
	return out
}
