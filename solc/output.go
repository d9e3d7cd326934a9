package solc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0xmhha/verify-go/bytecode"
)

// callProtectionPrefix is the leading PUSH20 zero-address of compiled
// library runtime code; at deploy time the slot receives the library's own
// address.
const callProtectionPrefix = "730000000000000000000000000000000000000000"

// CompilerOutput is the standard JSON output of a compilation run,
// restricted to the fields verification needs.
type CompilerOutput struct {
	Errors    json.RawMessage                      `json:"errors,omitempty"`
	Sources   map[string]SourceIndex               `json:"sources,omitempty"`
	Contracts map[string]map[string]ContractOutput `json:"contracts"`
}

// SourceIndex carries a source file's compilation index.
type SourceIndex struct {
	ID int `json:"id"`
}

// ContractOutput is one contract's compilation result.
type ContractOutput struct {
	ABI      json.RawMessage `json:"abi,omitempty"`
	Metadata string          `json:"metadata,omitempty"`
	EVM      EVMOutput       `json:"evm"`
}

// EVMOutput groups the EVM bytecode objects of a contract.
type EVMOutput struct {
	Bytecode         BytecodeOutput `json:"bytecode"`
	DeployedBytecode BytecodeOutput `json:"deployedBytecode"`
}

// BytecodeOutput is a bytecode object with its link and immutable
// reference tables. Offsets are byte positions in the decoded bytecode.
type BytecodeOutput struct {
	Object              string                                     `json:"object"`
	LinkReferences      map[string]map[string][]bytecode.Reference `json:"linkReferences,omitempty"`
	ImmutableReferences map[string][]bytecode.Reference            `json:"immutableReferences,omitempty"`
}

// Contract returns the named contract's output, if present.
func (o *CompilerOutput) Contract(sourceName, contractName string) (*ContractOutput, bool) {
	contracts, ok := o.Contracts[sourceName]
	if !ok {
		return nil, false
	}
	contract, ok := contracts[contractName]
	if !ok {
		return nil, false
	}
	return &contract, true
}

// DecodedObject returns the bytecode bytes with every link placeholder
// zeroed. Unlinked output embeds non-hexadecimal placeholder runs in the
// address slots; the link reference table locates them.
func (b *BytecodeOutput) DecodedObject() ([]byte, error) {
	object := strings.TrimPrefix(b.Object, "0x")
	chars := []byte(object)

	for _, ref := range b.AllLinkReferences() {
		start := ref.Start * 2
		end := (ref.Start + ref.Length) * 2
		for i := start; i < end && i < len(chars); i++ {
			if i >= 0 {
				chars[i] = '0'
			}
		}
	}

	code, err := hex.DecodeString(string(chars))
	if err != nil {
		return nil, fmt.Errorf("bytecode object is not valid hex after link placeholder removal: %w", err)
	}
	return code, nil
}

// AllLinkReferences flattens the per-file link reference table.
func (b *BytecodeOutput) AllLinkReferences() []bytecode.Reference {
	var refs []bytecode.Reference
	for _, names := range b.LinkReferences {
		for _, positions := range names {
			refs = append(refs, positions...)
		}
	}
	return refs
}

// Symbols returns the normalization symbols this bytecode declares.
func (b *BytecodeOutput) Symbols() *bytecode.Symbols {
	return &bytecode.Symbols{
		ImmutableReferences: b.ImmutableReferences,
		LibraryLinks:        b.AllLinkReferences(),
		CallProtection:      strings.HasPrefix(strings.TrimPrefix(b.Object, "0x"), callProtectionPrefix),
	}
}
