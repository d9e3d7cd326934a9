package solc

import (
	"fmt"
	"strings"
)

// BuildInfo pairs the compiler input of a compilation run with its full
// output, the way build tools persist it under the artifacts directory.
type BuildInfo struct {
	ID              string          `json:"id"`
	SolcVersion     string          `json:"solcVersion"`
	SolcLongVersion string          `json:"solcLongVersion"`
	Input           *CompilerInput  `json:"input"`
	Output          *CompilerOutput `json:"output"`
}

// Contract returns the named contract's output from this build.
func (b *BuildInfo) Contract(sourceName, contractName string) (*ContractOutput, bool) {
	if b.Output == nil {
		return nil, false
	}
	return b.Output.Contract(sourceName, contractName)
}

// ParseFullyQualifiedName splits "sourceFile:ContractName". The contract
// name is everything after the last colon, so source paths containing
// colons stay intact.
func ParseFullyQualifiedName(fqName string) (sourceName, contractName string, err error) {
	idx := strings.LastIndex(fqName, ":")
	if idx <= 0 || idx == len(fqName)-1 {
		return "", "", fmt.Errorf("%q is not a fully qualified contract name (expected sourceFile:ContractName)", fqName)
	}
	return fqName[:idx], fqName[idx+1:], nil
}

// JoinFullyQualifiedName is the inverse of ParseFullyQualifiedName.
func JoinFullyQualifiedName(sourceName, contractName string) string {
	return sourceName + ":" + contractName
}

// IsFullyQualifiedName reports whether name has the sourceFile:Contract
// shape.
func IsFullyQualifiedName(name string) bool {
	_, _, err := ParseFullyQualifiedName(name)
	return err == nil
}
