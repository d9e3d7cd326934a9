package verify

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/0xmhha/verify-go/bytecode"
	"github.com/0xmhha/verify-go/solc"
)

// ContractInformation is the resolved candidate for one deployment: the
// contract, the compiler run that produced it and the libraries that
// cannot be read back out of the runtime bytecode.
type ContractInformation struct {
	// SourceName is the source file defining the contract.
	SourceName string

	// ContractName is the contract's name inside that file.
	ContractName string

	// SolcLongVersion is the producing compiler's long version, including
	// the commit hash.
	SolcLongVersion string

	// Input is the full multi-file compiler input of the producing build.
	Input *solc.CompilerInput

	// Contract is the contract's compilation output.
	Contract *solc.ContractOutput

	// UndetectableLibraries lists libraries referenced only by the creation
	// bytecode. Their addresses cannot be recovered from the chain and must
	// be trusted from the operator's input.
	UndetectableLibraries []string
}

// FullyQualifiedName returns the sourceFile:ContractName form.
func (c *ContractInformation) FullyQualifiedName() string {
	return solc.JoinFullyQualifiedName(c.SourceName, c.ContractName)
}

// Resolver finds the compilation artifact matching a deployed bytecode.
type Resolver struct {
	artifacts solc.ArtifactStore
	network   string
	logger    *zap.Logger
}

// NewResolver creates a resolver over the given artifact store.
func NewResolver(artifacts solc.ArtifactStore, network string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		artifacts: artifacts,
		network:   network,
		logger:    logger,
	}
}

// Resolve finds the contract whose normalized compiled bytecode equals the
// normalized deployed bytecode. With a fully qualified name it checks
// exactly that contract and fails on any discrepancy; without one it scans
// every artifact compiled with a matched version.
func (r *Resolver) Resolve(deployed *bytecode.Bytecode, versions []string, fqName string) (*ContractInformation, error) {
	if fqName != "" {
		return r.resolveNamed(deployed, versions, fqName)
	}
	return r.resolveInferred(deployed, versions)
}

func (r *Resolver) resolveNamed(deployed *bytecode.Bytecode, versions []string, fqName string) (*ContractInformation, error) {
	sourceName, contractName, err := solc.ParseFullyQualifiedName(fqName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContractName, err)
	}

	if !r.artifacts.ArtifactExists(fqName) {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, fqName)
	}

	info, err := r.artifacts.BuildInfo(fqName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBuildInfoNotFound, fqName, err)
	}

	// Alternate-VM bytecode embeds no solc version to compare against.
	if !deployed.IsAlternateVM() && !versionInSet(info.SolcVersion, versions) {
		return nil, fmt.Errorf("%w: %s was built with solc %s, deployed bytecode requires one of [%s]",
			ErrBuildInfoCompilerVersionMismatch, fqName, info.SolcVersion, strings.Join(versions, ", "))
	}

	contract, ok := info.Contract(sourceName, contractName)
	if !ok {
		return nil, fmt.Errorf("%w: build %s has no output for %s", ErrContractNotFound, info.ID, fqName)
	}

	if !r.matchesDeployed(deployed, contract) {
		return nil, fmt.Errorf("%w: %s does not match the bytecode deployed on network %s",
			ErrDeployedBytecodeMismatch, fqName, r.network)
	}

	r.logger.Debug("named contract matched deployed bytecode",
		zap.String("contract", fqName),
		zap.String("solc_version", info.SolcLongVersion))

	return r.contractInformation(info, sourceName, contractName, contract), nil
}

func (r *Resolver) resolveInferred(deployed *bytecode.Bytecode, versions []string) (*ContractInformation, error) {
	var matches []*ContractInformation

	for _, info := range r.artifacts.BuildInfos() {
		if !deployed.IsAlternateVM() && !versionInSet(info.SolcVersion, versions) {
			continue
		}
		for sourceName, contracts := range info.Output.Contracts {
			for contractName := range contracts {
				contract, _ := info.Contract(sourceName, contractName)
				if contract.EVM.DeployedBytecode.Object == "" {
					// Interfaces and abstract contracts produce no runtime
					// bytecode.
					continue
				}
				if r.matchesDeployed(deployed, contract) {
					matches = append(matches, r.contractInformation(info, sourceName, contractName, contract))
				}
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no local artifact matches the bytecode deployed on network %s",
			ErrDeployedBytecodeMismatch, r.network)
	case 1:
		r.logger.Debug("inferred contract from deployed bytecode",
			zap.String("contract", matches[0].FullyQualifiedName()),
			zap.String("solc_version", matches[0].SolcLongVersion))
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.FullyQualifiedName()
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: [%s]; pass the fully qualified name of the deployed contract",
			ErrAmbiguousMatches, strings.Join(names, ", "))
	}
}

// matchesDeployed reports whether the contract's runtime bytecode equals
// the deployed bytecode once both are normalized.
func (r *Resolver) matchesDeployed(deployed *bytecode.Bytecode, contract *solc.ContractOutput) bool {
	compiled, err := contract.EVM.DeployedBytecode.DecodedObject()
	if err != nil || len(compiled) == 0 {
		return false
	}
	return bytecode.Match(deployed.Bytes(), compiled, contract.EVM.DeployedBytecode.Symbols())
}

func (r *Resolver) contractInformation(info *solc.BuildInfo, sourceName, contractName string, contract *solc.ContractOutput) *ContractInformation {
	return &ContractInformation{
		SourceName:            sourceName,
		ContractName:          contractName,
		SolcLongVersion:       info.SolcLongVersion,
		Input:                 info.Input,
		Contract:              contract,
		UndetectableLibraries: undetectableLibraries(contract),
	}
}

// undetectableLibraries returns the libraries referenced by the creation
// bytecode but absent from the runtime bytecode, as fully qualified names.
func undetectableLibraries(contract *solc.ContractOutput) []string {
	runtime := contract.EVM.DeployedBytecode.LinkReferences

	var names []string
	for sourceName, libs := range contract.EVM.Bytecode.LinkReferences {
		for libName := range libs {
			if _, ok := runtime[sourceName][libName]; ok {
				continue
			}
			names = append(names, solc.JoinFullyQualifiedName(sourceName, libName))
		}
	}
	sort.Strings(names)
	return names
}

// versionInSet reports whether version denotes the same release as one of
// the set's entries.
func versionInSet(version string, set []string) bool {
	for _, v := range set {
		if solc.SameVersion(v, version) {
			return true
		}
	}
	return false
}
