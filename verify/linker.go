package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/verify-go/bytecode"
	"github.com/0xmhha/verify-go/solc"
)

// LibraryInformation is the outcome of reconciling operator-supplied
// library addresses with the link references of a resolved contract.
type LibraryInformation struct {
	// Addresses is the settings.libraries table to inject into the
	// compiler input, keyed by source file then library name.
	Addresses map[string]map[string]string

	// Undetectable lists libraries whose addresses could not be validated
	// against the runtime bytecode; the supplied values are trusted as-is.
	Undetectable []string
}

// ResolveLibraries maps the supplied library addresses onto the contract's
// link references. Every runtime link reference must receive an address
// and every supplied entry must correspond to a referenced library; bare
// library names are accepted only when unambiguous.
func ResolveLibraries(contract *ContractInformation, supplied map[string]string) (*LibraryInformation, error) {
	detectable := referencedLibraries(contract.Contract.EVM.DeployedBytecode.LinkReferences)

	referenced := make(map[string]bool, len(detectable)+len(contract.UndetectableLibraries))
	for _, fqn := range detectable {
		referenced[fqn] = true
	}
	for _, fqn := range contract.UndetectableLibraries {
		referenced[fqn] = true
	}

	byBareName := make(map[string][]string)
	for fqn := range referenced {
		_, name, err := solc.ParseFullyQualifiedName(fqn)
		if err != nil {
			return nil, fmt.Errorf("link reference %q: %w", fqn, err)
		}
		byBareName[name] = append(byBareName[name], fqn)
	}

	resolved := make(map[string]string, len(supplied))
	for key, address := range supplied {
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("%w: %q is not a valid address for library %s",
				ErrInvalidLibraries, address, key)
		}

		fqn, err := resolveLibraryName(key, referenced, byBareName, contract.FullyQualifiedName())
		if err != nil {
			return nil, err
		}
		if _, dup := resolved[fqn]; dup {
			return nil, fmt.Errorf("%w: library %s was supplied more than once", ErrInvalidLibraries, fqn)
		}
		resolved[fqn] = address
	}

	var missing []string
	for _, fqn := range detectable {
		if _, ok := resolved[fqn]; !ok {
			missing = append(missing, fqn)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s links libraries [%s] whose addresses were not supplied",
			ErrMissingLibraryAddress, contract.FullyQualifiedName(), strings.Join(missing, ", "))
	}

	addresses := make(map[string]map[string]string)
	for fqn, address := range resolved {
		sourceName, libName, err := solc.ParseFullyQualifiedName(fqn)
		if err != nil {
			return nil, fmt.Errorf("library %q: %w", fqn, err)
		}
		if addresses[sourceName] == nil {
			addresses[sourceName] = make(map[string]string)
		}
		addresses[sourceName][libName] = address
	}

	return &LibraryInformation{
		Addresses:    addresses,
		Undetectable: contract.UndetectableLibraries,
	}, nil
}

// resolveLibraryName maps a supplied key, qualified or bare, onto the
// fully qualified name of a referenced library.
func resolveLibraryName(key string, referenced map[string]bool, byBareName map[string][]string, contractFQN string) (string, error) {
	if solc.IsFullyQualifiedName(key) {
		if !referenced[key] {
			return "", fmt.Errorf("%w: %s is not referenced by %s", ErrInvalidLibraries, key, contractFQN)
		}
		return key, nil
	}

	candidates := byBareName[key]
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %s is not referenced by %s", ErrInvalidLibraries, key, contractFQN)
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", fmt.Errorf("%w: %q is ambiguous, use a fully qualified name: [%s]",
			ErrInvalidLibraries, key, strings.Join(candidates, ", "))
	}
}

// referencedLibraries flattens a link reference table into sorted fully
// qualified names.
func referencedLibraries(linkReferences map[string]map[string][]bytecode.Reference) []string {
	var names []string
	for sourceName, libs := range linkReferences {
		for libName := range libs {
			names = append(names, solc.JoinFullyQualifiedName(sourceName, libName))
		}
	}
	sort.Strings(names)
	return names
}
