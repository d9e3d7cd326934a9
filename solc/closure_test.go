package solc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inputWithSources(sources map[string]string) *CompilerInput {
	in := &CompilerInput{
		Language: "Solidity",
		Sources:  make(map[string]SourceContent, len(sources)),
		Settings: Settings{EVMVersion: "paris"},
	}
	for name, content := range sources {
		in.Sources[name] = SourceContent{Content: content}
	}
	return in
}

func TestMinimalInput_SingleFile(t *testing.T) {
	full := inputWithSources(map[string]string{
		"contracts/Token.sol":     "pragma solidity ^0.8.0;\ncontract Token {}",
		"contracts/Unrelated.sol": "pragma solidity ^0.8.0;\ncontract Unrelated {}",
	})

	minimal, err := MinimalInput(full, "contracts/Token.sol")
	require.NoError(t, err)

	assert.Len(t, minimal.Sources, 1)
	assert.Contains(t, minimal.Sources, "contracts/Token.sol")
	assert.Equal(t, "paris", minimal.Settings.EVMVersion)
	assert.Equal(t, "Solidity", minimal.Language)
}

func TestMinimalInput_TransitiveImports(t *testing.T) {
	full := inputWithSources(map[string]string{
		"contracts/Token.sol": `pragma solidity ^0.8.0;
import "./lib/SafeMath.sol";
import {Ownable} from "../node_modules/oz/Ownable.sol";
contract Token {}`,
		"contracts/lib/SafeMath.sol": `pragma solidity ^0.8.0;
import './Math.sol';
library SafeMath {}`,
		"contracts/lib/Math.sol":     "library Math {}",
		"node_modules/oz/Ownable.sol": "contract Ownable {}",
		"contracts/Unrelated.sol":    "contract Unrelated {}",
	})

	minimal, err := MinimalInput(full, "contracts/Token.sol")
	require.NoError(t, err)

	assert.Len(t, minimal.Sources, 4)
	assert.Contains(t, minimal.Sources, "contracts/Token.sol")
	assert.Contains(t, minimal.Sources, "contracts/lib/SafeMath.sol")
	assert.Contains(t, minimal.Sources, "contracts/lib/Math.sol")
	assert.Contains(t, minimal.Sources, "node_modules/oz/Ownable.sol")
	assert.NotContains(t, minimal.Sources, "contracts/Unrelated.sol")
}

func TestMinimalInput_DirectSourceNameImport(t *testing.T) {
	full := inputWithSources(map[string]string{
		"a.sol": `import "lib/B.sol";`,
		"lib/B.sol": "contract B {}",
	})

	minimal, err := MinimalInput(full, "a.sol")
	require.NoError(t, err)
	assert.Len(t, minimal.Sources, 2)
}

func TestMinimalInput_ImportCycle(t *testing.T) {
	full := inputWithSources(map[string]string{
		"a.sol": `import "./b.sol";`,
		"b.sol": `import "./a.sol";`,
	})

	minimal, err := MinimalInput(full, "a.sol")
	require.NoError(t, err)
	assert.Len(t, minimal.Sources, 2)
}

func TestMinimalInput_UnresolvableImportSkipped(t *testing.T) {
	full := inputWithSources(map[string]string{
		"a.sol": `import "@oz/token/ERC20.sol";`,
	})

	minimal, err := MinimalInput(full, "a.sol")
	require.NoError(t, err)
	assert.Len(t, minimal.Sources, 1)
}

func TestMinimalInput_UnknownSource(t *testing.T) {
	full := inputWithSources(map[string]string{"a.sol": "contract A {}"})

	_, err := MinimalInput(full, "missing.sol")
	assert.Error(t, err)
}

func TestMinimalInput_DoesNotMutateFullInput(t *testing.T) {
	full := inputWithSources(map[string]string{
		"a.sol": "contract A {}",
		"b.sol": "contract B {}",
	})

	_, err := MinimalInput(full, "a.sol")
	require.NoError(t, err)
	assert.Len(t, full.Sources, 2)
}

func TestWithLibraries(t *testing.T) {
	full := inputWithSources(map[string]string{"a.sol": "contract A {}"})
	libs := map[string]map[string]string{
		"lib/SafeMath.sol": {"SafeMath": "0x1234567890123456789012345678901234567890"},
	}

	linked := full.WithLibraries(libs)

	assert.Equal(t, libs, linked.Settings.Libraries)
	assert.Nil(t, full.Settings.Libraries)

	// Later mutation of the argument must not leak into the input.
	libs["lib/SafeMath.sol"]["SafeMath"] = "0x0"
	assert.Equal(t, "0x1234567890123456789012345678901234567890",
		linked.Settings.Libraries["lib/SafeMath.sol"]["SafeMath"])
}
