package verify

import "errors"

// Every failure of the pipeline is terminal and non-retryable; the
// sentinels below classify them for callers, with details wrapped around
// them at the failure site.
var (
	// ErrMissingAddress is returned when no contract address was given.
	ErrMissingAddress = errors.New("missing contract address")

	// ErrInvalidAddress is returned when the contract address is not a
	// valid hex address.
	ErrInvalidAddress = errors.New("invalid contract address")

	// ErrInvalidContractName is returned when a contract name is given but
	// is not fully qualified (sourceFile:ContractName).
	ErrInvalidContractName = errors.New("invalid contract name")

	// ErrInvalidConstructorArguments is returned when the constructor
	// arguments are not valid ABI-encoded hex.
	ErrInvalidConstructorArguments = errors.New("invalid constructor arguments")

	// ErrInvalidLibraries is returned when a supplied library entry matches
	// no link reference, is ambiguous, or carries an invalid address.
	ErrInvalidLibraries = errors.New("invalid libraries")

	// ErrMissingLibraryAddress is returned when a link reference in the
	// runtime bytecode has no supplied address.
	ErrMissingLibraryAddress = errors.New("missing library address")

	// ErrCompilerVersionsMismatch is returned when none of the configured
	// compiler versions could have produced the deployed bytecode.
	ErrCompilerVersionsMismatch = errors.New("deployed bytecode does not match any configured compiler version")

	// ErrContractNotFound is returned when the named contract has no local
	// compilation artifact.
	ErrContractNotFound = errors.New("contract not found in local artifacts")

	// ErrBuildInfoNotFound is returned when the artifact exists but its
	// build info is missing.
	ErrBuildInfoNotFound = errors.New("build info not found")

	// ErrBuildInfoCompilerVersionMismatch is returned when the named
	// contract's build used a compiler version outside the matched set.
	ErrBuildInfoCompilerVersionMismatch = errors.New("build info compiler version does not match deployed bytecode")

	// ErrDeployedBytecodeMismatch is returned when no artifact's normalized
	// bytecode equals the normalized deployed bytecode.
	ErrDeployedBytecodeMismatch = errors.New("deployed bytecode does not match compiled bytecode")

	// ErrAmbiguousMatches is returned in inferred mode when more than one
	// artifact matches the deployed bytecode.
	ErrAmbiguousMatches = errors.New("multiple contracts match the deployed bytecode")

	// ErrUnexpectedNumberOfFiles is returned when the named contract's
	// build input does not contain its own source file. This is an
	// invariant violation and should not occur with intact artifacts.
	ErrUnexpectedNumberOfFiles = errors.New("unexpected number of files in compilation closure")

	// ErrVerificationAPIUnexpectedMessage is returned when the explorer
	// reports a status other than the known terminal outcomes.
	ErrVerificationAPIUnexpectedMessage = errors.New("unexpected verification API message")

	// ErrContractVerificationFailed is returned when both the minimal and
	// the full submission were rejected by the explorer.
	ErrContractVerificationFailed = errors.New("contract verification failed")
)
