// Package verify implements the contract verification pipeline: matching
// configured compiler versions against deployed bytecode, resolving the
// compilation artifact that produced it, reconciling library addresses and
// driving the two-phase submission to an explorer back-end.
package verify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xmhha/verify-go/bytecode"
	"github.com/0xmhha/verify-go/explorer"
	"github.com/0xmhha/verify-go/solc"
)

// DefaultSettleDelay is how long a submission is given to settle before
// the single status poll.
const DefaultSettleDelay = 10 * time.Second

// Attempt phases, used in logs and metrics.
const (
	phaseMinimal = "minimal"
	phaseFull    = "full"
)

// Outcome labels for metrics.
const (
	outcomeSuccess         = "success"
	outcomeAlreadyVerified = "already_verified"
	outcomeFailure         = "failure"
)

// ChainReader reads deployed contract code from a network.
type ChainReader interface {
	// DeployedBytecode returns the runtime bytecode at address, failing
	// when the address holds no code.
	DeployedBytecode(ctx context.Context, address string) ([]byte, error)
}

// Explorer is the verification transport of one explorer back-end.
type Explorer interface {
	// VerifySource submits a compiler input and returns a tracking GUID.
	VerifySource(ctx context.Context, req *explorer.SubmitRequest) (string, error)

	// CheckStatus polls the status of a prior submission.
	CheckStatus(ctx context.Context, guid string) (*explorer.Status, error)

	// IsVerified reports whether the contract already has verified source.
	IsVerified(ctx context.Context, address string) (bool, error)

	// ContractURL returns the human-facing URL of the contract, or empty.
	ContractURL(address string) string
}

// Config configures an orchestrator for one network and back-end pair.
type Config struct {
	// Network names the chain the contract is deployed on, for messages
	// and metrics.
	Network string

	// CompilerVersions lists the locally available solc versions, short or
	// long form.
	CompilerVersions []string

	// SettleDelay is the wait between submission and the status poll.
	// Zero selects DefaultSettleDelay.
	SettleDelay time.Duration
}

// Request is one verification request.
type Request struct {
	// Address of the deployed contract.
	Address string

	// ContractName optionally pins the candidate to a fully qualified
	// name. Empty selects inferred mode.
	ContractName string

	// Libraries maps library names, bare or fully qualified, to their
	// deployed addresses.
	Libraries map[string]string

	// ConstructorArguments is the ABI-encoded constructor argument hex,
	// with or without the 0x prefix.
	ConstructorArguments string
}

// Result reports a finished verification.
type Result struct {
	// Success is true when the explorer accepted the source.
	Success bool

	// AlreadyVerified is true when the contract was verified before this
	// run and no submission happened.
	AlreadyVerified bool

	// ContractName is the fully qualified name of the verified contract.
	ContractName string

	// CompilerVersion is the long version tag the submission used.
	CompilerVersion string

	// URL points at the contract's code page when the back-end has a
	// browser URL configured.
	URL string

	// Message is the explorer's final status message.
	Message string

	// UndetectableLibraries lists libraries whose supplied addresses could
	// not be validated against the runtime bytecode.
	UndetectableLibraries []string
}

// Orchestrator drives one verification request through resolution, the
// minimal-input attempt and the full-input fallback. The state machine is
// linear; nothing is retried beyond the fixed fallback.
type Orchestrator struct {
	cfg      Config
	chain    ChainReader
	explorer Explorer
	resolver *Resolver
	logger   *zap.Logger
	metrics  *Metrics

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires an orchestrator. Metrics may be nil.
func NewOrchestrator(cfg Config, chain ChainReader, exp Explorer, artifacts solc.ArtifactStore, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}

	return &Orchestrator{
		cfg:      cfg,
		chain:    chain,
		explorer: exp,
		resolver: NewResolver(artifacts, cfg.Network, logger),
		logger:   logger,
		metrics:  metrics,
		sleep:    sleepContext,
	}
}

// Verify runs the full pipeline for one request. Errors are terminal and
// classified by the package sentinels; when both submission attempts fail,
// the returned Result carries the full attempt's message alongside the
// error.
func (o *Orchestrator) Verify(ctx context.Context, req *Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	logger := o.logger.With(
		zap.String("request_id", uuid.New().String()),
		zap.String("network", o.cfg.Network),
		zap.String("address", req.Address))

	if verified, err := o.explorer.IsVerified(ctx, req.Address); err != nil {
		logger.Warn("verified-state probe failed, proceeding with submission", zap.Error(err))
	} else if verified {
		logger.Info("contract already verified")
		o.metrics.observeOutcome(o.cfg.Network, outcomeAlreadyVerified)
		return &Result{
			Success:         true,
			AlreadyVerified: true,
			URL:             o.explorer.ContractURL(req.Address),
		}, nil
	}

	code, err := o.chain.DeployedBytecode(ctx, req.Address)
	if err != nil {
		o.metrics.observeOutcome(o.cfg.Network, outcomeFailure)
		return nil, fmt.Errorf("reading deployed bytecode of %s on %s: %w", req.Address, o.cfg.Network, err)
	}
	deployed := bytecode.Parse(code)

	logger.Debug("deployed bytecode parsed",
		zap.Int("size", deployed.Len()),
		zap.String("solc_version", deployed.Version()),
		zap.Bool("alternate_vm", deployed.IsAlternateVM()))

	result, err := o.run(ctx, logger, req, deployed)
	if err != nil {
		o.metrics.observeOutcome(o.cfg.Network, outcomeFailure)
		return result, err
	}
	o.metrics.observeOutcome(o.cfg.Network, outcomeSuccess)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, req *Request, deployed *bytecode.Bytecode) (*Result, error) {
	versions, err := MatchCompilerVersions(deployed, o.cfg.CompilerVersions, o.cfg.Network)
	if err != nil {
		return nil, err
	}

	info, err := o.resolver.Resolve(deployed, versions, req.ContractName)
	if err != nil {
		return nil, err
	}

	libraries, err := ResolveLibraries(info, req.Libraries)
	if err != nil {
		return nil, err
	}

	if _, ok := info.Input.Sources[info.SourceName]; !ok {
		return nil, fmt.Errorf("%w: build %s does not contain source %s",
			ErrUnexpectedNumberOfFiles, info.SolcLongVersion, info.SourceName)
	}

	minimal, err := solc.MinimalInput(info.Input, info.SourceName)
	if err != nil {
		return nil, fmt.Errorf("building minimal compiler input: %w", err)
	}

	result := &Result{
		ContractName:          info.FullyQualifiedName(),
		CompilerVersion:       solc.LongVersionTag(info.SolcLongVersion),
		UndetectableLibraries: libraries.Undetectable,
	}
	logger = logger.With(
		zap.String("contract", result.ContractName),
		zap.String("compiler_version", result.CompilerVersion))

	minimalStatus, err := o.attempt(ctx, logger, phaseMinimal, minimal.WithLibraries(libraries.Addresses), req, result)
	if err != nil {
		return nil, err
	}
	if minimalStatus.State == explorer.StateSuccess {
		return o.succeed(logger, req, result, minimalStatus), nil
	}
	logger.Info("minimal input rejected, falling back to full input",
		zap.String("message", minimalStatus.Message))

	fullStatus, err := o.attempt(ctx, logger, phaseFull, info.Input.WithLibraries(libraries.Addresses), req, result)
	if err != nil {
		return nil, err
	}
	if fullStatus.State == explorer.StateSuccess {
		return o.succeed(logger, req, result, fullStatus), nil
	}

	result.Message = fullStatus.Message
	logger.Warn("verification failed", zap.String("message", fullStatus.Message))

	msg := fullStatus.Message
	if len(libraries.Undetectable) > 0 {
		msg += fmt.Sprintf("; double-check the supplied addresses of the undetectable libraries [%s]",
			strings.Join(libraries.Undetectable, ", "))
	}
	return result, fmt.Errorf("%w: %s: %s", ErrContractVerificationFailed, result.ContractName, msg)
}

// attempt submits one compiler input and polls its status exactly once
// after the settling delay. Only the two terminal states are accepted.
func (o *Orchestrator) attempt(ctx context.Context, logger *zap.Logger, phase string, input *solc.CompilerInput, req *Request, result *Result) (*explorer.Status, error) {
	o.metrics.observeAttempt(o.cfg.Network, phase)

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding compiler input: %w", err)
	}

	guid, err := o.explorer.VerifySource(ctx, &explorer.SubmitRequest{
		Address:              req.Address,
		ContractName:         result.ContractName,
		CompilerVersion:      result.CompilerVersion,
		CompilerInputJSON:    string(payload),
		ConstructorArguments: strings.TrimPrefix(req.ConstructorArguments, "0x"),
	})
	if errors.Is(err, explorer.ErrAlreadyVerified) {
		return &explorer.Status{State: explorer.StateSuccess, Message: "Already Verified"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("submitting %s input: %w", phase, err)
	}

	logger.Info("verification submitted",
		zap.String("phase", phase),
		zap.String("guid", guid),
		zap.Int("sources", len(input.Sources)))

	if err := o.sleep(ctx, o.cfg.SettleDelay); err != nil {
		return nil, err
	}

	status, err := o.explorer.CheckStatus(ctx, guid)
	if err != nil {
		return nil, fmt.Errorf("polling %s submission %s: %w", phase, guid, err)
	}

	switch status.State {
	case explorer.StateSuccess, explorer.StateFailure:
		return status, nil
	default:
		return nil, fmt.Errorf("%w: submission %s reported %q after the settling delay",
			ErrVerificationAPIUnexpectedMessage, guid, status.Message)
	}
}

func (o *Orchestrator) succeed(logger *zap.Logger, req *Request, result *Result, status *explorer.Status) *Result {
	result.Success = true
	result.Message = status.Message
	result.URL = o.explorer.ContractURL(req.Address)
	logger.Info("contract verified", zap.String("url", result.URL))
	return result
}

// validateRequest checks the operator-supplied fields before any network
// traffic.
func validateRequest(req *Request) error {
	if req.Address == "" {
		return ErrMissingAddress
	}
	if !common.IsHexAddress(req.Address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, req.Address)
	}
	if req.ContractName != "" && !solc.IsFullyQualifiedName(req.ContractName) {
		return fmt.Errorf("%w: %q must have the form sourceFile:ContractName", ErrInvalidContractName, req.ContractName)
	}
	if args := strings.TrimPrefix(req.ConstructorArguments, "0x"); args != "" {
		if _, err := hex.DecodeString(args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConstructorArguments, err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
