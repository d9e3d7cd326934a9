// Package explorer is a client for Etherscan-compatible contract
// verification APIs: source submission, status polling and verified-state
// queries, all over the module=contract actions with the historical form
// encoding those APIs expect.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// codeFormatStandardJSON tells the API the submitted source is a full
	// standard JSON compiler input rather than flattened source text.
	codeFormatStandardJSON = "solidity-standard-json-input"

	// Terminal and transient status strings of the checkverifystatus action.
	statusPending = "Pending in queue"
	statusPass    = "Pass - Verified"
	statusFail    = "Fail - Unable to verify"

	// Markers the API uses for contracts that are or are not verified.
	alreadyVerifiedMarker = "already verified"
	notVerifiedMarker     = "Contract source code not verified"

	maxResponseSize = 1 << 20
)

var (
	// ErrMissingAPIURL is returned when a client is configured without an
	// API endpoint.
	ErrMissingAPIURL = errors.New("missing explorer API URL")

	// ErrAlreadyVerified is returned by VerifySource when the API rejects a
	// submission because the contract is verified already.
	ErrAlreadyVerified = errors.New("contract already verified")
)

// State is the classified outcome of a verification status poll.
type State int

const (
	// StateUnknown marks a status string the client does not recognize.
	StateUnknown State = iota

	// StatePending means the submission has not been processed yet.
	StatePending

	// StateSuccess means the explorer verified the submitted source.
	StateSuccess

	// StateFailure means the explorer could not verify the source.
	StateFailure
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Status is the result of one checkverifystatus poll.
type Status struct {
	State   State
	Message string
}

// SubmitRequest carries everything one verifysourcecode submission needs.
type SubmitRequest struct {
	// Address of the deployed contract, 0x-prefixed.
	Address string

	// ContractName in the fully qualified sourceFile:ContractName form.
	ContractName string

	// CompilerVersion is the long version tag, e.g. "v0.8.2+commit.661d1103".
	CompilerVersion string

	// CompilerInputJSON is the serialized standard JSON compiler input.
	CompilerInputJSON string

	// ConstructorArguments is the ABI-encoded constructor arguments hex,
	// without the 0x prefix. Empty for contracts without constructor args.
	ConstructorArguments string
}

// Config configures one explorer back-end.
type Config struct {
	// Name identifies the back-end in logs and batch results.
	Name string `yaml:"name"`

	// APIURL is the verification API endpoint, e.g.
	// "https://api.etherscan.io/api".
	APIURL string `yaml:"api_url"`

	// BrowserURL is the human-facing explorer base used to build contract
	// URLs. Optional.
	BrowserURL string `yaml:"browser_url"`

	// APIKey is sent as the apikey form field when set.
	APIKey string `yaml:"api_key"`

	// ChainID is sent as the chainid field when non-zero, for multi-chain
	// endpoints.
	ChainID uint64 `yaml:"chain_id"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond throttles outgoing calls.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultConfig returns a config with sane transport defaults.
func DefaultConfig(name, apiURL string) *Config {
	return &Config{
		Name:              name,
		APIURL:            apiURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}
	if _, err := url.Parse(c.APIURL); err != nil {
		return fmt.Errorf("invalid explorer API URL %q: %w", c.APIURL, err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid explorer timeout %s", c.Timeout)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid explorer rate limit %f", c.RequestsPerSecond)
	}
	return nil
}

// response is the Etherscan API envelope. Result is kept raw because the
// API returns a string for most actions but an array for some.
type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// resultString returns the result as text, whatever shape it came in.
func (r *response) resultString() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return string(r.Result)
}

// Client talks to one Etherscan-compatible API.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a client for the configured back-end.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("explorer config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:     logger.With(zap.String("explorer", cfg.Name)),
	}, nil
}

// Name returns the configured back-end name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// VerifySource submits a standard JSON compiler input for verification and
// returns the GUID tracking the submission.
func (c *Client) VerifySource(ctx context.Context, req *SubmitRequest) (string, error) {
	form := url.Values{}
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("codeformat", codeFormatStandardJSON)
	form.Set("contractaddress", req.Address)
	form.Set("contractname", req.ContractName)
	form.Set("compilerversion", req.CompilerVersion)
	form.Set("sourceCode", req.CompilerInputJSON)
	// The misspelling is part of the protocol.
	form.Set("constructorArguements", req.ConstructorArguments)
	c.applyAuth(form)

	resp, err := c.postForm(ctx, form)
	if err != nil {
		return "", err
	}

	if resp.Status != "1" {
		detail := resp.resultString()
		if containsFold(detail, alreadyVerifiedMarker) || containsFold(resp.Message, alreadyVerifiedMarker) {
			return "", ErrAlreadyVerified
		}
		return "", fmt.Errorf("verification submission rejected: %s (%s)", resp.Message, detail)
	}

	guid := resp.resultString()
	c.logger.Debug("verification submitted",
		zap.String("address", req.Address),
		zap.String("contract", req.ContractName),
		zap.String("guid", guid))
	return guid, nil
}

// CheckStatus polls the verification status of a prior submission.
func (c *Client) CheckStatus(ctx context.Context, guid string) (*Status, error) {
	query := url.Values{}
	query.Set("module", "contract")
	query.Set("action", "checkverifystatus")
	query.Set("guid", guid)
	c.applyAuth(query)

	resp, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}

	status := classifyStatus(resp)
	c.logger.Debug("verification status",
		zap.String("guid", guid),
		zap.String("state", status.State.String()),
		zap.String("message", status.Message))
	return status, nil
}

// IsVerified reports whether the contract at address already has verified
// source on this explorer, using the getabi action as a probe.
func (c *Client) IsVerified(ctx context.Context, address string) (bool, error) {
	query := url.Values{}
	query.Set("module", "contract")
	query.Set("action", "getabi")
	query.Set("address", address)
	c.applyAuth(query)

	resp, err := c.get(ctx, query)
	if err != nil {
		return false, err
	}

	if resp.Status == "1" {
		return true, nil
	}
	detail := resp.resultString()
	if strings.Contains(detail, notVerifiedMarker) || strings.Contains(resp.Message, notVerifiedMarker) {
		return false, nil
	}
	return false, fmt.Errorf("verified-state probe failed: %s (%s)", resp.Message, detail)
}

// ContractURL returns the human-facing URL of a contract's code page, or
// empty when no browser URL is configured.
func (c *Client) ContractURL(address string) string {
	if c.cfg.BrowserURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.cfg.BrowserURL, "/") + "/address/" + address + "#code"
}

// classifyStatus maps the API's status strings onto states. The markers
// appear in the message on some deployments and in the result on others,
// so both are checked.
func classifyStatus(resp *response) *Status {
	detail := resp.resultString()
	message := detail
	if message == "" {
		message = resp.Message
	}

	for _, s := range []string{resp.Message, detail} {
		switch {
		case strings.HasPrefix(s, statusPending):
			return &Status{State: StatePending, Message: message}
		case strings.HasPrefix(s, statusPass):
			return &Status{State: StateSuccess, Message: message}
		case containsFold(s, alreadyVerifiedMarker):
			return &Status{State: StateSuccess, Message: message}
		case strings.HasPrefix(s, statusFail):
			return &Status{State: StateFailure, Message: message}
		}
	}

	return &Status{State: StateUnknown, Message: message}
}

func (c *Client) applyAuth(values url.Values) {
	if c.cfg.APIKey != "" {
		values.Set("apikey", c.cfg.APIKey)
	}
	if c.cfg.ChainID != 0 {
		values.Set("chainid", fmt.Sprintf("%d", c.cfg.ChainID))
	}
}

func (c *Client) postForm(ctx context.Context, form url.Values) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building explorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, query url.Values) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building explorer request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading explorer response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &resp, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
