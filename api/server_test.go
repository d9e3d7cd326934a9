package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/verify-go/explorer"
	"github.com/0xmhha/verify-go/internal/testutil"
	"github.com/0xmhha/verify-go/solc"
	"github.com/0xmhha/verify-go/verify"
)

const testAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

var tokenExec = []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x34}

// stubChain serves the same bytecode for every address.
type stubChain struct{ code []byte }

func (s *stubChain) DeployedBytecode(ctx context.Context, address string) ([]byte, error) {
	return s.code, nil
}

// stubArtifacts is a single-build artifact store.
type stubArtifacts struct{ info *solc.BuildInfo }

func (s *stubArtifacts) ArtifactExists(fqName string) bool {
	sourceName, contractName, err := solc.ParseFullyQualifiedName(fqName)
	if err != nil {
		return false
	}
	_, ok := s.info.Contract(sourceName, contractName)
	return ok
}

func (s *stubArtifacts) BuildInfo(fqName string) (*solc.BuildInfo, error) {
	if !s.ArtifactExists(fqName) {
		return nil, fmt.Errorf("%w: %s", solc.ErrNotFound, fqName)
	}
	return s.info, nil
}

func (s *stubArtifacts) BuildInfos() []*solc.BuildInfo {
	return []*solc.BuildInfo{s.info}
}

func tokenBuild() *solc.BuildInfo {
	object := hex.EncodeToString(testutil.WithMetadata(tokenExec, "0.8.2", 0xaa))
	return &solc.BuildInfo{
		ID:              "test-build",
		SolcVersion:     "0.8.2",
		SolcLongVersion: "0.8.2+commit.deadbeef",
		Input: &solc.CompilerInput{
			Language: "Solidity",
			Sources: map[string]solc.SourceContent{
				"contracts/Token.sol": {Content: "contract Token {}"},
			},
		},
		Output: &solc.CompilerOutput{
			Contracts: map[string]map[string]solc.ContractOutput{
				"contracts/Token.sol": {
					"Token": {
						EVM: solc.EVMOutput{
							DeployedBytecode: solc.BytecodeOutput{Object: object},
						},
					},
				},
			},
		},
	}
}

// passingBackend wires a real orchestrator against an httptest explorer
// that verifies everything on the first attempt.
func passingBackend(t *testing.T) verify.Backend {
	t.Helper()

	explorerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			action = r.FormValue("action")
		}
		switch action {
		case "getabi":
			_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
		case "verifysourcecode":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"guid-1"}`))
		case "checkverifystatus":
			_, _ = w.Write([]byte(`{"status":"1","message":"Pass - Verified","result":"Pass - Verified"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Invalid action"}`))
		}
	}))
	t.Cleanup(explorerServer.Close)

	cfg := explorer.DefaultConfig("scan-test", explorerServer.URL)
	cfg.RequestsPerSecond = 1000
	client, err := explorer.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)

	orchestrator := verify.NewOrchestrator(verify.Config{
		Network:          "devnet",
		CompilerVersions: []string{"0.8.2"},
		SettleDelay:      time.Millisecond,
	}, &stubChain{code: testutil.WithMetadata(tokenExec, "0.8.2", 0xbb)}, client, &stubArtifacts{info: tokenBuild()}, zap.NewNop(), nil)

	return verify.Backend{Name: "scan-test", Orchestrator: orchestrator}
}

func newTestServer(t *testing.T, backends ...verify.Backend) *Server {
	t.Helper()

	server, err := NewServer(&Config{ListenAddr: ":0"}, "devnet", backends, nil, zap.NewNop())
	require.NoError(t, err)
	return server
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_SubmitValidation(t *testing.T) {
	server := newTestServer(t)

	rec := postJSON(t, server.Router(), "/api/v1/verify", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, server.Router(), "/api/v1/verify", map[string]string{"address": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", bytes.NewReader([]byte("{broken")))
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UnknownJob(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/verify/nonexistent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_VerifyJobLifecycle(t *testing.T) {
	server := newTestServer(t, passingBackend(t))

	rec := postJSON(t, server.Router(), "/api/v1/verify", map[string]string{"address": testAddress})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	guid := accepted["guid"]
	require.NotEmpty(t, guid)

	var job Job
	require.Eventually(t, func() bool {
		statusRec := httptest.NewRecorder()
		server.Router().ServeHTTP(statusRec, httptest.NewRequest(http.MethodGet, "/api/v1/verify/"+guid, nil))
		if statusRec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(statusRec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.State == JobDone
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, job.Outcomes, 1)
	outcome := job.Outcomes[0]
	assert.Equal(t, "scan-test", outcome.Backend)
	assert.True(t, outcome.Success)
	assert.Equal(t, "contracts/Token.sol:Token", outcome.ContractName)
	assert.Equal(t, "v0.8.2+commit.deadbeef", outcome.CompilerVersion)
	assert.Empty(t, outcome.Error)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{ListenAddr: ":8080"}).Validate())
}
