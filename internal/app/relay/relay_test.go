package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
)

var (
	entrypoint = common.HexToAddress("0x593403CF4fC2761360cCB214Fc0999fcd7Df3aC4")
	account    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	txHash     = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers eth_call with the ABI encoding of `encoded` and reports a
// receipt after `pendingPolls` null answers.
type fakeNode struct {
	t            *testing.T
	encoded      []byte
	pendingPolls int
	reverted     bool

	mu       sync.Mutex
	polls    int
	callData []byte
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	require.NoError(n.t, json.NewDecoder(r.Body).Decode(&req))

	var result any
	switch req.Method {
	case "eth_call":
		var msg struct {
			To    common.Address `json:"to"`
			Input hexutil.Bytes  `json:"input"`
			Data  hexutil.Bytes  `json:"data"`
		}
		require.NoError(n.t, json.Unmarshal(req.Params[0], &msg))
		assert.Equal(n.t, entrypoint, msg.To)

		n.mu.Lock()
		n.callData = append([]byte(nil), msg.Input...)
		if len(n.callData) == 0 {
			n.callData = append([]byte(nil), msg.Data...)
		}
		n.mu.Unlock()

		parsed, err := parseEntrypointABI()
		require.NoError(n.t, err)
		out, err := parsed.Methods["encode"].Outputs.Pack(n.encoded)
		require.NoError(n.t, err)
		result = hexutil.Encode(out)
	case "eth_getUserOperationReceipt":
		n.mu.Lock()
		n.polls++
		polls := n.polls
		n.mu.Unlock()
		if polls <= n.pendingPolls {
			result = nil
			break
		}
		result = map[string]any{
			"success": !n.reverted,
			"reason":  "out of gas",
			"receipt": map[string]any{"transactionHash": txHash.Hex()},
		}
	default:
		n.t.Errorf("unexpected method %s", req.Method)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func newTestRelay(t *testing.T, node *fakeNode, sponsor http.Handler, cfg Config) *Relay {
	t.Helper()
	nodeSrv := httptest.NewServer(node)
	t.Cleanup(nodeSrv.Close)
	sponsorSrv := httptest.NewServer(sponsor)
	t.Cleanup(sponsorSrv.Close)

	client, err := rpc.DialHTTP(nodeSrv.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	cfg.ChainID = 11155111
	r, err := New(cfg, ethclient.NewClient(client), client, NewSponsorClient(sponsorSrv.URL, "secret"), logger.Nop())
	require.NoError(t, err)
	return r
}

func sponsorHandler(t *testing.T, got *UserOperationRequest) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/userops", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		_ = json.NewEncoder(w).Encode(UserOperationResponse{UserOpHash: "0xop", AccountAddress: account})
	})
}

func TestSubmitProof(t *testing.T) {
	node := &fakeNode{t: t, encoded: []byte{0xde, 0xad}, pendingPolls: 2}
	var sent UserOperationRequest
	r := newTestRelay(t, node, sponsorHandler(t, &sent), Config{PollInterval: 10 * time.Millisecond, ReceiptTimeout: 2 * time.Second})

	receipt, err := r.SubmitProof(context.Background(), "0xbeef", []string{"0x01", "0x02"}, entrypoint)
	require.NoError(t, err)

	assert.Equal(t, "0xop", receipt.OperationID)
	assert.Equal(t, txHash.Hex(), receipt.TransactionHash)
	assert.Equal(t, account, receipt.AccountAddress)
	assert.Equal(t, 3, node.polls)

	// eth_call carried encode(proof, outputs)
	parsed, err := parseEntrypointABI()
	require.NoError(t, err)
	method, err := parsed.MethodById(node.callData[:4])
	require.NoError(t, err)
	assert.Equal(t, "encode", method.Name)
	args, err := method.Inputs.Unpack(node.callData[4:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xbe, 0xef}, args[0])
	words := args[1].([][32]byte)
	require.Len(t, words, 2)
	assert.Equal(t, byte(0x02), words[1][31])

	// the user operation calls entrypoint(encoded)
	assert.Equal(t, uint64(11155111), sent.ChainID)
	assert.Equal(t, entrypoint, sent.To)
	method, err = parsed.MethodById(sent.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "entrypoint", method.Name)
	args, err = method.Inputs.Unpack(sent.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, args[0])
}

func TestSubmitProofTimesOut(t *testing.T) {
	node := &fakeNode{t: t, encoded: []byte{1}, pendingPolls: 1 << 30}
	var sent UserOperationRequest
	r := newTestRelay(t, node, sponsorHandler(t, &sent), Config{PollInterval: 10 * time.Millisecond, ReceiptTimeout: 100 * time.Millisecond})

	_, err := r.SubmitProof(context.Background(), "0xbeef", nil, entrypoint)
	assert.ErrorIs(t, err, pipeline.ErrRelayTimeout)
}

func TestSubmitProofReverted(t *testing.T) {
	node := &fakeNode{t: t, encoded: []byte{1}, reverted: true}
	var sent UserOperationRequest
	r := newTestRelay(t, node, sponsorHandler(t, &sent), Config{PollInterval: 10 * time.Millisecond})

	_, err := r.SubmitProof(context.Background(), "0xbeef", nil, entrypoint)
	assert.ErrorContains(t, err, "reverted: out of gas")
	assert.NotErrorIs(t, err, pipeline.ErrRelayTimeout)
}

func TestSubmitProofSponsorFailure(t *testing.T) {
	node := &fakeNode{t: t, encoded: []byte{1}}
	sponsor := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "paymaster out of funds", http.StatusPaymentRequired)
	})
	r := newTestRelay(t, node, sponsor, Config{})

	_, err := r.SubmitProof(context.Background(), "0xbeef", nil, entrypoint)
	assert.ErrorContains(t, err, "http 402: paymaster out of funds")
}

func TestSubmitProofRequiresEntrypoint(t *testing.T) {
	r, err := New(Config{}, nil, nil, nil, logger.Nop())
	require.NoError(t, err)

	_, err = r.SubmitProof(context.Background(), "0xbeef", nil, common.Address{})
	assert.ErrorIs(t, err, ErrNoEntrypoint)
}

func TestDecodeOutputs(t *testing.T) {
	words, err := decodeOutputs([]string{"0x1", "abc"})
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), words[0][31])
	assert.Equal(t, []byte{0x0a, 0xbc}, words[1][30:])

	_, err = decodeOutputs([]string{"0xzz"})
	assert.Error(t, err)

	long := "0x" + "11111111111111111111111111111111111111111111111111111111111111111111"
	_, err = decodeOutputs([]string{long})
	assert.ErrorContains(t, err, "want at most 32")
}
