package claims

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/utilities"
)

const sampleEmail = "From: info@discord.com\r\n" +
	"To: alice@example.com\r\n" +
	"Subject: Password Reset Request for Discord\r\n" +
	"\r\n" +
	"Reset your password, alice#1234\r\n"

const remoteProof = `{"proof":{"props":{"proofData":"0xabcd","publicOutputs":["0x01","0x02"]}}}`

func remoteRequest() pipeline.Request {
	return pipeline.Request{
		Artifact:       []byte(sampleEmail),
		ArtifactName:   "reset.eml",
		Command:        "withdraw",
		BlueprintID:    "zkemail/discord@v1",
		Mode:           pipeline.ModeRemote,
		RemoteEndpoint: "https://prover.test/prove",
		Entrypoint:     common.HexToAddress("0x7AD405AE2Ee1f9d1005A7639dd01a4de5acb9D8A"),
	}
}

// gatedRemote answers with remoteProof, optionally after gate is closed.
type gatedRemote struct {
	gate chan struct{}
}

func (g *gatedRemote) Prove(ctx context.Context, _ string, _ pipeline.RemoteRequest) (json.RawMessage, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return json.RawMessage(remoteProof), nil
}

type stubRelay struct{}

func (stubRelay) SubmitProof(context.Context, string, []string, common.Address) (pipeline.RelayReceipt, error) {
	return pipeline.RelayReceipt{
		OperationID:     "0xop",
		TransactionHash: "0xtx",
		AccountAddress:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}, nil
}

type manualNow struct {
	mu sync.Mutex
	t  time.Time
}

func (m *manualNow) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualNow) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

type capturePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, body utilities.Serializable) error {
	b, err := body.Serialize()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.bodies = append(c.bodies, b)
	c.mu.Unlock()
	return nil
}

func (c *capturePublisher) all() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.bodies...)
}

// replayConsumer hands every body to the handler once and returns.
type replayConsumer struct {
	bodies [][]byte
	errs   []error
}

func (r *replayConsumer) StartConsuming(_ context.Context, handler func(amqp.Delivery) error) error {
	for _, b := range r.bodies {
		r.errs = append(r.errs, handler(amqp.Delivery{Body: b}))
	}
	return nil
}

type fakeEvicter struct{ n int }

func (f fakeEvicter) Evict(time.Duration) int { return f.n }

type fakePruner struct {
	cutoff time.Time
	n      int64
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}
