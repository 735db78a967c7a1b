package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/internal/app/remote"
	"github.com/zkemail/paytox/pkg/logger"
)

func TestProveSendsRequestAndReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/prove", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in pipeline.RemoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "raw", in.RawEmail)
		assert.Equal(t, "zkemail/discord@v1", in.BlueprintSlug)
		assert.Equal(t, "Withdraw all eth to 0xabc", in.Command)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"props":{"proofData":"aa","publicOutputs":[]}}`))
	}))
	defer srv.Close()

	c := remote.New(time.Second, logger.Nop())
	body, err := c.Prove(context.Background(), srv.URL+"/prove", pipeline.RemoteRequest{
		RawEmail:      "raw",
		BlueprintSlug: "zkemail/discord@v1",
		Command:       "Withdraw all eth to 0xabc",
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"props":{"proofData":"aa","publicOutputs":[]}}`, string(body))
}

func TestProveNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blueprint not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := remote.New(time.Second, logger.Nop()).Prove(context.Background(), srv.URL, pipeline.RemoteRequest{})

	require.Error(t, err)
	ce, ok := claimerr.As(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, claimerr.ErrRemoteProving)
	assert.Equal(t, http.StatusNotFound, ce.Status)
	assert.Equal(t, "blueprint not found\n", ce.Body)
	assert.Equal(t, "Server error: 404 - blueprint not found\n", ce.Error())
}

func TestProveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := remote.New(time.Second, logger.Nop()).Prove(context.Background(), url, pipeline.RemoteRequest{})
	assert.ErrorIs(t, err, claimerr.ErrRemoteProving)
}

func TestProveHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := remote.New(time.Minute, logger.Nop()).Prove(ctx, srv.URL, pipeline.RemoteRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
