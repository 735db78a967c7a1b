package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/zkemail/paytox/internal/app/claims"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/internal/app/platform"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

const maxArtifactBytes = 10 << 20

type claimOut struct {
	SessionID string            `json:"session_id"`
	StepLabel string            `json:"step_label,omitempty"`
	Snapshot  pipeline.Snapshot `json:"snapshot"`
}

func snapshotOf(s *claims.Session) claimOut {
	snap := s.Snapshot()
	return claimOut{SessionID: s.ID, StepLabel: snap.Step.Label(), Snapshot: snap}
}

// POST /v1/claims
func (h *Handler) CreateClaim(c *gin.Context) {
	s := h.Claims.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": s.ID})
}

// GET /v1/claims/:id
func (h *Handler) GetClaim(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshotOf(s))
}

// GET /v1/claims/:id/history
func (h *Handler) ClaimHistory(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.Ledger == nil {
		c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "claims": []any{}})
		return
	}
	recs, err := h.Ledger.ListBySession(c.Request.Context(), s.ID)
	if err != nil {
		abortWith(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "claims": recs})
}

// POST /v1/claims/:id/run
//
// multipart form: file, command or withdraw_to, and either platform or
// blueprint + mode + endpoint (+ entrypoint).
func (h *Handler) RunClaim(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	artifact, name, ok := readArtifact(c)
	if !ok {
		return
	}

	command := strings.TrimSpace(c.PostForm("command"))
	if command == "" {
		if target := strings.TrimSpace(c.PostForm("withdraw_to")); target != "" {
			addr, ok := h.resolveTarget(c, target)
			if !ok {
				return
			}
			command = platform.WithdrawCommand(addr)
		}
	}

	req, ok := h.claimRequest(c, artifact, name, command)
	if !ok {
		return
	}

	err := s.Start(req)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, snapshotOf(s))
	case errors.Is(err, pipeline.ErrRunInProgress):
		abort(c, http.StatusConflict, reasoncodes.ErrConflict, err.Error())
	case errors.Is(err, claims.ErrSessionClosed):
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
	default:
		abortWith(c, 0, err)
	}
}

func readArtifact(c *gin.Context) ([]byte, string, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, reasoncodes.ErrInvalidArtifact, "Please upload a valid .eml file")
		return nil, "", false
	}
	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, reasoncodes.ErrInvalidArtifact, err.Error())
		return nil, "", false
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxArtifactBytes+1))
	if err != nil {
		abort(c, http.StatusBadRequest, reasoncodes.ErrInvalidArtifact, err.Error())
		return nil, "", false
	}
	if len(raw) > maxArtifactBytes {
		abort(c, http.StatusRequestEntityTooLarge, reasoncodes.ErrInvalidArtifact, "email file is too large")
		return nil, "", false
	}
	return raw, fh.Filename, true
}

func (h *Handler) claimRequest(c *gin.Context, artifact []byte, name, command string) (pipeline.Request, bool) {
	if id := c.PostForm("platform"); id != "" {
		p, err := h.Platforms.Get(id)
		if err != nil {
			abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
			return pipeline.Request{}, false
		}
		if p.ComingSoon {
			abort(c, http.StatusConflict, reasoncodes.ErrConflict, p.Name+" is not available yet")
			return pipeline.Request{}, false
		}
		return p.ClaimRequest(artifact, name, command), true
	}

	mode, err := pipeline.ParseMode(c.PostForm("mode"))
	if err != nil {
		abort(c, http.StatusBadRequest, reasoncodes.ErrUnmarshal, err.Error())
		return pipeline.Request{}, false
	}
	req := pipeline.Request{
		Artifact:       artifact,
		ArtifactName:   name,
		Command:        command,
		BlueprintID:    c.PostForm("blueprint"),
		Mode:           mode,
		RemoteEndpoint: c.PostForm("endpoint"),
	}
	if ep := c.PostForm("entrypoint"); ep != "" {
		if !common.IsHexAddress(ep) {
			abort(c, http.StatusBadRequest, reasoncodes.ErrUnmarshal, "entrypoint is not an address")
			return pipeline.Request{}, false
		}
		req.Entrypoint = common.HexToAddress(ep)
	}
	return req, true
}

// POST /v1/claims/:id/submit
func (h *Handler) SubmitClaim(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	err := s.StartSubmit()
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, snapshotOf(s))
	case errors.Is(err, pipeline.ErrSubmitInProgress):
		abort(c, http.StatusConflict, reasoncodes.ErrConflict, err.Error())
	case errors.Is(err, claims.ErrSessionClosed):
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
	default:
		abortWith(c, 0, err)
	}
}

// POST /v1/claims/:id/reset
func (h *Handler) ResetClaim(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Reset()
	c.JSON(http.StatusOK, snapshotOf(s))
}
