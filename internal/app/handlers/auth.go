package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/zkemail/paytox/internal/app/claimstore"
	"github.com/zkemail/paytox/internal/app/handshake"
	"github.com/zkemail/paytox/internal/app/platform"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
	"github.com/zkemail/paytox/pkg/utilities"
)

const (
	sessionCookie   = "paytox_sid"
	cookieMaxAge    = 24 * 60 * 60
	maxMessageBytes = 16 << 10
	maxWait         = time.Minute
	claimPage       = "/claim"
	noProofID       = "no_proof_id"
)

// The handshake was delivered server side; all the popup has left to do is go away.
const closePage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Authenticated</title></head>
<body><p>You can close this window.</p><script>window.close()</script></body></html>`

func qrBase64(data string) (string, error) {
	png, err := qrcode.Encode(data, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

type beginHandshakeIn struct {
	Platform   string `json:"platform" binding:"required"`
	Handle     string `json:"handle"`
	Command    string `json:"command"`
	WithdrawTo string `json:"withdraw_to"`
}

type handshakeOut struct {
	ID          string            `json:"id"`
	AuthURL     string            `json:"auth_url"`
	QRPngBase64 string            `json:"qr_png_base64,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Outcome     handshake.Outcome `json:"outcome"`
}

// POST /v1/auth/handshakes
func (h *Handler) BeginHandshake(c *gin.Context) {
	var in beginHandshakeIn
	if err := c.ShouldBindJSON(&in); err != nil {
		abort(c, http.StatusBadRequest, reasoncodes.ErrUnmarshal, "bad json: "+err.Error())
		return
	}

	p, err := h.Platforms.Get(in.Platform)
	if err != nil {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
		return
	}
	if p.ComingSoon {
		abort(c, http.StatusConflict, reasoncodes.ErrConflict, p.Name+" is not available yet")
		return
	}

	command := strings.TrimSpace(in.Command)
	if command == "" && strings.TrimSpace(in.WithdrawTo) != "" {
		addr, ok := h.resolveTarget(c, strings.TrimSpace(in.WithdrawTo))
		if !ok {
			return
		}
		command = platform.WithdrawCommand(addr)
	}
	if command == "" {
		abort(c, http.StatusBadRequest, reasoncodes.ErrEmptyCommand, "Please provide a command")
		return
	}

	hs, err := h.Handshakes.Begin(func(state string) (string, error) {
		return h.AuthURLs.Build(p, command, in.Handle, state), nil
	})
	if err != nil {
		abortWith(c, 0, err)
		return
	}

	h.log.Infof("Handshake %s started for %s", hs.ID, p.ID)
	qr, err := qrBase64(hs.AuthURL)
	if err != nil {
		h.log.Warnf("No QR code for handshake %s: %v", hs.ID, err)
	}
	c.JSON(http.StatusCreated, handshakeOut{
		ID:          hs.ID,
		AuthURL:     hs.AuthURL,
		QRPngBase64: qr,
		CreatedAt:   hs.CreatedAt,
		Outcome:     hs.Outcome(),
	})
}

// GET /v1/auth/handshakes/:id?wait=30s
//
// With wait the request blocks until the handshake settles or the wait runs out.
func (h *Handler) GetHandshake(c *gin.Context) {
	hs, ok := h.Handshakes.Get(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, handshake.ErrUnknownHandshake.Error())
		return
	}

	if raw := c.Query("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			abort(c, http.StatusBadRequest, reasoncodes.ErrUnmarshal, "wait must be a duration like 30s")
			return
		}
		if wait > maxWait {
			wait = maxWait
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		_, _ = hs.Wait(ctx)
	}

	c.JSON(http.StatusOK, handshakeOut{
		ID:        hs.ID,
		AuthURL:   hs.AuthURL,
		CreatedAt: hs.CreatedAt,
		Outcome:   hs.Outcome(),
	})
}

// POST /v1/auth/handshakes/:id/messages
//
// The body is posted verbatim onto the handshake bus, tagged with the
// request's Origin header. The broker decides whether it counts.
func (h *Handler) PostHandshakeMessage(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		abort(c, http.StatusBadRequest, reasoncodes.ErrUnmarshal, err.Error())
		return
	}

	msg := handshake.Message{Origin: c.GetHeader("Origin"), Data: body}
	if err := h.Handshakes.Deliver(c.Param("id"), msg); err != nil {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
		return
	}
	c.Status(http.StatusAccepted)
}

// POST /v1/auth/handshakes/:id/close
func (h *Handler) CloseHandshake(c *gin.Context) {
	if err := h.Handshakes.MarkClosed(c.Param("id")); err != nil {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
		return
	}
	c.Status(http.StatusAccepted)
}

// DELETE /v1/auth/handshakes/:id
func (h *Handler) DeleteHandshake(c *gin.Context) {
	if err := h.Handshakes.Teardown(c.Param("id")); err != nil {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/auth/outcome
//
// Returns the outcome of the last top-level auth redirect for this browser.
// An outcome can be read once.
func (h *Handler) ConsumeOutcome(c *gin.Context) {
	key, err := c.Cookie(sessionCookie)
	if err != nil || key == "" {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, claimstore.ErrNoOutcome.Error())
		return
	}

	out, err := h.Outcomes.Consume(c.Request.Context(), key)
	if errors.Is(err, claimstore.ErrNoOutcome) {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
		return
	}
	if err != nil {
		abortWith(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":    utilities.Ternary(out.Succeeded(), handshake.StateSucceeded, handshake.StateFailed),
		"proof_id": out.ProofID,
		"error":    out.ErrorMessage,
	})
}

// GET /auth/callback?state=...&proofId=...&error=...
//
// The authorization backend redirects here. When state names a live
// handshake the result goes onto its bus and the popup closes itself.
// Otherwise the page was opened top level: the result is parked against the
// browser's cookie and the browser is sent back to the claim page.
func (h *Handler) AuthCallback(c *gin.Context) {
	errMsg := c.Query("error")
	proofID := c.Query("proofId")

	if hs, ok := h.Handshakes.Get(c.Query("state")); ok {
		var data []byte
		switch {
		case errMsg != "":
			data = handshake.ErrorEnvelope(errMsg)
		case proofID == "":
			data = handshake.ErrorEnvelope(noProofID)
		default:
			data = handshake.SuccessEnvelope(proofID)
		}
		if err := h.Handshakes.Deliver(hs.ID, handshake.Message{Origin: h.Handshakes.Origin(), Data: data}); err != nil {
			h.log.Warnf("Could not deliver callback to handshake %s: %v", hs.ID, err)
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(closePage))
		return
	}

	outcome := claimstore.AuthOutcome{SessionKey: h.sessionKey(c)}
	target := claimPage + "?auth=success"
	switch {
	case errMsg != "":
		outcome.ErrorMessage = errMsg
		target = claimPage + "?error=" + url.QueryEscape(errMsg)
	case proofID == "":
		outcome.ErrorMessage = noProofID
		target = claimPage + "?error=" + noProofID
	default:
		outcome.ProofID = proofID
	}

	if err := h.Outcomes.Save(c.Request.Context(), outcome); err != nil {
		h.log.Errorf(err, "Could not store auth outcome")
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) sessionKey(c *gin.Context) string {
	if key, err := c.Cookie(sessionCookie); err == nil && key != "" {
		return key
	}
	key := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, key, cookieMaxAge, "/", "", h.SecureCookie, true)
	return key
}
