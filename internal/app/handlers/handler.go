// Package handlers exposes claim sessions, platform lookups and the identity
// handshake over HTTP.
package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/internal/app/claims"
	"github.com/zkemail/paytox/internal/app/claimstore"
	"github.com/zkemail/paytox/internal/app/handshake"
	"github.com/zkemail/paytox/internal/app/platform"
	"github.com/zkemail/paytox/pkg/logger"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
	"github.com/zkemail/paytox/pkg/rest"
)

const apiGroup = "v1"

// NameResolver is the part of the ENS resolver the API needs.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (*common.Address, error)
	ResolveTarget(ctx context.Context, input string) (*common.Address, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

type Deps struct {
	Platforms    *platform.Registry
	Claims       *claims.Manager
	Handshakes   *handshake.Registry
	AuthURLs     *platform.AuthURLBuilder
	Outcomes     claimstore.OutcomeRepository
	Ledger       claimstore.LedgerRepository
	Names        NameResolver
	SecureCookie bool
	Logger       *logger.Logger
}

type Handler struct {
	Deps
	log *logger.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d, log: logger.OrDefault(d.Logger).Named("http")}
}

func (h *Handler) Routes() []rest.Route {
	return []rest.Route{
		rest.NewRoute(rest.GET, apiGroup, "/platforms", h.ListPlatforms),
		rest.NewRoute(rest.GET, apiGroup, "/platforms/:id/ens", h.PlatformENS),
		rest.NewRoute(rest.GET, apiGroup, "/names/resolve", h.ResolveName),

		rest.NewRoute(rest.POST, apiGroup, "/claims", h.CreateClaim),
		rest.NewRoute(rest.GET, apiGroup, "/claims/:id", h.GetClaim),
		rest.NewRoute(rest.GET, apiGroup, "/claims/:id/history", h.ClaimHistory),
		rest.NewRoute(rest.POST, apiGroup, "/claims/:id/run", h.RunClaim),
		rest.NewRoute(rest.POST, apiGroup, "/claims/:id/submit", h.SubmitClaim),
		rest.NewRoute(rest.POST, apiGroup, "/claims/:id/reset", h.ResetClaim),

		rest.NewRoute(rest.POST, apiGroup, "/auth/handshakes", h.BeginHandshake),
		rest.NewRoute(rest.GET, apiGroup, "/auth/handshakes/:id", h.GetHandshake),
		rest.NewRoute(rest.POST, apiGroup, "/auth/handshakes/:id/messages", h.PostHandshakeMessage),
		rest.NewRoute(rest.POST, apiGroup, "/auth/handshakes/:id/close", h.CloseHandshake),
		rest.NewRoute(rest.DELETE, apiGroup, "/auth/handshakes/:id", h.DeleteHandshake),
		rest.NewRoute(rest.GET, apiGroup, "/auth/outcome", h.ConsumeOutcome),

		rest.NewRoute(rest.GET, "", "/auth/callback", h.AuthCallback),
	}
}

type apiError struct {
	Code    reasoncodes.ReasonCode `json:"code"`
	Message string                 `json:"message"`
	Step    string                 `json:"step,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func abort(c *gin.Context, status int, code reasoncodes.ReasonCode, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// abortWith renders err, picking the status from its code unless status is
// non-zero.
func abortWith(c *gin.Context, status int, err error) {
	ce, ok := claimerr.As(err)
	if !ok {
		ce = claimerr.Wrap(reasoncodes.ErrInternal, err)
	}
	if status == 0 {
		status = statusFor(ce.Code)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: apiError{
		Code:    ce.Code,
		Message: ce.Reason(),
		Step:    ce.Step,
	}})
}

func statusFor(code reasoncodes.ReasonCode) int {
	switch code {
	case reasoncodes.ErrInvalidArtifact, reasoncodes.ErrEmptyCommand, reasoncodes.ErrMissingEndpoint, reasoncodes.ErrUnmarshal:
		return http.StatusBadRequest
	case reasoncodes.ErrNotFound:
		return http.StatusNotFound
	case reasoncodes.ErrNoProof, reasoncodes.ErrConflict:
		return http.StatusConflict
	case reasoncodes.ErrNameResolution:
		return http.StatusUnprocessableEntity
	case reasoncodes.ErrRemoteProving, reasoncodes.ErrInvalidRemoteResponse:
		return http.StatusBadGateway
	case reasoncodes.ErrSubmissionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) session(c *gin.Context) (*claims.Session, bool) {
	s, err := h.Claims.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, claims.ErrUnknownSession) {
			abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, "unknown claim session")
			return nil, false
		}
		abortWith(c, 0, err)
		return nil, false
	}
	return s, true
}
