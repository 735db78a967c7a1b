package handlers

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/zkemail/paytox/internal/app/platform"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

// GET /v1/platforms
func (h *Handler) ListPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": h.Platforms.All()})
}

type ensOut struct {
	Platform         platform.ID     `json:"platform"`
	Handle           string          `json:"handle"`
	ENSName          string          `json:"ens_name"`
	PredictedAddress *common.Address `json:"predicted_address,omitempty"`
	BalanceWei       string          `json:"balance_wei,omitempty"`
}

// GET /v1/platforms/:id/ens?handle=...
// Address and balance are best effort; a lookup failure only leaves them out.
func (h *Handler) PlatformENS(c *gin.Context) {
	p, err := h.Platforms.Get(c.Param("id"))
	if err != nil {
		abort(c, http.StatusNotFound, reasoncodes.ErrNotFound, err.Error())
		return
	}

	handle := c.Query("handle")
	out := ensOut{Platform: p.ID, Handle: handle, ENSName: p.ENSName(handle)}
	if out.ENSName == "" || h.Names == nil {
		c.JSON(http.StatusOK, out)
		return
	}

	addr, err := h.Names.Resolve(c.Request.Context(), out.ENSName)
	if err != nil {
		h.log.Warnf("Could not resolve %s: %v", out.ENSName, err)
	}
	if addr != nil {
		out.PredictedAddress = addr
		balance, err := h.Names.Balance(c.Request.Context(), *addr)
		if err != nil {
			h.log.Warnf("Could not read balance of %s: %v", addr.Hex(), err)
		} else {
			out.BalanceWei = balance.String()
		}
	}
	c.JSON(http.StatusOK, out)
}

// GET /v1/names/resolve?input=...
func (h *Handler) ResolveName(c *gin.Context) {
	input := strings.TrimSpace(c.Query("input"))
	if input == "" {
		abort(c, http.StatusBadRequest, reasoncodes.ErrUnmarshal, "input is required")
		return
	}
	addr, ok := h.resolveTarget(c, input)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"input": input, "address": addr.Hex()})
}

// resolveTarget turns a hex address or an ENS name into an address, writing
// the error response itself when it cannot.
func (h *Handler) resolveTarget(c *gin.Context, input string) (*common.Address, bool) {
	if h.Names == nil {
		if common.IsHexAddress(input) {
			addr := common.HexToAddress(input)
			return &addr, true
		}
		abort(c, http.StatusServiceUnavailable, reasoncodes.ErrNameResolution, "name resolution is not configured")
		return nil, false
	}

	addr, err := h.Names.ResolveTarget(c.Request.Context(), input)
	if err != nil {
		h.log.Warnf("Could not resolve %s: %v", input, err)
	}
	if addr == nil {
		abort(c, http.StatusUnprocessableEntity, reasoncodes.ErrNameResolution, "could not resolve "+input)
		return nil, false
	}
	return addr, true
}
