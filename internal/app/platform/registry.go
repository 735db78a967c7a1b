package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zkemail/paytox/internal/app/pipeline"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// OverrideJson lets config.json retarget a platform without a rebuild.
type OverrideJson struct {
	ID             string `json:"id"`
	Blueprint      string `json:"blueprint"`
	Mode           string `json:"proving_mode"`
	RemoteEndpoint string `json:"remote_endpoint"`
	Entrypoint     string `json:"entrypoint"`
	ComingSoon     *bool  `json:"coming_soon"`
}

type Override struct {
	ID             ID
	Blueprint      string
	Mode           string
	RemoteEndpoint string
	Entrypoint     *common.Address
	ComingSoon     *bool
}

func (o OverrideJson) ConvertToDomain() Override {
	out := Override{
		ID:             ID(strings.ToLower(o.ID)),
		Blueprint:      o.Blueprint,
		Mode:           o.Mode,
		RemoteEndpoint: o.RemoteEndpoint,
		ComingSoon:     o.ComingSoon,
	}
	if common.IsHexAddress(o.Entrypoint) {
		addr := common.HexToAddress(o.Entrypoint)
		out.Entrypoint = &addr
	}
	return out
}

type Registry struct {
	order []ID
	byID  map[ID]Platform
}

func NewRegistry(overrides ...Override) (*Registry, error) {
	r := &Registry{byID: map[ID]Platform{}}
	for _, p := range Defaults() {
		r.order = append(r.order, p.ID)
		r.byID[p.ID] = p
	}

	for _, o := range overrides {
		p, ok := r.byID[o.ID]
		if !ok {
			return nil, fmt.Errorf("override for %q: %w", o.ID, ErrUnknownPlatform)
		}
		if o.Blueprint != "" {
			p.Blueprint = o.Blueprint
		}
		if o.Mode != "" {
			mode, err := pipeline.ParseMode(o.Mode)
			if err != nil {
				return nil, fmt.Errorf("override for %q: %w", o.ID, err)
			}
			p.Mode = mode
		}
		if o.RemoteEndpoint != "" {
			p.RemoteEndpoint = o.RemoteEndpoint
		}
		if o.Entrypoint != nil {
			p.Entrypoint = *o.Entrypoint
		}
		if o.ComingSoon != nil {
			p.ComingSoon = *o.ComingSoon
		}
		r.byID[o.ID] = p
	}
	return r, nil
}

func (r *Registry) Get(id string) (Platform, error) {
	p, ok := r.byID[ID(strings.ToLower(strings.TrimSpace(id)))]
	if !ok {
		return Platform{}, fmt.Errorf("%w: %s", ErrUnknownPlatform, id)
	}
	return p, nil
}

func (r *Registry) All() []Platform {
	out := make([]Platform, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
