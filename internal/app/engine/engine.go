// Package engine is the in-process proof engine: a groth16 circuit over BN254
// that binds an email, its sender domain and the user's command.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
)

const auxRuntimeName = "gnark-groth16-bn254"

// BlueprintSpec describes which emails a blueprint accepts.
type BlueprintSpec struct {
	ID             string
	SenderDomains  []string
	MaxCommandSize int
}

var DefaultBlueprints = []BlueprintSpec{
	{ID: "benceharomi/x_handle@v1", SenderDomains: []string{"x.com", "twitter.com"}, MaxCommandSize: 256},
	{ID: "zkemail/discord@v1", SenderDomains: []string{"discord.com"}, MaxCommandSize: 256},
	{ID: "zkemail/github@v1", SenderDomains: []string{"github.com"}, MaxCommandSize: 256},
	{ID: "zkemail/reddit@v1", SenderDomains: []string{"reddit.com", "redditmail.com"}, MaxCommandSize: 256},
}

type Option func(*Loader)

func WithLogger(l *logger.Logger) Option {
	return func(ld *Loader) { ld.log = l }
}

func WithBlueprints(specs ...BlueprintSpec) Option {
	return func(ld *Loader) {
		ld.blueprints = map[string]BlueprintSpec{}
		for _, s := range specs {
			ld.blueprints[s.ID] = s
		}
	}
}

// Loader compiles the circuit and runs the trusted setup at most once per
// cache directory, however many sessions load it.
type Loader struct {
	log        *logger.Logger
	blueprints map[string]BlueprintSpec

	mu   sync.Mutex
	keys map[string]*keysOnce
}

type keysOnce struct {
	once sync.Once
	keys *circuitKeys
	err  error
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{keys: map[string]*keysOnce{}}
	WithBlueprints(DefaultBlueprints...)(l)
	for _, opt := range opts {
		opt(l)
	}
	l.log = logger.OrDefault(l.log).Named("engine")
	return l
}

func (l *Loader) Load(ctx context.Context, env pipeline.Environment) (pipeline.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Engine{loader: l, env: env}, nil
}

func (l *Loader) circuit(cacheDir string) (*circuitKeys, error) {
	l.mu.Lock()
	entry, ok := l.keys[cacheDir]
	if !ok {
		entry = &keysOnce{}
		l.keys[cacheDir] = entry
	}
	l.mu.Unlock()

	entry.once.Do(func() {
		l.log.Info("Compiling claim circuit and running setup...")
		entry.keys, entry.err = setupCircuit(cacheDir)
		if entry.err == nil {
			l.log.Infof("Claim circuit ready (%d constraints)", entry.keys.ccs.GetNbConstraints())
		}
	})
	return entry.keys, entry.err
}

type Engine struct {
	loader *Loader
	env    pipeline.Environment
	keys   *circuitKeys
}

func (e *Engine) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys, err := e.loader.circuit(e.env.CacheDir)
	if err != nil {
		return err
	}
	e.keys = keys
	return nil
}

func (e *Engine) FetchBlueprint(ctx context.Context, id string) (pipeline.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.keys == nil {
		return nil, fmt.Errorf("engine not initialized")
	}

	spec, ok := e.loader.blueprints[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("unknown blueprint %q", id)
	}
	return &Blueprint{spec: spec, keys: e.keys}, nil
}

func (e *Engine) InitAuxRuntime(ctx context.Context) (pipeline.AuxRuntime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return auxRuntime{}, nil
}

type auxRuntime struct{}

func (auxRuntime) Name() string { return auxRuntimeName }
