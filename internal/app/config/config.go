package config

import (
	"strings"
	"time"

	"github.com/zkemail/paytox/internal/app/claims"
	"github.com/zkemail/paytox/internal/app/database"
	"github.com/zkemail/paytox/internal/app/ens"
	"github.com/zkemail/paytox/internal/app/platform"
	"github.com/zkemail/paytox/internal/app/relay"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
	"github.com/zkemail/paytox/pkg/utilities"
)

const (
	EnvPublicOrigin = "PAYTOX_PUBLIC_ORIGIN"
	EnvBundlerRPC   = "PAYTOX_BUNDLER_RPC_URL"
	EnvSponsorURL   = "PAYTOX_SPONSOR_URL"
	EnvSponsorKey   = "PAYTOX_SPONSOR_API_KEY"
	EnvSepoliaRPC   = "PAYTOX_SEPOLIA_RPC_URL"
	EnvMainnetRPC   = "PAYTOX_MAINNET_RPC_URL"
	EnvDatabase     = "PAYTOX_DB"
	EnvAuthBackend  = "PAYTOX_AUTH_BACKEND_URL"
	EnvChainID      = "PAYTOX_CHAIN_ID"
)

const (
	ClaimEventsPublisher rabbitmq.PublisherAlias = "ClaimEventsPublisher"
	LogPublisher         rabbitmq.PublisherAlias = "LogPublisher"
	ClaimEventsConsumer  rabbitmq.ConsumerAlias  = "ClaimEventsConsumer"
	LogConsumer          rabbitmq.ConsumerAlias  = "LogConsumer"
)

type PaytoxConfigJson struct {
	LoggerConf    logger.LoggerConfigJson     `json:"logger"`
	RabbitmqConf  rabbitmq.RabbitmqConfigJson `json:"rabbitmq"`
	RestConf      RestConfigJson              `json:"rest"`
	DatabaseConf  database.DatabaseConfigJson `json:"database"`
	AuthConf      AuthConfigJson              `json:"auth"`
	ProverConf    ProverConfigJson            `json:"prover"`
	RelayConf     RelayConfigJson             `json:"relay"`
	EnsConf       EnsConfigJson               `json:"ens"`
	PlatformsConf []platform.OverrideJson     `json:"platforms"`
	JanitorConf   claims.JanitorConfigJson    `json:"janitor"`
}

type PaytoxConfig struct {
	LoggerConf    logger.LoggerConfig
	RabbitmqConf  rabbitmq.RabbitmqConfig
	RestConf      RestConfig
	DatabaseConf  database.DatabaseConfig
	AuthConf      AuthConfig
	ProverConf    ProverConfig
	RelayConf     relay.Config
	EnsConf       []ens.NetworkConfig
	PlatformsConf []platform.Override
	JanitorConf   claims.JanitorConfig
}

func (pcj PaytoxConfigJson) ConvertToDomain() PaytoxConfig {
	rest := pcj.RestConf.ConvertToDomain()
	auth := pcj.AuthConf.ConvertToDomain()
	if auth.RedirectURL == "" {
		auth.RedirectURL = rest.PublicOrigin + "/auth/callback"
	}

	db := pcj.DatabaseConf.ConvertToDomain()
	db.ConnectionString = GetenvDefault(EnvDatabase, db.ConnectionString)

	return PaytoxConfig{
		LoggerConf:    pcj.LoggerConf.ConvertToDomain(),
		RabbitmqConf:  pcj.RabbitmqConf.ConvertToDomain(),
		RestConf:      rest,
		DatabaseConf:  db,
		AuthConf:      auth,
		ProverConf:    pcj.ProverConf.ConvertToDomain(),
		RelayConf:     pcj.RelayConf.ConvertToDomain(),
		EnsConf:       pcj.EnsConf.ConvertToDomain(),
		PlatformsConf: utilities.ConvertJsonArrayToDomain[platform.OverrideJson, platform.Override](pcj.PlatformsConf),
		JanitorConf:   pcj.JanitorConf.ConvertToDomain(),
	}
}

func (pc PaytoxConfig) GetLoggerConfig() logger.LoggerConfig {
	return pc.LoggerConf
}

func (pc PaytoxConfig) GetRabbitmqConfig() rabbitmq.RabbitmqConfig {
	return pc.RabbitmqConf
}

func (pc PaytoxConfig) GetRestApiPort() uint16 {
	return pc.RestConf.Port
}

type RestConfigJson struct {
	Port         uint16 `json:"port"`
	PublicOrigin string `json:"public_origin"`
	SecureCookie bool   `json:"secure_cookie"`
}

type RestConfig struct {
	Port         uint16
	PublicOrigin string
	SecureCookie bool
}

func (r RestConfigJson) ConvertToDomain() RestConfig {
	port := r.Port
	if port == 0 {
		port = 8080
	}
	origin := GetenvDefault(EnvPublicOrigin, r.PublicOrigin)
	if origin == "" {
		origin = "http://localhost:8080"
	}
	return RestConfig{
		Port:         port,
		PublicOrigin: strings.TrimRight(origin, "/"),
		SecureCookie: r.SecureCookie,
	}
}

type AuthConfigJson struct {
	BackendURL       string `json:"backend_url"`
	ClientID         string `json:"client_id"`
	RedirectURL      string `json:"redirect_url"`
	WindowTTLSeconds int    `json:"window_ttl_seconds"`
}

type AuthConfig struct {
	BackendURL  string
	ClientID    string
	RedirectURL string
	WindowTTL   time.Duration
}

func (a AuthConfigJson) ConvertToDomain() AuthConfig {
	ttl := a.WindowTTLSeconds
	if ttl <= 0 {
		ttl = 600
	}
	return AuthConfig{
		BackendURL:  GetenvDefault(EnvAuthBackend, utilities.FirstNonEmpty(a.BackendURL, platform.DefaultAuthBackend)),
		ClientID:    utilities.FirstNonEmpty(a.ClientID, "paytox"),
		RedirectURL: a.RedirectURL,
		WindowTTL:   time.Duration(ttl) * time.Second,
	}
}

type ProverConfigJson struct {
	CacheDir             string `json:"cache_dir"`
	Workers              int    `json:"workers"`
	RemoteTimeoutSeconds int    `json:"remote_timeout_seconds"`
}

type ProverConfig struct {
	CacheDir      string
	Workers       int
	RemoteTimeout time.Duration
}

func (p ProverConfigJson) ConvertToDomain() ProverConfig {
	timeout := p.RemoteTimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}
	return ProverConfig{
		CacheDir:      p.CacheDir,
		Workers:       p.Workers,
		RemoteTimeout: time.Duration(timeout) * time.Second,
	}
}

type RelayConfigJson struct {
	ChainID               uint64 `json:"chain_id"`
	RPCURL                string `json:"rpc_url"`
	BundlerURL            string `json:"bundler_url"`
	SponsorURL            string `json:"sponsor_url"`
	SponsorAPIKey         string `json:"sponsor_api_key"`
	ReceiptTimeoutSeconds int    `json:"receipt_timeout_seconds"`
	PollIntervalSeconds   int    `json:"poll_interval_seconds"`
}

func (r RelayConfigJson) ConvertToDomain() relay.Config {
	chainID := r.ChainID
	if chainID == 0 {
		chainID = platform.SepoliaChainID
	}
	return relay.Config{
		ChainID:        GetenvUint(EnvChainID, chainID),
		RPCURL:         GetenvDefault(EnvSepoliaRPC, r.RPCURL),
		BundlerURL:     GetenvDefault(EnvBundlerRPC, r.BundlerURL),
		SponsorURL:     GetenvDefault(EnvSponsorURL, r.SponsorURL),
		SponsorAPIKey:  GetenvDefault(EnvSponsorKey, r.SponsorAPIKey),
		ReceiptTimeout: time.Duration(r.ReceiptTimeoutSeconds) * time.Second,
		PollInterval:   time.Duration(r.PollIntervalSeconds) * time.Second,
	}
}

type EnsNetworkJson struct {
	Name   string `json:"name"`
	RPCURL string `json:"rpc_url"`
}

type EnsConfigJson struct {
	SepoliaRPCURL string           `json:"sepolia_rpc_url"`
	MainnetRPCURL string           `json:"mainnet_rpc_url"`
	Extra         []EnsNetworkJson `json:"extra_networks"`
}

// ConvertToDomain orders networks sepolia, mainnet, then any extras. Networks
// without an RPC URL are skipped.
func (e EnsConfigJson) ConvertToDomain() []ens.NetworkConfig {
	candidates := []ens.NetworkConfig{
		{Name: "sepolia", RPCURL: GetenvDefault(EnvSepoliaRPC, e.SepoliaRPCURL)},
		{Name: "mainnet", RPCURL: GetenvDefault(EnvMainnetRPC, e.MainnetRPCURL)},
	}
	candidates = append(candidates, utilities.Map(e.Extra, func(n EnsNetworkJson) ens.NetworkConfig {
		return ens.NetworkConfig{Name: n.Name, RPCURL: n.RPCURL}
	})...)

	out := make([]ens.NetworkConfig, 0, len(candidates))
	for _, c := range candidates {
		if c.RPCURL != "" {
			out = append(out, c)
		}
	}
	return out
}
