// Package platform holds the identity platforms a claim can be made for and
// the per-platform settings the pipeline and the handshake need.
package platform

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zkemail/paytox/internal/app/pipeline"
)

type ID string

const (
	X       ID = "x"
	Discord ID = "discord"
	GitHub  ID = "github"
	Reddit  ID = "reddit"
)

// SepoliaChainID is the chain every entrypoint below is deployed on.
const SepoliaChainID = 11155111

type Platform struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	Placeholder     string          `json:"placeholder"`
	Description     string          `json:"description"`
	EmailType       string          `json:"email_type"`
	ENSSuffix       string          `json:"ens_suffix"`
	Blueprint       string          `json:"blueprint"`
	Mode            pipeline.Mode   `json:"proving_mode"`
	RemoteEndpoint  string          `json:"remote_endpoint,omitempty"`
	Entrypoint      common.Address  `json:"entrypoint"`
	HandleRegistrar *common.Address `json:"handle_registrar,omitempty"`
	GmailQuery      string          `json:"gmail_query"`
	ComingSoon      bool            `json:"coming_soon"`
}

// ENSName maps a user handle to the platform's ENS name, or "" for an empty
// handle.
func (p Platform) ENSName(handle string) string {
	h := strings.TrimSpace(handle)
	switch p.ID {
	case X:
		h = strings.ReplaceAll(strings.TrimPrefix(h, "@"), "_", "-")
	case Discord:
		h = strings.TrimPrefix(h, "@")
		h = strings.ReplaceAll(h, "_", "-")
		h = strings.ReplaceAll(h, "#", "-")
	}
	if h == "" {
		return ""
	}
	return h + p.ENSSuffix
}

// ClaimRequest fills in everything the pipeline needs besides the inputs the
// user supplies.
func (p Platform) ClaimRequest(artifact []byte, artifactName, command string) pipeline.Request {
	return pipeline.Request{
		Artifact:       artifact,
		ArtifactName:   artifactName,
		Command:        command,
		BlueprintID:    p.Blueprint,
		Mode:           p.Mode,
		RemoteEndpoint: p.RemoteEndpoint,
		Entrypoint:     p.Entrypoint,
	}
}

// WithdrawCommand is the command bound into a proof. Without a target the
// bare "withdraw" placeholder is used.
func WithdrawCommand(to *common.Address) string {
	if to == nil {
		return "withdraw"
	}
	return "Withdraw all eth to " + to.Hex()
}

func Defaults() []Platform {
	registrar := common.HexToAddress("0x9f6b4122c714dFCD32c24d7515dDFA7fec97746D")
	return []Platform{
		{
			ID:          X,
			Name:        "X (Twitter)",
			Placeholder: "@username",
			Description: "X (Twitter) handle",
			EmailType:   "X password reset email",
			ENSSuffix:   ".x.zkemail.eth",
			Blueprint:   "benceharomi/x_handle@v1",
			Mode:        pipeline.ModeLocal,
			Entrypoint:  common.HexToAddress("0x593403CF4fC2761360cCB214Fc0999fcd7Df3aC4"),
			GmailQuery:  `from:info@x.com subject:"password reset"`,
		},
		{
			ID:              Discord,
			Name:            "Discord",
			Placeholder:     "username#1234",
			Description:     "Discord username",
			EmailType:       "Discord verification email",
			ENSSuffix:       ".discord.zkemail.eth",
			Blueprint:       "zkemail/discord@v1",
			Mode:            pipeline.ModeRemote,
			RemoteEndpoint:  "https://noir-prover.zk.email/prove",
			Entrypoint:      common.HexToAddress("0x7AD405AE2Ee1f9d1005A7639dd01a4de5acb9D8A"),
			HandleRegistrar: &registrar,
			GmailQuery:      `from:discord.com subject:"Password Reset Request for Discord"`,
		},
		{
			ID:             GitHub,
			Name:           "GitHub",
			Placeholder:    "@username",
			Description:    "GitHub username",
			EmailType:      "GitHub notification email",
			ENSSuffix:      ".github.zkemail.eth",
			Blueprint:      "benceharomi/github_handle@v1",
			Mode:           pipeline.ModeRemote,
			RemoteEndpoint: "https://dev-conductor.zk.email/api/prove",
			GmailQuery:     "from:github.com",
			ComingSoon:     true,
		},
		{
			ID:             Reddit,
			Name:           "Reddit",
			Placeholder:    "u/username",
			Description:    "Reddit username",
			EmailType:      "Reddit notification email",
			ENSSuffix:      ".reddit.zkemail.eth",
			Blueprint:      "benceharomi/reddit_handle@v1",
			Mode:           pipeline.ModeRemote,
			RemoteEndpoint: "https://dev-conductor.zk.email/api/prove",
			GmailQuery:     "from:reddit.com",
			ComingSoon:     true,
		},
	}
}
