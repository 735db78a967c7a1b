package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/zkemail/paytox/internal/app/claimerr"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

const artifactExtension = ".eml"

// validate checks the request before any progress is reported.
func validate(req Request) *claimerr.Error {
	if req.ArtifactName != "" && !strings.HasSuffix(strings.ToLower(req.ArtifactName), artifactExtension) {
		return claimerr.New(reasoncodes.ErrInvalidArtifact, "Please upload a valid .eml file")
	}
	if err := checkArtifact(req.Artifact); err != nil {
		return claimerr.Wrap(reasoncodes.ErrInvalidArtifact, err)
	}
	if strings.TrimSpace(req.Command) == "" {
		return claimerr.New(reasoncodes.ErrEmptyCommand, "Please provide a command")
	}
	return nil
}

// checkArtifact requires an RFC 5322 message with at least a From header.
func checkArtifact(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("email file is empty")
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("email file is not a valid RFC 5322 message: %w", err)
	}
	if msg.Header.Get("From") == "" {
		return errors.New("email file has no From header")
	}
	return nil
}
