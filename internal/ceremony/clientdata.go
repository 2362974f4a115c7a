package ceremony

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/radek-zitek-cloud/sentinel-auth/pkg/codec"
)

// Client data `type` discriminators (WebAuthn §5.8.1).
const (
	clientDataTypeCreate = "webauthn.create"
	clientDataTypeGet    = "webauthn.get"
)

// clientData is the subset of CollectedClientData this engine validates.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// verifyClientData parses raw client data JSON and checks its type,
// challenge, and origin against the expected values (spec.md §4.4.1/§4.4.2
// step 2). originAllowed reports membership in the configured permitted
// origin set.
func verifyClientData(raw []byte, wantType string, wantNonce []byte, originAllowed func(string) bool) (*clientData, error) {
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, fmt.Errorf("ceremony: parse client data json: %w", err)
	}

	if cd.Type != wantType {
		return nil, fmt.Errorf("ceremony: unexpected client data type %q", cd.Type)
	}

	gotNonce, err := codec.Decode(cd.Challenge)
	if err != nil {
		return nil, fmt.Errorf("ceremony: decode client data challenge: %w", err)
	}
	if subtle.ConstantTimeCompare(gotNonce, wantNonce) != 1 {
		return nil, fmt.Errorf("ceremony: client data challenge mismatch")
	}

	if !originAllowed(cd.Origin) {
		return nil, fmt.Errorf("ceremony: origin %q not permitted", cd.Origin)
	}

	return &cd, nil
}
