package ceremony

import (
	"encoding/binary"
	"fmt"
)

// Authenticator data flag bits (WebAuthn §6.1).
const (
	flagUserPresent  = 1 << 0
	flagUserVerified = 1 << 2
	flagAttestedData = 1 << 6
)

// authenticatorData is the parsed fixed-plus-variable-length authData block
// carried inside an attestation object or an assertion response.
type authenticatorData struct {
	RPIDHash               []byte
	Flags                  byte
	SignCount              uint32
	AAGUID                 []byte
	CredentialID           []byte
	CredentialPublicKeyRaw []byte
}

func (a *authenticatorData) UserPresent() bool  { return a.Flags&flagUserPresent != 0 }
func (a *authenticatorData) UserVerified() bool { return a.Flags&flagUserVerified != 0 }
func (a *authenticatorData) hasAttestedData() bool {
	return a.Flags&flagAttestedData != 0
}

// parseAuthenticatorData decodes the rpIdHash/flags/signCount fixed header
// and, when the attested-credential-data flag is set, the variable-length
// aaguid/credentialId/COSE-key block that follows it (WebAuthn §6.1).
func parseAuthenticatorData(raw []byte) (*authenticatorData, error) {
	const fixedLen = 32 + 1 + 4
	if len(raw) < fixedLen {
		return nil, fmt.Errorf("ceremony: authenticator data too short")
	}

	out := &authenticatorData{
		RPIDHash:  raw[0:32],
		Flags:     raw[32],
		SignCount: binary.BigEndian.Uint32(raw[33:37]),
	}

	if !out.hasAttestedData() {
		return out, nil
	}

	pos := fixedLen
	if len(raw) < pos+16+2 {
		return nil, fmt.Errorf("ceremony: truncated attested credential data")
	}
	out.AAGUID = raw[pos : pos+16]
	pos += 16

	credIDLen := int(binary.BigEndian.Uint16(raw[pos : pos+2]))
	pos += 2
	if len(raw) < pos+credIDLen {
		return nil, fmt.Errorf("ceremony: truncated credential id")
	}
	out.CredentialID = raw[pos : pos+credIDLen]
	pos += credIDLen

	if pos >= len(raw) {
		return nil, fmt.Errorf("ceremony: missing credential public key")
	}

	decoder := newCBORDecoder(raw[pos:])
	if _, err := decoder.decodeValue(); err != nil {
		return nil, fmt.Errorf("ceremony: decode credential public key: %w", err)
	}
	out.CredentialPublicKeyRaw = raw[pos : pos+decoder.pos]

	return out, nil
}
