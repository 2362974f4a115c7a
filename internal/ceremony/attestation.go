package ceremony

import "fmt"

// attestationObject is the top-level CBOR map WebAuthn registration responses
// carry: `{"fmt": string, "attStmt": map, "authData": bstr}`. Only the `none`
// attestation format is accepted by this engine (spec.md §4.4.1 step 3) — the
// attestation statement itself is never inspected beyond that, but authData
// is always parsed and verified.
type attestationObject struct {
	Format   string
	AuthData *authenticatorData
}

func parseAttestationObject(raw []byte) (*attestationObject, error) {
	decoded, err := decodeCBOR(raw)
	if err != nil {
		return nil, fmt.Errorf("ceremony: decode attestation object: %w", err)
	}
	m, ok := decoded.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("ceremony: attestation object is not a map")
	}

	format, ok := cborMapGetString(m, "fmt")
	if !ok {
		return nil, fmt.Errorf("ceremony: attestation object missing fmt")
	}

	authDataRaw, ok := cborMapGetBytes(m, "authData")
	if !ok {
		return nil, fmt.Errorf("ceremony: attestation object missing authData")
	}

	authData, err := parseAuthenticatorData(authDataRaw)
	if err != nil {
		return nil, err
	}
	if !authData.hasAttestedData() {
		return nil, fmt.Errorf("ceremony: attestation authData missing attested credential data")
	}

	return &attestationObject{Format: format, AuthData: authData}, nil
}
