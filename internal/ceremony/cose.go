package ceremony

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// COSE key type and algorithm identifiers used by the credentials this
// engine accepts (https://www.iana.org/assignments/cose/cose.xhtml).
const (
	coseKeyTypeEC2 int64 = 2
	coseKeyTypeRSA int64 = 3

	coseAlgES256 int64 = -7
	coseAlgRS256 int64 = -257

	coseCrvP256 int64 = 1
)

// parseCOSEPublicKey decodes a CBOR-encoded COSE_Key into a crypto.PublicKey
// (either *ecdsa.PublicKey or *rsa.PublicKey), preserving the algorithm the
// key declared so the caller can select a matching verifier.
func parseCOSEPublicKey(raw []byte) (interface{}, int64, error) {
	decoded, err := decodeCBOR(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("ceremony: decode COSE key: %w", err)
	}
	m, ok := decoded.(map[interface{}]interface{})
	if !ok {
		return nil, 0, fmt.Errorf("ceremony: COSE key is not a map")
	}

	ktyRaw, ok := cborMapGetInt(m, 1)
	if !ok {
		return nil, 0, fmt.Errorf("ceremony: COSE key missing kty")
	}
	kty, _ := toInt64(ktyRaw)
	algRaw, _ := cborMapGetInt(m, 3)
	alg, _ := toInt64(algRaw)

	switch kty {
	case coseKeyTypeEC2:
		crvRaw, _ := cborMapGetInt(m, -1)
		crv, _ := toInt64(crvRaw)
		xRaw, _ := cborMapGetInt(m, -2)
		yRaw, _ := cborMapGetInt(m, -3)
		xBytes, _ := xRaw.([]byte)
		yBytes, _ := yRaw.([]byte)
		if crv != coseCrvP256 || len(xBytes) == 0 || len(yBytes) == 0 {
			return nil, 0, fmt.Errorf("ceremony: unsupported or malformed EC2 key")
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xBytes),
			Y:     new(big.Int).SetBytes(yBytes),
		}
		return pub, alg, nil
	case coseKeyTypeRSA:
		nRaw, _ := cborMapGetInt(m, -1)
		eRaw, _ := cborMapGetInt(m, -2)
		nBytes, _ := nRaw.([]byte)
		eBytes, _ := eRaw.([]byte)
		if len(nBytes) == 0 || len(eBytes) == 0 {
			return nil, 0, fmt.Errorf("ceremony: malformed RSA key")
		}
		pub := &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
		return pub, alg, nil
	default:
		return nil, 0, fmt.Errorf("ceremony: unsupported COSE key type %d", kty)
	}
}

// verifySignature checks sig over signedData using pub, dispatching on the
// declared COSE algorithm. ES256 signatures are ASN.1 DER per WebAuthn's
// packed/fido-u2f/none conventions; RS256 uses PKCS#1 v1.5.
func verifySignature(pub interface{}, alg int64, signedData, sig []byte) error {
	digest := sha256.Sum256(signedData)

	switch alg {
	case coseAlgES256:
		key, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("ceremony: ES256 requires an EC2 key")
		}
		if !ecdsa.VerifyASN1(key, digest[:], sig) {
			return fmt.Errorf("ceremony: ECDSA signature verification failed")
		}
		return nil
	case coseAlgRS256:
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("ceremony: RS256 requires an RSA key")
		}
		if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("ceremony: RSA signature verification failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("ceremony: unsupported signature algorithm %d", alg)
	}
}

// toInt64 normalizes the int64/uint64 values decodeCBOR may have produced
// for a COSE map key or value.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

// publicKeyForStorage returns the exact COSE bytes to persist on the
// credential row, so a later assertion reparses the identical key material.
func publicKeyForStorage(raw []byte) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
