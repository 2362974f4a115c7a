package ceremony

// pubKeyCredParam mirrors a single entry of PublicKeyCredentialParameters,
// in order of preference (ES256 before RS256).
type pubKeyCredParam struct {
	Type string `json:"type"`
	Alg  int64  `json:"alg"`
}

var defaultPubKeyCredParams = []pubKeyCredParam{
	{Type: "public-key", Alg: coseAlgES256},
	{Type: "public-key", Alg: coseAlgRS256},
}

const clientTimeoutMillis = 60_000

// registrationUser carries the user fields embedded in registration options.
type registrationUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type authenticatorSelection struct {
	ResidentKey      string `json:"residentKey"`
	UserVerification string `json:"userVerification"`
}

// registrationOptions is the client options structure returned by
// RegisterBegin (spec.md §4.4.1).
type registrationOptions struct {
	Challenge              string                  `json:"challenge"`
	RPID                   string                  `json:"rpId"`
	User                   registrationUser        `json:"user"`
	PubKeyCredParams       []pubKeyCredParam       `json:"pubKeyCredParams"`
	Timeout                int                     `json:"timeout"`
	Attestation            string                  `json:"attestation"`
	AuthenticatorSelection authenticatorSelection `json:"authenticatorSelection"`
}

// authenticationOptions is the client options structure returned by
// LoginBegin (spec.md §4.4.2).
type authenticationOptions struct {
	Challenge        string        `json:"challenge"`
	RPID             string        `json:"rpId"`
	AllowCredentials []interface{} `json:"allowCredentials"`
	Timeout          int           `json:"timeout"`
	UserVerification string        `json:"userVerification"`
}
