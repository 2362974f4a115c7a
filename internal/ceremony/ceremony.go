// Package ceremony implements the WebAuthn relying-party server role
// (spec.md §4.4): registration and authentication ceremonies over a
// hand-rolled CBOR/COSE reader (see cbor.go, cose.go — no third-party
// WebAuthn library is wired; see DESIGN.md), plus session issuance via
// pkg/token.
package ceremony

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/codec"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/token"
)

// nonceSize is the byte length of a ceremony challenge nonce (spec.md §4.4.1).
const nonceSize = 32

// defaultSessionLifetime is used when Config.SessionLifetime is zero.
const defaultSessionLifetime = time.Hour

// Config carries the relying-party parameters the engine needs from
// internal/config without importing that package directly (avoids an
// import cycle — config depends on nothing in internal/ceremony).
type Config struct {
	ServerDomain     string
	Origins          []string
	ChallengeTTL      time.Duration
	SessionLifetime   time.Duration
}

func (c Config) originAllowed(origin string) bool {
	for _, o := range c.Origins {
		if o == origin {
			return true
		}
	}
	return false
}

func (c Config) challengeTTL() time.Duration {
	if c.ChallengeTTL > 0 {
		return c.ChallengeTTL
	}
	return 5 * time.Minute
}

func (c Config) sessionLifetime() time.Duration {
	if c.SessionLifetime > 0 {
		return c.SessionLifetime
	}
	return defaultSessionLifetime
}

// Engine drives the registration and authentication ceremonies.
type Engine struct {
	cfg Config

	users       repositories.UserRepository
	credentials repositories.CredentialRepository
	sessions    repositories.SessionRepository
	challenges  repositories.ChallengeStore
	tokens      *token.Service
}

// New constructs a ceremony Engine over the given configuration and
// repositories.
func New(
	cfg Config,
	users repositories.UserRepository,
	credentials repositories.CredentialRepository,
	sessions repositories.SessionRepository,
	challenges repositories.ChallengeStore,
	tokens *token.Service,
) *Engine {
	return &Engine{
		cfg:         cfg,
		users:       users,
		credentials: credentials,
		sessions:    sessions,
		challenges:  challenges,
		tokens:      tokens,
	}
}

// SessionInfo is the {token, expiresAt} pair returned alongside a completed
// ceremony (spec.md §6).
type SessionInfo struct {
	Token     string
	ExpiresAt time.Time
}

func randomNonce() ([]byte, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("ceremony: generate nonce: %w", err)
	}
	return b, nil
}

func rpIDHash(domain string) [32]byte {
	return sha256.Sum256([]byte(domain))
}

// --- Registration -----------------------------------------------------

// RegisterBeginResult is returned by RegisterBegin.
type RegisterBeginResult struct {
	ChallengeID string
	Options     registrationOptions
}

// RegisterBegin upserts a user by email and issues a fresh registration
// challenge (spec.md §4.4.1 Begin).
func (e *Engine) RegisterBegin(ctx context.Context, email, displayName string) (*RegisterBeginResult, error) {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if err != repositories.ErrNotFound {
			return nil, fmt.Errorf("ceremony: lookup user by email: %w", err)
		}
		user = &models.User{
			DisplayName: displayName,
			Email:       email,
			IsActive:    true,
		}
		user.ID = models.NewID()
		user.Touch()
		if err := e.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("ceremony: create user: %w", err)
		}
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	challenge := &models.Challenge{
		ID:        models.NewID(),
		UserID:    user.ID,
		Nonce:     nonce,
		Kind:      models.ChallengeKindRegistration,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.challengeTTL()),
	}
	if err := e.challenges.Put(ctx, challenge, e.cfg.challengeTTL()); err != nil {
		return nil, fmt.Errorf("ceremony: store challenge: %w", err)
	}

	options := registrationOptions{
		Challenge: codec.Encode(nonce),
		RPID:      e.cfg.ServerDomain,
		User: registrationUser{
			ID:          codec.Encode([]byte(user.ID)),
			Name:        user.Email,
			DisplayName: user.DisplayName,
		},
		PubKeyCredParams: defaultPubKeyCredParams,
		Timeout:          clientTimeoutMillis,
		Attestation:      "none",
		AuthenticatorSelection: authenticatorSelection{
			ResidentKey:      "required",
			UserVerification: "required",
		},
	}

	return &RegisterBeginResult{ChallengeID: challenge.ID, Options: options}, nil
}

// RegisterCompleteInput is the attestation response handed to
// RegisterComplete.
type RegisterCompleteInput struct {
	ChallengeID       string
	CredentialID      string // base64url, as received from the client
	AttestationObject []byte
	ClientDataJSON    []byte
	DeviceName        string
}

// RegisterCompleteResult is returned on a successful registration.
type RegisterCompleteResult struct {
	UserID       string
	CredentialID string
	Session      SessionInfo
}

// RegisterComplete verifies an attestation response and, on success,
// persists the credential and issues a session (spec.md §4.4.1 Complete).
func (e *Engine) RegisterComplete(ctx context.Context, in RegisterCompleteInput) (*RegisterCompleteResult, error) {
	challenge, err := e.challenges.Pop(ctx, in.ChallengeID)
	if err != nil {
		return nil, errChallengeNotFound
	}
	now := time.Now().UTC()
	if challenge.Expired(now) || challenge.Kind != models.ChallengeKindRegistration {
		return nil, errChallengeNotFound
	}

	if _, err := verifyClientData(in.ClientDataJSON, clientDataTypeCreate, challenge.Nonce, e.cfg.originAllowed); err != nil {
		return nil, fmt.Errorf("%w: %v", errVerificationFailed, err)
	}

	attestation, err := parseAttestationObject(in.AttestationObject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errVerificationFailed, err)
	}
	if attestation.Format != "none" {
		return nil, fmt.Errorf("%w: unsupported attestation format %q", errVerificationFailed, attestation.Format)
	}

	authData := attestation.AuthData
	wantHash := rpIDHash(e.cfg.ServerDomain)
	if len(authData.RPIDHash) != 32 || string(authData.RPIDHash) != string(wantHash[:]) {
		return nil, fmt.Errorf("%w: rpIdHash mismatch", errVerificationFailed)
	}
	if !authData.UserVerified() {
		return nil, fmt.Errorf("%w: user verification not performed", errVerificationFailed)
	}

	credentialID := codec.Encode(authData.CredentialID)
	if in.CredentialID != "" && in.CredentialID != credentialID {
		return nil, fmt.Errorf("%w: credential id mismatch", errVerificationFailed)
	}

	if _, _, err := parseCOSEPublicKey(authData.CredentialPublicKeyRaw); err != nil {
		return nil, fmt.Errorf("%w: %v", errVerificationFailed, err)
	}

	user, err := e.users.GetByID(ctx, challenge.UserID)
	if err != nil {
		return nil, fmt.Errorf("ceremony: load registering user: %w", err)
	}

	credential := &models.Credential{
		UserID:            user.ID,
		ID:                credentialID,
		PublicKey:         publicKeyForStorage(authData.CredentialPublicKeyRaw),
		SignCount:         authData.SignCount,
		AAGUID:            codec.Encode(authData.AAGUID),
		AttestationFormat: attestation.Format,
		CreatedAt:         now,
		LastUsedAt:        now,
		DeviceName:        in.DeviceName,
	}
	if err := e.credentials.Create(ctx, credential); err != nil {
		return nil, fmt.Errorf("ceremony: persist credential: %w", err)
	}

	_, sessionInfo, err := e.issueSession(ctx, user, credential.ID)
	if err != nil {
		return nil, err
	}

	return &RegisterCompleteResult{
		UserID:       user.ID,
		CredentialID: credential.ID,
		Session:      *sessionInfo,
	}, nil
}

// --- Authentication -----------------------------------------------------

// LoginBeginResult is returned by LoginBegin.
type LoginBeginResult struct {
	ChallengeID string
	Options     authenticationOptions
}

// LoginBegin issues a fresh authentication challenge for the discoverable
// (usernameless) flow (spec.md §4.4.2 Begin).
func (e *Engine) LoginBegin(ctx context.Context) (*LoginBeginResult, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	challenge := &models.Challenge{
		ID:        models.NewID(),
		Nonce:     nonce,
		Kind:      models.ChallengeKindAuthentication,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.challengeTTL()),
	}
	if err := e.challenges.Put(ctx, challenge, e.cfg.challengeTTL()); err != nil {
		return nil, fmt.Errorf("ceremony: store challenge: %w", err)
	}

	options := authenticationOptions{
		Challenge:        codec.Encode(nonce),
		RPID:             e.cfg.ServerDomain,
		AllowCredentials: []interface{}{},
		Timeout:          clientTimeoutMillis,
		UserVerification: "required",
	}

	return &LoginBeginResult{ChallengeID: challenge.ID, Options: options}, nil
}

// LoginCompleteInput is the assertion response handed to LoginComplete.
type LoginCompleteInput struct {
	ChallengeID       string
	CredentialID      string
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        string // base64url-encoded user id, optional
}

// LoginCompleteResult is returned on a successful authentication.
type LoginCompleteResult struct {
	UserID      string
	DisplayName string
	Session     SessionInfo
}

// LoginComplete verifies an assertion response and, on success, updates the
// credential's sign count and issues a session (spec.md §4.4.2 Complete).
func (e *Engine) LoginComplete(ctx context.Context, in LoginCompleteInput) (*LoginCompleteResult, error) {
	challenge, err := e.challenges.Pop(ctx, in.ChallengeID)
	if err != nil {
		return nil, errChallengeNotFound
	}
	now := time.Now().UTC()
	if challenge.Expired(now) || challenge.Kind != models.ChallengeKindAuthentication {
		return nil, errChallengeNotFound
	}

	if _, err := verifyClientData(in.ClientDataJSON, clientDataTypeGet, challenge.Nonce, e.cfg.originAllowed); err != nil {
		return nil, fmt.Errorf("%w: %v", errVerificationFailed, err)
	}

	credential, err := e.credentials.GetByID(ctx, in.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown credential", errVerificationFailed)
	}

	if in.UserHandle != "" {
		handleBytes, err := codec.Decode(in.UserHandle)
		if err != nil || string(handleBytes) != credential.UserID {
			return nil, fmt.Errorf("%w: user handle mismatch", errVerificationFailed)
		}
	}

	pub, alg, err := parseCOSEPublicKey(credential.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ceremony: parse stored credential key: %w", err)
	}

	clientDataHash := sha256.Sum256(in.ClientDataJSON)
	signedData := make([]byte, 0, len(in.AuthenticatorData)+len(clientDataHash))
	signedData = append(signedData, in.AuthenticatorData...)
	signedData = append(signedData, clientDataHash[:]...)
	if err := verifySignature(pub, alg, signedData, in.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", errVerificationFailed, err)
	}

	authData, err := parseAuthenticatorData(in.AuthenticatorData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errVerificationFailed, err)
	}
	wantHash := rpIDHash(e.cfg.ServerDomain)
	if len(authData.RPIDHash) != 32 || string(authData.RPIDHash) != string(wantHash[:]) {
		return nil, fmt.Errorf("%w: rpIdHash mismatch", errVerificationFailed)
	}
	if !authData.UserVerified() {
		return nil, fmt.Errorf("%w: user verification not performed", errVerificationFailed)
	}

	if authData.SignCount != 0 && credential.SignCount != 0 && authData.SignCount <= credential.SignCount {
		return nil, errCounterRegressed
	}

	ok, err := e.credentials.UpdateSignCount(ctx, credential.ID, credential.SignCount, authData.SignCount, now)
	if err != nil {
		return nil, fmt.Errorf("ceremony: update sign count: %w", err)
	}
	if !ok {
		return nil, errCounterRegressed
	}

	user, err := e.users.GetByID(ctx, credential.UserID)
	if err != nil {
		return nil, fmt.Errorf("ceremony: load authenticating user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account inactive", errVerificationFailed)
	}

	if err := e.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("ceremony: touch last login: %w", err)
	}

	_, sessionInfo, err := e.issueSession(ctx, user, credential.ID)
	if err != nil {
		return nil, err
	}

	return &LoginCompleteResult{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Session:     *sessionInfo,
	}, nil
}

// --- Session & logout -----------------------------------------------------

// issueSession mints a token and persists the session row it is keyed to.
func (e *Engine) issueSession(ctx context.Context, user *models.User, credentialID string) (*models.Session, *SessionInfo, error) {
	raw, claims, err := e.tokens.Mint(user.ID, user.DisplayName, user.Email, nil, e.cfg.sessionLifetime())
	if err != nil {
		return nil, nil, fmt.Errorf("ceremony: mint token: %w", err)
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:             claims.ID,
		UserID:         user.ID,
		CredentialID:   credentialID,
		CreatedAt:      now,
		ExpiresAt:      time.Unix(claims.ExpiresAt, 0).UTC(),
		LastActivityAt: now,
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("ceremony: persist session: %w", err)
	}

	return session, &SessionInfo{Token: raw, ExpiresAt: session.ExpiresAt}, nil
}

// Logout revokes the session identified by jti. Idempotent.
func (e *Engine) Logout(ctx context.Context, jti string) error {
	if err := e.sessions.Revoke(ctx, jti); err != nil {
		return fmt.Errorf("ceremony: revoke session: %w", err)
	}
	return nil
}

// Sentinel errors distinguishing the terminal ceremony failures named in
// spec.md §7. The gateway maps these onto apierror kinds via errors.Is.
var (
	errChallengeNotFound  = fmt.Errorf("ceremony: challenge not found")
	errVerificationFailed = fmt.Errorf("ceremony: verification failed")
	errCounterRegressed   = fmt.Errorf("ceremony: cloned authenticator suspected")
)

// ChallengeNotFoundError, VerificationFailedError and CounterRegressedError
// let the gateway test error identity without string matching.
func ChallengeNotFoundError() error  { return errChallengeNotFound }
func VerificationFailedError() error { return errVerificationFailed }
func CounterRegressedError() error   { return errCounterRegressed }
