package access

import (
	"context"
	"reflect"
	"time"
)

// LoginResult carries everything the transport needs after a successful
// login: the raw token for API clients, the sealed cookie value for
// browsers, and the public user snapshot.
type LoginResult struct {
	Token  string       `json:"token"`
	Sealed string       `json:"-"`
	User   UserSnapshot `json:"user"`
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	MemberToken(subjectID string) (string, error)
}

// Auther verifies identities, issues the audience appropriate JWT, and seals
// the session for cookie transport.
type Auther struct {
	provider IdentityProvider
	tokens   TokenService
	sealer   SessionSealer
	logger   Logger
	activity ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, cfg Config) *Auther {
	return &Auther{
		provider: provider,
		tokens:   NewTokenService(cfg, nil),
		sealer:   NewSessionCipher(cfg.GetSessionSecret()),
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink attaches an audit sink for login outcomes.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service. Used by tests.
func (s *Auther) WithTokenService(tokens TokenService) *Auther {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// WithSessionSealer overrides the session cipher. Used by tests.
func (s *Auther) WithSessionSealer(sealer SessionSealer) *Auther {
	if sealer != nil {
		s.sealer = sealer
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login verifies the identifier and password, signs an admin token carrying
// the identity's role, and seals {token, snapshot} into the cookie value.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.recordLogin(ctx, ActivityEventLoginFailure, identifier)
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrIdentityNotFound
	}

	token, err := s.tokens.SignAdmin(identity.ID(), identity.Role())
	if err != nil {
		s.logger.Error("Login token signing error", "error", err)
		return nil, err
	}

	snapshot := SnapshotFromIdentity(identity)

	sealed, err := s.sealer.Seal(&SessionObject{Token: token, User: snapshot})
	if err != nil {
		s.logger.Error("Login session sealing error", "error", err)
		return nil, err
	}

	s.recordLogin(ctx, ActivityEventLoginSuccess, identity.ID())

	return &LoginResult{Token: token, Sealed: sealed, User: snapshot}, nil
}

func (s *Auther) recordLogin(ctx context.Context, eventType ActivityEventType, actor string) {
	err := s.activity.Record(ctx, ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		OccurredAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("activity sink error", "error", err)
	}
}

// MemberToken issues a bearer token for the member audience. Members never
// authenticate with passwords; their identity is asserted by the redemption
// flow.
func (s *Auther) MemberToken(subjectID string) (string, error) {
	if subjectID == "" {
		return "", ErrIdentityNotFound
	}
	return s.tokens.SignMember(subjectID)
}

var _ Authenticator = (*Auther)(nil)
