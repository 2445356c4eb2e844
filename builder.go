package authkit

import (
	"errors"
	"log/slog"
	"time"

	"github.com/authkit-go/authkit/internal/metrics"
	"github.com/authkit-go/authkit/password"
	"github.com/authkit-go/authkit/token"
)

// Builder assembles a [Service]. Configure it fluently and call Build once.
type Builder struct {
	config  Config
	users   UserStore
	tokens  TokenStore
	log     *slog.Logger
	metrics *metrics.Metrics

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the identity persistence backend. Required.
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

// WithTokenStore sets the refresh-token persistence backend. Required.
func (b *Builder) WithTokenStore(s TokenStore) *Builder {
	b.tokens = s
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.log = l
	return b
}

// WithMetrics attaches Prometheus counters. Optional; nil disables them.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build validates the configuration, constructs the signer and hasher, and
// returns the ready Service. Every configuration problem is reported here,
// at startup, never at request time.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.tokens == nil {
		return nil, errors.New("token store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	signer, err := token.NewSigner(token.Config{
		Secret:   cfg.Token.Secret,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		TTL:      cfg.Token.AccessTTL,
		Leeway:   cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = slog.Default()
	}

	b.built = true

	return &Service{
		config:  cfg,
		users:   b.users,
		tokens:  b.tokens,
		signer:  signer,
		hasher:  hasher,
		log:     log,
		metrics: b.metrics,
		now:     time.Now,
	}, nil
}
