// Package vault stores portal credentials encrypted at rest. Each
// password is sealed with ChaCha20-Poly1305 under a service-wide key
// and kept as a field of one hash in the key-value store, so the set
// of enrolled users is enumerable without touching any plaintext.
package vault

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
)

const (
	// credentialsKey is the hash holding one encrypted password per
	// username field.
	credentialsKey = "user_credentials"
	// allowListKey holds the comma-joined set of enrollable usernames.
	allowListKey = "allowlist"
)

// Credential is one decrypted vault entry. DecryptFailed marks
// entries whose blob could not be opened (wrong key or tampering);
// Password is empty for those.
type Credential struct {
	Username      string
	Password      string
	DecryptFailed bool
}

// Vault encrypts and stores portal credentials.
type Vault struct {
	store  kvstore.Store
	aead   cipher.AEAD
	logger *zap.Logger
}

// Option is a functional option for configuring the vault
type Option func(*Vault)

// WithLogger sets the logger for the vault
func WithLogger(logger *zap.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

// New creates a vault sealing with the given 32-byte key.
func New(store kvstore.Store, key []byte, opts ...Option) (*Vault, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, portal.ErrEncryptionKeyIncorrect
	}

	v := &Vault{
		store:  store,
		aead:   aead,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// seal encrypts plaintext and prepends the random nonce.
func (v *Vault) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a nonce-prefixed blob.
func (v *Vault) open(blob []byte) ([]byte, error) {
	if len(blob) < v.aead.NonceSize() {
		return nil, portal.ErrInvalidCredentials
	}
	nonce, ciphertext := blob[:v.aead.NonceSize()], blob[v.aead.NonceSize():]
	return v.aead.Open(nil, nonce, ciphertext, nil)
}

// Store seals and persists a credential pair. Returns false when
// sealing or the store write fails; the plaintext never reaches the
// store or the logs either way.
func (v *Vault) Store(ctx context.Context, username, password string) bool {
	blob, err := v.seal([]byte(password))
	if err != nil {
		v.logger.Error("failed to seal credential", zap.String("username", username), zap.Error(err))
		return false
	}
	if err := v.store.HSet(ctx, credentialsKey, username, blob); err != nil {
		v.logger.Error("failed to persist credential", zap.String("username", username), zap.Error(err))
		return false
	}
	return true
}

// Fetch returns the decrypted password for username. A missing entry
// and an unopenable blob both report absent; the latter is logged.
func (v *Vault) Fetch(ctx context.Context, username string) (string, bool) {
	blob, err := v.store.HGet(ctx, credentialsKey, username)
	if err != nil {
		if !kvstore.IsNotFound(err) {
			v.logger.Warn("failed to read credential", zap.String("username", username), zap.Error(err))
		}
		return "", false
	}
	plaintext, err := v.open(blob)
	if err != nil {
		v.logger.Error("stored credential failed authentication, treating as absent",
			zap.String("username", username))
		return "", false
	}
	return string(plaintext), true
}

// Exists reports whether a credential is stored for username.
func (v *Vault) Exists(ctx context.Context, username string) bool {
	ok, err := v.store.HExists(ctx, credentialsKey, username)
	if err != nil {
		v.logger.Warn("failed to check credential", zap.String("username", username), zap.Error(err))
		return false
	}
	return ok
}

// Delete removes the credential for username. Returns true if one
// existed.
func (v *Vault) Delete(ctx context.Context, username string) bool {
	n, err := v.store.HDel(ctx, credentialsKey, username)
	if err != nil {
		v.logger.Warn("failed to delete credential", zap.String("username", username), zap.Error(err))
		return false
	}
	return n > 0
}

// Usernames returns every enrolled username, sorted.
func (v *Vault) Usernames(ctx context.Context) []string {
	fields, err := v.store.HKeys(ctx, credentialsKey)
	if err != nil {
		v.logger.Warn("failed to list credentials", zap.Error(err))
		return nil
	}
	sort.Strings(fields)
	return fields
}

// All decrypts every stored credential. Entries that fail to open are
// reported with DecryptFailed set instead of aborting the listing, so
// one corrupt blob cannot hide the rest.
func (v *Vault) All(ctx context.Context) []Credential {
	blobs, err := v.store.HGetAll(ctx, credentialsKey)
	if err != nil {
		v.logger.Warn("failed to list credentials", zap.Error(err))
		return nil
	}

	creds := make([]Credential, 0, len(blobs))
	for username, blob := range blobs {
		plaintext, err := v.open(blob)
		if err != nil {
			v.logger.Error("stored credential failed authentication",
				zap.String("username", username))
			creds = append(creds, Credential{Username: username, DecryptFailed: true})
			continue
		}
		creds = append(creds, Credential{Username: username, Password: string(plaintext)})
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Username < creds[j].Username })
	return creds
}

// AllowList returns the enrollable usernames. A missing key means an
// empty list, which denies everyone until an operator sets it.
func (v *Vault) AllowList(ctx context.Context) []string {
	raw, err := v.store.Get(ctx, allowListKey)
	if err != nil {
		if !kvstore.IsNotFound(err) {
			v.logger.Warn("failed to read allow list", zap.Error(err))
		}
		return nil
	}
	var users []string
	for _, u := range strings.Split(string(raw), ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}

// SetAllowList replaces the allow list. The key never expires.
func (v *Vault) SetAllowList(ctx context.Context, users []string) bool {
	cleaned := make([]string, 0, len(users))
	for _, u := range users {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if err := v.store.Set(ctx, allowListKey, []byte(strings.Join(cleaned, ",")), 0); err != nil {
		v.logger.Error("failed to write allow list", zap.Error(err))
		return false
	}
	return true
}

// IsAllowed reports whether username is on the allow list.
func (v *Vault) IsAllowed(ctx context.Context, username string) bool {
	for _, u := range v.AllowList(ctx) {
		if u == username {
			return true
		}
	}
	return false
}
