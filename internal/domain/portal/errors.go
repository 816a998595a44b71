package portal

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidCredentials     = NewDomainError("INVALID_CREDENTIALS", "The provided credentials were rejected")
	ErrAuthCheckFailed        = NewDomainError("AUTH_CHECK_FAILED", "Credential verification is temporarily unavailable")
	ErrNotAllowed             = NewDomainError("NOT_ALLOWED", "User is not on the allow list")
	ErrConcurrencyConflict    = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrStoreUnavailable       = NewDomainError("STORE_UNAVAILABLE", "The backing store is unavailable")
	ErrUnknownCategory        = NewDomainError("UNKNOWN_CATEGORY", "No fetcher is registered for this category")
	ErrEncryptionKeyIncorrect = NewDomainError("ENCRYPTION_KEY", "Encryption key must be 32 bytes")
)
