package portal

import "context"

// FetchOutcome classifies a fetch attempt.
type FetchOutcome int

const (
	// FetchSuccess means Value holds a usable snapshot.
	FetchSuccess FetchOutcome = iota
	// FetchSoftError means the fetcher diagnosed a recoverable problem
	// (upstream maintenance page, empty roster) and Reason explains it.
	// Existing cached data must be preserved.
	FetchSoftError
	// FetchHardFailure means the fetcher produced nothing and could not
	// say why. Existing cached data must be preserved.
	FetchHardFailure
)

// FetchResult is the tagged outcome of a single fetch.
type FetchResult struct {
	Outcome FetchOutcome
	Value   any
	Reason  string
}

// Success wraps a usable snapshot value.
func Success(value any) FetchResult {
	return FetchResult{Outcome: FetchSuccess, Value: value}
}

// SoftError reports a diagnosed, recoverable fetch problem.
func SoftError(reason string) FetchResult {
	return FetchResult{Outcome: FetchSoftError, Reason: reason}
}

// HardFailure reports an undiagnosed empty fetch.
func HardFailure() FetchResult {
	return FetchResult{Outcome: FetchHardFailure}
}

// Fetcher retrieves one category snapshot for a user. Implementations
// must honor ctx cancellation and never panic across the boundary;
// unexpected panics are still caught and classified by the caller.
type Fetcher interface {
	Fetch(ctx context.Context, username, password string) FetchResult
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, username, password string) FetchResult

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, username, password string) FetchResult {
	return f(ctx, username, password)
}

// CourseLister enumerates the courses visible to a user on the
// learning platform.
type CourseLister interface {
	ListCourses(ctx context.Context, username, password string) ([]CourseRef, error)
}

// ContentFetcher retrieves per-course content and announcements.
// Both methods return FetchResult so soft errors (an unpublished
// course page) are distinguishable from transport failures.
type ContentFetcher interface {
	FetchContent(ctx context.Context, username, password, courseURL string) FetchResult
	FetchAnnouncement(ctx context.Context, username, password, courseURL string) FetchResult
}

// Authenticator verifies a username/password pair against the portal.
// It returns (false, nil) when the portal rejected the pair and a
// non-nil error when the check itself could not be completed.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, username, password string) (bool, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, username, password string) (bool, error) {
	return f(ctx, username, password)
}
