package render

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/specialistvlad/stagecheck/internal/stage"
)

// Well-known digests mark anticipated conditions that must not be reported
// as failures.
const (
	DigestRedirect         = "NEXT_REDIRECT"
	DigestNotFound         = "NEXT_HTTP_ERROR_FALLBACK;404"
	DigestBailoutToClient  = "BAILOUT_TO_CLIENT_SIDE_RENDERING"
	DigestDynamicUsage     = "DYNAMIC_SERVER_USAGE"
	DigestHangingPromise   = "HANGING_PROMISE_REJECTION"
	DigestPostponed        = "NEXT_PRERENDER_INTERRUPTED"
	digestHTTPFallbackBase = "NEXT_HTTP_ERROR_FALLBACK;"
)

// IsWellKnownDigest reports whether digest identifies an anticipated condition.
func IsWellKnownDigest(digest string) bool {
	switch {
	case digest == "":
		return false
	case strings.HasPrefix(digest, DigestRedirect):
		return true
	case strings.HasPrefix(digest, digestHTTPFallbackBase):
		return true
	}
	switch digest {
	case DigestBailoutToClient, DigestDynamicUsage, DigestHangingPromise, DigestPostponed:
		return true
	}
	return false
}

// WellKnownError is raised by a data access that ends in an anticipated
// condition.
type WellKnownError struct {
	Digest string
}

func (e *WellKnownError) Error() string {
	return "anticipated condition: " + e.Digest
}

// RowError is a failure received over the wire; only its digest survived.
type RowError struct {
	Digest string
}

func (e *RowError) Error() string {
	if e.Digest == "" {
		return "render failed"
	}
	return fmt.Sprintf("render failed (digest %s)", e.Digest)
}

// Digest is the default OnError handler. It preserves digests that already
// exist and hashes everything else.
func Digest(err error) string {
	var known *WellKnownError
	if errors.As(err, &known) {
		return known.Digest
	}
	var row *RowError
	if errors.As(err, &row) {
		return row.Digest
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(err.Error()))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

// SyncAccessError is the interrupt reason recorded when a synchronous data
// access is reached before the stage it belongs to.
type SyncAccessError struct {
	Name  string
	Site  string
	Stage stage.Stage
}

func (e *SyncAccessError) Error() string {
	site := e.Site
	if site == "" {
		site = "an unknown location"
	}
	return fmt.Sprintf("%s was accessed synchronously at %s before the %s stage", e.Name, site, e.Stage)
}
