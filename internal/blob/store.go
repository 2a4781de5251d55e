// Package blob stores document bytes in object storage under deterministic,
// owner-scoped pathnames.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// Object is a stored blob.
type Object struct {
	URL      string
	Pathname string
}

// Store writes bytes at a pathname and returns where they can be fetched.
type Store interface {
	Store(ctx context.Context, pathname string, data []byte, mediaType string) (Object, error)
}

// Upload describes one document to store. Documents without a CaseID are
// base documents of the Profile.
type Upload struct {
	ProfileID string
	CaseID    string
	Kind      domain.DocumentKind
	Filename  string
	MediaType string
	Data      []byte
	At        time.Time
}

// Result is a stored upload.
type Result struct {
	Object
	ChecksumSHA256 string
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename replaces every character outside [a-zA-Z0-9._-] with "_".
func SanitizeFilename(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeChars.ReplaceAllString(name, "_")
}

// Pathname builds profiles/{profile}/base/{kind}/{file} or
// profiles/{profile}/cases/{case}/{kind}/{file}. The file part is prefixed
// with the upload time in milliseconds so re-sent files never overwrite.
func Pathname(u Upload) (string, error) {
	if u.ProfileID == "" {
		return "", errors.New("blob: profile id is required")
	}
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	file := strconv.FormatInt(at.UnixMilli(), 10) + "-" + SanitizeFilename(u.Filename)
	if u.CaseID != "" {
		return fmt.Sprintf("profiles/%s/cases/%s/%s/%s", u.ProfileID, u.CaseID, u.Kind, file), nil
	}
	return fmt.Sprintf("profiles/%s/base/%s/%s", u.ProfileID, u.Kind, file), nil
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put stores an upload under its pathname.
func Put(ctx context.Context, store Store, u Upload) (Result, error) {
	pathname, err := Pathname(u)
	if err != nil {
		return Result{}, err
	}
	obj, err := store.Store(ctx, pathname, u.Data, u.MediaType)
	if err != nil {
		return Result{}, fmt.Errorf("store %s: %w", pathname, err)
	}
	return Result{Object: obj, ChecksumSHA256: Checksum(u.Data)}, nil
}
