package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "C_DULA_FRONTAL.jpg", SanitizeFilename("CÉDULA FRONTAL.jpg"))
	assert.Equal(t, "carta-inv_2024.pdf", SanitizeFilename("carta-inv_2024.pdf"))
	assert.Equal(t, "file", SanitizeFilename(""))
}

func TestPathname(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	base, err := Pathname(Upload{ProfileID: "p1", Kind: domain.DocumentKindPassport, Filename: "my passport.pdf", At: at})
	require.NoError(t, err)
	assert.Equal(t, "profiles/p1/base/PASSPORT/1700000000000-my_passport.pdf", base)

	scoped, err := Pathname(Upload{ProfileID: "p1", CaseID: "c1", Kind: domain.DocumentKindAgenda, Filename: "agenda.pdf", At: at})
	require.NoError(t, err)
	assert.Equal(t, "profiles/p1/cases/c1/AGENDA/1700000000000-agenda.pdf", scoped)

	_, err = Pathname(Upload{CaseID: "c1"})
	assert.Error(t, err)
}

func TestPutStoresBytesAndChecksum(t *testing.T) {
	store := NewMemoryStore("https://blobs.test")
	data := []byte("hello")

	res, err := Put(context.Background(), store, Upload{
		ProfileID: "p1", Kind: domain.DocumentKindPhoto, Filename: "foto.jpg", MediaType: "image/jpeg", Data: data,
	})
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", res.ChecksumSHA256)
	assert.True(t, strings.HasPrefix(res.URL, "https://blobs.test/profiles/p1/base/PHOTO/"))

	obj, ok := store.Get(res.Pathname)
	require.True(t, ok)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "image/jpeg", obj.MediaType)
}

func TestPutPropagatesStoreFailure(t *testing.T) {
	store := NewMemoryStore("")
	store.FailOn = func(string) error { return errors.New("bucket offline") }

	_, err := Put(context.Background(), store, Upload{ProfileID: "p1", Kind: domain.DocumentKindOther, Filename: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket offline")
	assert.Zero(t, store.Len())
}
