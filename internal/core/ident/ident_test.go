package ident

import (
	"strings"
	"testing"

	perr "oaiserver/internal/platform/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	p := New(Config{Prefix: "oai:repo.example.org:recid/"})
	oid := p.ToOAIID(42)
	assert.Equal(t, "oai:repo.example.org:recid/42", oid)

	id, err := p.FromOAIID(oid)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	assert.Equal(t, "repo.example.org", p.RepositoryIdentifier())
	assert.Equal(t, "oai:repo.example.org:recid/1", p.SampleIdentifier())
}

func TestFromOAIIDRejects(t *testing.T) {
	p := New(Config{Prefix: "oai:x:recid/"})
	for _, in := range []string{"", "oai:x:recid/", "oai:y:recid/1", "oai:x:recid/abc", "oai:x:recid/-3", "oai:x:recid/0"} {
		_, err := p.FromOAIID(in)
		assert.True(t, perr.IsCode(err, perr.ErrorCodeIDDoesNotExist), in)
	}
}

func TestMintStatus(t *testing.T) {
	p := New(Config{Prefix: "oai:x:recid/"})
	assert.Equal(t, StatusReserved, p.Mint(7, uuid.Nil).Status)
	pid := p.Mint(7, uuid.New())
	assert.Equal(t, StatusRegistered, pid.Status)
	assert.Equal(t, "oai:x:recid/7", pid.Value)
}

func TestDefaultPrefix(t *testing.T) {
	p := New(Config{})
	assert.True(t, strings.HasPrefix(p.Prefix(), "oai:"))
	assert.True(t, strings.HasSuffix(p.Prefix(), ":recid/"))
	assert.NotEmpty(t, p.RepositoryIdentifier())
	assert.Empty(t, New(Config{Prefix: "urn:x/"}).RepositoryIdentifier())
}
