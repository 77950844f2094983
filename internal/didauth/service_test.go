package didauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

func setupAuthority(t *testing.T) *Authority {
	t.Helper()
	return New(NewMemoryStore(), logger.New("error"))
}

func setupAuthorityWithAdmin(t *testing.T) *Authority {
	t.Helper()
	authority := setupAuthority(t)
	require.NoError(t, authority.Bootstrap(context.Background(), "did:ledup:admin", "0xadmin"))
	return authority
}

func TestRegisterDid_Success(t *testing.T) {
	authority := setupAuthority(t)

	doc, err := authority.RegisterDid(context.Background(), "did:ledup:alice", "0xalice")
	require.NoError(t, err)
	assert.Equal(t, "did:ledup:alice", doc.DID)
	assert.Equal(t, "0xalice", doc.Subject)
	assert.True(t, doc.Active)
}

func TestRegisterDid_DuplicateDid(t *testing.T) {
	authority := setupAuthority(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)

	_, err = authority.RegisterDid(ctx, "did:ledup:alice", "0xother")
	assert.Equal(t, types.ErrCodeAlreadyRegistered, types.ErrorCode(err))
}

func TestRegisterDid_AddressAlreadyBound(t *testing.T) {
	authority := setupAuthority(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)

	_, err = authority.RegisterDid(ctx, "did:ledup:alice2", "0xalice")
	assert.Equal(t, types.ErrCodeAlreadyRegistered, types.ErrorCode(err))
}

func TestGetDid(t *testing.T) {
	authority := setupAuthority(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)

	did, err := authority.GetDid(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, "did:ledup:alice", did)

	_, err = authority.GetDid(ctx, "0xunknown")
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
}

func TestAuthenticate_RoleLifecycle(t *testing.T) {
	authority := setupAuthorityWithAdmin(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)

	// Never granted
	assert.False(t, authority.Authenticate(ctx, "did:ledup:alice", types.RoleProducer))

	// True immediately after grant
	require.NoError(t, authority.GrantRole(ctx, "did:ledup:admin", "did:ledup:alice", types.RoleProducer))
	assert.True(t, authority.Authenticate(ctx, "did:ledup:alice", types.RoleProducer))

	// Role grants are per-role
	assert.False(t, authority.Authenticate(ctx, "did:ledup:alice", types.RoleConsumer))

	// False immediately after revoke
	require.NoError(t, authority.RevokeRole(ctx, "did:ledup:admin", "did:ledup:alice", types.RoleProducer))
	assert.False(t, authority.Authenticate(ctx, "did:ledup:alice", types.RoleProducer))
}

func TestAuthenticate_InactiveDid(t *testing.T) {
	authority := setupAuthorityWithAdmin(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)
	require.NoError(t, authority.GrantRole(ctx, "did:ledup:admin", "did:ledup:alice", types.RoleProducer))

	require.NoError(t, authority.DeactivateDid(ctx, "did:ledup:alice", "did:ledup:alice"))

	// Role is still stored, but the document is inactive
	assert.False(t, authority.Authenticate(ctx, "did:ledup:alice", types.RoleProducer))
}

func TestGrantRole_RequiresAdmin(t *testing.T) {
	authority := setupAuthorityWithAdmin(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)
	_, err = authority.RegisterDid(ctx, "did:ledup:mallory", "0xmallory")
	require.NoError(t, err)

	err = authority.GrantRole(ctx, "did:ledup:mallory", "did:ledup:alice", types.RoleAdmin)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthorization))
}

func TestDeactivateDid_SelfOrAdminOnly(t *testing.T) {
	authority := setupAuthorityWithAdmin(t)
	ctx := context.Background()

	_, err := authority.RegisterDid(ctx, "did:ledup:alice", "0xalice")
	require.NoError(t, err)
	_, err = authority.RegisterDid(ctx, "did:ledup:mallory", "0xmallory")
	require.NoError(t, err)

	err = authority.DeactivateDid(ctx, "did:ledup:mallory", "did:ledup:alice")
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthorization))

	// Admin may deactivate anyone
	require.NoError(t, authority.DeactivateDid(ctx, "did:ledup:admin", "did:ledup:alice"))

	doc, err := authority.GetDocument(ctx, "did:ledup:alice")
	require.NoError(t, err)
	assert.False(t, doc.Active)
}

func TestBootstrap_Idempotent(t *testing.T) {
	authority := setupAuthority(t)
	ctx := context.Background()

	require.NoError(t, authority.Bootstrap(ctx, "did:ledup:admin", "0xadmin"))
	require.NoError(t, authority.Bootstrap(ctx, "did:ledup:admin", "0xadmin"))

	assert.True(t, authority.Authenticate(ctx, "did:ledup:admin", types.RoleAdmin))
}
