package vfscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reflexfs/reflexfs/arbitrator"
	"github.com/reflexfs/reflexfs/rpcproto"
	"github.com/reflexfs/reflexfs/serverfs"
	"github.com/reflexfs/reflexfs/wire"
)

// newTestServer starts a real serverfs instance over a loopback rpcproto
// server, matching SPEC_FULL.md §9's preference for exercising real
// collaborators over mocks. The caller gets back a Manager already dialed
// in against it.
func newTestServer(t *testing.T, interval time.Duration) (*Manager, func()) {
	t.Helper()

	persistDir := t.TempDir()
	cacheDir := t.TempDir()

	ops := serverfs.NewOps(serverfs.Root(persistDir), arbitrator.NewWriteOwners())
	locks := arbitrator.NewTable()
	registry := rpcproto.NewRegistry()
	require.NoError(t, serverfs.Register(registry, ops, locks))

	srv, err := rpcproto.NewServer(registry)
	require.NoError(t, err)
	require.NoError(t, srv.Init("127.0.0.1:0"))
	go srv.Execute()

	client, err := rpcproto.DialClient(srv.Addr().String())
	require.NoError(t, err)

	manager := NewManager(cacheDir, interval, client)

	cleanup := func() {
		client.Destroy()
		srv.Destroy()
	}
	return manager, cleanup
}

// TestWriteThenReadRoundTrip is scenario S1: a client writes a file then
// reads it back and sees its own write.
func TestWriteThenReadRoundTrip(t *testing.T) {
	m, cleanup := newTestServer(t, time.Hour)
	defer cleanup()

	require.NoError(t, m.Mknod("/greeting", 0o644))
	require.NoError(t, m.Open("/greeting", wire.FlagReadWrite))

	n, err := m.Write("/greeting", []byte("hello, reflexfs"), 0)
	require.NoError(t, err)
	require.Equal(t, len("hello, reflexfs"), n)

	buf := make([]byte, 64)
	n, err = m.Read("/greeting", buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello, reflexfs", string(buf[:n]))

	require.NoError(t, m.Release("/greeting"))
}

// TestReleaseWriteSyncsServer is invariant 4: once a write-opened file is
// released, a second client opening it sees the new contents even though
// its own cache directory never saw the write directly.
func TestReleaseWriteSyncsServer(t *testing.T) {
	m1, cleanup1 := newTestServerSharedPersist(t, time.Hour)
	defer cleanup1.cleanup()

	require.NoError(t, m1.manager.Mknod("/f", 0o644))
	require.NoError(t, m1.manager.Open("/f", wire.FlagReadWrite))
	_, err := m1.manager.Write("/f", []byte("persisted"), 0)
	require.NoError(t, err)
	require.NoError(t, m1.manager.Release("/f"))

	m2 := newManagerAgainstSameServer(t, m1, time.Hour)
	require.NoError(t, m2.Open("/f", 0))
	buf := make([]byte, 32)
	n, err := m2.Read("/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, "persisted", string(buf[:n]))
	require.NoError(t, m2.Release("/f"))
}

// TestSecondWriterRefusedWhileOpen is scenario S2 / invariant 2: a second
// client cannot open the same path for writing while the first still holds
// it open for writing.
func TestSecondWriterRefusedWhileOpen(t *testing.T) {
	m1, shared := newTestServerSharedPersist(t, time.Hour)
	defer shared.cleanup()

	require.NoError(t, m1.manager.Mknod("/f", 0o644))
	require.NoError(t, m1.manager.Open("/f", wire.FlagReadWrite))

	m2 := newManagerAgainstSameServer(t, m1, time.Hour)
	err := m2.Open("/f", wire.FlagReadWrite)
	require.Error(t, err)

	require.NoError(t, m1.manager.Release("/f"))
}

// TestOpenSamePathTwiceLocallyRefused is invariant 1: one cache index entry
// per logical path.
func TestOpenSamePathTwiceLocallyRefused(t *testing.T) {
	m, cleanup := newTestServer(t, time.Hour)
	defer cleanup()

	require.NoError(t, m.Mknod("/f", 0o644))
	require.NoError(t, m.Open("/f", wire.FlagReadWrite))

	err := m.Open("/f", wire.FlagReadWrite)
	require.Error(t, err)

	require.NoError(t, m.Release("/f"))
}

// TestFreshnessWindowSkipsRedownload is invariant 5: within the freshness
// window, a read-opened handle is trusted without a round trip back to the
// server even if the server's copy has since changed underneath it.
func TestFreshnessWindowSkipsRedownload(t *testing.T) {
	m1, shared := newTestServerSharedPersist(t, time.Hour)
	defer shared.cleanup()

	require.NoError(t, m1.manager.Mknod("/f", 0o644))
	require.NoError(t, m1.manager.Open("/f", wire.FlagReadWrite))
	_, err := m1.manager.Write("/f", []byte("v1"), 0)
	require.NoError(t, err)
	require.NoError(t, m1.manager.Release("/f"))

	m2 := newManagerAgainstSameServer(t, m1, time.Hour)
	require.NoError(t, m2.Open("/f", 0))
	buf := make([]byte, 8)
	n, err := m2.Read("/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, "v1", string(buf[:n]))

	require.NoError(t, m1.manager.Open("/f", wire.FlagReadWrite))
	_, err = m1.manager.Write("/f", []byte("v2"), 0)
	require.NoError(t, err)
	require.NoError(t, m1.manager.Release("/f"))

	n, err = m2.Read("/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, "v1", string(buf[:n]), "within the freshness window, the stale local copy is trusted")

	require.NoError(t, m2.Release("/f"))
}

// TestTransientGetattrOnUnopenedPath is scenario S6: getattr on a path
// nobody holds open still succeeds via the transient open/download/release
// cycle.
func TestTransientGetattrOnUnopenedPath(t *testing.T) {
	m1, shared := newTestServerSharedPersist(t, time.Hour)
	defer shared.cleanup()

	require.NoError(t, m1.manager.Mknod("/f", 0o644))
	require.NoError(t, m1.manager.Open("/f", wire.FlagReadWrite))
	_, err := m1.manager.Write("/f", []byte("abcdef"), 0)
	require.NoError(t, err)
	require.NoError(t, m1.manager.Release("/f"))

	m2 := newManagerAgainstSameServer(t, m1, time.Hour)
	st, err := m2.Getattr("/f")
	require.NoError(t, err)
	require.EqualValues(t, 6, st.Size)
}

// sharedServer lets several Managers dial the same in-process server, for
// tests that need two independent clients observing one persist directory.
type sharedServer struct {
	addr    string
	cleanup func()
}

func newTestServerSharedPersist(t *testing.T, interval time.Duration) (*managerHandle, *sharedServer) {
	t.Helper()
	persistDir := t.TempDir()

	ops := serverfs.NewOps(serverfs.Root(persistDir), arbitrator.NewWriteOwners())
	locks := arbitrator.NewTable()
	registry := rpcproto.NewRegistry()
	require.NoError(t, serverfs.Register(registry, ops, locks))

	srv, err := rpcproto.NewServer(registry)
	require.NoError(t, err)
	require.NoError(t, srv.Init("127.0.0.1:0"))
	go srv.Execute()

	addr := srv.Addr().String()
	m1 := newManagerDialed(t, addr, interval)

	return m1, &sharedServer{
		addr: addr,
		cleanup: func() {
			srv.Destroy()
		},
	}
}

// managerHandle pairs a Manager with the client it owns and the address it
// dialed, so a second independent client can be dialed against the same
// server later.
type managerHandle struct {
	manager *Manager
	client  *rpcproto.Client
	addr    string
}

func newManagerDialed(t *testing.T, addr string, interval time.Duration) *managerHandle {
	t.Helper()
	client, err := rpcproto.DialClient(addr)
	require.NoError(t, err)
	return &managerHandle{
		manager: NewManager(t.TempDir(), interval, client),
		client:  client,
		addr:    addr,
	}
}

func newManagerAgainstSameServer(t *testing.T, m1 *managerHandle, interval time.Duration) *Manager {
	t.Helper()
	handle := newManagerDialed(t, m1.addr, interval)
	t.Cleanup(func() { handle.client.Destroy() })
	return handle.manager
}
