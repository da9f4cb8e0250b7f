// This file is entirely for tests, but isn't defined as a _test file due to
// use of the stubs in other packages.

package kafkazk

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	zkclient "github.com/go-zookeeper/zk"
	"github.com/hashicorp/go-hclog"
)

// StubZnode stubs a ZooKeeper znode.
type StubZnode struct {
	value   []byte
	version int32
	// Sequence counter for sequential children.
	seq int32
}

// stubConn is an in-memory conn. Paths are absolute and parents must
// exist before children are created, as with a real ensemble.
type stubConn struct {
	mu    sync.Mutex
	nodes map[string]*StubZnode
	state zkclient.State
}

// NewZooKeeperStub returns a Handler backed by an in-memory znode tree
// rooted at prefix.
func NewZooKeeperStub(prefix string, logger hclog.Logger) *ZKHandler {
	z := newHandler(&Config{Connect: "stub", Prefix: prefix, Logger: logger})
	z.client = &stubConn{
		nodes: map[string]*StubZnode{"/": {}},
		state: zkclient.StateHasSession,
	}

	return z
}

func (s *stubConn) Get(p string) ([]byte, *zkclient.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[p]
	if !exists {
		return nil, nil, zkclient.ErrNoNode
	}

	return append([]byte(nil), n.value...), &zkclient.Stat{Version: n.version}, nil
}

func (s *stubConn) Set(p string, d []byte, version int32) (*zkclient.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[p]
	if !exists {
		return nil, zkclient.ErrNoNode
	}

	if version != -1 && version != n.version {
		return nil, zkclient.ErrBadVersion
	}

	n.value = append([]byte(nil), d...)
	n.version++

	return &zkclient.Stat{Version: n.version}, nil
}

func (s *stubConn) Create(p string, d []byte, flags int32, _ []zkclient.ACL) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, exists := s.nodes[path.Dir(p)]
	if !exists {
		return "", zkclient.ErrNoNode
	}

	if flags&zkclient.FlagSequence == zkclient.FlagSequence {
		p = fmt.Sprintf("%s%010d", p, parent.seq)
		parent.seq++
	}

	if _, exists := s.nodes[p]; exists {
		return "", zkclient.ErrNodeExists
	}

	s.nodes[p] = &StubZnode{value: append([]byte(nil), d...)}

	return p, nil
}

func (s *stubConn) Exists(p string) (bool, *zkclient.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[p]
	if !exists {
		return false, nil, nil
	}

	return true, &zkclient.Stat{Version: n.version}, nil
}

func (s *stubConn) Children(p string) ([]string, *zkclient.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[p]
	if !exists {
		return nil, nil, zkclient.ErrNoNode
	}

	children := s.children(p)
	sort.Strings(children)

	return children, &zkclient.Stat{Version: n.version}, nil
}

func (s *stubConn) Delete(p string, version int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[p]
	if !exists {
		return zkclient.ErrNoNode
	}

	if version != -1 && version != n.version {
		return zkclient.ErrBadVersion
	}

	if len(s.children(p)) > 0 {
		return zkclient.ErrNotEmpty
	}

	delete(s.nodes, p)

	return nil
}

func (s *stubConn) State() zkclient.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *stubConn) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = zkclient.StateDisconnected
}

// children returns the names of the direct children of p. The caller
// must hold mu.
func (s *stubConn) children(p string) []string {
	prefix := strings.TrimSuffix(p, "/") + "/"

	var children []string
	for k := range s.nodes {
		if k == p || !strings.HasPrefix(k, prefix) {
			continue
		}

		if rest := k[len(prefix):]; !strings.Contains(rest, "/") {
			children = append(children, rest)
		}
	}

	return children
}
