package preview

import (
	"errors"
	"strings"
	"sync"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"

	"github.com/google/uuid"
)

// Scheme prefixes every preview reference; such URLs never leave the service
const Scheme = "local:"

var (
	ErrPreviewNotFound = errors.New("preview not found")
)

// Store hands out local-only references to staged files so they can be
// previewed before upload. A reference stays valid until it is revoked.
type Store interface {
	Create(file domain.LocalFile) string
	Get(ref string) (domain.LocalFile, error)
	Revoke(ref string)
}

type memoryStore struct {
	mu    sync.RWMutex
	files map[string]domain.LocalFile
}

// NewMemoryStore creates an in-memory preview store
func NewMemoryStore() Store {
	return &memoryStore{files: make(map[string]domain.LocalFile)}
}

// Create registers file and returns its reference
func (s *memoryStore) Create(file domain.LocalFile) string {
	ref := Scheme + uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[ref] = file
	return ref
}

// Get returns the file behind ref
func (s *memoryStore) Get(ref string) (domain.LocalFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[ref]
	if !ok {
		return domain.LocalFile{}, ErrPreviewNotFound
	}
	return file, nil
}

// Revoke releases ref; revoking twice is a no-op
func (s *memoryStore) Revoke(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, ref)
}

// IsLocal reports whether url is a preview reference rather than a server URL
func IsLocal(url string) bool {
	return strings.HasPrefix(url, Scheme)
}

// Token strips the scheme so a reference can travel in a URL path
func Token(ref string) string {
	return strings.TrimPrefix(ref, Scheme)
}

// Ref rebuilds a reference from a path token
func Ref(token string) string {
	return Scheme + token
}
