package media

import (
	"context"
	"strings"
	"sync"
)

// MemoryUploader keeps uploads in memory. Used for local development and
// tests.
type MemoryUploader struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
	failing map[string]error
}

// NewMemoryUploader creates an uploader whose URLs start with baseURL.
func NewMemoryUploader(baseURL string) *MemoryUploader {
	if baseURL == "" {
		baseURL = "memory://media"
	}
	return &MemoryUploader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
		failing: make(map[string]error),
	}
}

// FailFile makes every upload of a file with this name fail with err.
func (m *MemoryUploader) FailFile(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[name] = err
}

func (m *MemoryUploader) Upload(ctx context.Context, file File, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failing[file.Name]; ok {
		return "", err
	}
	data := make([]byte, len(file.Data))
	copy(data, file.Data)
	m.objects[key] = data
	return m.baseURL + "/" + key, nil
}

// Objects returns the stored keys.
func (m *MemoryUploader) Objects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
