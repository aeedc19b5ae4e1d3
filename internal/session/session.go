// Package session wraps the protocol client with the credentials +
// validity flag pair of spec.md §3/§4.D: lazy re-login on an
// authentication-class failure, collapsing concurrent re-logins onto a
// single attempt via double-checked locking. Grounded on
// original_source/src/global_client.rs's GlobalJmClient, translated from
// tokio::sync::RwLock into Go's sync.RWMutex/sync.Mutex idiom.
package session

import (
	"strings"
	"sync"

	"github.com/jm-archive/jm-downloader/internal/apperr"
	"github.com/jm-archive/jm-downloader/internal/jmapi"
	"github.com/jm-archive/jm-downloader/internal/metrics"
)

// authMarkers are substrings whose case-insensitive presence in an error
// message classifies it as an authentication failure. This is a brittle
// heuristic inherited from the upstream service's opaque error bodies; it
// is preserved for behavioral parity rather than "cleaned up" into a
// structured check, per the source it's grounded on.
var authMarkers = []string{
	"unauthorized", "401", "登录", "认证", "session", "cookie", "code 401", "code 403",
}

// apiClient is the subset of *jmapi.Client the session manager drives.
// Declaring it here (rather than depending on the concrete type directly)
// lets tests substitute a fake upstream without an httptest server.
type apiClient interface {
	Login(username, password string) error
	GetComic(id int64) (*jmapi.ComicData, error)
	GetChapter(id int64) (*jmapi.ChapterData, error)
	GetScrambleID(id int64) (int64, error)
}

// Manager is the shared, process-lifetime session handle every request
// handler operates through.
type Manager struct {
	client   apiClient
	username string
	password string

	mu    sync.RWMutex
	valid bool

	reloginMu sync.Mutex
}

// New creates a Manager and performs the initial login immediately, mirroring
// GlobalJmClient::new's eager-login behavior.
func New(client apiClient, username, password string) (*Manager, error) {
	if err := client.Login(username, password); err != nil {
		return nil, apperr.Internalf("initial login failed: %v", err)
	}
	return &Manager{
		client:   client,
		username: username,
		password: password,
		valid:    true,
	}, nil
}

func (m *Manager) isValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valid
}

func (m *Manager) markInvalid() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

// relogin performs a double-checked-locking re-login: only one caller
// actually calls Login; everyone else observes the flag flip back to valid
// and returns immediately.
func (m *Manager) relogin() error {
	m.reloginMu.Lock()
	defer m.reloginMu.Unlock()

	if m.isValid() {
		return nil
	}

	metrics.Relogins.Inc()
	if err := m.client.Login(m.username, m.password); err != nil {
		return apperr.Internalf("re-login failed: %v", err)
	}

	m.mu.Lock()
	m.valid = true
	m.mu.Unlock()
	return nil
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range authMarkers {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// call runs fn once; on an authentication-class failure it forces a
// re-login and retries exactly once. Any other failure, or a failure on
// the retry, propagates unchanged.
func call[T any](m *Manager, fn func() (T, error)) (T, error) {
	if !m.isValid() {
		if err := m.relogin(); err != nil {
			var zero T
			return zero, err
		}
	}

	result, err := fn()
	if err == nil {
		return result, nil
	}
	if !isAuthError(err) {
		return result, err
	}

	m.markInvalid()
	if relErr := m.relogin(); relErr != nil {
		var zero T
		return zero, relErr
	}
	return fn()
}

func (m *Manager) GetComic(id int64) (*jmapi.ComicData, error) {
	return call(m, func() (*jmapi.ComicData, error) { return m.client.GetComic(id) })
}

func (m *Manager) GetChapter(id int64) (*jmapi.ChapterData, error) {
	return call(m, func() (*jmapi.ChapterData, error) { return m.client.GetChapter(id) })
}

func (m *Manager) GetScrambleID(id int64) (int64, error) {
	return call(m, func() (int64, error) { return m.client.GetScrambleID(id) })
}
