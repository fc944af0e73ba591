// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

// MockProvider is a test double for [services.Provider].
//
// Unset funcs fall back to canned successes. Calls are counted per operation.
type MockProvider struct {
	Name         string
	SearchFunc   func(ctx context.Context, keyword string, limit int) (*models.SearchResult, error)
	ResolveFunc  func(ctx context.Context, track models.Track, q models.Quality) (*models.StreamResult, error)
	LyricFunc    func(ctx context.Context, track models.Track) (*models.Lyric, error)
	PlayableFunc func(raw json.RawMessage) bool

	mu    sync.Mutex
	calls map[string]int
}

// NewMockProvider creates a provider named name with canned behavior.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{Name: name}
}

func (m *MockProvider) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how many times op ("search", "url", "lyric") was invoked.
func (m *MockProvider) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockProvider) ID() string { return m.Name }

func (m *MockProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	m.record("search")
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, keyword, limit)
	}
	return &models.SearchResult{Tracks: []models.Track{}}, nil
}

func (m *MockProvider) ResolveURL(ctx context.Context, track models.Track, q models.Quality) (*models.StreamResult, error) {
	m.record("url")
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, track, q)
	}
	return &models.StreamResult{
		URL:          "http://" + m.Name + ".test/" + track.NativeID() + ".mp3",
		Bitrate:      q.Bitrate(),
		ResolvedFrom: m.Name,
		TrackID:      track.ID,
	}, nil
}

func (m *MockProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	m.record("lyric")
	if m.LyricFunc != nil {
		return m.LyricFunc(ctx, track)
	}
	return &models.Lyric{Lyric: "[00:00.00]" + track.Title, ResolvedFrom: m.Name, TrackID: track.ID}, nil
}

func (m *MockProvider) IsPlayable(raw json.RawMessage) bool {
	if m.PlayableFunc != nil {
		return m.PlayableFunc(raw)
	}
	return true
}

// NewTrack builds a playable track for provider.
func NewTrack(provider, nativeID, title string, artists []string, durationMs int64) models.Track {
	return models.Track{
		ID:         models.TrackID(provider, nativeID),
		Title:      title,
		Artists:    artists,
		DurationMs: durationMs,
		Provider:   provider,
		Playable:   true,
	}
}

// Failure builds a classified provider error.
func Failure(provider, op string, kind shared.ErrorKind) error {
	return shared.NewProviderError(provider, op, kind, nil)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
