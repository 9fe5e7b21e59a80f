package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/logger/loggertest"
	"github.com/acheong08/pyextras/internal/parser"
)

// fakeIndex serves /pypi/{name}/json from a map of name -> provides_extra
func fakeIndex(t *testing.T, projects map[string][]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/pypi/"), "/json")
		provides, ok := projects[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		quoted := make([]string, len(provides))
		for i, p := range provides {
			quoted[i] = fmt.Sprintf("%q", p)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"info": {"name": %q, "version": "1.0", "provides_extra": [%s]}}`, name, strings.Join(quoted, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, baseURL string) *Client {
	c := NewClient(baseURL)
	c.RetryDelay = time.Millisecond
	c.Logger = loggertest.New(t)
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, uint(3), c.Attempts)

	c = NewClient("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", c.BaseURL)
}

func TestProjectInfo(t *testing.T) {
	srv := fakeIndex(t, map[string][]string{"jax": {"cpu", "cuda12"}})
	c := testClient(t, srv.URL)

	info, err := c.ProjectInfo(context.Background(), "JAX")
	require.NoError(t, err)
	assert.Equal(t, "jax", info.Info.Name)
	assert.Equal(t, []string{"cpu", "cuda12"}, ProvidedExtras(info))

	_, err = c.ProjectInfo(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProjectInfoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"info": {"name": "numpy", "version": "2.1.3"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var forwarded []string
	c.SetLogCallback(func(message, level string) {
		forwarded = append(forwarded, level)
	})

	info, err := c.ProjectInfo(context.Background(), "numpy")
	require.NoError(t, err)
	assert.Equal(t, "2.1.3", info.Info.Version)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{"warning", "warning"}, forwarded)
}

func TestProjectInfoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).ProjectInfo(context.Background(), "numpy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestProvidedExtras(t *testing.T) {
	var info ProjectInfo
	info.Info.RequiresDist = []string{
		"numpy>=1.22",
		`pytest ; extra == "test"`,
		`sphinx ; extra == 'Docs_Build'`,
		`pytest-xdist ; extra == "test"`,
	}
	assert.Equal(t, []string{"docs-build", "test"}, ProvidedExtras(&info))

	info.Info.ProvidesExtra = []string{"Only"}
	assert.Equal(t, []string{"only"}, ProvidedExtras(&info))
}

func TestCheckGraph(t *testing.T) {
	srv := fakeIndex(t, map[string][]string{
		"numpy": nil,
		"jax":   {"cpu"},
		"dask":  {"array"},
	})
	c := testClient(t, srv.URL)
	c.Concurrency = 2

	manifest, err := parser.ParsePyprojectBytes([]byte(`
[project]
name = "demo"

[project.optional-dependencies]
a = ["numpy", "jax[cpu]", "dask[dataframe]"]
b = ["ghost-pkg", "local @ https://example.com/local.whl", "demo[a]"]
`), "pyproject.toml")
	require.NoError(t, err)
	graph := extras.Build(manifest)

	var mu sync.Mutex
	var seen []string
	findings, err := c.CheckGraph(context.Background(), graph, func(done, total int, name string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		seen = append(seen, name)
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dask", "ghost-pkg", "jax", "numpy"}, seen)

	require.Len(t, findings, 2)
	assert.Equal(t, RuleUnknownExtra, findings[0].Rule)
	assert.Equal(t, "a", findings[0].Group)
	assert.Equal(t, `package "dask" does not provide extra "dataframe"`, findings[0].Message)
	assert.Equal(t, RuleUnknownPackage, findings[1].Rule)
	assert.Equal(t, "b", findings[1].Group)
	assert.Equal(t, `package "ghost-pkg" not found on the index`, findings[1].Message)
}

func TestCheckGraphAbortsOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.Attempts = 1

	manifest, err := parser.ParsePyprojectBytes([]byte(`
[project]
name = "demo"

[project.optional-dependencies]
a = ["numpy"]
`), "pyproject.toml")
	require.NoError(t, err)

	_, err = c.CheckGraph(context.Background(), extras.Build(manifest), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch numpy")
}
