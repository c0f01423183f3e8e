package normalizer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/news-aggregator/internal/normalizer"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Quantum Leap</title></head>
<body>
	<nav><a href="/">Home</a> <a href="/science">Science</a></nav>
	<article>
		<h1>Quantum Leap</h1>
		<p>Researchers have demonstrated a quantum processor that keeps its qubits coherent for
		far longer than any previous design, opening the door to practical error correction.</p>
		<p>The team says the result depends on a new way of shielding the chip from stray
		magnetic fields, which they expect other laboratories to reproduce within a year.</p>
	</article>
	<footer>Copyright Example News</footer>
</body>
</html>`

func TestReadabilityReader_Read(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/article" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	}))
	t.Cleanup(srv.Close)

	reader := normalizer.NewReadabilityReader(srv.Client())

	t.Run("extracts article text", func(t *testing.T) {
		text, err := reader.Read(context.Background(), srv.URL+"/article")
		require.NoError(t, err)

		assert.Contains(t, text, "quantum processor")
		assert.Contains(t, text, "magnetic fields")
		assert.False(t, strings.Contains(text, "\n\n\n"))
	})

	t.Run("non 200 is an error", func(t *testing.T) {
		_, err := reader.Read(context.Background(), srv.URL+"/missing")
		assert.ErrorContains(t, err, "HTTP 404")
	})
}
