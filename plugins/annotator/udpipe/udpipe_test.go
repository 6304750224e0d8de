package udpipe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txt2cwb/pkg/contract"
)

const sample = `# newdoc
# sent_id = 1
# text = Cuba es una isla.
1	Cuba	Cuba	PROPN	_	_	4	nsubj	_	_
2	es	ser	AUX	_	_	4	cop	_	_
3	una	uno	DET	_	_	4	det	_	_
4	isla	isla	NOUN	_	_	0	root	_	SpaceAfter=No
5	.	.	PUNCT	_	_	4	punct	_	_

# sent_id = 2
1	Vive	vivir	VERB	_	_	0	root	_	_
2-3	del	_	_	_	_	_	_	_	_
2	de	de	ADP	_	_	4	case	_	_
3	el	el	DET	_	_	4	det	_	_
3.1	ø	ø	_	_	_	_	_	_	_
4	mar	mar	NOUN	_	_	1	obl	_	SpaceAfter=No
5	.	.	PUNCT	_	_	1	punct	_	SpaceAfter=No

`

func TestParseCoNLLU(t *testing.T) {
	sents, err := parseCoNLLU(sample)
	require.NoError(t, err)
	require.Len(t, sents, 2)
	assert.Equal(t, "Cuba es una isla.", sents[0].Text)
	assert.Len(t, sents[0].Tokens, 5)
	assert.Equal(t, contract.Token{Text: "Cuba", POS: "PROPN", Lemma: "Cuba"}, sents[0].Tokens[0])

	assert.Equal(t, "Vive del mar.", sents[1].Text, "无 # text 时由词形与 SpaceAfter 还原")
	assert.Equal(t, []contract.Token{
		{Text: "Vive", POS: "VERB", Lemma: "vivir"},
		{Text: "del", POS: "ADP+DET", Lemma: "de+el"},
		{Text: "mar", POS: "NOUN", Lemma: "mar"},
		{Text: ".", POS: "PUNCT", Lemma: "."},
	}, sents[1].Tokens)
}

func TestParseCoNLLUMalformed(t *testing.T) {
	_, err := parseCoNLLU("1\tCuba\tCuba\n")
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = parseCoNLLU("x\tCuba\tCuba\tPROPN\t_\t_\t0\troot\t_\t_\n")
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = parseCoNLLU("1-x\tdel\t_\t_\t_\t_\t_\t_\t_\t_\n")
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
}

func TestParseCoNLLUEmpty(t *testing.T) {
	sents, err := parseCoNLLU("")
	require.NoError(t, err)
	assert.Empty(t, sents)
}

func TestAnnotate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/process", r.URL.Path)
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Cuba es una isla.", r.PostForm.Get("data"))
		assert.Equal(t, "spanish-ancora", r.PostForm.Get("model"))
		assert.True(t, r.PostForm.Has("tokenizer"))
		assert.True(t, r.PostForm.Has("tagger"))
		_ = json.NewEncoder(w).Encode(map[string]string{"model": "spanish-ancora", "result": sample})
	}))
	defer srv.Close()

	c, err := New(&Options{BaseURL: srv.URL + "/api/", Model: "spanish-ancora", ExtraHeaders: map[string]string{"X-Test": "v", "": "skip"}})
	require.NoError(t, err)
	sents, err := c.Annotate(context.Background(), "Cuba es una isla.")
	require.NoError(t, err)
	assert.Len(t, sents, 2)
}

func TestAnnotateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusBadRequest)
	}))
	defer srv.Close()
	c, err := New(&Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Annotate(context.Background(), "x")
	var up contract.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusBadRequest, up.UpstreamStatus())
	assert.Equal(t, "model not found", up.UpstreamMessage())
}

func TestAnnotateBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()
	c, err := New(&Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Annotate(context.Background(), "x")
	assert.Error(t, err)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":""}`))
	}))
	defer empty.Close()
	c, err = New(&Options{BaseURL: empty.URL})
	require.NoError(t, err)
	_, err = c.Annotate(context.Background(), "x")
	assert.ErrorContains(t, err, "empty result")
}

func TestAnnotateCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c, err := New(&Options{BaseURL: srv.URL})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Annotate(ctx, "x")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewValidation(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.url, DefaultBaseURL))
	assert.Equal(t, DefaultModel, c.model)

	_, err = New(&Options{BaseURL: "ftp://x"})
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = New(&Options{BaseURL: "not a url"})
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
}
