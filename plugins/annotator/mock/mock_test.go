package mock

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txt2cwb/pkg/contract"
)

func TestAnnotateSplitsSentencesAndPunct(t *testing.T) {
	a := New(nil)
	sents, err := a.Annotate(context.Background(), "Cuba es una isla. ¿Sí? Claro")
	require.NoError(t, err)
	require.Len(t, sents, 3)
	assert.Equal(t, "Cuba es una isla.", sents[0].Text)
	assert.Equal(t, []contract.Token{
		{Text: "Cuba", POS: "X", Lemma: "cuba"},
		{Text: "es", POS: "X", Lemma: "es"},
		{Text: "una", POS: "X", Lemma: "una"},
		{Text: "isla", POS: "X", Lemma: "isla"},
		{Text: ".", POS: "X", Lemma: "."},
	}, sents[0].Tokens)
	assert.Equal(t, "¿Sí", sents[1].Tokens[0].Text)
	assert.Equal(t, "?", sents[1].Tokens[1].Text)
	assert.Equal(t, "Claro", sents[2].Text)
	assert.Equal(t, 1, a.Calls())
}

func TestAnnotateOptions(t *testing.T) {
	a := New(&Options{POS: "NOUN", FailOn: "boom"})
	sents, err := a.Annotate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "NOUN", sents[0].Tokens[0].POS)

	_, err = a.Annotate(context.Background(), "a boom b")
	assert.True(t, errors.Is(err, ErrInjected))
}

func TestAnnotateFailAfter(t *testing.T) {
	a := New(&Options{FailAfter: 2})
	for i := 0; i < 2; i++ {
		_, err := a.Annotate(context.Background(), "x")
		require.NoError(t, err)
	}
	_, err := a.Annotate(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrInjected))
	assert.Equal(t, 3, a.Calls())
}

func TestAnnotateEmptyAndCanceled(t *testing.T) {
	a := New(nil)
	sents, err := a.Annotate(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, sents)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Annotate(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}
