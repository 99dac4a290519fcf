package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidfetch/vidfetch/internal/catalog"
	"github.com/vidfetch/vidfetch/internal/channel"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/selection"
)

type fakeSender struct {
	texts   []string
	choices [][]channel.Choice
	edits   []string
}

func (f *fakeSender) SendText(_ context.Context, _ channel.Session, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) SendChoice(_ context.Context, _ channel.Session, _ string, choices []channel.Choice) error {
	f.choices = append(f.choices, choices)
	return nil
}

func (f *fakeSender) SendMedia(_ context.Context, _ channel.Session, _, _ string) error {
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, _ channel.Session, _, _ string) error {
	return nil
}

func (f *fakeSender) EditLastMessage(_ context.Context, _ channel.Session, text string) error {
	f.edits = append(f.edits, text)
	return nil
}

type fakeBuilder struct {
	cat catalog.Catalog
	err error
}

func (f *fakeBuilder) Build(_ context.Context, _ string) (catalog.Catalog, error) {
	return f.cat, f.err
}

type fakeFetcher struct {
	art  download.Artifact
	err  error
	got  []string
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, formatID string) (download.Artifact, error) {
	f.urls = append(f.urls, url)
	f.got = append(f.got, formatID)
	return f.art, f.err
}

type fakeDeliverer struct {
	err   error
	calls int
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ channel.Session, _ download.Artifact) error {
	f.calls++
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(sender *fakeSender, b *fakeBuilder, f *fakeFetcher, d *fakeDeliverer) *Pipeline {
	return New(testLogger(), sender, b, f, d)
}

func TestHandleCommandStart(t *testing.T) {
	sender := &fakeSender{}
	p := newPipeline(sender, &fakeBuilder{}, &fakeFetcher{}, &fakeDeliverer{})

	s := channel.Session{ChatID: 1, DisplayName: "Alice"}
	require.NoError(t, p.HandleCommand(context.Background(), s, "start", ""))

	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "Alice")
}

func TestHandleCommandUnknown(t *testing.T) {
	sender := &fakeSender{}
	p := newPipeline(sender, &fakeBuilder{}, &fakeFetcher{}, &fakeDeliverer{})

	require.NoError(t, p.HandleCommand(context.Background(), channel.Session{}, "frobnicate", ""))

	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "/help")
}

func TestHandleTextPresentsChoices(t *testing.T) {
	sender := &fakeSender{}
	b := &fakeBuilder{cat: catalog.Catalog{
		URL: "https://example.com/v",
		Candidates: []catalog.Candidate{
			{ID: "22", Label: "720p", Ext: "mp4", Size: 900},
			{ID: "bestaudio", Label: "Audio", Ext: "best"},
		},
	}}
	p := newPipeline(sender, b, &fakeFetcher{}, &fakeDeliverer{})

	require.NoError(t, p.HandleText(context.Background(), channel.Session{ChatID: 1}, "https://example.com/v"))

	require.Len(t, sender.choices, 1)
	choices := sender.choices[0]
	require.Len(t, choices, 2)
	assert.Equal(t, "720p - mp4", choices[0].Label)
	assert.Equal(t, "Audio - best", choices[1].Label)

	url, id, err := selection.Decode(choices[0].Token)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v", url)
	assert.Equal(t, "22", id)
}

func TestHandleTextCatalogUnavailable(t *testing.T) {
	sender := &fakeSender{}
	b := &fakeBuilder{err: catalog.ErrCatalogUnavailable}
	p := newPipeline(sender, b, &fakeFetcher{}, &fakeDeliverer{})

	err := p.HandleText(context.Background(), channel.Session{ChatID: 1}, "https://example.com/bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)

	// User sees the failure text and no choice prompt goes out.
	require.Len(t, sender.texts, 2)
	assert.Contains(t, sender.texts[1], "Could not fetch formats")
	assert.Empty(t, sender.choices)
}

func TestHandleTextIgnoresEmptyBody(t *testing.T) {
	sender := &fakeSender{}
	p := newPipeline(sender, &fakeBuilder{}, &fakeFetcher{}, &fakeDeliverer{})

	require.NoError(t, p.HandleText(context.Background(), channel.Session{}, "   "))
	assert.Empty(t, sender.texts)
}

func TestHandleCallbackRunsRetrievalAndDelivery(t *testing.T) {
	sender := &fakeSender{}
	fetcher := &fakeFetcher{art: download.Artifact{Path: "/tmp/x", Size: 10}}
	deliverer := &fakeDeliverer{}
	p := newPipeline(sender, &fakeBuilder{}, fetcher, deliverer)

	token, err := selection.Encode("https://example.com/v", "137")
	require.NoError(t, err)

	require.NoError(t, p.HandleCallback(context.Background(), channel.Session{ChatID: 1}, token))

	assert.Equal(t, []string{"https://example.com/v"}, fetcher.urls)
	assert.Equal(t, []string{"137"}, fetcher.got)
	assert.Equal(t, 1, deliverer.calls)
}

func TestHandleCallbackMalformedSelection(t *testing.T) {
	sender := &fakeSender{}
	fetcher := &fakeFetcher{}
	p := newPipeline(sender, &fakeBuilder{}, fetcher, &fakeDeliverer{})

	err := p.HandleCallback(context.Background(), channel.Session{ChatID: 1}, []byte("no-delimiter-here"))
	require.Error(t, err)
	assert.ErrorIs(t, err, selection.ErrMalformedSelection)

	assert.Empty(t, fetcher.got, "no retrieval may be attempted")
	require.NotEmpty(t, sender.texts)
	assert.Contains(t, sender.texts[0], "selection")
}

func TestHandleCallbackRetrievalFailure(t *testing.T) {
	sender := &fakeSender{}
	fetcher := &fakeFetcher{err: download.ErrRetrievalFailed}
	deliverer := &fakeDeliverer{}
	p := newPipeline(sender, &fakeBuilder{}, fetcher, deliverer)

	token, err := selection.Encode("https://example.com/v", "137")
	require.NoError(t, err)

	err = p.HandleCallback(context.Background(), channel.Session{ChatID: 1}, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, download.ErrRetrievalFailed)
	assert.Equal(t, 0, deliverer.calls)
	assert.Contains(t, sender.texts[len(sender.texts)-1], "failed")
}

func TestHandleCallbackDeliveryFailure(t *testing.T) {
	sender := &fakeSender{}
	fetcher := &fakeFetcher{art: download.Artifact{Path: "/tmp/x", Size: 10}}
	deliverer := &fakeDeliverer{err: errors.New("send blew up")}
	p := newPipeline(sender, &fakeBuilder{}, fetcher, deliverer)

	token, err := selection.Encode("https://example.com/v", "137")
	require.NoError(t, err)

	err = p.HandleCallback(context.Background(), channel.Session{ChatID: 1}, token)
	require.Error(t, err)
	assert.Contains(t, sender.texts[len(sender.texts)-1], "failed")
}
