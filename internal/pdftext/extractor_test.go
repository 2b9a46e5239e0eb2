package pdftext

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
)

type stubRunner struct {
	stdout string
	stderr string
	err    error

	name string
	args []string
	seen []byte
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	// the input path sits right before "-"
	if len(args) >= 2 {
		s.seen, _ = os.ReadFile(args[len(args)-2])
	}
	return []byte(s.stdout), []byte(s.stderr), s.err
}

func TestPagesSplitsOnFormFeed(t *testing.T) {
	r := &stubRunner{stdout: "page one\nline\fpage two\n\f"}
	e := NewExtractor(Config{Pdftotext: "/usr/bin/pdftotext"}, r, nil)

	pages, err := e.Pages(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, []string{"page one\nline", "page two\n"}, pages)
	assert.Equal(t, "/usr/bin/pdftotext", r.name)
	assert.Equal(t, "-layout", r.args[0])
	assert.Equal(t, []byte("%PDF-1.4"), r.seen)
}

func TestPagesSurfacesStderr(t *testing.T) {
	r := &stubRunner{stderr: "Syntax Error: Couldn't read xref table", err: errors.New("exit status 1")}
	e := NewExtractor(Config{}, r, nil)

	_, err := e.Pages(context.Background(), []byte("garbage"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtract)
	assert.Contains(t, err.Error(), "xref")
}

func TestPagesRejectsEmptyInput(t *testing.T) {
	e := NewExtractor(Config{}, &stubRunner{}, nil)
	_, err := e.Pages(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrExtract)

	_, err = e.Pages(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, common.ErrExtract)
}

func TestSplitPages(t *testing.T) {
	assert.Nil(t, SplitPages("  \n"))
	assert.Equal(t, []string{"a"}, SplitPages("a"))
}
