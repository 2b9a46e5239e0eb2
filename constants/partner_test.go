package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePartner(t *testing.T) {
	cases := map[string]Partner{
		"brenger":          Brenger,
		"  Wuunder ":       Wuunder,
		"libero":           LiberoLogistics,
		"libero-logistics": LiberoLogistics,
		"Magic Movers":     MagicMovers,
		"swdevries":        SWDeVries,
		"transpoksi":       Transpoksi,
	}
	for in, want := range cases {
		got, ok := ParsePartner(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParsePartner("dhl")
	assert.False(t, ok)
	_, ok = ParsePartner("")
	assert.False(t, ok)
}

func TestPartnersIsACopy(t *testing.T) {
	ps := Partners()
	assert.Len(t, ps, 7)
	ps[0] = "mutated"
	assert.Equal(t, Brenger, Partners()[0])
}

func TestRunStateTerminal(t *testing.T) {
	assert.False(t, RunStateStart.Terminal())
	assert.False(t, RunStateNormalize.Terminal())
	assert.True(t, RunStateSuccess.Terminal())
	assert.True(t, RunStateParseFailed.Terminal())
	assert.True(t, RunStateResolutionFailed.Terminal())
}

func TestDocumentExtensions(t *testing.T) {
	assert.Equal(t, "pdf", PrimaryExt(Brenger))
	assert.Equal(t, "xlsx", PrimaryExt(MagicMovers))
	assert.Equal(t, "xlsx", PrimaryExt(LiberoLogistics))
	assert.Equal(t, "pdf", SecondaryExt(LiberoLogistics))
	assert.Empty(t, SecondaryExt(Tadde))
	assert.Equal(t, "xlsx", NormalizeExt(".XLSX"))
}
