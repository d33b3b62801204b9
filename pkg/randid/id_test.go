package randid

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	id := Generate(8)
	assert.Len(t, id, 8)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]+$`), id)

	assert.Empty(t, Generate(0))
}

func TestRun(t *testing.T) {
	at := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("PST", -8*60*60))

	id := Run(at)
	assert.Regexp(t, regexp.MustCompile(`^260302-[a-z0-9]{6}$`), id, "the date is taken in UTC")
	assert.NotEqual(t, id, Run(at))
}
