package chapterid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTolerantForms(t *testing.T) {
	cases := []struct {
		in   string
		want ID
	}{
		{"c5", ID{Volume: 1, Chapter: 5}},
		{"ch5", ID{Volume: 1, Chapter: 5}},
		{"C5", ID{Volume: 1, Chapter: 5}},
		{"vol1c5", ID{Volume: 1, Chapter: 5}},
		{"volume1c5", ID{Volume: 1, Chapter: 5}},
		{"V1C5", ID{Volume: 1, Chapter: 5}},
		{"V1C5E2", ID{Volume: 1, Chapter: 5, Kind: KindExtra, Seq: 2}},
		{"v2c10i3", ID{Volume: 2, Chapter: 10, Kind: KindInterlude, Seq: 3}},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "hello", "V1", "Xc5", "c-5"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestCanonicalRoundtrip(t *testing.T) {
	inputs := []string{"c5", "V1C5", "v2c10i3", "volume3c7e1"}
	for _, in := range inputs {
		c1, err := Canonical(in)
		require.NoError(t, err)
		c2, err := Canonical(c1)
		require.NoError(t, err)
		assert.Equal(t, c1, c2)

		p1, err := Parse(in)
		require.NoError(t, err)
		p2, err := Parse(c1)
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	}
}

func TestWeight(t *testing.T) {
	id, err := Parse("V1C5E2")
	require.NoError(t, err)
	assert.InDelta(t, 1005.2, id.Weight(), 1e-9)
}

func TestSortTotalOrder(t *testing.T) {
	in := []string{"V1C10", "V1C2", "V2C1", "V1C2E1", "c1"}
	out := Sort(in)
	assert.Equal(t, []string{"c1", "V1C2", "V1C2E1", "V1C10", "V2C1"}, out)
}

func TestSortTieBreaksByCanonicalString(t *testing.T) {
	// Same weight, different canonical strings -> canonical string decides.
	in := []string{"V1C5I2", "V1C5E2"}
	out := Sort(in)
	assert.Equal(t, []string{"V1C5E2", "V1C5I2"}, out)
}

func TestSortInvalidLast(t *testing.T) {
	in := []string{"garbage", "V1C2", "V1C1"}
	out := Sort(in)
	assert.Equal(t, []string{"V1C1", "V1C2", "garbage"}, out)
}

func TestDistanceSameVolume(t *testing.T) {
	a, _ := Parse("V1C10")
	b, _ := Parse("V1C3")
	assert.Equal(t, 7, Distance(a, b, 15))
}

func TestDistanceCrossVolume(t *testing.T) {
	a, _ := Parse("V2C3")
	b, _ := Parse("V1C8")
	// |2-1|*15 + min(3,8) = 15 + 3 = 18
	assert.Equal(t, 18, Distance(a, b, 15))
}

func TestExtractVolume(t *testing.T) {
	assert.Equal(t, "V2", ExtractVolume("v2c10i3"))
	assert.Equal(t, "", ExtractVolume("nope"))
}

func TestDynamicRanges(t *testing.T) {
	var ids []string
	for i := 1; i <= 25; i++ {
		ids = append(ids, "V1C"+itoa(i))
	}
	for i := 1; i <= 5; i++ {
		ids = append(ids, "V2C"+itoa(i))
	}
	ranges := DynamicRanges(ids, 6)
	require.NotEmpty(t, ranges)
	// Volume boundaries always start a new range.
	for _, r := range ranges {
		for _, id := range r.IDs {
			v := ExtractVolume(id)
			assert.Equal(t, "V"+itoa(r.Volume), v)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
