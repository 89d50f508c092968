package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameEquality(t *testing.T) {
	a := NewName("app", "requests")
	b := ParseName("app.requests")
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	// "a.b"+"c" and "a"+"b.c" have different segments.
	c := NewName("a.b", "c")
	d := NewName("a", "b.c")
	assert.False(t, c.Equal(d))
	assert.Equal(t, c.String(), d.String())
}

func TestNameOps(t *testing.T) {
	n := ParseName("requests")
	p := n.Prepend(NewName("app", "http"))

	assert.Equal(t, "app.http.requests", p.String())
	assert.Equal(t, "requests", n.String(), "prepend must not mutate")
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, "requests", p.Leaf())
	assert.Equal(t, "app.http", p.Parent().String())
	assert.Equal(t, "app_http_requests", p.Join("_"))
	assert.True(t, NewName("x").Parent().IsEmpty())

	segs := p.Segments()
	segs[0] = "changed"
	assert.Equal(t, "app", p.Segments()[0])

	assert.Equal(t, "app.http.requests.count", p.Append("count").String())
	assert.Equal(t, p, p.Prepend(Name{}))
	assert.True(t, Name{}.Prepend(p).Equal(p))
}

func TestNameDropsEmptySegments(t *testing.T) {
	assert.Equal(t, "a.b", ParseName("a..b").String())
	assert.True(t, ParseName("").IsEmpty())
	assert.Equal(t, 2, NewName("", "a", "", "b").Len())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindCounter, KindMarker, KindTimer, KindGauge} {
		got, err := ParseKind(k.String())
		assert.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("histogram")
	assert.Error(t, err)
	assert.Equal(t, "ns", KindTimer.Unit())
	assert.Empty(t, KindGauge.Unit())
}
