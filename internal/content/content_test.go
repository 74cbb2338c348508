package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentContent(t *testing.T) {
	segs := SegmentContent("Plumbing Services", "We offer plumbing repair.\n\n\nCall us for a free quote.\n  \n")
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Title: "Plumbing Services - Segment 1", Body: "We offer plumbing repair."}, segs[0])
	assert.Equal(t, "Plumbing Services - Segment 2", segs[1].Title)
	assert.Equal(t, "Call us for a free quote.", segs[1].Body)

	assert.Empty(t, SegmentContent("t", ""))
}

func TestExtractEntities(t *testing.T) {
	got := ExtractEntities("We offer Plumbing repair. Plumbing, quote; emergency-repair services!")
	assert.Equal(t, []string{"offer", "plumbing", "repair", "quote", "emergency", "services"}, got)

	long := "alpha1 alpha2 alpha3 alpha4 alpha5 alpha6 alpha7 alpha8 alpha9 alpha10 alpha11"
	assert.Len(t, ExtractEntities(long), MaxEntities)
}

func TestRoute(t *testing.T) {
	in := []Segment{
		{Body: "Contact us today"},
		{Body: "A step-by-step guide"},
		{Body: "Nothing special"},
		{Body: "contact", PageType: "service"},
	}
	out := Route(in)
	assert.Equal(t, "conversion", out[0].PageType)
	assert.Equal(t, "guide", out[1].PageType)
	assert.Equal(t, "", out[2].PageType)
	assert.Equal(t, "service", out[3].PageType)
	assert.Equal(t, "", in[0].PageType, "input is not mutated")
}

func TestInferPageType(t *testing.T) {
	assert.Equal(t, "service", InferPageType("https://x.test/our-services/plumbing"))
	assert.Equal(t, "service", InferPageType("/Solutions"))
	assert.Equal(t, "blog", InferPageType("/blog/2024/leaks"))
	assert.Equal(t, "about", InferPageType("/meet-the-team"))
	assert.Equal(t, "service", InferPageType("/service-blog"), "first rule wins")
	assert.Equal(t, "", InferPageType("/contact"))
}

func TestSanitize(t *testing.T) {
	raw := `<p onclick="x()">Hi <script>alert(1)</script><b>there</b></p>` +
		`<img src="/a.png" alt="pipe" onerror="x()">` +
		`<a href="javascript:alert(1)">bad</a><a href="https://ok.test">ok</a>` +
		`<custom>kept text</custom><style>p{}</style>`
	got, err := Sanitize(raw)
	require.NoError(t, err)
	assert.Equal(t,
		`<p>Hi <b>there</b></p><img src="/a.png" alt="pipe"><a>bad</a><a href="https://ok.test">ok</a>kept text`,
		got)
}

func TestHTMLToText(t *testing.T) {
	got, err := HTMLToText("<h2>Title</h2>\n<p>Fix   your\tleak</p><script>var x</script><p>today</p>")
	require.NoError(t, err)
	assert.Equal(t, "Title Fix your leak today", got)
}

func BenchmarkExtractEntities(b *testing.B) {
	text := "We offer emergency plumbing repair across the metropolitan region with licensed technicians"
	for range b.N {
		ExtractEntities(text)
	}
}
