package fetch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title>t</title></head><body>
<a href="/about">About</a>
<a href="https://a.com/contact/">Contact</a>
<a href="https://a.com/about">About again</a>
<a href="https://other.com/page">External</a>
<a href="https://facebook.com/a">Social</a>
<a href="/brochure.pdf">PDF</a>
<a href="mailto:hi@a.com">Mail</a>
<a href="javascript:void(0)">JS</a>
<a href="#section">Anchor</a>
</body></html>`

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	links, err := ExtractLinks(samplePage, "https://a.com/home")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://a.com/about",
		"https://a.com/contact/",
		"https://a.com/home#section",
	}, links)
}

func TestExtractLinks_BadBase(t *testing.T) {
	t.Parallel()

	_, err := ExtractLinks(samplePage, "://bad")
	require.Error(t, err)
}

func TestExtractText_StripsScriptsAndCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	text, err := ExtractText(`<html><body>
		<script>var x = 1;</script>
		<style>.a { color: red }</style>
		<h1>Hello</h1>
		<p>world   and
		more</p>
	</body></html>`)
	require.NoError(t, err)
	require.Equal(t, "Hello world and more", text)
}
