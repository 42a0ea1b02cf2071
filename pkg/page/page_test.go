package page

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docWithHead = `<!DOCTYPE html>
<html>
<head>
<title>Quarterly report</title>
</head>
<body><h1>Numbers</h1></body>
</html>`

func testDatastore(id string) Datastore {
	return Datastore{
		ID:     id,
		GetURL: "https://bucket.s3.amazonaws.com/reports/" + id + ".json?X-Amz-Expires=604800&X-Amz-Signature=abc",
		Post: PostPolicy{
			URL: "https://bucket.s3.amazonaws.com/",
			Fields: map[string]string{
				"key":             "reports/" + id + ".json",
				"policy":          "eyJjb25kaXRpb25zIjpbXX0",
				"x-amz-signature": "deadbeef",
			},
		},
	}
}

func TestInject_AppendsBlock(t *testing.T) {
	out, err := Inject([]byte(docWithHead), testDatastore("a1b2c3d4e5f6a7b8c9d0"))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, Marker)
	assert.Contains(t, s, `const datastoreId = "a1b2c3d4e5f6a7b8c9d0";`)
	assert.Contains(t, s, `"x-amz-signature":"deadbeef"`)
	assert.Contains(t, s, "<h1>Numbers</h1>")

	// Script text must come through raw. An entity-escaped URL would break
	// the fetch calls in the browser.
	assert.Contains(t, s, "X-Amz-Expires=604800&X-Amz-Signature=abc")

	// The block lands inside the head, not the body.
	assert.Less(t, strings.Index(s, Marker), strings.Index(s, "</head>"))
}

func TestInject_ReplacesBlock(t *testing.T) {
	first, err := Inject([]byte(docWithHead), testDatastore("firstid0000000000001"))
	require.NoError(t, err)

	second, err := Inject(first, testDatastore("secondid000000000002"))
	require.NoError(t, err)

	s := string(second)
	assert.Contains(t, s, `const datastoreId = "secondid000000000002";`)
	assert.NotContains(t, s, "firstid0000000000001")
	assert.Equal(t, 1, strings.Count(s, Marker), "republish must not stack blocks")
}

func TestInject_NoHead(t *testing.T) {
	for _, doc := range []string{
		"",
		"<h1>hello</h1>",
		"<html><body><p>no head here</p></body></html>",
	} {
		_, err := Inject([]byte(doc), testDatastore("a1b2c3d4e5f6a7b8c9d0"))
		assert.ErrorIs(t, err, ErrNoHead, "doc %q", doc)
	}
}

func TestInject_KeepsOtherScripts(t *testing.T) {
	doc := `<html><head><script>console.log("analytics");</script></head><body></body></html>`

	out, err := Inject([]byte(doc), testDatastore("a1b2c3d4e5f6a7b8c9d0"))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `console.log("analytics");`)
	assert.Contains(t, s, Marker)
}

func TestExtractID(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		out, err := Inject([]byte(docWithHead), testDatastore("a1b2c3d4e5f6a7b8c9d0"))
		require.NoError(t, err)

		id, ok := ExtractID(out)
		require.True(t, ok)
		assert.Equal(t, "a1b2c3d4e5f6a7b8c9d0", id)
	})

	t.Run("no block", func(t *testing.T) {
		_, ok := ExtractID([]byte(docWithHead))
		assert.False(t, ok)
	})

	t.Run("block without id", func(t *testing.T) {
		doc := "<html><head><script>// " + Marker + "\n// gutted by hand</script></head></html>"
		_, ok := ExtractID([]byte(doc))
		assert.False(t, ok)
	})
}

func TestRenderScript(t *testing.T) {
	script, err := renderScript(testDatastore("a1b2c3d4e5f6a7b8c9d0"))
	require.NoError(t, err)

	assert.NotContains(t, script, "{{")
	assert.NotContains(t, script, "}}")
	assert.Contains(t, script, `const presignedPostData = {"url":"https://bucket.s3.amazonaws.com/","fields":{`)

	// Rendered block starts on a fresh line and every line sits at the
	// four space indent used inside <head>.
	require.True(t, strings.HasPrefix(script, "\n    "))
	require.True(t, strings.HasSuffix(script, "\n"))
	for _, line := range strings.Split(strings.TrimSuffix(script, "\n"), "\n")[1:] {
		if line == "" {
			continue
		}
		assert.True(t, strings.HasPrefix(line, "    "), "line %q not indented", line)
	}
}
