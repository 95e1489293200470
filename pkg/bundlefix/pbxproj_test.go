package bundlefix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parserSample = `// !$*UTF8*$!
{
	archiveVersion = 1;
	objects = {
		AA00 /* first */ = {
			isa = PBXNativeTarget;
			name = Runner;
			productType = "com.apple.product-type.application";
			refs = (
				BB00 /* Debug */,
				BB01 /* Release */,
			);
		};
	};
	rootObject = CC00 /* Project object */;
}
`

func TestParsePbxproj(t *testing.T) {
	root, err := parsePbxproj([]byte(parserSample))
	require.NoError(t, err)

	objects, ok := root.dict("objects")
	require.True(t, ok)

	entry, ok := objects.dict("AA00")
	require.True(t, ok)

	name, ok := entry.str("name")
	require.True(t, ok)
	assert.Equal(t, "Runner", name.value)
	assert.False(t, name.quoted)

	productType, ok := entry.str("productType")
	require.True(t, ok)
	assert.Equal(t, "com.apple.product-type.application", productType.value)
	assert.True(t, productType.quoted)

	refs, ok := entry.arr("refs")
	require.True(t, ok)
	require.Len(t, refs.items, 2)
	assert.Equal(t, "BB01", refs.items[1].(*pbxString).value)
}

// Every string token's recorded span must cover exactly its source bytes,
// since patching splices replacements at those offsets.
func TestParsePbxprojSpans(t *testing.T) {
	data := []byte(parserSample)
	root, err := parsePbxproj(data)
	require.NoError(t, err)

	objects, _ := root.dict("objects")
	entry, _ := objects.dict("AA00")

	name, _ := entry.str("name")
	assert.Equal(t, "Runner", string(data[name.start:name.end]))

	productType, _ := entry.str("productType")
	assert.Equal(t, `"com.apple.product-type.application"`, string(data[productType.start:productType.end]))
}

func TestParsePbxprojQuotedEscapes(t *testing.T) {
	root, err := parsePbxproj([]byte(`{ key = "a \"b\" \\ c"; }`))
	require.NoError(t, err)
	v, ok := root.str("key")
	require.True(t, ok)
	assert.Equal(t, `a "b" \ c`, v.value)
}

func TestParsePbxprojMalformed(t *testing.T) {
	cases := map[string]string{
		"truncated dict":       `{ key = value; `,
		"truncated string":     `{ key = "value`,
		"missing semicolon":    `{ key = value }`,
		"unterminated comment": `{ key = value; /* dangling }`,
		"trailing content":     `{ key = value; } extra`,
		"array top level":      `( a, b )`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parsePbxproj([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestApplyEdits(t *testing.T) {
	data := []byte("aaa OLD bbb OLD ccc")
	out := applyEdits(data, []spanEdit{
		{start: 4, end: 7, text: "NEWLONG"},
		{start: 12, end: 15, text: "N"},
	})
	assert.Equal(t, "aaa NEWLONG bbb N ccc", string(out))
	// input untouched
	assert.Equal(t, "aaa OLD bbb OLD ccc", string(data))
}

func TestPbxQuote(t *testing.T) {
	assert.Equal(t, "com.example.app", pbxQuote("com.example.app", false))
	assert.Equal(t, `"com.example.app"`, pbxQuote("com.example.app", true))
	assert.Equal(t, `"has space"`, pbxQuote("has space", false))
	assert.Equal(t, `""`, pbxQuote("", false))
}
