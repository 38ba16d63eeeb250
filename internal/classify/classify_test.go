package classify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New(Word("lodash-es"), regexp.MustCompile(`my[/\\]esm-lib`))

	tests := []struct {
		path string
		want Class
	}{
		{"/app/node_modules/@tarojs/components/dist/index.js", FirstParty},
		{"/app/node_modules/_@tarojs_components@1.3.0@@tarojs/components/view.css", FirstParty},
		{"/app/node_modules/taro-components/index.js", FirstParty},
		{"/app/node_modules/@tarojs/taro-h5/dist/index.js", ModernDependency},
		{"/app/node_modules/@tarojs/router/dist/index.js", ModernDependency},
		{"/app/node_modules/@tarojs/redux-h5/index.js", ModernDependency},
		{"/app/node_modules/lodash-es/map.js", ModernDependency},
		{"/app/node_modules/my/esm-lib/index.js", ModernDependency},
		{"/app/node_modules/react/index.js", OpaqueDependency},
		{"/app/node_modules/lodash/map.js", OpaqueDependency},
		{"/app/src/pages/index/index.jsx", Application},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.path))
		})
	}
}

func TestFirstPartyIsAlsoModern(t *testing.T) {
	c := New()
	path := "/app/node_modules/@tarojs/components/index.js"

	assert.True(t, c.IsFirstParty(path))
	assert.True(t, c.IsModern(path))
	assert.Equal(t, FirstParty, c.Classify(path))
}

func TestSkipsTransform(t *testing.T) {
	c := New(Word("lodash-es"))

	assert.False(t, c.SkipsTransform("/app/src/app.js"))
	assert.False(t, c.SkipsTransform("/app/node_modules/lodash-es/map.js"))
	assert.False(t, c.SkipsTransform("/app/node_modules/@tarojs/components/index.js"))
	assert.True(t, c.SkipsTransform("/app/node_modules/lodash/map.js"))
}

func TestSkipsPostcss(t *testing.T) {
	c := New()

	assert.True(t, c.SkipsPostcss("/app/node_modules/@tarojs/components/dist/view.css"))
	assert.False(t, c.SkipsPostcss("/app/node_modules/@tarojs/taro-h5/dist/index.css"))
	assert.True(t, c.SkipsPostcss("/app/node_modules/normalize.css/normalize.css"))
	assert.False(t, c.SkipsPostcss("/app/src/app.scss"))
}

func TestWordQuotesName(t *testing.T) {
	re := Word("vue.esm")

	assert.True(t, re.MatchString("/node_modules/vue.esm/index.js"))
	assert.False(t, re.MatchString("/node_modules/vueXesm/index.js"))
}

func TestEntriesOrder(t *testing.T) {
	entries := New(Word("extra")).Entries()

	assert.Equal(t, FirstParty, entries[0].Class)
	assert.Equal(t, FirstParty, entries[1].Class)
	for _, e := range entries[2:] {
		assert.Equal(t, ModernDependency, e.Class)
	}
	assert.Equal(t, `\bextra\b`, entries[len(entries)-1].Pattern.String())
}
