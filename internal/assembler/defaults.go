package assembler

import "github.com/telnet2/h5runner/internal/merge"

// DefaultURLLoaderLimit is the inlining threshold, in bytes, of asset rules.
const DefaultURLLoaderLimit = 10240

// Style and script file tests.
const (
	styleTest  = `\.(css|s[ac]ss|less|styl)\b`
	sassTest   = `\.(s[ac]ss)\b`
	lessTest   = `\.less\b`
	stylusTest = `\.styl\b`
	scriptTest = `\.m?[jt]sx?$`
	mediaTest  = `\.(mp4|webm|ogg|mp3|wav|flac|aac)(\?.*)?$`
	fontTest   = `\.(woff2?|eot|ttf|otf)(\?.*)?$`
	imageTest  = `\.(png|jpe?g|gif|bmp|svg)(\?.*)?$`

	moduleSuffixed = `(.*\.module).*\.(css|s[ac]ss|less|styl)\b`
	globalSuffixed = `(.*\.global).*\.(css|s[ac]ss|less|styl)\b`
)

// CSS modules naming patterns.
const (
	NamingModule = "module"
	NamingGlobal = "global"
)

func defaultCSSModuleOption() merge.Layer {
	return merge.Layer{
		"enable": false,
		"config": merge.Layer{
			"namingPattern":      NamingGlobal,
			"generateScopedName": "[name]__[local]___[hash:base64:5]",
		},
	}
}

func defaultBabelLoaderOption() merge.Layer {
	return merge.Layer{
		"plugins": []any{
			"babel-plugin-syntax-dynamic-import",
			[]any{"babel-plugin-transform-react-jsx", merge.Layer{"pragma": "Nerv.createElement"}},
			[]any{"babel-plugin-transform-taroapi", merge.Layer{"packageName": "@tarojs/taro-h5"}},
		},
	}
}

func defaultUglifyJSOption() merge.Layer {
	return merge.Layer{
		"keep_fnames": true,
		"output": merge.Layer{
			"comments":          false,
			"keep_quoted_props": true,
			"quote_keys":        true,
			"beautify":          false,
		},
		"warnings": false,
	}
}

func defaultCSSCompressOption() merge.Layer {
	return merge.Layer{
		"mergeRules":      false,
		"mergeIdents":     false,
		"reduceIdents":    false,
		"discardUnused":   false,
		"minifySelectors": false,
	}
}

func defaultAutoprefixerOption() merge.Layer {
	return merge.Layer{
		"enable": true,
		"config": merge.Layer{
			"browsers": []any{"Android >= 4", "ios >= 8"},
		},
	}
}

func defaultPxtransformOption() merge.Layer {
	return merge.Layer{
		"enable": true,
		"config": merge.Layer{
			"platform": "h5",
		},
	}
}

func defaultURLLoaderOption() merge.Layer {
	return merge.Layer{"limit": DefaultURLLoaderLimit}
}

func defaultResolve() merge.Layer {
	return merge.Layer{
		"extensions": []any{".js", ".jsx", ".ts", ".tsx", ".mjs"},
		"mainFields": []any{"main:h5", "browser", "module", "main"},
	}
}
