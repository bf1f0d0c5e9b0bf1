package extractor

import (
	"regexp"
	"strings"

	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xregexp"
)

// scriptGlobs maps the PostInstall script kind to the glob spec.md
// describes: "*/.*-{kind with '_' -> '-'}.*".
var scriptGlobs = map[string]*regexp.Regexp{
	"pre_link":   compileScriptGlob("pre-link"),
	"post_link":  compileScriptGlob("post-link"),
	"pre_unlink": compileScriptGlob("pre-unlink"),
}

// compileScriptGlob turns the fixed glob "*/.*-{kind}.*" into an anchored
// regular expression, built with the shared regex-combinator helpers
// rather than a second hand-rolled glob engine.
func compileScriptGlob(kind string) *regexp.Regexp {
	any := xregexp.Any(".")
	expr := xregexp.Anchored(
		any, xregexp.Literal("/."), any, xregexp.Literal("-"+kind+"."), any,
	)
	return regexp.MustCompile(expr)
}

// computePostInstall derives the fixed-shape boolean report from the
// decoded contents of info/paths. If paths is nil (the member was absent),
// every field is false.
func computePostInstall(paths []any) *model.PostInstall {
	pi := &model.PostInstall{}
	for _, raw := range paths {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		path, _ := p["_path"].(string)

		if _, hasPlaceholder := p["prefix_placeholder"]; hasPlaceholder {
			switch p["file_mode"] {
			case "binary":
				pi.BinaryPrefix = true
			case "text":
				pi.TextPrefix = true
			}
		}

		if strings.HasPrefix(path, "etc/conda/activate.d") {
			pi.ActivateD = true
		}
		if strings.HasPrefix(path, "etc/conda/deactivate.d") {
			pi.DeactivateD = true
		}
		if scriptGlobs["pre_link"].MatchString(path) {
			pi.PreLink = true
		}
		if scriptGlobs["post_link"].MatchString(path) {
			pi.PostLink = true
		}
		if scriptGlobs["pre_unlink"].MatchString(path) {
			pi.PreUnlink = true
		}
	}
	return pi
}
