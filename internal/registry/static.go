package registry

import "github.com/dnnyngyen/phasecore/internal/types"

// StaticEntries is the compiled-in knowledge API catalog (§3: "static; not
// mutated at runtime"). An operator may additionally disable entries via a
// registry.yaml overlay (see LoadOverlay); new entries are added by editing
// this list and rebuilding.
var StaticEntries = []types.APIEndpoint{
	{
		Name:             "mdn_web_docs",
		URL:              "https://developer.mozilla.org/api/v1/search",
		Category:         "docs",
		Keywords:         []string{"javascript", "css", "html", "browser", "api", "web"},
		AuthType:         types.AuthNone,
		HTTPS:            true,
		CORS:             true,
		Reliability:      0.95,
		EndpointPatterns: []string{"https://developer.mozilla.org/en-US/search"},
	},
	{
		Name:        "go_pkg_dev",
		URL:         "https://pkg.go.dev/search",
		Category:    "package_registry",
		Keywords:    []string{"go", "golang", "package", "module", "library"},
		AuthType:    types.AuthNone,
		HTTPS:       true,
		CORS:        false,
		Reliability: 0.9,
	},
	{
		Name:        "npm_registry",
		URL:         "https://registry.npmjs.org/-/v1/search",
		Category:    "package_registry",
		Keywords:    []string{"npm", "node", "javascript", "package"},
		AuthType:    types.AuthNone,
		HTTPS:       true,
		CORS:        true,
		Reliability: 0.9,
	},
	{
		Name:        "stackoverflow_search",
		URL:         "https://api.stackexchange.com/2.3/search",
		Category:    "search",
		Keywords:    []string{"error", "exception", "bug", "how", "why", "question"},
		AuthType:    types.AuthNone,
		HTTPS:       true,
		CORS:        true,
		Reliability: 0.7,
	},
	{
		Name:        "github_code_search",
		URL:         "https://api.github.com/search/code",
		Category:    "reference",
		Keywords:    []string{"github", "code", "example", "repository", "implementation"},
		AuthType:    types.AuthOAuth,
		HTTPS:       true,
		CORS:        false,
		Reliability: 0.85,
	},
	{
		Name:        "wikipedia_summary",
		URL:         "https://en.wikipedia.org/api/rest_v1/page/summary",
		Category:    "reference",
		Keywords:    []string{"definition", "background", "history", "overview", "concept"},
		AuthType:    types.AuthNone,
		HTTPS:       true,
		CORS:        true,
		Reliability: 0.8,
	},
	{
		Name:        "arxiv_search",
		URL:         "https://export.arxiv.org/api/query",
		Category:    "data",
		Keywords:    []string{"paper", "research", "algorithm", "model", "study"},
		AuthType:    types.AuthNone,
		HTTPS:       true,
		CORS:        false,
		Reliability: 0.85,
	},
	{
		Name:        "rest_countries",
		URL:         "https://restcountries.com/v3.1/name",
		Category:    "data",
		Keywords:    []string{"country", "currency", "timezone", "population"},
		AuthType:    types.AuthNone,
		HTTPS:       true,
		CORS:        true,
		Reliability: 0.75,
	},
}
