package imports

import (
	// Research tools register themselves with the registry in init
	_ "github.com/sammcj/mcp-code-research/internal/tools/githubsearch"
	_ "github.com/sammcj/mcp-code-research/internal/tools/npmsearch"
	_ "github.com/sammcj/mcp-code-research/internal/tools/repostructure"
	_ "github.com/sammcj/mcp-code-research/internal/tools/utilities/toolhelp"
)
