package functions

import (
	"github.com/onlyadaydreamer/grid/pkg/types"
)

func (r *Registry) registerWeb() {
	r.Register("HYPERLINK", webHyperlink)
}

// webHyperlink returns a hyperlink value; the title defaults to empty and
// the cell then shows the URL.
func webHyperlink(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("HYPERLINK", args, 1, 2); err != nil {
		return types.Empty, err
	}
	url, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	title := ""
	if len(args) == 2 {
		if title, err = textArg(args, 1); err != nil {
			return types.Empty, err
		}
	}
	return types.NewHyperlink(url, title), nil
}
