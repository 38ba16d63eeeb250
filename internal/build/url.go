package build

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/telnet2/h5runner/internal/devserver"
	"github.com/telnet2/h5runner/pkg/types"
)

// Router modes.
const (
	RouterHash    = "hash"
	RouterBrowser = "browser"
)

// DevURL is the address printed and opened for a development server. The
// path is the router basename in browser mode and "/" otherwise.
func DevURL(opts devserver.Options, router *types.RouterConfig) string {
	pathname := "/"
	if router != nil && router.Mode == RouterBrowser && router.Basename != "" {
		pathname = router.Basename
		if !strings.HasPrefix(pathname, "/") {
			pathname = "/" + pathname
		}
	}
	u := url.URL{
		Scheme: opts.Scheme(),
		Host:   net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Path:   pathname,
	}
	return u.String()
}
