package devserver

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Internal routes, outside any public path.
const (
	RoutePrefix   = "/__h5runner"
	RouteWS       = RoutePrefix + "/ws"
	RouteEvents   = RoutePrefix + "/events"
	RouteMetrics  = RoutePrefix + "/metrics"
	RouteClientJS = RoutePrefix + "/client.js"
)

const clientScript = `(function () {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var retries = 0;
  function connect() {
    var ws = new WebSocket(scheme + location.host + "` + RouteWS + `");
    ws.onopen = function () { retries = 0; };
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      switch (msg.type) {
        case "invalid":
          console.log("[h5runner] recompiling...");
          break;
        case "errors":
          (msg.errors || []).forEach(function (e) { console.error("[h5runner] " + e); });
          break;
        case "reload":
          location.reload();
          break;
      }
    };
    ws.onclose = function () {
      if (retries++ < 10) setTimeout(connect, 1000 * retries);
    };
  }
  connect();
})();
`

func serveClientJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(clientScript))
}

// injectClient appends the live-reload client to an HTML document's body.
// Documents already carrying it are returned unchanged.
func injectClient(html []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	if doc.Find(`script[src="` + RouteClientJS + `"]`).Length() > 0 {
		return html, nil
	}
	doc.Find("body").AppendHtml(`<script src="` + RouteClientJS + `"></script>`)

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
