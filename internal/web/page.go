package web

import (
	"html/template"
	"net/http"

	appLog "spiralcal/internal/log"
)

var pageTmpl = template.Must(template.New("spiral").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>spiralcal</title>
<style>
  html, body { margin: 0; background: #101018; color: #c8c8dc; font-family: sans-serif; }
  #spiral { display: block; width: {{.Width}}px; height: {{.Height}}px; cursor: grab; user-select: none; }
  #detail { padding: 8px 12px; min-height: 1.5em; }
</style>
</head>
<body>
<img id="spiral" src="/spiral.svg" width="{{.Width}}" height="{{.Height}}" draggable="false" alt="spiral calendar">
<div id="detail"></div>
<script>
(function () {
  const img = document.getElementById("spiral");
  const detail = document.getElementById("detail");
  const cx = {{.Width}} / 2, cy = {{.Height}} / 2;
  let last = null, moved = false;

  const reload = () => { img.src = "/spiral.svg?t=" + Date.now(); };
  img.addEventListener("load", () => { img.dataset.ready = "true"; });
  if (img.complete) img.dataset.ready = "true";
  const angle = (e) => Math.atan2(e.offsetY - cy, e.offsetX - cx);

  img.addEventListener("pointerdown", (e) => { last = angle(e); moved = false; img.setPointerCapture(e.pointerId); });
  img.addEventListener("pointermove", (e) => {
    if (last === null) return;
    const a = angle(e);
    let d = a - last;
    if (d > Math.PI) d -= 2 * Math.PI;
    if (d <= -Math.PI) d += 2 * Math.PI;
    if (Math.abs(d) < 0.01) return;
    last = a; moved = true;
    fetch("/api/rotate", { method: "POST", body: JSON.stringify({ delta: d }) }).then(reload);
  });
  img.addEventListener("pointerup", async (e) => {
    last = null;
    if (moved) return;
    const res = await fetch("/api/hit?x=" + e.offsetX + "&y=" + e.offsetY);
    const hit = await res.json();
    detail.textContent = hit.hit
      ? new Date(hit.time).toLocaleString() + " · " + (hit.events || []).map((ev) => ev.title).join(", ")
      : "";
    reload();
  });
})();
</script>
</body>
</html>
`))

// handlePage serves the interactive page; headless capture loads it too.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	vp := s.sess.Viewport()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, struct{ Width, Height float64 }{vp.Width, vp.Height}); err != nil {
		appLog.Error("page render failed", err)
	}
}
