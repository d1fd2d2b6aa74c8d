package sink

import (
	"net/http"
)

var page = `<html>
	<script>
		window.setInterval(function(){
			let t = new Date().getTime()
			document.getElementById('bg').src = "/debug/background?random=" + t;
			document.getElementById('mask').src = "/debug/mask?random=" + t;
		}, 1000);
	</script>
	<body>
		<div>
			<img id="stream" display="flex" src="/stream" style="max-width: 32%; height: auto; "/>
			<img id="bg" display="flex" src="/debug/background" style="max-width: 32%; height: auto; "/>
			<img id="mask" display="flex" src="/debug/mask" style="max-width: 32%; height: auto; "/>
		</div>
	</body>
</html>
`

// Page serves the index page showing the live stream next to the debug
// images.
func Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}
