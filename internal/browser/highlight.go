// internal/browser/highlight.go
package browser

import "fmt"

// highlightScript draws a short-lived ring at (x, y) so screenshots and
// headed sessions show where the pointer is about to act.
const highlightScript = `(function(x, y) {
  var id = '__pilot_pointer_highlight';
  var old = document.getElementById(id);
  if (old) { old.remove(); }
  var dot = document.createElement('div');
  dot.id = id;
  dot.style.cssText = [
    'position:fixed', 'z-index:2147483647', 'pointer-events:none',
    'width:20px', 'height:20px', 'border-radius:50%%',
    'border:3px solid rgba(255,0,0,0.85)', 'background:rgba(255,0,0,0.25)',
    'left:' + (x - 10) + 'px', 'top:' + (y - 10) + 'px'
  ].join(';');
  (document.body || document.documentElement).appendChild(dot);
  setTimeout(function() { dot.remove(); }, %d);
  return true;
})(%f, %f)`

// highlightDuration is how long the ring stays on screen, in milliseconds.
const highlightDuration = 1500

func buildHighlightScript(x, y float64) string {
	return fmt.Sprintf(highlightScript, highlightDuration, x, y)
}
