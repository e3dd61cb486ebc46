package transform

// runtimeMarker identifies an already-injected document.
const runtimeMarker = "data-multiview-runtime"

// runtimeStyle hides leftover banner containers while the sweeper runs.
const runtimeStyle = `<style data-multiview-runtime="css">
[data-multiview-hidden]{display:none !important;visibility:hidden !important;}
</style>`

// runtimeScript is the mutation bundle injected into every proxied
// document. It must stay self-contained: no external fetches, no
// globals beyond one namespaced object, and it must never throw out of
// its own scope.
const runtimeScript = `<script data-multiview-runtime="js">
(function () {
  "use strict";
  if (window.__multiview) { return; }
  var state = { muted: false, sweeps: 0 };
  window.__multiview = state;

  function swallow(fn) {
    try { return fn(); } catch (e) { return undefined; }
  }

  // --- frame-detection spoofing -------------------------------------
  // Make self-vs-top comparisons observe "not framed".
  swallow(function () {
    Object.defineProperty(window, "top", { get: function () { return window.self; } });
  });
  swallow(function () {
    Object.defineProperty(window, "parent", { get: function () { return window.self; } });
  });
  swallow(function () {
    Object.defineProperty(window, "frameElement", { get: function () { return null; } });
  });

  // --- navigation suppression ---------------------------------------
  window.open = function () { return null; };

  var realSetTimeout = window.setTimeout;
  window.setTimeout = function (fn, delay) {
    if (typeof fn === "string") { return 0; }
    return realSetTimeout.apply(window, arguments);
  };
  var realSetInterval = window.setInterval;
  window.setInterval = function (fn, delay) {
    if (typeof fn === "string") { return 0; }
    return realSetInterval.apply(window, arguments);
  };

  document.write = function () {};
  document.writeln = function () {};

  function isVideoControl(el) {
    while (el && el !== document.body) {
      if (el.tagName === "VIDEO" || el.tagName === "AUDIO") { return true; }
      var cls = (el.className && el.className.toString) ? el.className.toString().toLowerCase() : "";
      if (/(play|pause|volume|mute|fullscreen|quality|settings|control|player|vjs|jw|plyr)/.test(cls)) {
        return true;
      }
      el = el.parentElement;
    }
    return false;
  }

  document.addEventListener("click", function (ev) {
    var el = ev.target;
    if (isVideoControl(el)) { return; }
    var anchor = el && el.closest ? el.closest("a") : null;
    if (!anchor) { return; }
    var href = anchor.getAttribute("href") || "";
    var target = anchor.getAttribute("target") || "";
    var onclick = anchor.getAttribute("onclick") || "";
    if (target === "_blank" ||
        /window\.open|location\./.test(onclick) ||
        /bet|casino|bonus|promo|redirect|popup/.test(href)) {
      ev.preventDefault();
      ev.stopPropagation();
    }
  }, true);

  // --- banner and overlay sweeping ----------------------------------
  var runtimeHiddenAttr = "data-multiview-hidden";
  var bannerText = /(cannot be embedded|may not be embedded|not allowed to embed|embedding is disabled|watch on the official)/i;

  function hasPlayer(el) {
    return !!(el.querySelector && el.querySelector("video, audio, iframe"));
  }

  function sweep() {
    state.sweeps++;
    var all = document.querySelectorAll("div, p, h1, h2, h3, h4, h5, h6, section");
    for (var i = 0; i < all.length; i++) {
      var el = all[i];
      if (el.hasAttribute(runtimeHiddenAttr)) { continue; }
      var text = (el.textContent || "").trim();
      if (text.length > 0 && text.length < 200 && bannerText.test(text) && !hasPlayer(el)) {
        el.setAttribute(runtimeHiddenAttr, "banner");
      }
    }
    var overlays = document.querySelectorAll("div, a");
    for (var j = 0; j < overlays.length; j++) {
      var ov = overlays[j];
      if (ov.hasAttribute(runtimeHiddenAttr) || hasPlayer(ov)) { continue; }
      var cs = swallow(function () { return window.getComputedStyle(ov); });
      if (!cs) { continue; }
      if ((cs.position === "fixed" || cs.position === "absolute") &&
          ov.offsetWidth >= window.innerWidth * 0.8 &&
          ov.offsetHeight >= window.innerHeight * 0.8 &&
          parseInt(cs.zIndex || "0", 10) > 100) {
        ov.setAttribute(runtimeHiddenAttr, "overlay");
      }
    }
  }
  realSetInterval.call(window, function () { swallow(sweep); }, 1500);

  // --- mute messaging -----------------------------------------------
  function applyMute(el) {
    el.muted = state.muted;
    el.volume = state.muted ? 0 : 1;
  }
  function applyMuteAll() {
    var media = document.querySelectorAll("video, audio");
    for (var i = 0; i < media.length; i++) { applyMute(media[i]); }
  }

  window.addEventListener("message", function (ev) {
    var data = ev && ev.data;
    if (!data || data.type !== "multiview:mute") { return; }
    state.muted = !!data.muted;
    applyMuteAll();
  });

  // Media elements added after load get the current mute state too.
  swallow(function () {
    var observer = new MutationObserver(function (mutations) {
      for (var i = 0; i < mutations.length; i++) {
        var added = mutations[i].addedNodes;
        for (var j = 0; j < added.length; j++) {
          var node = added[j];
          if (!node.tagName) { continue; }
          if (node.tagName === "VIDEO" || node.tagName === "AUDIO") {
            applyMute(node);
          } else if (node.querySelectorAll) {
            var media = node.querySelectorAll("video, audio");
            for (var k = 0; k < media.length; k++) { applyMute(media[k]); }
          }
        }
      }
    });
    observer.observe(document.documentElement, { childList: true, subtree: true });
  });
})();
</script>`

// RuntimeBundle returns the injected style and script block.
func RuntimeBundle() string {
	return runtimeStyle + runtimeScript
}

// RuntimeScriptSource returns the raw JS without the script tags, used
// to validate the bundle in tests.
func RuntimeScriptSource() string {
	src := runtimeScript
	if start := len(`<script data-multiview-runtime="js">`); start < len(src) {
		src = src[start:]
	}
	if end := len(src) - len("</script>"); end > 0 {
		src = src[:end]
	}
	return src
}
