package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockNames maps CDP resource types to the names accepted in
// Config.ResourceBlocking.
var blockNames = map[proto.NetworkResourceType]string{
	proto.NetworkResourceTypeImage:      "images",
	proto.NetworkResourceTypeFont:       "fonts",
	proto.NetworkResourceTypeMedia:      "media",
	proto.NetworkResourceTypeStylesheet: "stylesheets",
}

// blockSet normalises the configured names. The main document is never
// blockable since every audit depends on it.
func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "document" {
			continue
		}
		set[t] = true
	}
	return set
}

func shouldBlock(set map[string]bool, typ proto.NetworkResourceType) bool {
	if name, ok := blockNames[typ]; ok {
		return set[name]
	}
	return set[strings.ToLower(string(typ))]
}

// applyResourceBlocking fails matching subresource requests with
// BlockedByClient. Stop the returned router when the tab closes.
func applyResourceBlocking(p *rod.Page, types []string) (*rod.HijackRouter, error) {
	set := blockSet(types)
	if len(set) == 0 {
		return nil, nil
	}

	router := p.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(set, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}
	go router.Run()
	return router, nil
}
