package geometry

import (
	"fmt"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// WordLookup builds an index → box map from a payload carrying "words" and/or
// "pages[].words". Word boxes may be {x,y,width,height} or {left,top,right,bottom}.
// Later entries for the same index win.
func WordLookup(payload any) (map[int]PageBox, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, common.InvalidInput("bounding box payload must be an object")
	}
	if inner, ok := root["bounding_boxes"].(map[string]any); ok {
		root = inner
	}

	lookup := make(map[int]PageBox)
	if words, ok := root["words"].([]any); ok {
		for _, w := range words {
			addWord(lookup, w, nil)
		}
	}
	if pages, ok := root["pages"].([]any); ok {
		for _, p := range pages {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			pageNo, _, _ := firstPresent(pm, WordPageKeys)
			words, _ := pm["words"].([]any)
			for _, w := range words {
				addWord(lookup, w, pageNo)
			}
		}
	}
	if len(lookup) == 0 {
		return nil, common.InvalidInput("bounding box payload does not contain recognisable word data")
	}
	return lookup, nil
}

func addWord(lookup map[int]PageBox, raw any, defaultPage any) {
	w, ok := raw.(map[string]any)
	if !ok {
		return
	}
	idxRaw, ok := w["index"]
	if !ok || idxRaw == nil {
		return
	}
	idx, err := toInt(idxRaw)
	if err != nil {
		return
	}
	boxRaw, _, ok := firstPresent(w, WordBoxKeys)
	if !ok {
		return
	}
	bm, ok := boxRaw.(map[string]any)
	if !ok {
		return
	}
	pageRaw, ok := w["page"]
	if !ok {
		pageRaw = defaultPage
	}
	if pageRaw == nil {
		return
	}
	page, err := toInt(pageRaw)
	if err != nil {
		return
	}
	rect, err := wordRect(bm)
	if err != nil {
		return
	}
	lookup[idx] = PageBox{Page: page, Rect: rect}
}

func wordRect(b map[string]any) (Rect, error) {
	switch {
	case hasAll(b, xywhKeys):
		f, err := floats(b, xywhKeys)
		if err != nil {
			return Rect{}, err
		}
		return Rect{X: f[0], Y: f[1], Width: f[2], Height: f[3]}, nil
	case hasAll(b, ltrbKeys):
		f, err := floats(b, ltrbKeys)
		if err != nil {
			return Rect{}, err
		}
		return Rect{X: f[0], Y: f[1], Width: f[2] - f[0], Height: f[3] - f[1]}, nil
	}
	return Rect{}, fmt.Errorf("%w: word box", common.ErrUnsupportedBoxFormat)
}
