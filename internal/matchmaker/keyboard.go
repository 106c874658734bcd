package matchmaker

import "encoding/json"

// VK keyboard payloads, serialized once at package init. Shapes follow
// the messages.send keyboard contract.

type keyboardAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type keyboardButton struct {
	Action keyboardAction `json:"action"`
	Color  string         `json:"color"`
}

type keyboard struct {
	OneTime bool               `json:"one_time,omitempty"`
	Inline  bool               `json:"inline,omitempty"`
	Buttons [][]keyboardButton `json:"buttons"`
}

func btn(label, color string) keyboardButton {
	return keyboardButton{
		Action: keyboardAction{Type: "text", Label: label},
		Color:  color,
	}
}

func mustJSON(k keyboard) string {
	b, err := json.Marshal(k)
	if err != nil {
		panic(err)
	}
	return string(b)
}

var (
	mainMenuKeyboard = mustJSON(keyboard{
		OneTime: true,
		Buttons: [][]keyboardButton{
			{btn(labelSearch, "positive"), btn(labelRules, "primary")},
			{btn(labelChangeCity, "secondary")},
		},
	})

	searchKeyboard = mustJSON(keyboard{
		OneTime: true,
		Buttons: [][]keyboardButton{
			{btn(labelAddFavorite, "positive"), btn(labelSkip, "negative")},
			{btn(labelAddBlacklist, "secondary"), btn(labelViewFavorites, "primary")},
			{btn(labelMainMenu, "primary")},
		},
	})

	favoritesKeyboard = mustJSON(keyboard{
		Inline: true,
		Buttons: [][]keyboardButton{
			{btn(labelClearFavorites, "negative"), btn(labelRemoveLastFavorite, "primary")},
			{btn(labelSearch, "positive"), btn(labelMainMenu, "secondary")},
		},
	})

	blacklistKeyboard = mustJSON(keyboard{
		Inline: true,
		Buttons: [][]keyboardButton{
			{btn(labelClearBlacklist, "negative"), btn(labelRemoveLastBlocked, "primary")},
			{btn(labelSearch, "positive"), btn(labelMainMenu, "secondary")},
		},
	})
)
