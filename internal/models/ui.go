package models

// Screen is a bottom-navigation destination
type Screen string

const (
	ScreenChildren      Screen = "children"
	ScreenSubscriptions Screen = "subscriptions"
	ScreenDelivery      Screen = "delivery"
	ScreenProfile       Screen = "profile"
)

// UIState holds transient navigation state. It is never persisted.
type UIState struct {
	Screen            Screen `json:"screen"`
	EditingChildID    *int64 `json:"editing_child_id"`
	SelectedAddressID *int64 `json:"selected_address_id"`
}

// DefaultUIState is the state after startup, logout or an explicit reset
func DefaultUIState() UIState {
	return UIState{Screen: ScreenChildren}
}

// Valid reports whether s is one of the known screens
func (s Screen) Valid() bool {
	switch s {
	case ScreenChildren, ScreenSubscriptions, ScreenDelivery, ScreenProfile:
		return true
	}
	return false
}
