package table

import "fmt"

// KeyMap defines the keyboard shortcuts displayed in the footer.
type KeyMap struct {
	Edit       string
	AddRow     string
	Duplicate  string
	Delete     string
	ClearAll   string
	ToggleType string
	Save       string
	Export     string
	BulkCreate string
	UserSearch string
	Login      string
	Refresh    string
	Quit       string
}

// DefaultKeyMap returns the default shortcut mapping.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Edit:       "enter",
		AddRow:     "a",
		Duplicate:  "d",
		Delete:     "x",
		ClearAll:   "C",
		ToggleType: "t",
		Save:       "s",
		Export:     "e",
		BulkCreate: "b",
		UserSearch: "u",
		Login:      "g",
		Refresh:    "r",
		Quit:       "q",
	}
}

// HelpLine renders the footer help text.
func (k KeyMap) HelpLine() string {
	return fmt.Sprintf("[%s] edit  [%s] add  [%s] dup  [%s] del  [%s] clear  [%s] type  [%s] save  [%s] csv  [%s] bulk  [%s] user  [%s] login  [%s] quit",
		k.Edit, k.AddRow, k.Duplicate, k.Delete, k.ClearAll, k.ToggleType, k.Save, k.Export, k.BulkCreate, k.UserSearch, k.Login, k.Quit)
}
