package models

// LogoInfo is brand metadata resolved by a logo source for one symbol.
type LogoInfo struct {
	Symbol string `json:"symbol"`
	URL    string `json:"url"`
	Source string `json:"source"` // which provider supplied the logo
}
