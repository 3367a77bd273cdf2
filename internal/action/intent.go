package action

import (
	"encoding/json"
	"fmt"
)

// Kind is the wire key of an action.
type Kind string

const (
	KindClickElement Kind = "click_element"
	KindInputText    Kind = "input_text"
	KindGoToURL      Kind = "go_to_url"
	KindScroll       Kind = "scroll"
)

// Kinds lists every supported action in wire order.
var Kinds = []Kind{KindClickElement, KindInputText, KindGoToURL, KindScroll}

// Intent is one action requested by the decision provider. The set of
// implementations is closed to this package.
type Intent interface {
	Kind() Kind
	isIntent()
}

type ClickElement struct {
	Index int `json:"index"`
}

type InputText struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type GoToURL struct {
	URL string `json:"url"`
}

type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionTop    Direction = "top"
	DirectionBottom Direction = "bottom"
)

func (d Direction) valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionTop, DirectionBottom:
		return true
	}

	return false
}

// Scroll moves the page. A nil Amount means one viewport height; top and
// bottom ignore it.
type Scroll struct {
	Direction Direction `json:"direction"`
	Amount    *int      `json:"amount,omitempty"`
}

func (ClickElement) Kind() Kind { return KindClickElement }
func (InputText) Kind() Kind    { return KindInputText }
func (GoToURL) Kind() Kind      { return KindGoToURL }
func (Scroll) Kind() Kind       { return KindScroll }

func (ClickElement) isIntent() {}
func (InputText) isIntent()    {}
func (GoToURL) isIntent()      {}
func (Scroll) isIntent()       {}

// Marshal encodes an intent in its single-key wire form.
func Marshal(in Intent) ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("marshal nil intent")
	}

	return json.Marshal(map[Kind]Intent{in.Kind(): in})
}

// Describe renders an intent for logs and prompts.
func Describe(in Intent) string {
	switch a := in.(type) {
	case ClickElement:
		return fmt.Sprintf("click element [%d]", a.Index)
	case InputText:
		return fmt.Sprintf("input %q into element [%d]", a.Text, a.Index)
	case GoToURL:
		return fmt.Sprintf("navigate to %s", a.URL)
	case Scroll:
		if a.Amount != nil && (a.Direction == DirectionUp || a.Direction == DirectionDown) {
			return fmt.Sprintf("scroll %s by %dpx", a.Direction, *a.Amount)
		}
		return fmt.Sprintf("scroll %s", a.Direction)
	case nil:
		return "no action"
	}

	return string(in.Kind())
}

// IndexOf returns the element index an intent targets, if any.
func IndexOf(in Intent) (int, bool) {
	switch a := in.(type) {
	case ClickElement:
		return a.Index, true
	case InputText:
		return a.Index, true
	}

	return 0, false
}

func (d Direction) extreme() bool {
	return d == DirectionTop || d == DirectionBottom
}

// normalized drops the amount for top and bottom and treats zero as absent.
// A negative amount is a parse error.
func (a Scroll) normalized(op string) (Intent, error) {
	switch {
	case a.Direction.extreme(), a.Amount == nil:
		a.Amount = nil
	case *a.Amount == 0:
		a.Amount = nil
	case *a.Amount < 0:
		return nil, parseError(op, "invalid_amount", KindScroll, fmt.Errorf("scroll amount must not be negative, got %d", *a.Amount))
	}

	return a, nil
}
