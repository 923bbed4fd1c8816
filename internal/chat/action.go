package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ActionKind is the tag of a callback payload.
type ActionKind string

const (
	ActionConfirm   ActionKind = "confirm"
	ActionEdit      ActionKind = "edit"
	ActionCancel    ActionKind = "cancel"
	ActionRetry     ActionKind = "retry"
	ActionManual    ActionKind = "manual"
	ActionEditMonto ActionKind = "editmonto"
	ActionEditDesc  ActionKind = "editdesc"
	ActionEditFecha ActionKind = "editfecha"
	ActionEditCat   ActionKind = "editcat"
	ActionSetCat    ActionKind = "setcat"
)

var knownActions = map[ActionKind]bool{
	ActionConfirm:   true,
	ActionEdit:      true,
	ActionCancel:    true,
	ActionRetry:     true,
	ActionManual:    true,
	ActionEditMonto: true,
	ActionEditDesc:  true,
	ActionEditFecha: true,
	ActionEditCat:   true,
	ActionSetCat:    true,
}

var (
	// ErrUnknownAction is returned for payloads with an unrecognized tag.
	ErrUnknownAction = errors.New("unknown callback action")
	// ErrMalformedAction is returned when the id or value is missing or invalid.
	ErrMalformedAction = errors.New("malformed callback payload")
)

// Action is a decoded button payload of the form <tag>_<record id>[_<value>].
type Action struct {
	Kind     ActionKind
	RecordID uint
	Value    string
}

// ParseAction decodes a callback payload. For setcat every part after the
// id is joined back with underscores, so values may contain them.
func ParseAction(data string) (Action, error) {
	parts := strings.Split(data, "_")
	if len(parts) < 2 {
		return Action{}, fmt.Errorf("%w: %q", ErrMalformedAction, data)
	}

	kind := ActionKind(parts[0])
	if !knownActions[kind] {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, parts[0])
	}

	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || id == 0 {
		return Action{}, fmt.Errorf("%w: bad record id in %q", ErrMalformedAction, data)
	}

	action := Action{Kind: kind, RecordID: uint(id)}
	if kind == ActionSetCat {
		if len(parts) < 3 {
			return Action{}, fmt.Errorf("%w: setcat without value", ErrMalformedAction)
		}
		action.Value = strings.Join(parts[2:], "_")
		if action.Value == "" {
			return Action{}, fmt.Errorf("%w: setcat without value", ErrMalformedAction)
		}
	} else if len(parts) > 2 {
		return Action{}, fmt.Errorf("%w: unexpected value in %q", ErrMalformedAction, data)
	}
	return action, nil
}

// String encodes the action as a callback payload.
func (a Action) String() string {
	s := fmt.Sprintf("%s_%d", a.Kind, a.RecordID)
	if a.Value != "" {
		s += "_" + a.Value
	}
	return s
}

// ActionButton builds an inline button carrying the given action.
func ActionButton(text string, kind ActionKind, recordID uint) Button {
	return Button{Text: text, Data: Action{Kind: kind, RecordID: recordID}.String()}
}
