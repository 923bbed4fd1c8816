package chat

import (
	"errors"
	"testing"
)

func TestParseAction(t *testing.T) {
	t.Run("simple_actions", func(t *testing.T) {
		for _, kind := range []ActionKind{ActionConfirm, ActionEdit, ActionCancel, ActionRetry, ActionManual, ActionEditMonto, ActionEditDesc, ActionEditFecha, ActionEditCat} {
			a, err := ParseAction(string(kind) + "_42")
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", kind, err)
			}
			if a.Kind != kind || a.RecordID != 42 || a.Value != "" {
				t.Errorf("%s: unexpected action %+v", kind, a)
			}
		}
	})

	t.Run("setcat_rejoins_value", func(t *testing.T) {
		a, err := ParseAction("setcat_12_Comida_Rapida")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.RecordID != 12 || a.Value != "Comida_Rapida" {
			t.Errorf("unexpected action %+v", a)
		}
	})

	t.Run("round_trip", func(t *testing.T) {
		in := Action{Kind: ActionSetCat, RecordID: 9, Value: "Educación"}
		out, err := ParseAction(in.String())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != in {
			t.Errorf("expected %+v, got %+v", in, out)
		}
	})

	t.Run("unknown_tag", func(t *testing.T) {
		_, err := ParseAction("delete_12")
		if !errors.Is(err, ErrUnknownAction) {
			t.Errorf("expected ErrUnknownAction, got %v", err)
		}
	})

	for _, data := range []string{"confirm", "confirm_abc", "confirm_0", "confirm_-1", "setcat_12", "setcat_12_", "cancel_12_extra", ""} {
		t.Run("malformed_"+data, func(t *testing.T) {
			_, err := ParseAction(data)
			if err == nil {
				t.Fatalf("expected error for %q", data)
			}
		})
	}
}

func TestUpdateCommand(t *testing.T) {
	cases := map[string]string{
		"/nuevo":              "nuevo",
		"/Cancel":             "cancel",
		"/ayuda@derroche_bot": "ayuda",
		"/start hola":         "start",
		"hola":                "",
		"":                    "",
	}
	for text, want := range cases {
		if got := (Update{Text: text}).Command(); got != want {
			t.Errorf("%q: expected %q, got %q", text, want, got)
		}
	}
}

func TestLargestPhoto(t *testing.T) {
	u := Update{Photos: []PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 1280, Height: 960},
		{FileID: "medium", Width: 320, Height: 240},
	}}
	p, ok := u.LargestPhoto()
	if !ok || p.FileID != "large" {
		t.Errorf("expected large photo, got %+v", p)
	}

	if _, ok := (Update{}).LargestPhoto(); ok {
		t.Error("expected no photo")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown("Comida_Rapida *2*"); got != `Comida\_Rapida \*2\*` {
		t.Errorf("unexpected escape %q", got)
	}
}
