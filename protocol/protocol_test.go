package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/firasghr/GoPotluck/protocol"
	"github.com/firasghr/GoPotluck/session"
)

func TestParseEnvelope(t *testing.T) {
	env, err := protocol.ParseEnvelope([]byte(`{"type":"session:create","data":{"sessionId":"S"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != protocol.CmdSessionCreate {
		t.Errorf("type = %q", env.Type)
	}

	var p protocol.SessionCreate
	if err := env.DecodeData(&p); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if p.SessionID != "S" {
		t.Errorf("sessionId = %q", p.SessionID)
	}
}

func TestParseEnvelopeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"not json", "[1,2]", `{"data":{}}`, `{"type":""}`} {
		if _, err := protocol.ParseEnvelope([]byte(raw)); err == nil {
			t.Errorf("ParseEnvelope(%q) accepted", raw)
		}
	}
}

func TestDecodeDataMissingIsEmptyObject(t *testing.T) {
	env, err := protocol.ParseEnvelope([]byte(`{"type":"session:end"}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	var p struct{}
	if err := env.DecodeData(&p); err != nil {
		t.Errorf("DecodeData with no data: %v", err)
	}
}

func TestEventsAreFlatObjects(t *testing.T) {
	raw, err := json.Marshal(protocol.NewIngredientAdded(session.Ingredient{
		ID: "I1", Name: "flour", AddedBy: "U1", AddedAt: 42,
	}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != protocol.EvtIngredientsAdded {
		t.Errorf("type = %v", m["type"])
	}
	if _, wrapped := m["data"]; wrapped {
		t.Error("outbound event wrapped in data field")
	}
	ing, ok := m["ingredient"].(map[string]any)
	if !ok {
		t.Fatalf("ingredient = %T", m["ingredient"])
	}
	if ing["name"] != "flour" || ing["id"] != "I1" {
		t.Errorf("ingredient = %v", ing)
	}
}

func TestConstructorsSetTypes(t *testing.T) {
	cases := []struct {
		event any
		want  string
	}{
		{protocol.NewConnectionEstablished("c1"), protocol.EvtConnectionEstablished},
		{protocol.NewSessionError("boom"), protocol.EvtSessionError},
		{protocol.NewSessionExpired("S"), protocol.EvtSessionExpired},
		{protocol.NewSessionEnded("bye"), protocol.EvtSessionEnded},
		{protocol.NewContextUpdated("x"), protocol.EvtContextUpdated},
		{protocol.NewError("boom"), protocol.EvtError},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.event)
		if err != nil {
			t.Fatalf("marshal %T: %v", tc.event, err)
		}
		var m map[string]any
		json.Unmarshal(raw, &m)
		if m["type"] != tc.want {
			t.Errorf("%T type = %v, want %s", tc.event, m["type"], tc.want)
		}
	}
}

func TestValidVote(t *testing.T) {
	for _, v := range []string{"up", "down", "neutral"} {
		if !protocol.ValidVote(v) {
			t.Errorf("ValidVote(%q) = false", v)
		}
	}
	for _, v := range []string{"", "UP", "maybe"} {
		if protocol.ValidVote(v) {
			t.Errorf("ValidVote(%q) = true", v)
		}
	}
}
